package scoring

import (
	"math"
	"sort"

	"github.com/mixh8/Truth-Bench/internal/domain"
)

// Prediction is one directional forecast paired with the eventual outcome.
// Only buy_yes/buy_no decisions produce predictions: hold and sell carry no
// directional view.
type Prediction struct {
	AgentID        string
	MarketTicker   string
	ProbabilityYes float64
	ActualResult   domain.Result
	Timestamp      int64
}

const (
	// Baselines for agents with no directional decisions: the Brier score
	// and accuracy of a uniform random forecaster.
	baselineBrier    = 0.25
	baselineAccuracy = 0.5

	// Annualization factors for hourly-sampled returns.
	hoursPerYear     = 8760
	sqrtHoursPerYear = 93.59487165438072 // √8760
)

// Engine accumulates predictions during a run and computes calibration and
// performance metrics from them plus the final portfolios.
type Engine struct {
	predictions []Prediction
}

// NewEngine creates an empty scoring engine.
func NewEngine() *Engine {
	return &Engine{}
}

// RecordPrediction stores a decision's probability estimate against the
// market's known result. Non-directional decisions are ignored.
func (e *Engine) RecordPrediction(decision domain.TradingDecision, result domain.Result) {
	if !decision.Action.IsBuy() {
		return
	}
	e.predictions = append(e.predictions, Prediction{
		AgentID:        decision.AgentID,
		MarketTicker:   decision.MarketTicker,
		ProbabilityYes: decision.ProbabilityYes,
		ActualResult:   result,
		Timestamp:      decision.Timestamp,
	})
}

// Predictions returns everything recorded so far.
func (e *Engine) Predictions() []Prediction {
	return e.predictions
}

// BrierScore is the mean squared error of the agent's probability estimates
// against binary outcomes. Lower is better; 0.25 with no predictions.
func (e *Engine) BrierScore(agentID string) float64 {
	var sum float64
	n := 0
	for _, p := range e.predictions {
		if p.AgentID != agentID {
			continue
		}
		outcome := 0.0
		if p.ActualResult == domain.ResultYes {
			outcome = 1.0
		}
		diff := p.ProbabilityYes - outcome
		sum += diff * diff
		n++
	}
	if n == 0 {
		return baselineBrier
	}
	return sum / float64(n)
}

// Accuracy is the fraction of predictions whose direction (probability ≥ 0.5
// means yes) matched the outcome. 0.5 with no predictions.
func (e *Engine) Accuracy(agentID string) float64 {
	correct, n := 0, 0
	for _, p := range e.predictions {
		if p.AgentID != agentID {
			continue
		}
		predictedYes := p.ProbabilityYes >= 0.5
		actualYes := p.ActualResult == domain.ResultYes
		if predictedYes == actualYes {
			correct++
		}
		n++
	}
	if n == 0 {
		return baselineAccuracy
	}
	return float64(correct) / float64(n)
}

// SharpeRatio computes the annualized risk-adjusted return from the
// portfolio's snapshot history, assuming hourly sampling. Zero with fewer
// than two snapshots or zero volatility.
func SharpeRatio(portfolio *domain.Portfolio) float64 {
	snapshots := portfolio.Snapshots
	if len(snapshots) < 2 {
		return 0
	}

	var returns []float64
	for i := 1; i < len(snapshots); i++ {
		prev := snapshots[i-1].TotalValue
		if prev > 0 {
			returns = append(returns, (snapshots[i].TotalValue-prev)/prev)
		}
	}
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1) // sample variance

	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		return 0
	}

	annualizedReturn := mean * hoursPerYear
	annualizedStd := stdDev * sqrtHoursPerYear
	return annualizedReturn / annualizedStd
}

// Score computes all metrics for one agent's portfolio.
func (e *Engine) Score(portfolio *domain.Portfolio) domain.ModelScore {
	return domain.ModelScore{
		AgentID:       portfolio.AgentID,
		AgentName:     portfolio.AgentName,
		ROI:           portfolio.ROI(),
		FinalBankroll: portfolio.Bankroll,
		BrierScore:    e.BrierScore(portfolio.AgentID),
		Accuracy:      e.Accuracy(portfolio.AgentID),
		WinRate:       portfolio.WinRate(),
		TotalTrades:   portfolio.TotalTrades,
		SharpeRatio:   SharpeRatio(portfolio),
	}
}

// ScoreAll scores every portfolio and sorts by ROI descending. The sort is
// stable, so ties keep the original agent order.
func (e *Engine) ScoreAll(portfolios []*domain.Portfolio) []domain.ModelScore {
	scores := make([]domain.ModelScore, 0, len(portfolios))
	for _, p := range portfolios {
		scores = append(scores, e.Score(p))
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].ROI > scores[j].ROI
	})
	return scores
}

// Rankings extracts the agent ids from sorted scores.
func Rankings(scores []domain.ModelScore) []string {
	ids := make([]string, 0, len(scores))
	for _, s := range scores {
		ids = append(ids, s.AgentID)
	}
	return ids
}
