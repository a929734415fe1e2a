package sim

import (
	"time"

	"github.com/mixh8/Truth-Bench/internal/domain"
)

// State is the simulation lifecycle state.
type State string

const (
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StatePaused       State = "paused"
	StateCompleted    State = "completed"
	StateError        State = "error"
)

// Terminal reports whether the lifecycle cannot advance further.
// paused counts: a stop request ends the run.
func (s State) Terminal() bool {
	return s == StatePaused || s == StateCompleted || s == StateError
}

// PortfolioSummary is the per-agent slice of a status snapshot.
type PortfolioSummary struct {
	AgentID       string
	AgentName     string
	Bankroll      float64
	ROI           float64
	TotalTrades   int
	WinningTrades int
	OpenPositions int
}

// DecisionSummary is one recent decision with truncated reasoning.
type DecisionSummary struct {
	AgentID      string
	MarketTicker string
	Action       domain.Action
	Quantity     int
	Confidence   float64
	Reasoning    string
}

// Status is a point-in-time snapshot of a running simulation, safe to hand
// to a presentation layer.
type Status struct {
	SimulationID       string
	State              State
	CurrentMarket      string
	CurrentTimestep    int64
	MarketsCompleted   int
	TotalMarkets       int
	Elapsed            time.Duration
	EstimatedRemaining time.Duration // 0 when unknown
	Portfolios         []PortfolioSummary
	RecentDecisions    []DecisionSummary
	ErrorMessage       string
}

// MarketResult is the per-market breakdown attached to the final result.
type MarketResult struct {
	Ticker     string
	Title      string
	Result     domain.Result
	PnLByAgent map[string]float64
}

// Result is the final output of a simulation run.
type Result struct {
	SimulationID     string
	Config           Config
	StartTime        time.Time
	EndTime          time.Time
	Scores           []domain.ModelScore
	Rankings         []string
	TotalDecisions   int
	MarketsEvaluated int
	MarketResults    []MarketResult
}

const (
	recentDecisionsKept      = 50
	recentDecisionsPublished = 10
	reasoningTruncateLen     = 100
)

// truncate shortens reasoning text for status snapshots.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
