package sim

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mixh8/Truth-Bench/internal/decision"
	"github.com/mixh8/Truth-Bench/internal/domain"
	"github.com/mixh8/Truth-Bench/internal/ledger"
	"github.com/mixh8/Truth-Bench/internal/ports"
	"github.com/mixh8/Truth-Bench/internal/replay"
	"github.com/mixh8/Truth-Bench/internal/scoring"
	"github.com/mixh8/Truth-Bench/internal/trace"
)

// Config is the immutable configuration for one simulation run.
type Config struct {
	AgentIDs        []string          // oracle model keys, one portfolio each
	AgentNames      map[string]string // optional display names
	InitialBankroll float64           // cents
	MaxPositionFrac float64           // max fraction of bankroll per position
	MinVolume       int64             // market volume floor
	MaxMarkets      int               // 0 = all
	DecisionPoints  int               // decision points per market
	OracleInterval  time.Duration     // min inter-call interval per agent
	TraceDir        string
}

// Simulation drives the full benchmark lifecycle:
// initializing → running → {paused | completed | error}.
//
// It is a plain instance owned by its caller; the presentation layer holds a
// reference and polls Status or consumes Updates.
type Simulation struct {
	ID  string
	cfg Config

	replayer *replay.Engine
	decider  *decision.Engine
	book     *ledger.Ledger
	scorer   *scoring.Engine
	tracer   *trace.Tracer

	// Everything below s.mu is what Status() reads. The run goroutine owns
	// the ledger; portfolio state is mirrored into portfolioSummaries under
	// the mutex so snapshots never touch live portfolios.
	mu                 sync.Mutex
	state              State
	currentMarket      string
	currentTimestep    int64
	marketsCompleted   int
	totalMarkets       int
	startTime          time.Time
	errorMessage       string
	stopRequested      bool
	recentDecisions    []domain.TradingDecision
	totalDecisions     int
	marketResults      []MarketResult
	portfolioSummaries []PortfolioSummary

	updates chan Status
}

// New creates a simulation over the given market source and oracle.
func New(cfg Config, source ports.MarketSource, oracle ports.Oracle) *Simulation {
	id := uuid.New().String()[:8]

	names := make(map[string]string, len(cfg.AgentIDs))
	for _, agentID := range cfg.AgentIDs {
		if n := cfg.AgentNames[agentID]; n != "" {
			names[agentID] = n
		} else {
			names[agentID] = displayName(agentID)
		}
	}

	interval := cfg.OracleInterval
	if interval <= 0 {
		interval = time.Second
	}

	s := &Simulation{
		ID:       id,
		cfg:      cfg,
		replayer: replay.New(replay.Config{MinVolume: cfg.MinVolume, MaxMarkets: cfg.MaxMarkets}, source),
		decider:  decision.NewEngine(oracle, cfg.AgentIDs, interval),
		book:     ledger.New(cfg.AgentIDs, names, cfg.InitialBankroll, cfg.MaxPositionFrac),
		scorer:   scoring.NewEngine(),
		tracer:   trace.New(id, cfg, cfg.TraceDir),
		state:    StateInitializing,
		updates:  make(chan Status, 16),
	}

	s.refreshPortfolios()

	slog.Info("simulation initialized",
		"id", id,
		"agents", len(cfg.AgentIDs),
		"initial_bankroll", cfg.InitialBankroll,
	)
	return s
}

// refreshPortfolios mirrors the ledger's portfolios into the mutex-guarded
// summaries read by Status. Called only from the run goroutine (and New),
// never concurrently with ledger mutations.
func (s *Simulation) refreshPortfolios() {
	summaries := make([]PortfolioSummary, 0, len(s.cfg.AgentIDs))
	for _, p := range s.book.Portfolios() {
		summaries = append(summaries, PortfolioSummary{
			AgentID:       p.AgentID,
			AgentName:     p.AgentName,
			Bankroll:      p.Bankroll,
			ROI:           p.ROI(),
			TotalTrades:   p.TotalTrades,
			WinningTrades: p.WinningTrades,
			OpenPositions: len(p.Positions),
		})
	}
	s.mu.Lock()
	s.portfolioSummaries = summaries
	s.mu.Unlock()
}

// displayName derives a readable name from an opaque model key:
// "openai/gpt-4o" → "Gpt 4o".
func displayName(agentID string) string {
	name := agentID
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ReplaceAll(name, "-", " ")
	words := strings.Fields(name)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Stop requests the simulation to pause. Observed between decision points
// and between markets; an in-flight oracle call is allowed to finish.
func (s *Simulation) Stop() {
	s.mu.Lock()
	s.stopRequested = true
	s.mu.Unlock()
	slog.Info("stop requested", "id", s.ID)
}

// Updates returns the status stream. A snapshot is emitted whenever the
// completed-market count changes and once after the lifecycle reaches a
// terminal state, after which the channel is closed.
func (s *Simulation) Updates() <-chan Status {
	return s.updates
}

// Status returns a point-in-time snapshot. Safe to call from any goroutine.
func (s *Simulation) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Simulation) statusLocked() Status {
	var elapsed time.Duration
	if !s.startTime.IsZero() {
		elapsed = time.Since(s.startTime)
	}

	var remaining time.Duration
	if s.state == StateRunning && s.marketsCompleted > 0 {
		perMarket := elapsed / time.Duration(s.marketsCompleted)
		remaining = perMarket * time.Duration(s.totalMarkets-s.marketsCompleted)
	}

	start := 0
	if len(s.recentDecisions) > recentDecisionsPublished {
		start = len(s.recentDecisions) - recentDecisionsPublished
	}
	recent := make([]DecisionSummary, 0, recentDecisionsPublished)
	for _, d := range s.recentDecisions[start:] {
		recent = append(recent, DecisionSummary{
			AgentID:      d.AgentID,
			MarketTicker: d.MarketTicker,
			Action:       d.Action,
			Quantity:     d.Quantity,
			Confidence:   d.Confidence,
			Reasoning:    truncate(d.Reasoning, reasoningTruncateLen),
		})
	}

	return Status{
		SimulationID:       s.ID,
		State:              s.state,
		CurrentMarket:      s.currentMarket,
		CurrentTimestep:    s.currentTimestep,
		MarketsCompleted:   s.marketsCompleted,
		TotalMarkets:       s.totalMarkets,
		Elapsed:            elapsed,
		EstimatedRemaining: remaining,
		Portfolios:         s.portfolioSummaries,
		RecentDecisions:    recent,
		ErrorMessage:       s.errorMessage,
	}
}

// publish emits a status snapshot without blocking the main loop.
func (s *Simulation) publish() {
	s.mu.Lock()
	status := s.statusLocked()
	s.mu.Unlock()

	select {
	case s.updates <- status:
	default: // slow consumer, drop
	}
}

// shouldStop reports whether a stop was requested or the context ended.
// Checked only at decision-point and market boundaries.
func (s *Simulation) shouldStop(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopRequested
}

func (s *Simulation) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Run executes the complete simulation and returns the final result.
// On an unrecoverable failure it transitions to error and still saves the
// trace accumulated so far.
func (s *Simulation) Run(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	s.startTime = time.Now()
	s.mu.Unlock()

	result, err := s.run(ctx)
	if err != nil {
		s.mu.Lock()
		s.state = StateError
		s.errorMessage = err.Error()
		s.mu.Unlock()

		s.tracer.SetError(err.Error())
		if _, saveErr := s.tracer.Save(); saveErr != nil {
			slog.Error("failed to save error trace", "err", saveErr)
		}
		s.publish()
		close(s.updates)
		return nil, err
	}

	s.publish()
	close(s.updates)
	return result, nil
}

func (s *Simulation) run(ctx context.Context) (*Result, error) {
	total, err := s.replayer.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("sim.Run: %w", err)
	}
	s.mu.Lock()
	s.totalMarkets = total
	s.mu.Unlock()
	s.setState(StateRunning)
	s.publish()

	for _, market := range s.replayer.Markets() {
		if s.shouldStop(ctx) {
			slog.Info("simulation paused", "id", s.ID, "at_market", market.Ticker)
			s.setState(StatePaused)
			break
		}

		if err := s.processMarket(ctx, market); err != nil {
			return nil, fmt.Errorf("sim.Run: market %s: %w", market.Ticker, err)
		}

		s.mu.Lock()
		s.marketsCompleted++
		s.mu.Unlock()
		s.publish()
	}

	s.mu.Lock()
	paused := s.state == StatePaused
	s.mu.Unlock()
	if !paused {
		s.setState(StateCompleted)
	}

	return s.finish()
}

// processMarket runs every decision point of one market, then settles it.
func (s *Simulation) processMarket(ctx context.Context, market domain.ResolvedMarket) error {
	s.mu.Lock()
	s.currentMarket = market.Ticker
	s.mu.Unlock()
	slog.Info("processing market", "ticker", market.Ticker, "candles", len(market.History))

	states := replay.Snapshots(market, s.cfg.DecisionPoints)
	for idx, state := range states {
		if s.shouldStop(ctx) {
			s.setState(StatePaused)
			break
		}

		s.mu.Lock()
		s.currentTimestep = state.CurrentTimestamp
		s.mu.Unlock()

		s.tracer.RecordExposure(trace.ExposureRecord{
			MarketTicker:       state.Ticker,
			DecisionPointIndex: idx,
			Title:              state.Title,
			CurrentYesBid:      state.CurrentYesBid,
			CurrentYesAsk:      state.CurrentYesAsk,
			Volume:             state.Volume,
			OpenInterest:       state.OpenInterest,
			HistoryLength:      len(state.PriceHistory),
			ActualResult:       string(state.Result),
		})

		// Fan out to all agents concurrently; all results are joined before
		// any portfolio is touched.
		results := s.decider.DecideAll(ctx, state, s.book.PortfolioMap())

		for _, agentID := range s.cfg.AgentIDs {
			s.applyResult(agentID, results[agentID], state, market.Result)
		}

		s.book.RecordSnapshots(state.CurrentTimestamp)
		s.refreshPortfolios()
	}

	// Settlement is idempotent: positions are removed as they pay out.
	settlements := s.book.SettleMarket(market.Ticker, market.Result)

	record := trace.SettlementRecord{
		MarketTicker: market.Ticker,
		Result:       string(market.Result),
	}
	pnlByAgent := make(map[string]float64, len(settlements))
	for _, agentID := range s.cfg.AgentIDs {
		st := settlements[agentID]
		pnlByAgent[agentID] = st.PnL
		record.Settlements = append(record.Settlements, trace.AgentSettlement{
			AgentID:  agentID,
			Side:     string(st.Side),
			Quantity: st.Quantity,
			PnL:      st.PnL,
		})
	}
	s.tracer.RecordSettlement(record)
	s.refreshPortfolios()

	s.mu.Lock()
	s.marketResults = append(s.marketResults, MarketResult{
		Ticker:     market.Ticker,
		Title:      market.Title,
		Result:     market.Result,
		PnLByAgent: pnlByAgent,
	})
	s.mu.Unlock()

	return nil
}

// applyResult records one agent's decision-point outcome in the trace and,
// when a decision was produced, executes it against the ledger. Oracle and
// parse failures leave the agent's history untouched (implicit hold).
func (s *Simulation) applyResult(agentID string, res decision.Result, state domain.MarketState, result domain.Result) {
	call := trace.OracleCall{
		AgentID:      agentID,
		MarketTicker: state.Ticker,
		SystemPrompt: decision.SystemPrompt,
		UserPrompt:   decision.BuildPrompt(state, s.book.Portfolio(agentID)),
		Temperature:  decision.OracleTemperature,
		MaxTokens:    decision.OracleMaxTokens,
		RawResponse:  res.RawResponse,
		Parsed:       res.Decision != nil,
		LatencyMS:    float64(res.Latency.Microseconds()) / 1000,
		TotalTokens:  res.TotalTokens,
		CostUSD:      res.CostUSD,
	}
	if res.OracleErr != nil {
		call.OracleError = res.OracleErr.Error()
	}
	if res.ParseErr != nil {
		call.ParseError = res.ParseErr.Reason
	}
	if res.Decision != nil {
		call.Action = string(res.Decision.Action)
		call.Quantity = res.Decision.Quantity
		call.Confidence = res.Decision.Confidence
		call.ProbabilityYes = res.Decision.ProbabilityYes
		call.Reasoning = res.Decision.Reasoning
	}
	s.tracer.RecordOracleCall(call)

	if res.Decision == nil {
		return
	}
	d := *res.Decision

	portfolio := s.book.Portfolio(agentID)
	bankrollBefore := portfolio.Bankroll
	positionBefore := positionState(portfolio, state.Ticker)

	exec := s.book.Execute(d, state)

	execErr := ""
	if exec.Err != nil {
		execErr = exec.Err.Error()
	}
	s.tracer.RecordTrade(trace.TradeRecord{
		AgentID:           agentID,
		MarketTicker:      state.Ticker,
		Action:            string(d.Action),
		RequestedQuantity: d.Quantity,
		Executed:          exec.Executed,
		ExecutedQuantity:  exec.Quantity,
		ExecutionPrice:    exec.Price,
		TotalCost:         exec.Cost,
		Error:             execErr,
		BankrollBefore:    bankrollBefore,
		BankrollAfter:     portfolio.Bankroll,
		PositionBefore:    positionBefore,
		PositionAfter:     positionState(portfolio, state.Ticker),
	})

	s.scorer.RecordPrediction(d, result)

	s.mu.Lock()
	s.totalDecisions++
	s.recentDecisions = append(s.recentDecisions, d)
	if len(s.recentDecisions) > recentDecisionsKept {
		s.recentDecisions = s.recentDecisions[len(s.recentDecisions)-recentDecisionsKept:]
	}
	s.mu.Unlock()
}

// positionState snapshots a position for trade records, nil when absent.
func positionState(portfolio *domain.Portfolio, ticker string) *trace.PositionState {
	pos, ok := portfolio.Positions[ticker]
	if !ok {
		return nil
	}
	return &trace.PositionState{
		Side:     string(pos.Side),
		Quantity: pos.Quantity,
		AvgPrice: pos.AvgPrice,
	}
}

// finish computes final scores, saves the trace, and assembles the result.
// Called for both completed and paused runs: partial results are never
// discarded.
func (s *Simulation) finish() (*Result, error) {
	scores := s.scorer.ScoreAll(s.book.Portfolios())
	rankings := scoring.Rankings(scores)

	s.mu.Lock()
	finalState := s.state
	s.mu.Unlock()
	s.tracer.SetFinalResults(scores, rankings, string(finalState))
	if _, err := s.tracer.Save(); err != nil {
		slog.Error("failed to save trace", "err", err)
	}

	summary := s.tracer.Summarize()
	slog.Info("simulation finished",
		"id", s.ID,
		"oracle_calls", summary.TotalOracleCalls,
		"total_cost_usd", summary.TotalCostUSD,
		"avg_latency_ms", summary.AvgLatencyMS,
		"markets", summary.MarketsProcessed,
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	return &Result{
		SimulationID:     s.ID,
		Config:           s.cfg,
		StartTime:        s.startTime,
		EndTime:          time.Now(),
		Scores:           scores,
		Rankings:         rankings,
		TotalDecisions:   s.totalDecisions,
		MarketsEvaluated: len(s.marketResults),
		MarketResults:    s.marketResults,
	}, nil
}
