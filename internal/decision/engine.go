package decision

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mixh8/Truth-Bench/internal/domain"
	"github.com/mixh8/Truth-Bench/internal/ports"
)

// Oracle call parameters, fixed for the whole run. Lower temperature for
// more consistent decisions. Exported so the tracer can record them.
const (
	OracleTemperature = 0.3
	OracleMaxTokens   = 500
)

// Result is the outcome of soliciting one agent at one decision point.
// Exactly one of Decision, ParseErr, or OracleErr is set: a nil Decision
// means the agent contributes no trade at this point (implicit hold).
type Result struct {
	AgentID     string
	Decision    *domain.TradingDecision
	RawResponse string

	// OracleErr means the call itself failed; ParseErr means the response
	// text was not decodable. Both are recoverable per agent per point.
	OracleErr error
	ParseErr  *ParseError

	Latency          time.Duration
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUSD          float64
}

// Engine solicits structured trading decisions from the oracle, one rate
// limiter per agent so one agent's cadence never delays another.
type Engine struct {
	oracle   ports.Oracle
	limiters map[string]*rate.Limiter
}

// NewEngine creates a decision engine. minInterval is the minimum time
// between consecutive oracle calls for the same agent.
func NewEngine(oracle ports.Oracle, agentIDs []string, minInterval time.Duration) *Engine {
	limiters := make(map[string]*rate.Limiter, len(agentIDs))
	for _, id := range agentIDs {
		limiters[id] = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return &Engine{oracle: oracle, limiters: limiters}
}

// Decide builds the prompt for one agent, waits for its rate limiter,
// invokes the oracle, and parses the response.
func (e *Engine) Decide(ctx context.Context, agentID string, state domain.MarketState, portfolio *domain.Portfolio) Result {
	result := Result{AgentID: agentID}

	if limiter, ok := e.limiters[agentID]; ok {
		if err := limiter.Wait(ctx); err != nil {
			result.OracleErr = err
			return result
		}
	}

	prompt := BuildPrompt(state, portfolio)

	start := time.Now()
	resp, err := e.oracle.Complete(ctx, ports.ChatRequest{
		Model:       agentID,
		System:      SystemPrompt,
		User:        prompt,
		Temperature: OracleTemperature,
		MaxTokens:   OracleMaxTokens,
	})
	result.Latency = time.Since(start)

	if err != nil {
		slog.Warn("oracle call failed", "agent", agentID, "market", state.Ticker, "err", err)
		result.OracleErr = err
		return result
	}

	result.RawResponse = resp.Text
	result.PromptTokens = resp.PromptTokens
	result.CompletionTokens = resp.CompletionTokens
	result.TotalTokens = resp.TotalTokens
	result.CostUSD = resp.CostUSD

	decision, parseErr := ParseDecision(resp.Text, agentID, state.Ticker, state.CurrentTimestamp)
	if parseErr != nil {
		slog.Warn("unparseable oracle response",
			"agent", agentID,
			"market", state.Ticker,
			"reason", parseErr.Reason,
		)
		result.ParseErr = parseErr
		return result
	}

	result.Decision = &decision
	slog.Debug("decision received",
		"agent", agentID,
		"market", state.Ticker,
		"action", decision.Action,
		"quantity", decision.Quantity,
	)
	return result
}

// DecideAll fans out one oracle call per agent concurrently and joins all
// results before returning. Results are keyed by agent so the caller can
// apply them sequentially in agent order.
func (e *Engine) DecideAll(ctx context.Context, state domain.MarketState, portfolios map[string]*domain.Portfolio) map[string]Result {
	results := make(map[string]Result, len(portfolios))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for agentID, portfolio := range portfolios {
		wg.Add(1)
		go func(agentID string, portfolio *domain.Portfolio) {
			defer wg.Done()
			r := e.Decide(ctx, agentID, state, portfolio)
			mu.Lock()
			results[agentID] = r
			mu.Unlock()
		}(agentID, portfolio)
	}
	wg.Wait()

	return results
}
