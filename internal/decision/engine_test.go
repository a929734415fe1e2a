package decision_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixh8/Truth-Bench/internal/decision"
	"github.com/mixh8/Truth-Bench/internal/domain"
	"github.com/mixh8/Truth-Bench/internal/ports"
)

// --- mocks ---

type mockOracle struct {
	mu        sync.Mutex
	responses map[string]string
	err       error
	calls     int
}

func (m *mockOracle) Complete(_ context.Context, req ports.ChatRequest) (ports.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return ports.ChatResponse{}, m.err
	}
	return ports.ChatResponse{
		Text:             m.responses[req.Model],
		PromptTokens:     100,
		CompletionTokens: 40,
		TotalTokens:      140,
		CostUSD:          0.001,
	}, nil
}

func newPortfolios(agentIDs ...string) map[string]*domain.Portfolio {
	out := make(map[string]*domain.Portfolio, len(agentIDs))
	for _, id := range agentIDs {
		out[id] = domain.NewPortfolio(id, id, 100000)
	}
	return out
}

func TestDecide_ValidResponse(t *testing.T) {
	oracle := &mockOracle{responses: map[string]string{
		"model-a": `{"action":"buy_yes","quantity":10,"confidence":70,"probability_yes":0.7,"reasoning":"trend up"}`,
	}}
	engine := decision.NewEngine(oracle, []string{"model-a"}, time.Millisecond)

	result := engine.Decide(context.Background(), "model-a", sampleState(), domain.NewPortfolio("model-a", "Model A", 100000))

	require.NoError(t, result.OracleErr)
	require.Nil(t, result.ParseErr)
	require.NotNil(t, result.Decision)
	assert.Equal(t, domain.ActionBuyYes, result.Decision.Action)
	assert.Equal(t, 10, result.Decision.Quantity)
	assert.Equal(t, "model-a", result.Decision.AgentID)
	assert.Equal(t, "MKT-A", result.Decision.MarketTicker)
	assert.Equal(t, 140, result.TotalTokens)
	assert.InDelta(t, 0.001, result.CostUSD, 1e-9)
}

func TestDecide_OracleErrorIsRecoverable(t *testing.T) {
	oracle := &mockOracle{err: errors.New("connection refused")}
	engine := decision.NewEngine(oracle, []string{"model-a"}, time.Millisecond)

	result := engine.Decide(context.Background(), "model-a", sampleState(), domain.NewPortfolio("model-a", "Model A", 100000))

	assert.Error(t, result.OracleErr)
	assert.Nil(t, result.Decision)
	assert.Nil(t, result.ParseErr)
}

func TestDecide_ParseErrorKeepsRawResponse(t *testing.T) {
	oracle := &mockOracle{responses: map[string]string{
		"model-a": "I would rather not commit to a trade here.",
	}}
	engine := decision.NewEngine(oracle, []string{"model-a"}, time.Millisecond)

	result := engine.Decide(context.Background(), "model-a", sampleState(), domain.NewPortfolio("model-a", "Model A", 100000))

	require.NoError(t, result.OracleErr)
	require.NotNil(t, result.ParseErr)
	assert.Nil(t, result.Decision)
	assert.Equal(t, "I would rather not commit to a trade here.", result.RawResponse)
}

func TestDecide_CancelledContext(t *testing.T) {
	oracle := &mockOracle{responses: map[string]string{}}
	engine := decision.NewEngine(oracle, []string{"model-a"}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())

	// Drain the limiter's initial burst token, then cancel so the second
	// call's Wait fails instead of blocking for an hour.
	_ = engine.Decide(ctx, "model-a", sampleState(), domain.NewPortfolio("model-a", "Model A", 100000))
	cancel()
	result := engine.Decide(ctx, "model-a", sampleState(), domain.NewPortfolio("model-a", "Model A", 100000))

	assert.Error(t, result.OracleErr)
	assert.Nil(t, result.Decision)
}

func TestDecideAll_JoinsEveryAgent(t *testing.T) {
	oracle := &mockOracle{responses: map[string]string{
		"model-a": `{"action":"buy_yes","quantity":5,"confidence":60,"probability_yes":0.6,"reasoning":"a"}`,
		"model-b": `{"action":"buy_no","quantity":8,"confidence":55,"probability_yes":0.4,"reasoning":"b"}`,
		"model-c": "not json",
	}}
	agents := []string{"model-a", "model-b", "model-c"}
	engine := decision.NewEngine(oracle, agents, time.Millisecond)

	results := engine.DecideAll(context.Background(), sampleState(), newPortfolios(agents...))

	require.Len(t, results, 3)
	assert.Equal(t, domain.ActionBuyYes, results["model-a"].Decision.Action)
	assert.Equal(t, domain.ActionBuyNo, results["model-b"].Decision.Action)
	assert.Nil(t, results["model-c"].Decision)
	assert.NotNil(t, results["model-c"].ParseErr)
	assert.Equal(t, 3, oracle.calls)
}
