package sim_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixh8/Truth-Bench/internal/domain"
	"github.com/mixh8/Truth-Bench/internal/ports"
	"github.com/mixh8/Truth-Bench/internal/sim"
	"github.com/mixh8/Truth-Bench/internal/trace"
)

// --- mocks ---

type mockSource struct {
	markets []domain.ResolvedMarket
	err     error
}

func (m *mockSource) LoadMarkets(_ context.Context) ([]domain.ResolvedMarket, error) {
	return m.markets, m.err
}

// scriptedOracle always returns the same response per model, making runs
// fully deterministic.
type scriptedOracle struct {
	responses map[string]string
}

func (o *scriptedOracle) Complete(_ context.Context, req ports.ChatRequest) (ports.ChatResponse, error) {
	resp, ok := o.responses[req.Model]
	if !ok {
		return ports.ChatResponse{}, errors.New("no scripted response")
	}
	return ports.ChatResponse{Text: resp, TotalTokens: 100, CostUSD: 0.001}, nil
}

func testMarkets() []domain.ResolvedMarket {
	markets := make([]domain.ResolvedMarket, 0, 2)
	for i, result := range []domain.Result{domain.ResultYes, domain.ResultNo} {
		var history []domain.Candlestick
		for j := 0; j < 6; j++ {
			history = append(history, domain.Candlestick{
				Timestamp:    int64(1000 + j*100),
				YesBid:       38,
				YesAsk:       40,
				PriceClose:   39,
				Volume:       500,
				OpenInterest: 200,
			})
		}
		markets = append(markets, domain.ResolvedMarket{
			Ticker:  fmt.Sprintf("MKT-%d", i),
			Title:   fmt.Sprintf("Market %d", i),
			Volume:  6000,
			Result:  result,
			History: history,
		})
	}
	return markets
}

func testConfig(traceDir string) sim.Config {
	return sim.Config{
		AgentIDs:        []string{"model-a", "model-b"},
		InitialBankroll: 10000,
		MaxPositionFrac: 0.10,
		MinVolume:       0,
		DecisionPoints:  3,
		OracleInterval:  time.Millisecond,
		TraceDir:        traceDir,
	}
}

func buyYesResponse() string {
	return `{"action":"buy_yes","quantity":10,"confidence":70,"probability_yes":0.7,"reasoning":"momentum"}`
}

func holdResponse() string {
	return `{"action":"hold","quantity":0,"confidence":50,"probability_yes":0.5,"reasoning":"unclear"}`
}

func runOnce(t *testing.T, oracle ports.Oracle) *sim.Result {
	t.Helper()
	s := sim.New(testConfig(t.TempDir()), &mockSource{markets: testMarkets()}, oracle)
	result, err := s.Run(context.Background())
	require.NoError(t, err)
	return result
}

func TestRun_CompletesAndScores(t *testing.T) {
	oracle := &scriptedOracle{responses: map[string]string{
		"model-a": buyYesResponse(),
		"model-b": holdResponse(),
	}}

	result := runOnce(t, oracle)

	assert.Equal(t, 2, result.MarketsEvaluated)
	// 2 markets × 3 decision points × 2 agents.
	assert.Equal(t, 12, result.TotalDecisions)
	require.Len(t, result.Scores, 2)
	require.Len(t, result.MarketResults, 2)
	assert.Equal(t, domain.ResultYes, result.MarketResults[0].Result)

	// model-b held throughout: flat bankroll, zero ROI baseline metrics.
	var holdScore domain.ModelScore
	for _, score := range result.Scores {
		if score.AgentID == "model-b" {
			holdScore = score
		}
	}
	assert.Equal(t, 10000.0, holdScore.FinalBankroll)
	assert.Equal(t, 0.0, holdScore.ROI)
	assert.Equal(t, 0.25, holdScore.BrierScore)
}

func TestRun_DeterministicAcrossRuns(t *testing.T) {
	responses := map[string]string{
		"model-a": buyYesResponse(),
		"model-b": `{"action":"buy_no","quantity":20,"confidence":60,"probability_yes":0.35,"reasoning":"fade"}`,
	}

	first := runOnce(t, &scriptedOracle{responses: responses})
	second := runOnce(t, &scriptedOracle{responses: responses})

	assert.Equal(t, first.Rankings, second.Rankings)
	require.Len(t, second.Scores, len(first.Scores))
	for i := range first.Scores {
		assert.Equal(t, first.Scores[i].AgentID, second.Scores[i].AgentID)
		assert.Equal(t, first.Scores[i].FinalBankroll, second.Scores[i].FinalBankroll)
		assert.Equal(t, first.Scores[i].ROI, second.Scores[i].ROI)
		assert.Equal(t, first.Scores[i].BrierScore, second.Scores[i].BrierScore)
	}
	assert.Equal(t, first.TotalDecisions, second.TotalDecisions)
}

func TestRun_UnparseableAgentIsImplicitHold(t *testing.T) {
	oracle := &scriptedOracle{responses: map[string]string{
		"model-a": buyYesResponse(),
		"model-b": "I cannot answer in the requested format.",
	}}

	result := runOnce(t, oracle)

	// Parse failures contribute no decisions and leave the bankroll alone.
	assert.Equal(t, 6, result.TotalDecisions)
	for _, score := range result.Scores {
		if score.AgentID == "model-b" {
			assert.Equal(t, 10000.0, score.FinalBankroll)
			assert.Equal(t, 0, score.TotalTrades)
		}
	}
}

func TestRun_OracleFailuresDoNotAbortRun(t *testing.T) {
	oracle := &scriptedOracle{responses: map[string]string{
		"model-a": buyYesResponse(),
		// model-b has no scripted response: every call errors.
	}}

	result := runOnce(t, oracle)
	assert.Equal(t, 2, result.MarketsEvaluated)
	assert.Equal(t, 6, result.TotalDecisions)
}

func TestRun_SourceErrorIsFatal(t *testing.T) {
	s := sim.New(testConfig(t.TempDir()), &mockSource{err: errors.New("disk gone")}, &scriptedOracle{})

	result, err := s.Run(context.Background())

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, sim.StateError, s.Status().State)
	assert.NotEmpty(t, s.Status().ErrorMessage)
}

func TestRun_UpdatesStreamEndsWithTerminalSnapshot(t *testing.T) {
	oracle := &scriptedOracle{responses: map[string]string{
		"model-a": holdResponse(),
		"model-b": holdResponse(),
	}}
	s := sim.New(testConfig(t.TempDir()), &mockSource{markets: testMarkets()}, oracle)

	done := make(chan sim.Status, 1)
	go func() {
		var last sim.Status
		for status := range s.Updates() {
			last = status
		}
		done <- last
	}()

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	last := <-done
	assert.Equal(t, sim.StateCompleted, last.State)
	assert.True(t, last.State.Terminal())
	assert.Equal(t, 2, last.MarketsCompleted)
	assert.Equal(t, 2, last.TotalMarkets)
	require.Len(t, last.Portfolios, 2)
	assert.Equal(t, "Model A", last.Portfolios[0].AgentName)
}

func TestStop_BeforeRunPausesImmediately(t *testing.T) {
	oracle := &scriptedOracle{responses: map[string]string{
		"model-a": holdResponse(),
		"model-b": holdResponse(),
	}}
	s := sim.New(testConfig(t.TempDir()), &mockSource{markets: testMarkets()}, oracle)
	s.Stop()

	result, err := s.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, sim.StatePaused, s.Status().State)
	// No markets were processed, but partial results still come back.
	assert.Equal(t, 0, result.MarketsEvaluated)
	assert.Len(t, result.Scores, 2)
}

func TestStatus_ConcurrentWithRun(t *testing.T) {
	oracle := &scriptedOracle{responses: map[string]string{
		"model-a": buyYesResponse(),
		"model-b": buyYesResponse(),
	}}
	s := sim.New(testConfig(t.TempDir()), &mockSource{markets: testMarkets()}, oracle)

	// Poll continuously from another goroutine while the run mutates the
	// ledger; the race detector flags any unguarded shared state.
	done := make(chan int, 1)
	go func() {
		polls := 0
		for {
			status := s.Status()
			polls++
			for _, p := range status.Portfolios {
				_ = p.Bankroll + p.ROI
			}
			if status.State.Terminal() {
				done <- polls
				return
			}
		}
	}()

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	polls := <-done
	assert.Greater(t, polls, 0)

	final := s.Status()
	assert.Equal(t, sim.StateCompleted, final.State)
	assert.Equal(t, 2, final.TotalMarkets)
	require.Len(t, final.Portfolios, 2)
}

func TestRun_TraceRecordsOracleParameters(t *testing.T) {
	traceDir := t.TempDir()
	oracle := &scriptedOracle{responses: map[string]string{
		"model-a": buyYesResponse(),
		"model-b": holdResponse(),
	}}
	s := sim.New(testConfig(traceDir), &mockSource{markets: testMarkets()}, oracle)

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	paths, err := filepath.Glob(filepath.Join(traceDir, "truthbench_*.json"))
	require.NoError(t, err)
	require.Len(t, paths, 1)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	var doc trace.Document
	require.NoError(t, json.Unmarshal(data, &doc))

	require.NotEmpty(t, doc.OracleCalls)
	for _, call := range doc.OracleCalls {
		assert.Equal(t, 0.3, call.Temperature)
		assert.Equal(t, 500, call.MaxTokens)
	}
}

func TestStatus_SafeBeforeRun(t *testing.T) {
	s := sim.New(testConfig(t.TempDir()), &mockSource{markets: testMarkets()}, &scriptedOracle{})

	status := s.Status()
	assert.Equal(t, sim.StateInitializing, status.State)
	assert.Equal(t, 0, status.MarketsCompleted)
	assert.NotEmpty(t, status.SimulationID)
}
