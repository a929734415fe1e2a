package trace_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixh8/Truth-Bench/internal/domain"
	"github.com/mixh8/Truth-Bench/internal/trace"
)

func savedDocument(t *testing.T, tracer *trace.Tracer) trace.Document {
	t.Helper()
	path, err := tracer.Save()
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc trace.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestTracer_MonotonicIDsAcrossRecordTypes(t *testing.T) {
	tracer := trace.New("abc123", nil, t.TempDir())

	tracer.RecordExposure(trace.ExposureRecord{MarketTicker: "MKT-A"})
	tracer.RecordOracleCall(trace.OracleCall{AgentID: "model-a"})
	tracer.RecordTrade(trace.TradeRecord{AgentID: "model-a"})
	tracer.RecordSettlement(trace.SettlementRecord{MarketTicker: "MKT-A"})

	doc := savedDocument(t, tracer)
	assert.Equal(t, "abc123-000001", doc.Exposures[0].TraceID)
	assert.Equal(t, "abc123-000002", doc.OracleCalls[0].TraceID)
	assert.Equal(t, "abc123-000003", doc.Trades[0].TraceID)
	assert.Equal(t, "abc123-000004", doc.Settlements[0].TraceID)
}

func TestTracer_AggregatesOracleCalls(t *testing.T) {
	tracer := trace.New("abc123", nil, t.TempDir())

	tracer.RecordOracleCall(trace.OracleCall{LatencyMS: 120, TotalTokens: 200, CostUSD: 0.002})
	tracer.RecordOracleCall(trace.OracleCall{LatencyMS: 80, TotalTokens: 100, CostUSD: 0.001})
	tracer.RecordTrade(trace.TradeRecord{Executed: true})
	tracer.RecordTrade(trace.TradeRecord{Executed: false})

	summary := tracer.Summarize()
	assert.Equal(t, 2, summary.TotalOracleCalls)
	assert.Equal(t, 300, summary.TotalTokens)
	assert.InDelta(t, 0.003, summary.TotalCostUSD, 1e-9)
	assert.InDelta(t, 100.0, summary.AvgLatencyMS, 1e-9)
	assert.Equal(t, 1, summary.TradesExecuted)
}

func TestTracer_SaveWritesDocument(t *testing.T) {
	dir := t.TempDir()
	tracer := trace.New("abc123", map[string]int{"markets": 5}, dir)

	path, err := tracer.Save()
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "truthbench_abc123_"))

	var doc trace.Document
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "abc123", doc.SimulationID)
	assert.Equal(t, "running", doc.Status)
	assert.NotEmpty(t, doc.StartTime)
}

func TestTracer_FinalResults(t *testing.T) {
	tracer := trace.New("abc123", nil, t.TempDir())

	scores := []domain.ModelScore{{AgentID: "model-a", ROI: 0.1}}
	tracer.SetFinalResults(scores, []string{"model-a"}, "completed")

	doc := savedDocument(t, tracer)
	assert.Equal(t, "completed", doc.Status)
	assert.Equal(t, []string{"model-a"}, doc.FinalRankings)
	require.Len(t, doc.FinalScores, 1)
	assert.NotEmpty(t, doc.EndTime)
}

func TestTracer_PausedStatusIsPreserved(t *testing.T) {
	tracer := trace.New("abc123", nil, t.TempDir())
	tracer.SetFinalResults(nil, nil, "paused")

	assert.Equal(t, "paused", tracer.Summarize().Status)
}

func TestTracer_SetError(t *testing.T) {
	tracer := trace.New("abc123", nil, t.TempDir())
	tracer.SetError("no markets available after filtering")

	doc := savedDocument(t, tracer)
	assert.Equal(t, "error", doc.Status)
	assert.Equal(t, "no markets available after filtering", doc.ErrorMessage)
}
