package trace

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mixh8/Truth-Bench/internal/domain"
)

// Event records share a monotonically increasing id scoped to the
// simulation. The tracer is append-only: prior entries are never touched.

// OracleCall records one oracle invocation end to end.
type OracleCall struct {
	TraceID      string `json:"trace_id"`
	Timestamp    string `json:"timestamp"`
	AgentID      string `json:"agent_id"`
	MarketTicker string `json:"market_ticker"`

	SystemPrompt string  `json:"system_prompt"`
	UserPrompt   string  `json:"user_prompt"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`

	RawResponse string `json:"raw_response"`
	Parsed      bool   `json:"parsed_successfully"`
	ParseError  string `json:"parse_error,omitempty"`
	OracleError string `json:"oracle_error,omitempty"`

	Action         string  `json:"action,omitempty"`
	Quantity       int     `json:"quantity,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
	ProbabilityYes float64 `json:"probability_yes,omitempty"`
	Reasoning      string  `json:"reasoning,omitempty"`

	LatencyMS   float64 `json:"latency_ms"`
	TotalTokens int     `json:"total_tokens,omitempty"`
	CostUSD     float64 `json:"estimated_cost_usd,omitempty"`
}

// PositionState is a position snapshot embedded in trade records.
type PositionState struct {
	Side     string  `json:"side"`
	Quantity int     `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
}

// TradeRecord records one trade attempt: requested vs executed, plus the
// bankroll and position before and after.
type TradeRecord struct {
	TraceID      string `json:"trace_id"`
	Timestamp    string `json:"timestamp"`
	AgentID      string `json:"agent_id"`
	MarketTicker string `json:"market_ticker"`

	Action            string  `json:"action"`
	RequestedQuantity int     `json:"requested_quantity"`
	Executed          bool    `json:"executed"`
	ExecutedQuantity  int     `json:"executed_quantity"`
	ExecutionPrice    float64 `json:"execution_price"`
	TotalCost         float64 `json:"total_cost"`
	Error             string  `json:"error,omitempty"`

	BankrollBefore float64        `json:"bankroll_before"`
	BankrollAfter  float64        `json:"bankroll_after"`
	PositionBefore *PositionState `json:"position_before,omitempty"`
	PositionAfter  *PositionState `json:"position_after,omitempty"`
}

// ExposureRecord records the market state shown to agents at one decision
// point, summarized.
type ExposureRecord struct {
	TraceID            string  `json:"trace_id"`
	Timestamp          string  `json:"timestamp"`
	MarketTicker       string  `json:"market_ticker"`
	DecisionPointIndex int     `json:"decision_point_index"`
	Title              string  `json:"title"`
	CurrentYesBid      float64 `json:"current_yes_bid"`
	CurrentYesAsk      float64 `json:"current_yes_ask"`
	Volume             int64   `json:"volume"`
	OpenInterest       int64   `json:"open_interest"`
	HistoryLength      int     `json:"price_history_length"`
	ActualResult       string  `json:"actual_result"`
}

// AgentSettlement is one agent's realized P&L within a settlement record.
type AgentSettlement struct {
	AgentID  string  `json:"agent_id"`
	Side     string  `json:"side,omitempty"`
	Quantity int     `json:"quantity,omitempty"`
	PnL      float64 `json:"pnl"`
}

// SettlementRecord records a market resolving and the per-agent P&L.
type SettlementRecord struct {
	TraceID      string            `json:"trace_id"`
	Timestamp    string            `json:"timestamp"`
	MarketTicker string            `json:"market_ticker"`
	Result       string            `json:"result"`
	Settlements  []AgentSettlement `json:"settlements"`
}

// Document is the full trace serialized at the end of a run.
type Document struct {
	SimulationID string `json:"simulation_id"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time,omitempty"`
	Status       string `json:"status"`

	Config any `json:"config"`

	OracleCalls []OracleCall       `json:"oracle_calls"`
	Trades      []TradeRecord      `json:"trade_executions"`
	Exposures   []ExposureRecord   `json:"market_states"`
	Settlements []SettlementRecord `json:"market_settlements"`

	TotalOracleCalls int     `json:"total_oracle_calls"`
	TotalTokens      int     `json:"total_tokens"`
	TotalCostUSD     float64 `json:"total_cost_usd"`
	TotalLatencyMS   float64 `json:"total_latency_ms"`

	FinalScores   []domain.ModelScore `json:"final_scores,omitempty"`
	FinalRankings []string            `json:"final_rankings,omitempty"`
	ErrorMessage  string              `json:"error_message,omitempty"`
}

// Summary is the aggregate view logged at the end of a run.
type Summary struct {
	SimulationID     string
	Status           string
	TotalOracleCalls int
	TotalTokens      int
	TotalCostUSD     float64
	AvgLatencyMS     float64
	MarketsProcessed int
	TradesExecuted   int
}

// Tracer accumulates every simulation event and serializes the full document
// at the end of the run or on error. Single-writer: all calls happen on the
// orchestrator's thread.
type Tracer struct {
	outputDir string
	counter   int
	doc       Document
}

// New creates a tracer for the given simulation. Traces are written under
// outputDir ("traces" if empty).
func New(simulationID string, config any, outputDir string) *Tracer {
	if outputDir == "" {
		outputDir = "traces"
	}
	return &Tracer{
		outputDir: outputDir,
		doc: Document{
			SimulationID: simulationID,
			StartTime:    time.Now().UTC().Format(time.RFC3339),
			Status:       "running",
			Config:       config,
		},
	}
}

// nextID returns the next monotonically increasing trace id.
func (t *Tracer) nextID() string {
	t.counter++
	return fmt.Sprintf("%s-%06d", t.doc.SimulationID, t.counter)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// RecordOracleCall appends an oracle call record and updates the aggregates.
func (t *Tracer) RecordOracleCall(call OracleCall) {
	call.TraceID = t.nextID()
	call.Timestamp = now()
	t.doc.OracleCalls = append(t.doc.OracleCalls, call)
	t.doc.TotalOracleCalls++
	t.doc.TotalLatencyMS += call.LatencyMS
	t.doc.TotalTokens += call.TotalTokens
	t.doc.TotalCostUSD += call.CostUSD
}

// RecordTrade appends a trade execution record.
func (t *Tracer) RecordTrade(trade TradeRecord) {
	trade.TraceID = t.nextID()
	trade.Timestamp = now()
	t.doc.Trades = append(t.doc.Trades, trade)
}

// RecordExposure appends a market-state exposure record.
func (t *Tracer) RecordExposure(exposure ExposureRecord) {
	exposure.TraceID = t.nextID()
	exposure.Timestamp = now()
	t.doc.Exposures = append(t.doc.Exposures, exposure)
}

// RecordSettlement appends a settlement record.
func (t *Tracer) RecordSettlement(settlement SettlementRecord) {
	settlement.TraceID = t.nextID()
	settlement.Timestamp = now()
	t.doc.Settlements = append(t.doc.Settlements, settlement)
}

// SetFinalResults attaches the final scores and the terminal status
// ("completed" or "paused").
func (t *Tracer) SetFinalResults(scores []domain.ModelScore, rankings []string, status string) {
	t.doc.FinalScores = scores
	t.doc.FinalRankings = rankings
	t.doc.Status = status
	t.doc.EndTime = time.Now().UTC().Format(time.RFC3339)
}

// SetError marks the run as errored.
func (t *Tracer) SetError(message string) {
	t.doc.Status = "error"
	t.doc.ErrorMessage = message
	t.doc.EndTime = time.Now().UTC().Format(time.RFC3339)
}

// Save writes the full trace document as one JSON file and returns its path.
func (t *Tracer) Save() (string, error) {
	if err := os.MkdirAll(t.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("trace.Save: mkdir %q: %w", t.outputDir, err)
	}

	name := fmt.Sprintf("truthbench_%s_%s.json",
		t.doc.SimulationID, time.Now().Format("20060102_150405"))
	path := filepath.Join(t.outputDir, name)

	data, err := json.MarshalIndent(t.doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("trace.Save: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("trace.Save: write %q: %w", path, err)
	}

	slog.Info("simulation trace saved",
		"path", path,
		"oracle_calls", len(t.doc.OracleCalls),
		"trades", len(t.doc.Trades),
	)
	return path, nil
}

// Summarize returns the aggregate metrics for the run so far.
func (t *Tracer) Summarize() Summary {
	executed := 0
	for _, trade := range t.doc.Trades {
		if trade.Executed {
			executed++
		}
	}

	avgLatency := 0.0
	if t.doc.TotalOracleCalls > 0 {
		avgLatency = t.doc.TotalLatencyMS / float64(t.doc.TotalOracleCalls)
	}

	return Summary{
		SimulationID:     t.doc.SimulationID,
		Status:           t.doc.Status,
		TotalOracleCalls: t.doc.TotalOracleCalls,
		TotalTokens:      t.doc.TotalTokens,
		TotalCostUSD:     t.doc.TotalCostUSD,
		AvgLatencyMS:     avgLatency,
		MarketsProcessed: len(t.doc.Settlements),
		TradesExecuted:   executed,
	}
}
