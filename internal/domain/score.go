package domain

// ModelScore is the read-only benchmark summary for one agent.
// Computed on demand by the scoring engine; never mutated after creation.
type ModelScore struct {
	AgentID       string
	AgentName     string
	ROI           float64
	FinalBankroll float64
	BrierScore    float64 // calibration, lower is better
	Accuracy      float64 // directional correctness
	WinRate       float64
	TotalTrades   int
	SharpeRatio   float64
}
