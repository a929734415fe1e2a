package domain

// Side is which leg of a binary market a position holds.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Matches reports whether the position side matches a market result.
func (s Side) Matches(r Result) bool {
	return (s == SideYes && r == ResultYes) || (s == SideNo && r == ResultNo)
}

// Position is a holding in one market. Quantity is always > 0 while the
// position exists; a position is deleted when fully sold or settled.
type Position struct {
	MarketTicker   string
	Side           Side
	Quantity       int
	AvgPrice       float64 // volume-weighted entry price in cents
	EntryTimestamp int64
}

// Snapshot is one point of a portfolio's value history.
//
// TotalValue marks open positions at a fixed neutral 50¢ since the ledger
// does not look at prices after the decision point.
type Snapshot struct {
	Timestamp     int64
	Bankroll      float64
	TotalValue    float64
	OpenPositions int
}

// Portfolio is one agent's complete trading state for a simulation run.
// Mutated only by the ledger and settlement on the orchestrator's thread.
type Portfolio struct {
	AgentID         string
	AgentName       string
	Bankroll        float64 // cents, may be fractional
	InitialBankroll float64
	Positions       map[string]Position // ticker → position, at most one per ticker
	Snapshots       []Snapshot
	Decisions       []TradingDecision
	TotalTrades     int
	WinningTrades   int
}

// NewPortfolio creates a portfolio with the given starting bankroll.
func NewPortfolio(agentID, agentName string, bankroll float64) *Portfolio {
	return &Portfolio{
		AgentID:         agentID,
		AgentName:       agentName,
		Bankroll:        bankroll,
		InitialBankroll: bankroll,
		Positions:       make(map[string]Position),
	}
}

// ROI returns the return on investment over the initial bankroll.
func (p *Portfolio) ROI() float64 {
	if p.InitialBankroll == 0 {
		return 0
	}
	return (p.Bankroll - p.InitialBankroll) / p.InitialBankroll
}

// WinRate returns the fraction of executed trades that were profitable.
func (p *Portfolio) WinRate() float64 {
	if p.TotalTrades == 0 {
		return 0
	}
	return float64(p.WinningTrades) / float64(p.TotalTrades)
}

// TotalValue returns bankroll plus open positions marked at a neutral 50¢.
func (p *Portfolio) TotalValue() float64 {
	total := p.Bankroll
	for _, pos := range p.Positions {
		total += float64(pos.Quantity) * 50
	}
	return total
}
