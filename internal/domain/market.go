package domain

import "fmt"

// Result is the resolved outcome of a binary market.
type Result string

const (
	ResultYes Result = "yes"
	ResultNo  Result = "no"
)

// Candlestick is one time-bucketed price observation for a market.
// Prices are in cents (0-100), representing implied probability.
type Candlestick struct {
	Timestamp    int64
	YesBid       float64
	YesAsk       float64
	PriceClose   float64
	Volume       int64
	OpenInterest int64
}

// ResolvedMarket is a historical market whose outcome is already known.
// Immutable once loaded; the replay engine only references it.
type ResolvedMarket struct {
	Ticker       string
	Title        string
	RulesPrimary string
	OpenTime     string
	CloseTime    string
	Volume       int64
	Result       Result
	History      []Candlestick // strictly increasing by Timestamp
}

// ValidateHistory checks the load-time invariant that candlesticks are
// ordered strictly increasing by timestamp.
func (m ResolvedMarket) ValidateHistory() error {
	for i := 1; i < len(m.History); i++ {
		if m.History[i].Timestamp <= m.History[i-1].Timestamp {
			return fmt.Errorf("market %s: non-monotonic candlestick timestamps at index %d", m.Ticker, i)
		}
	}
	return nil
}

// MarketState is what an agent sees at one decision point: the prefix of the
// price history up to the current index, and nothing after it.
//
// Result carries the ground truth for settlement and scoring. It must never
// be rendered into agent-facing text; the decision package owns that contract.
type MarketState struct {
	Ticker           string
	Title            string
	RulesPrimary     string
	OpenTime         string
	CloseTime        string
	CurrentTimestamp int64
	CurrentYesBid    float64
	CurrentYesAsk    float64
	CurrentPrice     float64
	Volume           int64 // cumulative over the visible prefix
	OpenInterest     int64 // latest visible value
	PriceHistory     []Candlestick
	Result           Result
}
