package source

import "encoding/json"

// Raw DTOs for the resolved-markets dump. Candlesticks may arrive with flat
// numeric fields or with sub-objects per series (Kalshi candlestick format);
// mapping.go normalizes both shapes. Only used inside this package.

// marketsFile is the top-level document of a resolved-markets JSON dump.
// Records are kept raw so one malformed market fails alone, not the load.
type marketsFile struct {
	Markets []json.RawMessage `json:"markets"`
}

// rawMarket is one resolved market record as exported by the collector.
type rawMarket struct {
	Ticker       string           `json:"ticker"`
	Title        string           `json:"title"`
	RulesPrimary string           `json:"rules_primary"`
	OpenTime     string           `json:"open_time"`
	CloseTime    string           `json:"close_time"`
	Volume       int64            `json:"volume"`
	Result       string           `json:"result"`
	PriceHistory []rawCandlestick `json:"price_history"`
}

// rawCandlestick covers both the flat and the nested candlestick shapes.
// Missing numeric fields default to 0.
type rawCandlestick struct {
	Timestamp   int64 `json:"timestamp"`
	EndPeriodTS int64 `json:"end_period_ts"`

	// Nested sub-objects (may be absent).
	Price  *rawSeries `json:"price"`
	YesBid *rawSeries `json:"yes_bid"`
	YesAsk *rawSeries `json:"yes_ask"`

	// Flat fields (may be absent).
	YesBidClose json.Number `json:"yes_bid_close"`
	YesAskClose json.Number `json:"yes_ask_close"`
	PriceClose  json.Number `json:"price_close"`

	Volume       int64 `json:"volume"`
	OpenInterest int64 `json:"open_interest"`
}

// rawSeries is the OHLC sub-object; only the close is used.
type rawSeries struct {
	Open  json.Number `json:"open"`
	High  json.Number `json:"high"`
	Low   json.Number `json:"low"`
	Close json.Number `json:"close"`
}
