package source

import (
	"encoding/json"

	"github.com/mixh8/Truth-Bench/internal/domain"
)

// mapMarket converts a raw market record to a domain.ResolvedMarket.
func mapMarket(r rawMarket) domain.ResolvedMarket {
	history := make([]domain.Candlestick, 0, len(r.PriceHistory))
	for _, c := range r.PriceHistory {
		history = append(history, mapCandlestick(c))
	}

	return domain.ResolvedMarket{
		Ticker:       r.Ticker,
		Title:        r.Title,
		RulesPrimary: r.RulesPrimary,
		OpenTime:     r.OpenTime,
		CloseTime:    r.CloseTime,
		Volume:       r.Volume,
		Result:       domain.Result(r.Result),
		History:      history,
	}
}

// mapCandlestick flattens a raw candlestick, preferring the nested
// sub-object close over the flat field when both are present.
func mapCandlestick(r rawCandlestick) domain.Candlestick {
	ts := r.Timestamp
	if ts == 0 {
		ts = r.EndPeriodTS
	}

	return domain.Candlestick{
		Timestamp:    ts,
		YesBid:       seriesClose(r.YesBid, r.YesBidClose),
		YesAsk:       seriesClose(r.YesAsk, r.YesAskClose),
		PriceClose:   seriesClose(r.Price, r.PriceClose),
		Volume:       r.Volume,
		OpenInterest: r.OpenInterest,
	}
}

// seriesClose picks the nested close when present, then the flat field.
// Presence is keyed on the raw number text so an explicit nested 0 still
// wins over the flat field.
func seriesClose(nested *rawSeries, flat json.Number) float64 {
	if nested != nil && nested.Close.String() != "" {
		if v, err := nested.Close.Float64(); err == nil {
			return v
		}
	}
	v, _ := flat.Float64()
	return v
}
