package ports

import (
	"context"

	"github.com/mixh8/Truth-Bench/internal/domain"
)

// MarketSource loads resolved markets with their price history from an
// external collaborator (JSON file, SQLite database).
//
// Implementations normalize raw candlestick records to flat numeric fields
// and skip individual malformed records (logged). A returned error means the
// source itself is unreadable and the run must abort.
type MarketSource interface {
	LoadMarkets(ctx context.Context) ([]domain.ResolvedMarket, error)
}
