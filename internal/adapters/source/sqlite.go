package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/mixh8/Truth-Bench/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS markets (
    ticker        TEXT PRIMARY KEY,
    title         TEXT NOT NULL,
    rules_primary TEXT NOT NULL DEFAULT '',
    open_time     TEXT NOT NULL DEFAULT '',
    close_time    TEXT NOT NULL DEFAULT '',
    volume        INTEGER NOT NULL DEFAULT 0,
    result        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS candlesticks (
    ticker        TEXT    NOT NULL REFERENCES markets(ticker),
    ts            INTEGER NOT NULL,
    yes_bid       REAL    NOT NULL DEFAULT 0,
    yes_ask       REAL    NOT NULL DEFAULT 0,
    price_close   REAL    NOT NULL DEFAULT 0,
    volume        INTEGER NOT NULL DEFAULT 0,
    open_interest INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (ticker, ts)
);

CREATE INDEX IF NOT EXISTS idx_candles_ticker_ts ON candlesticks(ticker, ts);
`

// SQLiteSource implements ports.MarketSource over a SQLite database produced
// by a market collector (pure Go driver, no CGo).
type SQLiteSource struct {
	db *sql.DB
}

// NewSQLiteSource opens (or creates) the database at the given path and
// applies the schema.
func NewSQLiteSource(path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("source.NewSQLiteSource: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("source.NewSQLiteSource: apply schema: %w", err)
	}
	return &SQLiteSource{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// LoadMarkets reads every market with its candlesticks ordered by timestamp.
// A market whose rows fail to scan is logged and skipped; a query failure
// against the database itself is fatal.
func (s *SQLiteSource) LoadMarkets(ctx context.Context) ([]domain.ResolvedMarket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ticker, title, rules_primary, open_time, close_time, volume, result
		 FROM markets ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("source.LoadMarkets: query markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.ResolvedMarket
	for rows.Next() {
		var m domain.ResolvedMarket
		var result string
		if err := rows.Scan(&m.Ticker, &m.Title, &m.RulesPrimary,
			&m.OpenTime, &m.CloseTime, &m.Volume, &result); err != nil {
			slog.Warn("skipping unreadable market row", "err", err)
			continue
		}
		m.Result = domain.Result(result)
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("source.LoadMarkets: iterate markets: %w", err)
	}

	out := markets[:0]
	for _, m := range markets {
		history, err := s.loadHistory(ctx, m.Ticker)
		if err != nil {
			slog.Warn("skipping market with unreadable history", "ticker", m.Ticker, "err", err)
			continue
		}
		m.History = history
		out = append(out, m)
	}

	slog.Info("markets database loaded", "markets", len(out))
	return out, nil
}

// loadHistory reads one market's candlesticks in timestamp order.
func (s *SQLiteSource) loadHistory(ctx context.Context, ticker string) ([]domain.Candlestick, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, yes_bid, yes_ask, price_close, volume, open_interest
		 FROM candlesticks WHERE ticker = ? ORDER BY ts`, ticker)
	if err != nil {
		return nil, fmt.Errorf("query candlesticks: %w", err)
	}
	defer rows.Close()

	var history []domain.Candlestick
	for rows.Next() {
		var c domain.Candlestick
		if err := rows.Scan(&c.Timestamp, &c.YesBid, &c.YesAsk,
			&c.PriceClose, &c.Volume, &c.OpenInterest); err != nil {
			return nil, fmt.Errorf("scan candlestick: %w", err)
		}
		history = append(history, c)
	}
	return history, rows.Err()
}
