package replay

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/mixh8/Truth-Bench/internal/domain"
	"github.com/mixh8/Truth-Bench/internal/ports"
)

// Config controls which markets the engine retains.
type Config struct {
	MinVolume  int64 // discard markets below this traded volume
	MaxMarkets int   // cap on markets retained, 0 = no cap
}

// Engine replays historical markets as ordered, lookahead-free snapshots.
// Markets are loaded once; every snapshot is built from the candlestick
// prefix up to the requested index only.
type Engine struct {
	cfg     Config
	source  ports.MarketSource
	markets []domain.ResolvedMarket
}

// New creates a replay engine over the given market source.
func New(cfg Config, source ports.MarketSource) *Engine {
	return &Engine{cfg: cfg, source: source}
}

// Load ingests markets from the source and applies the retention filters:
// volume floor, non-empty price history, known result, monotonic timestamps.
// A market that fails validation is logged and skipped; a source failure or
// an empty result set is fatal.
func (e *Engine) Load(ctx context.Context) (int, error) {
	raw, err := e.source.LoadMarkets(ctx)
	if err != nil {
		return 0, fmt.Errorf("replay.Load: %w", err)
	}

	e.markets = e.markets[:0]
	for _, m := range raw {
		if m.Volume < e.cfg.MinVolume {
			continue
		}
		if len(m.History) == 0 {
			continue
		}
		if m.Result != domain.ResultYes && m.Result != domain.ResultNo {
			continue
		}
		if err := m.ValidateHistory(); err != nil {
			slog.Warn("skipping invalid market", "ticker", m.Ticker, "err", err)
			continue
		}
		e.markets = append(e.markets, m)
		if e.cfg.MaxMarkets > 0 && len(e.markets) >= e.cfg.MaxMarkets {
			break
		}
	}

	if len(e.markets) == 0 {
		return 0, fmt.Errorf("replay.Load: %w", domain.ErrNoMarkets)
	}

	slog.Info("markets loaded",
		"retained", len(e.markets),
		"filtered", len(raw)-len(e.markets),
		"min_volume", e.cfg.MinVolume,
	)
	return len(e.markets), nil
}

// Markets returns the retained markets in load order.
func (e *Engine) Markets() []domain.ResolvedMarket {
	return e.markets
}

// TotalMarkets returns the number of retained markets.
func (e *Engine) TotalMarkets() int {
	return len(e.markets)
}

// DecisionPoints selects k evenly spaced candlestick indices for a market,
// always including the first and last so the opening and closing states are
// evaluated regardless of k. If k >= len(history), every index is returned.
//
// Intermediate indices are round(i × (N−1)/(k−1)) for i in 1..k−2, which is
// also the tie-break for ambiguous spacing.
func DecisionPoints(n, k int) []int {
	if n <= 0 {
		return nil
	}
	if k >= n {
		indices := make([]int, n)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}
	if k <= 1 {
		return []int{0}
	}

	indices := make([]int, 0, k)
	indices = append(indices, 0)
	step := float64(n-1) / float64(k-1)
	for i := 1; i < k-1; i++ {
		indices = append(indices, int(math.Round(float64(i)*step)))
	}
	return append(indices, n-1)
}

// SnapshotAt builds the market state visible at decision index i: the price
// history prefix [0..i], current prices from candlestick i, cumulative volume
// over the prefix, and the latest open interest. The ground-truth result is
// attached for settlement but must never reach agent-facing text.
func SnapshotAt(m domain.ResolvedMarket, i int) domain.MarketState {
	prefix := m.History[:i+1]
	current := prefix[len(prefix)-1]

	var volume int64
	for _, c := range prefix {
		volume += c.Volume
	}

	return domain.MarketState{
		Ticker:           m.Ticker,
		Title:            m.Title,
		RulesPrimary:     m.RulesPrimary,
		OpenTime:         m.OpenTime,
		CloseTime:        m.CloseTime,
		CurrentTimestamp: current.Timestamp,
		CurrentYesBid:    current.YesBid,
		CurrentYesAsk:    current.YesAsk,
		CurrentPrice:     current.PriceClose,
		Volume:           volume,
		OpenInterest:     current.OpenInterest,
		PriceHistory:     prefix,
		Result:           m.Result,
	}
}

// Snapshots returns the market states at each of the market's decision
// points, in chronological order.
func Snapshots(m domain.ResolvedMarket, points int) []domain.MarketState {
	indices := DecisionPoints(len(m.History), points)
	states := make([]domain.MarketState, 0, len(indices))
	for _, idx := range indices {
		states = append(states, SnapshotAt(m, idx))
	}
	return states
}
