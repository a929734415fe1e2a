package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/mixh8/Truth-Bench/internal/domain"
)

// FileSource implements ports.MarketSource over a resolved-markets JSON dump.
type FileSource struct {
	path string
}

// NewFileSource creates a source that reads the JSON file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// LoadMarkets reads and normalizes every market record in the file.
// An unreadable or undecodable file is fatal; a single record that fails to
// decode is logged and skipped.
func (s *FileSource) LoadMarkets(ctx context.Context) ([]domain.ResolvedMarket, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("source.LoadMarkets: read %q: %w", s.path, err)
	}

	var file marketsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("source.LoadMarkets: parse %q: %w", s.path, err)
	}

	markets := make([]domain.ResolvedMarket, 0, len(file.Markets))
	skipped := 0
	for i, rec := range file.Markets {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("source.LoadMarkets: %w", err)
		}
		var raw rawMarket
		if err := json.Unmarshal(rec, &raw); err != nil {
			slog.Warn("skipping malformed market record", "index", i, "err", err)
			skipped++
			continue
		}
		markets = append(markets, mapMarket(raw))
	}

	slog.Info("markets file loaded",
		"path", s.path,
		"markets", len(markets),
		"skipped", skipped,
	)
	return markets, nil
}
