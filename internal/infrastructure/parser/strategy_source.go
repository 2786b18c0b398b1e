package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"doubot/internal/config"
	"doubot/internal/domain"
	"doubot/internal/ports"
	"doubot/internal/scanner"
)

// StrategySource implements PublicationSource via registered scanner
// strategies. Sources are independent: one failing does not sink the run
// unless every source fails.
type StrategySource struct {
	registry *scanner.Registry
	sources  []config.SourceConfig
	search   config.SearchConfig
	logger   *slog.Logger
}

var _ ports.PublicationSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with config-defined sources.
func NewStrategySource(reg *scanner.Registry, sources []config.SourceConfig, search config.SearchConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sources:  sources,
		search:   search,
		logger:   log,
	}
}

// FetchDay iterates over configured sources and executes their scanners,
// deduplicating the union by publication identity.
func (s *StrategySource) FetchDay(ctx context.Context, day time.Time) ([]domain.Publication, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	s.debug("fetch day", "sources", len(s.sources), "day", day.Format("2006-01-02"))

	var (
		aggregated []domain.Publication
		errs       []error
	)
	seen := map[string]struct{}{}

	for _, src := range s.sources {
		s.debug("process source", "source", src.Name, "scanner", src.Scanner)

		strategy, err := s.registry.Resolve(src.Scanner)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name, err)
		}

		req := scanner.Request{
			Day:        day,
			SourceName: src.Name,
			Phrases:    s.search.Phrases,
			Section:    s.search.Section,
			Period:     s.search.Period,
			MaxPages:   s.search.MaxPages,
			Feeds:      toScannerFeeds(src.Feeds),
			Options:    src.Options,
		}

		results, err := strategy.Scan(ctx, req)
		if err != nil {
			s.warn("source scan failed", "source", src.Name, "error", err)
			errs = append(errs, fmt.Errorf("scan source %s: %w", src.Name, err))
			continue
		}

		kept := 0
		for i := range results {
			if results[i].PublishedAt.IsZero() {
				results[i].PublishedAt = day
			}
			key := results[i].Identity()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			aggregated = append(aggregated, results[i])
			kept++
		}
		s.debug("source produced publications", "source", src.Name, "count", len(results), "kept", kept)
	}

	if len(aggregated) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	s.debug("strategy source done", "total_publications", len(aggregated))
	return aggregated, nil
}

func toScannerFeeds(cfg []config.FeedConfig) []scanner.Feed {
	feeds := make([]scanner.Feed, 0, len(cfg))
	for _, f := range cfg {
		feeds = append(feeds, scanner.Feed{
			Name: f.Name,
			URL:  f.URL,
		})
	}
	return feeds
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
