package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"doubot/internal/domain"
	"doubot/internal/scanner"
)

// RSSScanner reads department feeds published alongside the gazette. Feeds
// carry no search semantics; the keyword filter downstream decides relevance.
type RSSScanner struct {
	parser *gofeed.Parser
	logger *slog.Logger
}

// NewRSSScanner wires an HTTP client into the feed parser.
func NewRSSScanner(client *http.Client, logger *slog.Logger) *RSSScanner {
	fp := gofeed.NewParser()
	if client != nil {
		fp.Client = client
	}
	return &RSSScanner{parser: fp, logger: logger}
}

// Name identifies the strategy inside the registry.
func (r *RSSScanner) Name() string {
	return "dou-rss"
}

// Scan pulls every configured feed and keeps the items published on the
// requested day. Items without a parseable date are kept; feeds that fail are
// skipped unless all of them do.
func (r *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Publication, error) {
	if len(req.Feeds) == 0 {
		return nil, fmt.Errorf("no feeds configured for source %s", req.SourceName)
	}

	var (
		collected []domain.Publication
		errs      []error
	)
	seen := map[string]struct{}{}

	for _, feed := range req.Feeds {
		parsed, err := r.parser.ParseURLWithContext(feed.URL, ctx)
		if err != nil {
			r.warn("feed fetch failed", "feed", feed.Name, "error", err)
			errs = append(errs, fmt.Errorf("feed %s: %w", feed.Name, err))
			continue
		}

		count := 0
		for _, item := range parsed.Items {
			if item == nil || strings.TrimSpace(item.Link) == "" {
				continue
			}

			published := req.Day
			if item.PublishedParsed != nil {
				published = item.PublishedParsed.In(req.Day.Location())
				if !sameDay(published, req.Day) {
					continue
				}
			}

			pub := domain.Publication{
				Title:       strings.TrimSpace(item.Title),
				Excerpt:     cleanFragment(item.Description),
				URL:         strings.TrimSpace(item.Link),
				Organ:       feed.Name,
				PublishedAt: published,
			}
			if pub.Title == "" {
				continue
			}

			key := pub.Identity()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			collected = append(collected, pub)
			count++
		}

		r.debug("feed scanned", "feed", feed.Name, "kept", count, "total", len(parsed.Items))
	}

	if len(collected) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return collected, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (r *RSSScanner) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *RSSScanner) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
