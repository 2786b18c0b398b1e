package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"doubot/internal/domain"
	"doubot/internal/ports"
)

// PipelineDeps wires all driven adapters into the digest pipeline.
type PipelineDeps struct {
	Source     ports.PublicationSource
	Filter     ports.Filter
	Fetcher    ports.ContentFetcher
	Summarizer ports.Summarizer
	Registry   ports.SeenRegistry
	Notifier   ports.Notifier
}

// Pipeline implements the daily scan, filter, summarize and notify workflow.
type Pipeline struct {
	source     ports.PublicationSource
	filter     ports.Filter
	fetcher    ports.ContentFetcher
	summarizer ports.Summarizer
	registry   ports.SeenRegistry
	notifier   ports.Notifier

	search    domain.SearchInfo
	sendEmpty bool
	logger    *slog.Logger
}

// NewPipeline constructs the orchestration component. search describes the
// query the digest reports on; sendEmpty controls whether a day without new
// relevant publications still produces an email.
func NewPipeline(deps PipelineDeps, search domain.SearchInfo, sendEmpty bool, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		source:     deps.Source,
		filter:     deps.Filter,
		fetcher:    deps.Fetcher,
		summarizer: deps.Summarizer,
		registry:   deps.Registry,
		notifier:   deps.Notifier,
		search:     search,
		sendEmpty:  sendEmpty,
		logger:     logger,
	}
}

// ProcessDay runs one full scan cycle for the given day. Publications are
// marked seen only after the digest reached its recipients, so a failed
// delivery leaves them eligible for the next run.
func (p *Pipeline) ProcessDay(ctx context.Context, day time.Time) error {
	if p.source == nil {
		return nil
	}

	pubs, err := p.source.FetchDay(ctx, day)
	if err != nil {
		return fmt.Errorf("fetch day: %w", err)
	}
	p.debug("publications fetched", "day", day.Format("2006-01-02"), "count", len(pubs))

	if p.filter != nil {
		pubs = p.filter.Apply(pubs)
	}

	var fresh []domain.Publication
	for _, pub := range pubs {
		if p.registry != nil && p.registry.Seen(pub.Identity()) {
			p.debug("publication already delivered", "id", pub.Identity())
			continue
		}
		fresh = append(fresh, pub)
	}

	for i := range fresh {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.summarize(ctx, &fresh[i])
	}

	digest := domain.Digest{Date: day, Publications: fresh, Search: p.search}
	digest.SortNewestFirst()

	if len(digest.Publications) == 0 && !p.sendEmpty {
		p.debug("no new relevant publications, skipping delivery")
		return nil
	}

	if p.notifier != nil {
		if err := p.notifier.PublishDigest(ctx, digest); err != nil {
			return fmt.Errorf("publish digest: %w", err)
		}
	}

	if p.registry != nil && len(digest.Publications) > 0 {
		ids := make([]string, len(digest.Publications))
		for i, pub := range digest.Publications {
			ids[i] = pub.Identity()
		}
		if err := p.registry.MarkSeen(ids); err != nil {
			return fmt.Errorf("mark seen: %w", err)
		}
	}

	p.debug("digest delivered", "publications", len(digest.Publications))
	return nil
}

// summarize enriches one publication in place. Every failure here is soft:
// a digest with the raw excerpt still beats no digest at all.
func (p *Pipeline) summarize(ctx context.Context, pub *domain.Publication) {
	if p.summarizer == nil {
		return
	}

	var content string
	if p.fetcher != nil && pub.URL != "" {
		text, err := p.fetcher.FetchContent(ctx, pub.URL)
		if err != nil {
			p.warn("content fetch failed, falling back to excerpt", "url", pub.URL, "error", err)
		} else {
			content = text
		}
	}

	summary, err := p.summarizer.Summarize(ctx, *pub, content)
	if err != nil {
		p.warn("summarization failed, keeping excerpt", "url", pub.URL, "error", err)
		return
	}
	pub.Summary = summary
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
