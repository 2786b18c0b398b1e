package ports

import (
	"context"
	"time"

	"doubot/internal/domain"
)

// PublicationSource yields the publications of one gazette source for a day.
type PublicationSource interface {
	// FetchDay returns every matching publication for the given day.
	FetchDay(ctx context.Context, day time.Time) ([]domain.Publication, error)
}

// Renderer turns a URL into the HTML the site serves for it. Implementations
// may drive a headless browser or issue a plain GET.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Filter narrows a batch of publications down to the relevant ones.
type Filter interface {
	// Matches reports whether a single publication passes the filter.
	Matches(pub domain.Publication) bool
	// Apply keeps only matching publications, preserving order.
	Apply(pubs []domain.Publication) []domain.Publication
}

// ContentFetcher retrieves the readable body text of a publication page.
type ContentFetcher interface {
	FetchContent(ctx context.Context, url string) (string, error)
}

// Summarizer condenses a publication into a short Portuguese summary.
// An empty summary with a nil error means there was nothing worth
// summarizing; callers fall back to the raw excerpt.
type Summarizer interface {
	Summarize(ctx context.Context, pub domain.Publication, content string) (string, error)
}

// SeenRegistry remembers which publications were already delivered.
type SeenRegistry interface {
	Seen(id string) bool
	// MarkSeen records ids durably. Callers invoke it only after the
	// digest reached its recipients.
	MarkSeen(ids []string) error
}

// Notifier delivers a finished digest to its audience.
type Notifier interface {
	PublishDigest(ctx context.Context, digest domain.Digest) error
	// SendTest delivers a minimal probe message so operators can verify
	// transport credentials without running a full scan.
	SendTest(ctx context.Context) error
}
