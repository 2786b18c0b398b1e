// Package filter decides which gazette publications are fiscally relevant.
package filter

import (
	"log/slog"
	"strings"

	"doubot/internal/domain"
	"doubot/internal/ports"
	"doubot/pkg/textnorm"
)

// DefaultKeywords is the built-in fiscal/tax vocabulary. Matching is by
// substring on accent-folded text, so short stems like "tribut" cover the
// whole word family (tributo, tributária, tributação).
var DefaultKeywords = []string{
	"tribut",
	"imposto",
	"fiscal",
	"receita",
	"alíquota",
	"isenção",
	"dedução",
	"crédito",
	"obrigação",
	"declaração",
	"IRPJ",
	"CSLL",
	"PIS",
	"COFINS",
	"ICMS",
	"IPI",
}

// Keyword filters publications whose title or excerpt contains at least one
// configured term, ignoring case and accents.
type Keyword struct {
	terms  []string
	folded []string
	logger *slog.Logger
}

var _ ports.Filter = (*Keyword)(nil)

// NewKeyword builds a filter over the given terms. An empty list falls back
// to DefaultKeywords.
func NewKeyword(terms []string, logger *slog.Logger) *Keyword {
	if len(terms) == 0 {
		terms = DefaultKeywords
	}
	folded := make([]string, len(terms))
	for i, term := range terms {
		folded[i] = textnorm.Fold(term)
	}
	return &Keyword{terms: terms, folded: folded, logger: logger}
}

// Terms returns the active keyword list as configured.
func (k *Keyword) Terms() []string {
	out := make([]string, len(k.terms))
	copy(out, k.terms)
	return out
}

// Matches reports whether the publication mentions any keyword.
func (k *Keyword) Matches(pub domain.Publication) bool {
	haystack := textnorm.Fold(pub.Title + " " + pub.Excerpt)
	for _, term := range k.folded {
		if term == "" {
			continue
		}
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}

// Apply keeps only matching publications, preserving input order.
func (k *Keyword) Apply(pubs []domain.Publication) []domain.Publication {
	kept := make([]domain.Publication, 0, len(pubs))
	for _, pub := range pubs {
		if k.Matches(pub) {
			kept = append(kept, pub)
			continue
		}
		if k.logger != nil {
			k.logger.Debug("publication filtered out", "title", pub.Title)
		}
	}
	return kept
}
