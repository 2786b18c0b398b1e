package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"time"

	"doubot/pkg/textnorm"
)

// Publication is a core entity describing one gazette entry.
type Publication struct {
	Title       string
	Excerpt     string
	URL         string
	Organ       string
	Kind        string
	Section     string
	PublishedAt time.Time
	Summary     string
}

var materiaExpr = regexp.MustCompile(`-(\d{6,})/?$`)

// Identity returns the dedup key. The numeric matéria id survives slug
// rewrites, so it is preferred over the full URL; entries with neither fall
// back to a hash of the normalized title.
func (p Publication) Identity() string {
	if id := p.MateriaID(); id != "" {
		return "materia:" + id
	}
	if p.URL != "" {
		return p.URL
	}
	sum := sha1.Sum([]byte(textnorm.Key(p.Title)))
	return "title:" + hex.EncodeToString(sum[:])
}

// MateriaID extracts the numeric matéria identifier from the URL slug,
// e.g. ".../portaria-n-123-de-2026-637489102" yields "637489102".
func (p Publication) MateriaID() string {
	m := materiaExpr.FindStringSubmatch(p.URL)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

var numberExpr = regexp.MustCompile(`(?i)n[º°]\s*([\d.]+)`)

// Number extracts the act's number from its title, keeping thousand
// separators: "PORTARIA Nº 4.400, DE ..." yields "4.400".
func (p Publication) Number() string {
	m := numberExpr.FindStringSubmatch(p.Title)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimRight(m[1], ".")
}

// DisplayText returns the summary when one was produced, else the raw excerpt.
func (p Publication) DisplayText() string {
	if p.Summary != "" {
		return p.Summary
	}
	return p.Excerpt
}

// SearchInfo describes the query whose results built a digest.
type SearchInfo struct {
	Phrases []string
	Section string
	Period  string
}

// Digest aggregates one run's relevant publications for delivery.
type Digest struct {
	Date         time.Time
	Publications []Publication
	Search       SearchInfo
}

// SortNewestFirst orders publications by publication date descending,
// breaking ties by title for a stable reading order.
func (d *Digest) SortNewestFirst() {
	sort.SliceStable(d.Publications, func(i, j int) bool {
		pi, pj := d.Publications[i], d.Publications[j]
		if !pi.PublishedAt.Equal(pj.PublishedAt) {
			return pi.PublishedAt.After(pj.PublishedAt)
		}
		return pi.Title < pj.Title
	})
}
