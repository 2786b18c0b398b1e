// Package extract pulls the readable body text out of gazette pages.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"doubot/internal/ports"
)

// contentSelectors locate the act's body on a matéria page, most specific
// first.
var contentSelectors = []string{
	"div.texto-dou",
	"article#materia",
	"div.dou-conteudo",
	"div.materia-conteudo",
	"section.conteudo",
}

// unwantedSelectors are chrome elements removed before extraction.
var unwantedSelectors = []string{
	"header",
	"footer",
	"nav",
	"aside",
	".portlet",
	".breadcrumb",
	"button",
	"script",
	"style",
	"iframe",
}

const defaultMaxRunes = 6000

// PageFetcher renders a publication page and reduces it to markdown text
// suitable for summarization prompts.
type PageFetcher struct {
	renderer ports.Renderer
	conv     *md.Converter
	maxRunes int
	logger   *slog.Logger
}

var _ ports.ContentFetcher = (*PageFetcher)(nil)

// NewPageFetcher builds a fetcher on top of the given renderer.
func NewPageFetcher(renderer ports.Renderer, logger *slog.Logger) *PageFetcher {
	return &PageFetcher{
		renderer: renderer,
		conv:     md.NewConverter("", true, nil),
		maxRunes: defaultMaxRunes,
		logger:   logger,
	}
}

// FetchContent returns the act's text in markdown, truncated to a size that
// fits summarization prompts.
func (p *PageFetcher) FetchContent(ctx context.Context, url string) (string, error) {
	pageHTML, err := p.renderer.Render(ctx, url)
	if err != nil {
		return "", fmt.Errorf("extract: render %s: %w", url, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return "", fmt.Errorf("extract: parse %s: %w", url, err)
	}

	doc.Find(strings.Join(unwantedSelectors, ", ")).Remove()

	sel := findContent(doc)
	if sel == nil || sel.Length() == 0 {
		return "", fmt.Errorf("extract: no content found at %s", url)
	}

	fragment, err := goquery.OuterHtml(sel)
	if err != nil {
		return "", fmt.Errorf("extract: serialize content of %s: %w", url, err)
	}

	markdown, err := p.conv.ConvertString(fragment)
	if err != nil {
		return "", fmt.Errorf("extract: convert content of %s: %w", url, err)
	}

	text := truncateRunes(strings.TrimSpace(markdown), p.maxRunes)
	if p.logger != nil {
		p.logger.Debug("content extracted", "url", url, "chars", len(text))
	}
	return text, nil
}

func findContent(doc *goquery.Document) *goquery.Selection {
	for _, s := range contentSelectors {
		if sel := doc.Find(s).First(); sel.Length() > 0 {
			return sel
		}
	}
	if sel := doc.Find("article").First(); sel.Length() > 0 {
		return sel
	}
	return doc.Find("body").First()
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
