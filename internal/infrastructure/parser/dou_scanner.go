package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"doubot/internal/domain"
	"doubot/internal/ports"
	"doubot/internal/scanner"
)

const (
	douBaseURL       = "https://www.in.gov.br"
	douSearchPath    = "/consulta/-/buscar/dou"
	douMateriaPrefix = "https://www.in.gov.br/web/dou/-/"

	// portletScriptID is the <script> element the portal embeds its search
	// results into as a JSON payload.
	portletScriptID = "_br_com_seatecnologia_in_buscadou_BuscaDouPortlet_params"
)

// noResultsMarkers are phrases the portal renders when a query matches
// nothing. Compared lowercased against the whole page.
var noResultsMarkers = []string{
	"nenhum resultado",
	"não foram encontrados resultados",
	"não foram encontrados registros",
	"0 resultados",
	"nenhum registro encontrado",
	"não encontramos resultados",
	"sua pesquisa não retornou resultados",
}

// resultSelectors locate result anchors when the portlet payload is absent.
// Tried in order; the first selector with hits wins.
var resultSelectors = []string{
	"a.resultado-item-titulo",
	"a[href*='/web/dou/-/']",
	"a[href*='/materia/']",
	"div.resultado-item a",
	".resultado-titulo a",
}

var periodParams = map[string]string{
	"today": "dia",
	"week":  "semana",
	"month": "mes",
	"any":   "all",
}

var stripTags = bluemonday.StrictPolicy()

// DOUScanner queries the official gazette search portal and extracts the
// publications matching the configured phrases.
type DOUScanner struct {
	renderer ports.Renderer
	logger   *slog.Logger
}

// NewDOUScanner wires the page renderer used to fetch search pages.
func NewDOUScanner(renderer ports.Renderer, logger *slog.Logger) *DOUScanner {
	return &DOUScanner{renderer: renderer, logger: logger}
}

// Name identifies the strategy inside the registry.
func (s *DOUScanner) Name() string {
	return "dou-search"
}

// Scan searches each phrase across paginated results and returns the union,
// deduplicated by publication identity. A phrase that fails is skipped so the
// remaining phrases still produce a digest; the scan only errors when every
// phrase failed.
func (s *DOUScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Publication, error) {
	if s.renderer == nil {
		return nil, fmt.Errorf("dou scanner has no renderer configured")
	}
	if len(req.Phrases) == 0 {
		return nil, fmt.Errorf("no search phrases provided for source %s", req.SourceName)
	}

	maxPages := req.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	var (
		collected []domain.Publication
		errs      []error
	)
	seen := map[string]struct{}{}

	for _, phrase := range req.Phrases {
		pubs, err := s.scanPhrase(ctx, phrase, req, maxPages)
		if err != nil {
			s.warn("phrase scan failed", "phrase", phrase, "error", err)
			errs = append(errs, fmt.Errorf("phrase %q: %w", phrase, err))
			continue
		}
		for _, pub := range pubs {
			key := pub.Identity()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			collected = append(collected, pub)
		}
	}

	if len(collected) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return collected, nil
}

func (s *DOUScanner) scanPhrase(ctx context.Context, phrase string, req scanner.Request, maxPages int) ([]domain.Publication, error) {
	var collected []domain.Publication

	for page := 1; page <= maxPages; page++ {
		pageURL := buildSearchURL(phrase, req.Section, req.Period, page)

		pageHTML, err := s.renderer.Render(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		pubs, noResults, err := s.parsePage(pageHTML, req.Day)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		if noResults {
			if page == 1 {
				s.debug("no results for phrase", "phrase", phrase)
			}
			break
		}
		if len(pubs) == 0 {
			break
		}

		s.debug("page scanned", "phrase", phrase, "page", page, "count", len(pubs))
		collected = append(collected, pubs...)
	}

	return collected, nil
}

func (s *DOUScanner) parsePage(pageHTML string, day time.Time) ([]domain.Publication, bool, error) {
	if hasNoResultsMarker(pageHTML) {
		return nil, true, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, false, fmt.Errorf("parse document: %w", err)
	}

	pubs := s.extractPortlet(doc, day)
	if len(pubs) == 0 {
		pubs = extractAnchors(doc, day)
	}
	return pubs, false, nil
}

type portletPayload struct {
	JSONArray []portletItem `json:"jsonArray"`
}

type portletItem struct {
	Title       string `json:"title"`
	URLTitle    string `json:"urlTitle"`
	Content     string `json:"content"`
	PubName     string `json:"pubName"`
	PubDate     string `json:"pubDate"`
	ArtType     string `json:"artType"`
	ArtCategory string `json:"artCategory"`
	Hierarchy   string `json:"hierarchyStr"`
}

func (s *DOUScanner) extractPortlet(doc *goquery.Document, day time.Time) []domain.Publication {
	raw := strings.TrimSpace(doc.Find("script#" + portletScriptID).First().Text())
	if raw == "" {
		return nil
	}

	var payload portletPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		s.warn("portlet payload not parseable, falling back to anchors", "error", err)
		return nil
	}

	pubs := make([]domain.Publication, 0, len(payload.JSONArray))
	for _, item := range payload.JSONArray {
		title := strings.TrimSpace(item.Title)
		slug := strings.TrimSpace(item.URLTitle)
		if title == "" || slug == "" {
			continue
		}

		pubs = append(pubs, domain.Publication{
			Title:       title,
			Excerpt:     cleanFragment(item.Content),
			URL:         douMateriaPrefix + strings.TrimPrefix(slug, "/"),
			Organ:       firstNonEmpty(item.Hierarchy, item.ArtCategory),
			Kind:        strings.TrimSpace(item.ArtType),
			Section:     sectionFromPubName(item.PubName),
			PublishedAt: parsePubDate(item.PubDate, day),
		})
	}
	return pubs
}

func extractAnchors(doc *goquery.Document, day time.Time) []domain.Publication {
	var pubs []domain.Publication

	for _, sel := range resultSelectors {
		doc.Find(sel).Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			title := strings.Join(strings.Fields(a.Text()), " ")
			if title == "" || !isMateriaURL(href) {
				return
			}
			pubs = append(pubs, domain.Publication{
				Title:       title,
				URL:         absoluteURL(href),
				PublishedAt: day,
			})
		})
		if len(pubs) > 0 {
			break
		}
	}
	return pubs
}

func buildSearchURL(phrase, section, period string, page int) string {
	q := url.Values{}
	q.Set("q", `"`+phrase+`"`)
	q.Set("s", sectionParam(section))
	q.Set("exactDate", periodParam(period))
	q.Set("sortType", "0")
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	return douBaseURL + douSearchPath + "?" + q.Encode()
}

func sectionParam(section string) string {
	switch section {
	case "do1", "do2", "do3", "todos":
		return section
	}
	return "do1"
}

func periodParam(period string) string {
	if v, ok := periodParams[period]; ok {
		return v
	}
	return "dia"
}

func hasNoResultsMarker(pageHTML string) bool {
	lower := strings.ToLower(pageHTML)
	for _, marker := range noResultsMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func isMateriaURL(href string) bool {
	return strings.Contains(href, "/web/dou/-/") || strings.Contains(href, "/materia/-/")
}

func absoluteURL(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return douBaseURL + "/" + strings.TrimPrefix(href, "/")
}

// cleanFragment strips markup from a result snippet and collapses whitespace.
func cleanFragment(raw string) string {
	text := html.UnescapeString(stripTags.Sanitize(raw))
	return strings.Join(strings.Fields(text), " ")
}

func parsePubDate(value string, day time.Time) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return day
	}
	parsed, err := time.ParseInLocation("02/01/2006", value, day.Location())
	if err != nil {
		return day
	}
	return parsed
}

func sectionFromPubName(name string) string {
	name = strings.TrimSpace(name)
	if rest, ok := strings.CutPrefix(strings.ToUpper(name), "DO"); ok && rest != "" {
		return rest
	}
	return name
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (s *DOUScanner) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *DOUScanner) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
