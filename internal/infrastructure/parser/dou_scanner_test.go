package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"doubot/internal/scanner"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRenderer maps requested URLs to canned HTML and records the order of
// requests. Unmapped URLs yield an empty results page.
type fakeRenderer struct {
	pages    map[string]string
	requests []string
	err      error
}

func (f *fakeRenderer) Render(_ context.Context, u string) (string, error) {
	f.requests = append(f.requests, u)
	if f.err != nil {
		return "", f.err
	}
	if page, ok := f.pages[u]; ok {
		return page, nil
	}
	return "<html><body>nenhum resultado encontrado</body></html>", nil
}

func portletPage(items string) string {
	return fmt.Sprintf(`<html><body>
<script id="%s" type="application/json">{"jsonArray": [%s]}</script>
</body></html>`, portletScriptID, items)
}

func searchURL(t *testing.T, phrase, section, period string, page int) string {
	t.Helper()
	return buildSearchURL(phrase, section, period, page)
}

func TestScanExtractsPortletPayload(t *testing.T) {
	t.Parallel()

	items := `{
		"title": "PORTARIA Nº 100, DE 20 DE AGOSTO DE 2026",
		"urlTitle": "portaria-n-100-de-20-de-agosto-de-2026-123456789",
		"content": "Altera a <span class='highlight'>alíquota</span> do imposto sobre produtos industrializados.",
		"pubName": "DO1",
		"pubDate": "20/08/2026",
		"artType": "Portaria",
		"artCategory": "Ministério da Fazenda/Receita Federal"
	}`

	renderer := &fakeRenderer{pages: map[string]string{
		searchURL(t, "imposto", "do1", "today", 1): portletPage(items),
	}}

	s := NewDOUScanner(renderer, discard())
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	pubs, err := s.Scan(context.Background(), scanner.Request{
		Day:      day,
		Phrases:  []string{"imposto"},
		Section:  "do1",
		Period:   "today",
		MaxPages: 1,
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(pubs) != 1 {
		t.Fatalf("got %d publications, want 1", len(pubs))
	}

	pub := pubs[0]
	if pub.Title != "PORTARIA Nº 100, DE 20 DE AGOSTO DE 2026" {
		t.Errorf("title = %q", pub.Title)
	}
	wantURL := douMateriaPrefix + "portaria-n-100-de-20-de-agosto-de-2026-123456789"
	if pub.URL != wantURL {
		t.Errorf("url = %q, want %q", pub.URL, wantURL)
	}
	if pub.Excerpt != "Altera a alíquota do imposto sobre produtos industrializados." {
		t.Errorf("excerpt = %q", pub.Excerpt)
	}
	if pub.Organ != "Ministério da Fazenda/Receita Federal" {
		t.Errorf("organ = %q", pub.Organ)
	}
	if pub.Kind != "Portaria" {
		t.Errorf("kind = %q", pub.Kind)
	}
	if pub.Section != "1" {
		t.Errorf("section = %q", pub.Section)
	}
	if !pub.PublishedAt.Equal(day) {
		t.Errorf("publishedAt = %v, want %v", pub.PublishedAt, day)
	}
}

func TestScanFallsBackToAnchors(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<div class="resultado">
  <a class="resultado-item-titulo" href="/web/dou/-/decreto-n-9-999-987654321">Decreto nº 9.999</a>
  <a class="resultado-item-titulo" href="https://example.com/outra-coisa">Link externo</a>
</div>
</body></html>`

	renderer := &fakeRenderer{pages: map[string]string{
		searchURL(t, "decreto", "do1", "today", 1): page,
	}}

	s := NewDOUScanner(renderer, discard())
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	pubs, err := s.Scan(context.Background(), scanner.Request{
		Day:      day,
		Phrases:  []string{"decreto"},
		Section:  "do1",
		Period:   "today",
		MaxPages: 1,
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(pubs) != 1 {
		t.Fatalf("got %d publications, want 1", len(pubs))
	}
	if pubs[0].URL != douBaseURL+"/web/dou/-/decreto-n-9-999-987654321" {
		t.Errorf("url = %q", pubs[0].URL)
	}
	if !pubs[0].PublishedAt.Equal(day) {
		t.Errorf("publishedAt = %v", pubs[0].PublishedAt)
	}
}

func TestScanStopsOnNoResultsMarker(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{pages: map[string]string{
		searchURL(t, "nada", "do1", "today", 1): "<html><body><p>Sua pesquisa não retornou resultados.</p></body></html>",
	}}

	s := NewDOUScanner(renderer, discard())

	pubs, err := s.Scan(context.Background(), scanner.Request{
		Day:      time.Now(),
		Phrases:  []string{"nada"},
		Section:  "do1",
		Period:   "today",
		MaxPages: 3,
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(pubs) != 0 {
		t.Errorf("got %d publications, want 0", len(pubs))
	}
	if len(renderer.requests) != 1 {
		t.Errorf("made %d requests, want 1 (pagination must stop)", len(renderer.requests))
	}
}

func TestScanPaginatesUntilEmptyPage(t *testing.T) {
	t.Parallel()

	item := func(n int) string {
		return fmt.Sprintf(`{"title": "Portaria %d", "urlTitle": "portaria-%d"}`, n, n)
	}
	renderer := &fakeRenderer{pages: map[string]string{
		searchURL(t, "portaria", "do1", "week", 1): portletPage(item(1) + "," + item(2)),
		searchURL(t, "portaria", "do1", "week", 2): portletPage(item(3)),
		// Page 3 is unmapped and renders as a no-results page.
	}}

	s := NewDOUScanner(renderer, discard())

	pubs, err := s.Scan(context.Background(), scanner.Request{
		Day:      time.Now(),
		Phrases:  []string{"portaria"},
		Section:  "do1",
		Period:   "week",
		MaxPages: 5,
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(pubs) != 3 {
		t.Fatalf("got %d publications, want 3", len(pubs))
	}
	if len(renderer.requests) != 3 {
		t.Errorf("made %d requests, want 3", len(renderer.requests))
	}
}

func TestScanDeduplicatesAcrossPhrases(t *testing.T) {
	t.Parallel()

	shared := `{"title": "Portaria comum", "urlTitle": "portaria-comum-111"}`
	renderer := &fakeRenderer{pages: map[string]string{
		searchURL(t, "tributo", "do1", "today", 1): portletPage(shared),
		searchURL(t, "imposto", "do1", "today", 1): portletPage(shared + `, {"title": "Decreto novo", "urlTitle": "decreto-novo-222"}`),
	}}

	s := NewDOUScanner(renderer, discard())

	pubs, err := s.Scan(context.Background(), scanner.Request{
		Day:      time.Now(),
		Phrases:  []string{"tributo", "imposto"},
		Section:  "do1",
		Period:   "today",
		MaxPages: 1,
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(pubs) != 2 {
		t.Fatalf("got %d publications, want 2 after dedup", len(pubs))
	}
}

func TestScanSurvivesSinglePhraseFailure(t *testing.T) {
	t.Parallel()

	good := searchURL(t, "bom", "do1", "today", 1)
	renderer := &fakeRenderer{pages: map[string]string{
		good: portletPage(`{"title": "Resolução única", "urlTitle": "resolucao-unica-333"}`),
	}}
	// The first phrase renders an invalid portlet payload, which falls back
	// to anchors and yields nothing: not an error, just zero results. Force a
	// hard failure instead by pointing the renderer error at one phrase.
	failing := &phraseFailRenderer{inner: renderer, failSubstr: url.QueryEscape(`"ruim"`)}

	s := NewDOUScanner(failing, discard())

	pubs, err := s.Scan(context.Background(), scanner.Request{
		Day:      time.Now(),
		Phrases:  []string{"ruim", "bom"},
		Section:  "do1",
		Period:   "today",
		MaxPages: 1,
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(pubs) != 1 || pubs[0].Title != "Resolução única" {
		t.Fatalf("pubs = %+v, want the single surviving result", pubs)
	}
}

func TestScanFailsWhenAllPhrasesFail(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{err: fmt.Errorf("connection refused")}
	s := NewDOUScanner(renderer, discard())

	_, err := s.Scan(context.Background(), scanner.Request{
		Day:      time.Now(),
		Phrases:  []string{"a", "b"},
		Section:  "do1",
		Period:   "today",
		MaxPages: 1,
	})
	if err == nil {
		t.Fatal("expected error when every phrase fails")
	}
}

// phraseFailRenderer fails any request whose URL contains failSubstr and
// delegates the rest.
type phraseFailRenderer struct {
	inner      *fakeRenderer
	failSubstr string
}

func (p *phraseFailRenderer) Render(ctx context.Context, u string) (string, error) {
	if p.failSubstr != "" && strings.Contains(u, p.failSubstr) {
		return "", fmt.Errorf("simulated outage")
	}
	return p.inner.Render(ctx, u)
}

func TestBuildSearchURL(t *testing.T) {
	t.Parallel()

	raw := buildSearchURL("reforma tributária", "todos", "month", 2)
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse built url: %v", err)
	}

	if parsed.Path != douSearchPath {
		t.Errorf("path = %q", parsed.Path)
	}
	q := parsed.Query()
	if got := q.Get("q"); got != `"reforma tributária"` {
		t.Errorf("q = %q", got)
	}
	if got := q.Get("s"); got != "todos" {
		t.Errorf("s = %q", got)
	}
	if got := q.Get("exactDate"); got != "mes" {
		t.Errorf("exactDate = %q", got)
	}
	if got := q.Get("sortType"); got != "0" {
		t.Errorf("sortType = %q", got)
	}
	if got := q.Get("page"); got != "2" {
		t.Errorf("page = %q", got)
	}

	// Page 1 omits the page parameter; unknown values degrade to defaults.
	first, err := url.Parse(buildSearchURL("x", "invalid", "never", 1))
	if err != nil {
		t.Fatal(err)
	}
	if first.Query().Has("page") {
		t.Error("page parameter present on first page")
	}
	if got := first.Query().Get("s"); got != "do1" {
		t.Errorf("default section = %q", got)
	}
	if got := first.Query().Get("exactDate"); got != "dia" {
		t.Errorf("default period = %q", got)
	}
}
