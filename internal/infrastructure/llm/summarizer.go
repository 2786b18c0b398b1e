// Package llm generates short Portuguese summaries of gazette acts. A chain
// of remote providers is tried in order; when all of them fail, an extractive
// fallback keeps the digest self-contained.
package llm

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"doubot/internal/config"
	"doubot/internal/domain"
	"doubot/internal/ports"
)

const (
	// minRemoteChars gates remote calls: shorter texts are already their own
	// summary.
	minRemoteChars = 100
	// minProcessedChars rejects texts that preprocessing reduced to noise.
	minProcessedChars = 50
	maxInputRunes     = 5000
	maxSummaryRunes   = 300

	maxAttempts    = 3
	initialBackoff = 2 * time.Second
	maxBackoff     = 10 * time.Second
)

// summaryRequest is the provider-facing view of one publication.
type summaryRequest struct {
	Title string
	Kind  string
	Organ string
	Text  string
}

// provider is one remote backend in the chain.
type provider interface {
	name() string
	summarize(ctx context.Context, req summaryRequest) (string, error)
}

// Chain tries each configured provider with retry and falls back to an
// extractive summary. Summarize never fails the run: a broken provider means
// a plainer digest, not an empty one.
type Chain struct {
	providers []provider
	fallback  *extractive
	logger    *slog.Logger

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

var _ ports.Summarizer = (*Chain)(nil)

// NewChain builds the provider chain from configuration. Providers without
// credentials are left out; with none configured only the extractive fallback
// runs.
func NewChain(cfg config.AIConfig, client *http.Client, logger *slog.Logger) *Chain {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	var providers []provider
	if cfg.Gemini.APIKey != "" {
		providers = append(providers, newGemini(cfg.Gemini, client))
	}
	if cfg.Anthropic.APIKey != "" {
		providers = append(providers, newAnthropic(cfg.Anthropic))
	}
	if cfg.HuggingFace.Token != "" {
		providers = append(providers, newHuggingFace(cfg.HuggingFace, client))
	}

	if logger != nil {
		names := make([]string, len(providers))
		for i, p := range providers {
			names[i] = p.name()
		}
		logger.Info("summarizer chain ready", "providers", strings.Join(names, ","))
	}

	return &Chain{
		providers:      providers,
		fallback:       newExtractive(),
		logger:         logger,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
}

// Summarize produces a short summary of the publication. An empty result with
// a nil error means the text was too thin to summarize; callers should fall
// back to the raw excerpt.
func (c *Chain) Summarize(ctx context.Context, pub domain.Publication, content string) (string, error) {
	raw := strings.TrimSpace(content)
	if raw == "" {
		raw = strings.TrimSpace(pub.Excerpt)
	}
	if len([]rune(raw)) < minRemoteChars {
		c.debug("text too short to summarize", "url", pub.URL)
		return "", nil
	}

	text := preprocess(truncateRunes(raw, maxInputRunes))
	if len([]rune(text)) < minProcessedChars {
		c.debug("text too thin after preprocessing", "url", pub.URL)
		return "", nil
	}

	req := summaryRequest{
		Title: pub.Title,
		Kind:  pub.Kind,
		Organ: pub.Organ,
		Text:  text,
	}

	for _, p := range c.providers {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		summary, err := c.callWithRetry(ctx, p, req)
		if err != nil {
			c.warn("summarization provider failed", "provider", p.name(), "error", err)
			continue
		}

		summary = postprocess(summary)
		if !isUseful(summary) {
			c.debug("summary rejected as not useful", "provider", p.name())
			continue
		}

		c.debug("summary generated", "provider", p.name(), "chars", len(summary))
		return summary, nil
	}

	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	summary := postprocess(c.fallback.summarize(req))
	if !isUseful(summary) {
		return "", nil
	}
	c.debug("summary generated", "provider", c.fallback.name(), "chars", len(summary))
	return summary, nil
}

func (c *Chain) callWithRetry(ctx context.Context, p provider, req summaryRequest) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialBackoff
	bo.MaxInterval = c.maxBackoff
	bo.Multiplier = 2
	bo.Reset()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		summary, err := p.summarize(ctx, req)
		if err == nil {
			return summary, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		c.debug("provider attempt failed", "provider", p.name(), "attempt", attempt, "error", err)

		select {
		case <-time.After(bo.NextBackOff()):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

var (
	spaceExpr = regexp.MustCompile(`\s+`)
	urlExpr   = regexp.MustCompile(`https?://\S+`)

	resumoPrefixExpr = regexp.MustCompile(`(?i)^resumo:\s*`)
	leadInExpr       = regexp.MustCompile(`(?i)^(aqui está[^:]*|com base[^:]*):\s*`)
)

// boilerplate fragments the portal injects around act bodies.
var boilerplate = []string{
	"Este conteúdo não substitui o publicado na versão certificada",
	"Compartilhe o conteúdo",
	"Voltar ao topo",
	"Portal da Imprensa Nacional",
	"ACESSE O SCRIPT",
}

// junkPhrases mark generated sentences that echo portal chrome.
var junkPhrases = []string{
	"acesse o script",
	"compartilhe o conteúdo",
	"clique aqui para",
	"para mais informações",
	"consulte o texto completo",
	"leia a matéria completa",
	"veja também",
	"para saber mais",
}

// preprocess flattens whitespace and strips portal boilerplate and URLs
// before the text reaches a model.
func preprocess(text string) string {
	text = spaceExpr.ReplaceAllString(text, " ")
	for _, junk := range boilerplate {
		text = removeFoldedSubstring(text, junk)
	}
	text = urlExpr.ReplaceAllString(text, "")
	text = spaceExpr.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// removeFoldedSubstring deletes every case-insensitive occurrence of sub.
func removeFoldedSubstring(s, sub string) string {
	lower := strings.ToLower(s)
	sub = strings.ToLower(sub)
	for {
		i := strings.Index(lower, sub)
		if i < 0 {
			return s
		}
		s = s[:i] + s[i+len(sub):]
		lower = lower[:i] + lower[i+len(sub):]
	}
}

// postprocess cleans a generated summary: lead-ins stripped, junk sentences
// dropped, length capped at a word boundary, closing punctuation ensured.
func postprocess(summary string) string {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return ""
	}

	summary = resumoPrefixExpr.ReplaceAllString(summary, "")
	summary = leadInExpr.ReplaceAllString(summary, "")
	summary = spaceExpr.ReplaceAllString(summary, " ")

	summary = dropJunkSentences(summary)
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return ""
	}

	if runes := []rune(summary); len(runes) > maxSummaryRunes {
		clipped := string(runes[:maxSummaryRunes])
		if i := strings.LastIndex(clipped, " "); i > 0 {
			clipped = clipped[:i]
		}
		return strings.TrimSpace(clipped) + "..."
	}

	if !strings.HasSuffix(summary, ".") && !strings.HasSuffix(summary, "!") && !strings.HasSuffix(summary, "?") {
		summary += "."
	}
	return summary
}

func dropJunkSentences(summary string) string {
	sentences := splitSentences(summary)
	kept := sentences[:0]
	for _, s := range sentences {
		lower := strings.ToLower(s)
		junk := false
		for _, phrase := range junkPhrases {
			if strings.Contains(lower, phrase) {
				junk = true
				break
			}
		}
		if !junk {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, " ")
}

var sentenceEndExpr = regexp.MustCompile(`([.!?])\s+`)

// splitSentences cuts text after sentence punctuation, keeping the
// punctuation with its sentence.
func splitSentences(text string) []string {
	marked := sentenceEndExpr.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// significantWords signal a summary actually talks about legislation.
var significantWords = []string{
	"lei", "portaria", "decreto", "instrução", "resolução",
	"altera", "estabelece", "dispõe",
	"tribut", "fiscal", "imposto", "receita",
}

// isUseful rejects summaries that are too short, too repetitive or about
// nothing in particular.
func isUseful(summary string) bool {
	length := len([]rune(summary))
	if length < 30 {
		return false
	}

	lower := strings.ToLower(summary)
	unique := map[string]struct{}{}
	for _, w := range strings.Fields(lower) {
		unique[w] = struct{}{}
	}
	if len(unique) < 5 {
		return false
	}

	for _, w := range significantWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return length >= 50
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func (c *Chain) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Chain) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
