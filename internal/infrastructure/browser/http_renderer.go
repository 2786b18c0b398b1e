// Package browser renders gazette pages to HTML, either with a plain HTTP
// client or a headless Chrome instance.
package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"doubot/internal/ports"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	// maxBodyBytes caps page downloads; gazette pages stay well under this.
	maxBodyBytes = 8 << 20
)

// HTTPRenderer fetches pages with a throttled HTTP client. The official
// gazette portal serves its search results inside the static HTML, so a
// plain GET is enough for most runs.
type HTTPRenderer struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	logger    *slog.Logger
}

var _ ports.Renderer = (*HTTPRenderer)(nil)

// NewHTTPRenderer builds a renderer that waits at least interval between
// requests. A nil client falls back to a 30s-timeout default.
func NewHTTPRenderer(client *http.Client, interval time.Duration, userAgent string, logger *slog.Logger) *HTTPRenderer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if interval <= 0 {
		interval = time.Second
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &HTTPRenderer{
		client:    client,
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
		userAgent: userAgent,
		logger:    logger,
	}
}

// Render downloads the page at url and returns its HTML.
func (r *HTTPRenderer) Render(ctx context.Context, url string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("browser: wait for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("browser: build request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9")

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("browser: fetch %s: %w", url, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("browser: fetch %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("browser: read %s: %w", url, err)
	}

	if r.logger != nil {
		r.logger.Debug("page rendered",
			"url", url,
			"bytes", len(body),
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
	}

	return string(body), nil
}
