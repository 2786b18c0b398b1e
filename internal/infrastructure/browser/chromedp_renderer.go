package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"doubot/internal/ports"
)

// ChromeRenderer drives a headless Chrome to render pages that require
// JavaScript. It is opt-in via browser.headless; the portal currently works
// without it but has flirted with client-side rendering before.
type ChromeRenderer struct {
	userAgent string
	timeout   time.Duration
	logger    *slog.Logger
}

var _ ports.Renderer = (*ChromeRenderer)(nil)

// NewChromeRenderer builds a headless renderer with a per-page timeout.
func NewChromeRenderer(userAgent string, timeout time.Duration, logger *slog.Logger) *ChromeRenderer {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChromeRenderer{userAgent: userAgent, timeout: timeout, logger: logger}
}

// Render opens url in a fresh headless tab and returns the resulting DOM.
func (r *ChromeRenderer) Render(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(r.userAgent),
		chromedp.Flag("lang", "pt-BR"),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTimeout()

	start := time.Now()
	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser: headless render %s: %w", url, err)
	}

	if r.logger != nil {
		r.logger.Debug("page rendered headless",
			"url", url,
			"bytes", len(html),
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
	}

	return html, nil
}
