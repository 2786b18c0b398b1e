package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"doubot/internal/config"
	"doubot/internal/domain"
	"doubot/internal/filter"
	"doubot/internal/infrastructure/browser"
	"doubot/internal/infrastructure/extract"
	"doubot/internal/infrastructure/llm"
	"doubot/internal/infrastructure/mail"
	"doubot/internal/infrastructure/parser"
	"doubot/internal/infrastructure/state"
	"doubot/internal/logging"
	"doubot/internal/ports"
	"doubot/internal/scanner"
	"doubot/internal/usecase"
)

// Options tweak a single run without touching the configuration file.
type Options struct {
	// DryRun prints the bulletin to stdout and leaves the seen registry
	// untouched, so the next real run behaves as if this one never happened.
	DryRun bool
	// TestEmail sends the SMTP configuration probe instead of scanning.
	TestEmail bool
}

// Application wires configuration into the digest pipeline and owns the
// lifecycle of one run.
type Application struct {
	cfg      config.Config
	opts     Options
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	notifier ports.Notifier
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	renderer := buildRenderer(cfg.Browser, baseLogger)

	registry := scanner.NewRegistry()
	registry.Register(parser.NewDOUScanner(renderer, baseLogger.With("component", "scanner.dou")))
	registry.Register(parser.NewRSSScanner(nil, baseLogger.With("component", "scanner.rss")))

	source := parser.NewStrategySource(registry, cfg.Sources, cfg.Search, baseLogger.With("component", "source"))

	keywords := filter.NewKeyword(cfg.Filter.Keywords, baseLogger.With("component", "filter"))

	var summarizer ports.Summarizer
	var fetcher ports.ContentFetcher
	if cfg.AI.Enabled {
		summarizer = llm.NewChain(cfg.AI, nil, baseLogger.With("component", "summarizer"))
		fetcher = extract.NewPageFetcher(renderer, baseLogger.With("component", "content"))
	}

	seen, err := state.NewFileRegistry(cfg.State.File, cfg.State.MaxEntries, baseLogger.With("component", "state"))
	if err != nil {
		return nil, fmt.Errorf("open seen registry: %w", err)
	}

	var seenPort ports.SeenRegistry = seen
	var notifier ports.Notifier = mail.NewMailer(cfg.Email, baseLogger.With("component", "mail"))
	if opts.DryRun {
		notifier = mail.NewPrinter(os.Stdout, cfg.Email.SubjectPrefix, baseLogger.With("component", "mail"))
		seenPort = readOnlyRegistry{seen}
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Filter:     keywords,
		Fetcher:    fetcher,
		Summarizer: summarizer,
		Registry:   seenPort,
		Notifier:   notifier,
	}, domain.SearchInfo{
		Phrases: cfg.Search.Phrases,
		Section: cfg.Search.Section,
		Period:  cfg.Search.Period,
	}, cfg.Email.SendEmpty, baseLogger.With("component", "pipeline"))

	return &Application{
		cfg:      cfg,
		opts:     opts,
		logger:   baseLogger,
		pipeline: pipeline,
		notifier: notifier,
	}, nil
}

// Run executes exactly one cycle: either the SMTP probe or a full scan of
// today's gazette in the configured timezone.
func (a *Application) Run(ctx context.Context) error {
	if a.opts.TestEmail {
		return a.notifier.SendTest(ctx)
	}

	day := time.Now().In(a.cfg.Search.Location())
	a.logger.Info("scan started",
		"day", day.Format("2006-01-02"),
		"section", a.cfg.Search.Section,
		"period", a.cfg.Search.Period,
		"phrases", len(a.cfg.Search.Phrases),
		"dryRun", a.opts.DryRun)

	if err := a.pipeline.ProcessDay(ctx, day); err != nil {
		return err
	}
	a.logger.Info("scan finished")
	return nil
}

func buildRenderer(cfg config.BrowserConfig, logger *slog.Logger) ports.Renderer {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if cfg.Headless {
		return browser.NewChromeRenderer(cfg.UserAgent, timeout, logger.With("component", "browser.chrome"))
	}
	interval := time.Duration(cfg.RequestIntervalMs) * time.Millisecond
	return browser.NewHTTPRenderer(nil, interval, cfg.UserAgent, logger.With("component", "browser.http"))
}

// readOnlyRegistry serves dedup lookups but never persists; dry runs must
// not consume publications the next real run should deliver.
type readOnlyRegistry struct {
	ports.SeenRegistry
}

func (readOnlyRegistry) MarkSeen([]string) error { return nil }
