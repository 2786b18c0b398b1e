package mail

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"doubot/internal/domain"
	"doubot/internal/ports"
)

var _ ports.Notifier = (*Printer)(nil)

// Printer renders the digest to a writer instead of delivering it. It backs
// dry runs, where operators inspect the bulletin without emailing anyone.
type Printer struct {
	out    io.Writer
	prefix string
	logger *slog.Logger
}

func NewPrinter(out io.Writer, prefix string, logger *slog.Logger) *Printer {
	return &Printer{out: out, prefix: prefix, logger: logger}
}

func (p *Printer) PublishDigest(_ context.Context, digest domain.Digest) error {
	bulletin := renderText(digest, hasSummaries(digest))
	if _, err := fmt.Fprintf(p.out, "Assunto: %s\n\n%s", digestSubject(digest, p.prefix), bulletin); err != nil {
		return fmt.Errorf("mail: print digest: %w", err)
	}
	if p.logger != nil {
		p.logger.Info("dry run, digest printed instead of mailed", "publications", len(digest.Publications))
	}
	return nil
}

func (p *Printer) SendTest(context.Context) error {
	_, err := fmt.Fprintln(p.out, "dry run: nenhum email de teste enviado")
	if err != nil {
		return fmt.Errorf("mail: print test notice: %w", err)
	}
	return nil
}
