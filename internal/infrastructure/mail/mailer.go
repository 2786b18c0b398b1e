package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"doubot/internal/config"
	"doubot/internal/domain"
	"doubot/internal/ports"
)

const (
	maxAttempts    = 3
	initialBackoff = 2 * time.Second
	maxBackoff     = 10 * time.Second

	testSubject = "DOU Bot - Teste de configuração"
)

var _ ports.Notifier = (*Mailer)(nil)

// Mailer delivers digest bulletins over SMTP as multipart/alternative
// messages with a plain-text and an HTML rendering.
type Mailer struct {
	cfg    config.EmailConfig
	logger *slog.Logger

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func NewMailer(cfg config.EmailConfig, logger *slog.Logger) *Mailer {
	return &Mailer{
		cfg:            cfg,
		logger:         logger,
		send:           smtp.SendMail,
		now:            time.Now,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
}

// PublishDigest renders the digest into the fiscal bulletin and mails it to
// the configured recipients.
func (m *Mailer) PublishDigest(ctx context.Context, digest domain.Digest) error {
	if err := m.checkConfigured(); err != nil {
		return err
	}

	withAI := hasSummaries(digest)
	html, err := renderHTML(digest, withAI)
	if err != nil {
		return err
	}
	msg := Message{
		Subject: digestSubject(digest, m.cfg.SubjectPrefix),
		Text:    renderText(digest, withAI),
		HTML:    html,
	}

	if err := m.deliver(ctx, msg); err != nil {
		return err
	}
	m.debug("digest mailed",
		"publications", len(digest.Publications),
		"recipients", len(m.recipients()),
		"subject", msg.Subject)
	return nil
}

// SendTest mails a short configuration probe so operators can verify SMTP
// credentials and recipient lists without waiting for a real digest.
func (m *Mailer) SendTest(ctx context.Context) error {
	if err := m.checkConfigured(); err != nil {
		return err
	}

	addr := m.addr()
	text := fmt.Sprintf(`Este é um email de teste enviado pelo Robô DOU.

SMTP: %s
Remetente: %s
Destinatários: %s

Se você recebeu esta mensagem, a configuração de email está funcionando.
`, addr, m.cfg.From, strings.Join(m.cfg.To, ", "))
	html := fmt.Sprintf(`<html><body>
<h2>✅ Teste de configuração</h2>
<p>Este é um email de teste enviado pelo Robô DOU.</p>
<ul>
<li><strong>SMTP:</strong> %s</li>
<li><strong>Remetente:</strong> %s</li>
<li><strong>Destinatários:</strong> %s</li>
</ul>
<p>Se você recebeu esta mensagem, a configuração de email está funcionando.</p>
</body></html>
`, addr, m.cfg.From, strings.Join(m.cfg.To, ", "))

	if err := m.deliver(ctx, Message{Subject: testSubject, Text: text, HTML: html}); err != nil {
		return err
	}
	m.debug("test email sent", "smtp", addr, "recipients", len(m.recipients()))
	return nil
}

func (m *Mailer) deliver(ctx context.Context, msg Message) error {
	rcpts := m.recipients()
	raw, err := buildMIME(m.cfg.From, m.cfg.To, m.cfg.Cc, msg, m.now())
	if err != nil {
		return err
	}

	addr := m.addr()
	var auth smtp.Auth
	if m.cfg.SMTP.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTP.Username, m.cfg.SMTP.Password, m.cfg.SMTP.Host)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.initialBackoff
	bo.MaxInterval = m.maxBackoff
	bo.Reset()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = m.send(addr, auth, m.cfg.From, rcpts, raw)
		if lastErr == nil {
			return nil
		}
		m.warn("smtp delivery failed", "attempt", attempt, "addr", addr, "error", lastErr)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-time.After(bo.NextBackOff()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("mail: send via %s after %d attempts: %w", addr, maxAttempts, lastErr)
}

// recipients flattens To, Cc and Bcc into the SMTP envelope list, dropping
// duplicates while keeping first-seen order.
func (m *Mailer) recipients() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, group := range [][]string{m.cfg.To, m.cfg.Cc, m.cfg.Bcc} {
		for _, addr := range group {
			key := strings.ToLower(strings.TrimSpace(addr))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, strings.TrimSpace(addr))
		}
	}
	return out
}

func (m *Mailer) addr() string {
	return net.JoinHostPort(m.cfg.SMTP.Host, strconv.Itoa(m.cfg.SMTP.Port))
}

func (m *Mailer) checkConfigured() error {
	if m.cfg.SMTP.Host == "" {
		return fmt.Errorf("mail: smtp host is not configured")
	}
	if m.cfg.From == "" {
		return fmt.Errorf("mail: sender address is not configured")
	}
	if len(m.recipients()) == 0 {
		return fmt.Errorf("mail: no recipients configured")
	}
	return nil
}

func (m *Mailer) debug(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}

func (m *Mailer) warn(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}
