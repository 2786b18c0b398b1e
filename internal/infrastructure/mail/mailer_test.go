package mail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	netmail "net/mail"
	"net/smtp"
	"slices"
	"strings"
	"testing"
	"time"

	"doubot/internal/config"
)

type sendRecorder struct {
	calls int
	addr  string
	auth  smtp.Auth
	from  string
	rcpts []string
	msg   []byte
	errs  []error
}

func (r *sendRecorder) send(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	r.calls++
	r.addr = addr
	r.auth = a
	r.from = from
	r.rcpts = slices.Clone(to)
	r.msg = slices.Clone(msg)
	if r.calls <= len(r.errs) {
		return r.errs[r.calls-1]
	}
	return nil
}

func testEmailConfig() config.EmailConfig {
	return config.EmailConfig{
		SMTP:          config.SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "bot", Password: "secret"},
		From:          "bot@example.com",
		To:            []string{"fiscal@example.com"},
		Cc:            []string{"chefe@example.com"},
		Bcc:           []string{"auditoria@example.com"},
		SubjectPrefix: "[DOU Fiscal]",
	}
}

func newTestMailer(cfg config.EmailConfig, rec *sendRecorder) *Mailer {
	return &Mailer{
		cfg:            cfg,
		send:           rec.send,
		now:            func() time.Time { return time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC) },
		initialBackoff: time.Millisecond,
		maxBackoff:     2 * time.Millisecond,
	}
}

// parseMessage splits a raw wire message into its headers and decoded
// alternative parts, keyed and ordered by content type.
func parseMessage(t *testing.T, raw []byte) (netmail.Header, []string, map[string]string) {
	t.Helper()

	msg, err := netmail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("parse content type: %v", err)
	}
	if mediaType != "multipart/alternative" {
		t.Fatalf("media type = %q, want multipart/alternative", mediaType)
	}

	parts := make(map[string]string)
	var order []string
	mr := multipart.NewReader(msg.Body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("next part: %v", err)
		}
		body, err := io.ReadAll(part)
		if err != nil {
			t.Fatalf("read part: %v", err)
		}
		ctype, _, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			t.Fatalf("parse part content type: %v", err)
		}
		parts[ctype] = string(body)
		order = append(order, ctype)
	}
	return msg.Header, order, parts
}

func TestPublishDigestBuildsMultipartMessage(t *testing.T) {
	t.Parallel()

	rec := &sendRecorder{}
	m := newTestMailer(testEmailConfig(), rec)

	if err := m.PublishDigest(context.Background(), sampleDigest()); err != nil {
		t.Fatalf("PublishDigest: %v", err)
	}
	if rec.calls != 1 {
		t.Fatalf("send calls = %d, want 1", rec.calls)
	}
	if rec.addr != "smtp.example.com:587" {
		t.Errorf("addr = %q, want smtp.example.com:587", rec.addr)
	}
	if rec.from != "bot@example.com" {
		t.Errorf("envelope from = %q", rec.from)
	}
	if rec.auth == nil {
		t.Error("expected PLAIN auth when a username is configured")
	}

	hdr, order, parts := parseMessage(t, rec.msg)

	if got := hdr.Get("From"); got != "bot@example.com" {
		t.Errorf("From = %q", got)
	}
	if got := hdr.Get("To"); got != "fiscal@example.com" {
		t.Errorf("To = %q", got)
	}
	if got := hdr.Get("Cc"); got != "chefe@example.com" {
		t.Errorf("Cc = %q", got)
	}
	if got := hdr.Get("Date"); got != "Thu, 20 Aug 2026 09:30:00 +0000" {
		t.Errorf("Date = %q", got)
	}

	subject, err := new(mime.WordDecoder).DecodeHeader(hdr.Get("Subject"))
	if err != nil {
		t.Fatalf("decode subject: %v", err)
	}
	if want := "[DOU Fiscal] 2 publicação(ões) relevante(s) - 20/08/2026"; subject != want {
		t.Errorf("subject = %q, want %q", subject, want)
	}

	if want := []string{"text/plain", "text/html"}; !slices.Equal(order, want) {
		t.Fatalf("part order = %v, want %v", order, want)
	}
	if !strings.Contains(parts["text/plain"], "BOLETIM DOU FISCAL/TRIBUTÁRIO - 20/08/2026") {
		t.Errorf("plain part missing bulletin header:\n%s", parts["text/plain"])
	}
	if !strings.Contains(parts["text/html"], "📰 Boletim Fiscal DOU") {
		t.Error("html part missing bulletin header")
	}
}

func TestPublishDigestKeepsBccOutOfHeaders(t *testing.T) {
	t.Parallel()

	rec := &sendRecorder{}
	m := newTestMailer(testEmailConfig(), rec)

	if err := m.PublishDigest(context.Background(), sampleDigest()); err != nil {
		t.Fatalf("PublishDigest: %v", err)
	}

	want := []string{"fiscal@example.com", "chefe@example.com", "auditoria@example.com"}
	if !slices.Equal(rec.rcpts, want) {
		t.Fatalf("envelope recipients = %v, want %v", rec.rcpts, want)
	}

	headerBlock, _, ok := strings.Cut(string(rec.msg), "\r\n\r\n")
	if !ok {
		t.Fatal("message has no header/body separator")
	}
	if strings.Contains(headerBlock, "auditoria@example.com") {
		t.Fatalf("bcc address leaked into headers:\n%s", headerBlock)
	}
}

func TestPublishDigestRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	rec := &sendRecorder{errs: []error{
		errors.New("451 temporary failure"),
		errors.New("connection reset"),
	}}
	m := newTestMailer(testEmailConfig(), rec)

	if err := m.PublishDigest(context.Background(), sampleDigest()); err != nil {
		t.Fatalf("PublishDigest: %v", err)
	}
	if rec.calls != 3 {
		t.Fatalf("send calls = %d, want 3", rec.calls)
	}
}

func TestPublishDigestGivesUpAfterRetries(t *testing.T) {
	t.Parallel()

	rec := &sendRecorder{errs: []error{
		errors.New("535 auth failed"),
		errors.New("535 auth failed"),
		errors.New("535 auth failed"),
	}}
	m := newTestMailer(testEmailConfig(), rec)

	err := m.PublishDigest(context.Background(), sampleDigest())
	if err == nil {
		t.Fatal("expected delivery error")
	}
	if rec.calls != 3 {
		t.Fatalf("send calls = %d, want 3", rec.calls)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("error = %v, want attempt count", err)
	}
}

func TestPublishDigestRequiresConfiguration(t *testing.T) {
	t.Parallel()

	rec := &sendRecorder{}

	cfg := testEmailConfig()
	cfg.SMTP.Host = ""
	if err := newTestMailer(cfg, rec).PublishDigest(context.Background(), sampleDigest()); err == nil {
		t.Error("expected error for missing smtp host")
	}

	cfg = testEmailConfig()
	cfg.To, cfg.Cc, cfg.Bcc = nil, nil, nil
	if err := newTestMailer(cfg, rec).PublishDigest(context.Background(), sampleDigest()); err == nil {
		t.Error("expected error for missing recipients")
	}

	if rec.calls != 0 {
		t.Fatalf("send calls = %d, want 0", rec.calls)
	}
}

func TestSendTestMessage(t *testing.T) {
	t.Parallel()

	cfg := testEmailConfig()
	cfg.SMTP.Username = ""
	rec := &sendRecorder{}
	m := newTestMailer(cfg, rec)

	if err := m.SendTest(context.Background()); err != nil {
		t.Fatalf("SendTest: %v", err)
	}
	if rec.auth != nil {
		t.Error("expected no auth when the relay has no credentials")
	}

	hdr, _, parts := parseMessage(t, rec.msg)
	subject, err := new(mime.WordDecoder).DecodeHeader(hdr.Get("Subject"))
	if err != nil {
		t.Fatalf("decode subject: %v", err)
	}
	if subject != testSubject {
		t.Errorf("subject = %q, want %q", subject, testSubject)
	}
	if !strings.Contains(parts["text/plain"], "SMTP: smtp.example.com:587") {
		t.Errorf("test email missing relay line:\n%s", parts["text/plain"])
	}
	if !strings.Contains(parts["text/html"], "Teste de configuração") {
		t.Error("html test email missing heading")
	}
}

func TestRecipientsDeduplicated(t *testing.T) {
	t.Parallel()

	cfg := testEmailConfig()
	cfg.To = []string{"a@example.com", "b@example.com"}
	cfg.Cc = []string{"b@example.com", "c@example.com"}
	cfg.Bcc = []string{"A@example.com", " "}
	m := newTestMailer(cfg, &sendRecorder{})

	want := []string{"a@example.com", "b@example.com", "c@example.com"}
	if got := m.recipients(); !slices.Equal(got, want) {
		t.Fatalf("recipients = %v, want %v", got, want)
	}
}
