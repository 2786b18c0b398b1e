package mail

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
	"time"
)

// Message is a rendered bulletin ready for delivery. Text and HTML carry the
// same content; clients pick whichever alternative they can display.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// buildMIME assembles the RFC 5322 wire form of a message. Bcc addresses are
// never written into headers; they travel only in the SMTP envelope.
func buildMIME(from string, to, cc []string, msg Message, date time.Time) ([]byte, error) {
	var buf bytes.Buffer
	mp := multipart.NewWriter(&buf)

	header := func(name, value string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", name, value)
	}
	header("From", from)
	if len(to) > 0 {
		header("To", strings.Join(to, ", "))
	}
	if len(cc) > 0 {
		header("Cc", strings.Join(cc, ", "))
	}
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", date.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", mp.Boundary()))
	buf.WriteString("\r\n")

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=utf-8", msg.Text},
		{"text/html; charset=utf-8", msg.HTML},
	}
	for _, part := range parts {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Type", part.contentType)
		hdr.Set("Content-Transfer-Encoding", "quoted-printable")
		w, err := mp.CreatePart(hdr)
		if err != nil {
			return nil, fmt.Errorf("mail: create %s part: %w", part.contentType, err)
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(part.body)); err != nil {
			return nil, fmt.Errorf("mail: encode %s part: %w", part.contentType, err)
		}
		if err := qp.Close(); err != nil {
			return nil, fmt.Errorf("mail: flush %s part: %w", part.contentType, err)
		}
	}
	if err := mp.Close(); err != nil {
		return nil, fmt.Errorf("mail: close multipart body: %w", err)
	}
	return buf.Bytes(), nil
}
