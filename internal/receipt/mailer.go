// Package receipt holds the collaborator seams for receipt delivery: a
// PDF generator and an email transport. Typesetting and delivery
// guarantees live behind these interfaces, outside this repo's scope.
package receipt

import (
	"encoding/base64"
	"fmt"
	"net/smtp"
	"os"
	"path/filepath"
)

// Generator renders a line-itemized cart into a PDF file and returns its
// path. Implemented by the kiosk's PDF collaborator.
type Generator interface {
	Generate(lines []Line, total string) (path string, err error)
}

// Line is one receipt row.
type Line struct {
	Name     string
	Quantity int
	Price    string
}

// Mailer sends a receipt email with an optional attachment.
type Mailer interface {
	Send(to, subject, body, attachmentPath string) error
}

// SMTPMailer sends mail over STARTTLS-upgraded SMTP.
type SMTPMailer struct {
	Host     string
	Port     int
	From     string
	Password string
}

// Send builds a MIME multipart message with the attachment base64-encoded
// and submits it through the configured relay.
func (m *SMTPMailer) Send(to, subject, body, attachmentPath string) error {
	msg, err := m.buildMessage(to, subject, body, attachmentPath)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	auth := smtp.PlainAuth("", m.From, m.Password, m.Host)
	if err := smtp.SendMail(addr, auth, m.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

const mimeBoundary = "cyberkart-receipt"

func (m *SMTPMailer) buildMessage(to, subject, body, attachmentPath string) ([]byte, error) {
	var buf []byte
	appendLine := func(s string) { buf = append(buf, s...); buf = append(buf, "\r\n"...) }

	appendLine("From: " + m.From)
	appendLine("To: " + to)
	appendLine("Subject: " + subject)
	appendLine("MIME-Version: 1.0")
	appendLine(`Content-Type: multipart/mixed; boundary="` + mimeBoundary + `"`)
	appendLine("")
	appendLine("--" + mimeBoundary)
	appendLine(`Content-Type: text/plain; charset="utf-8"`)
	appendLine("")
	appendLine(body)

	if attachmentPath != "" {
		data, err := os.ReadFile(attachmentPath)
		if err != nil {
			return nil, fmt.Errorf("read attachment: %w", err)
		}

		appendLine("--" + mimeBoundary)
		appendLine("Content-Type: application/octet-stream")
		appendLine("Content-Transfer-Encoding: base64")
		appendLine(fmt.Sprintf("Content-Disposition: attachment; filename=%q", filepath.Base(attachmentPath)))
		appendLine("")

		encoded := base64.StdEncoding.EncodeToString(data)
		for len(encoded) > 76 {
			appendLine(encoded[:76])
			encoded = encoded[76:]
		}
		appendLine(encoded)
	}

	appendLine("--" + mimeBoundary + "--")
	return buf, nil
}
