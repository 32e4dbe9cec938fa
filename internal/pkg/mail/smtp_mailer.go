package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Vahana/internal/pkg/env"
)

// smtpSend is swapped in tests
var smtpSend = smtp.SendMail

// SendMail delivers a plain text notification (verification codes, request
// receipts) through the configured SMTP relay.
func SendMail(ctx context.Context, to, subject, body string) error {
	host := strings.TrimSpace(env.GetEnv("SMTP_HOST", ""))
	if host == "" {
		return errors.New("SMTP_HOST is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	port := env.GetEnv("SMTP_PORT", "587")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := defaultSender()

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := net.JoinHostPort(host, port)
	if err := smtpSend(addr, auth, sender, []string{to}, buildMessage(sender, to, subject, body, time.Now())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	log.Infof("[Mail] Sent %q to %s", subject, to)
	return nil
}

func defaultSender() string {
	if s := strings.TrimSpace(env.GetEnv("SMTP_SENDER", "")); s != "" {
		return s
	}
	domain := env.GetEnv("PUBLIC_DOMAIN", "localhost")
	domain = strings.TrimPrefix(strings.TrimPrefix(domain, "https://"), "http://")
	return "no-reply@" + strings.TrimSuffix(domain, "/")
}

// buildMessage renders the RFC 5322 message. Header values are stripped of
// line breaks so a subject can't inject extra headers.
func buildMessage(from, to, subject, body string, at time.Time) []byte {
	clean := strings.NewReplacer("\r", "", "\n", " ")
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", clean.Replace(from))
	fmt.Fprintf(&b, "To: %s\r\n", clean.Replace(to))
	fmt.Fprintf(&b, "Subject: %s\r\n", clean.Replace(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", at.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
