package mail

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMail_UsesRelay(t *testing.T) {
	withEnv(t, map[string]string{"SMTP_HOST": "smtp.test", "SMTP_PORT": "2525", "PUBLIC_DOMAIN": "https://vahana.test/"})

	var addr, from string
	var to []string
	var msg []byte
	prev := smtpSend
	smtpSend = func(a string, _ smtp.Auth, f string, t []string, m []byte) error {
		addr, from, to, msg = a, f, t, m
		return nil
	}
	t.Cleanup(func() { smtpSend = prev })

	require.NoError(t, SendMail(context.Background(), "kim@example.com", "Verification code", "123456"))
	assert.Equal(t, "smtp.test:2525", addr)
	assert.Equal(t, "no-reply@vahana.test", from)
	assert.Equal(t, []string{"kim@example.com"}, to)
	assert.Contains(t, string(msg), "Subject: Verification code\r\n")
	assert.Contains(t, string(msg), "\r\n\r\n123456")
}

func TestSendMail_WrapsRelayError(t *testing.T) {
	withEnv(t, map[string]string{"SMTP_HOST": "smtp.test"})
	prev := smtpSend
	boom := errors.New("connection refused")
	smtpSend = func(string, smtp.Auth, string, []string, []byte) error { return boom }
	t.Cleanup(func() { smtpSend = prev })

	err := SendMail(context.Background(), "kim@example.com", "s", "b")
	assert.ErrorIs(t, err, boom)
}

func TestBuildMessageStripsHeaderBreaks(t *testing.T) {
	msg := string(buildMessage("a@x", "b@x", "hi\r\nBcc: evil@x", "body", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Contains(t, msg, "Subject: hi Bcc: evil@x\r\n")
	assert.NotContains(t, msg, "\r\nBcc:")
}
