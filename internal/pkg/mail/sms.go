package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Vahana/internal/pkg/env"
)

var smsHTTPClient = &http.Client{Timeout: 10 * time.Second}

type smsMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
}

// SendSMS posts a text message to the configured SMS gateway.
func SendSMS(ctx context.Context, to, message string) error {
	endpoint := strings.TrimSpace(env.GetEnv("SMS_API_URL", ""))
	if endpoint == "" {
		return errors.New("SMS_API_URL is not configured")
	}

	body, err := json.Marshal(smsMessage{
		From:    env.GetEnv("SMS_SENDER", ""),
		To:      to,
		Message: message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if key := env.GetEnv("SMS_API_KEY", ""); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := smsHTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sms gateway returned status=%d body=%s", resp.StatusCode, string(raw))
	}
	log.Infof("[Mail] SMS sent to %s", to)
	return nil
}
