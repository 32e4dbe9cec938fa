// Package hcaptcha verifies hCaptcha tokens. It guards the endpoints that
// send verification codes, since every SMS is paid for.
package hcaptcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuelReschke/Vahana/internal/pkg/env"
)

const DefaultEndpoint = "https://hcaptcha.com/siteverify"

var (
	ErrMissingToken = errors.New("captcha token is empty")
	ErrRejected     = errors.New("captcha validation failed")
)

type Response struct {
	Success     bool     `json:"success"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
}

type Verifier struct {
	Secret   string
	Endpoint string
	Client   *http.Client
}

// NewFromEnv returns nil when HCAPTCHA_SECRET is not set, which disables
// the check.
func NewFromEnv() *Verifier {
	secret := strings.TrimSpace(env.GetEnv("HCAPTCHA_SECRET", ""))
	if secret == "" {
		return nil
	}
	return &Verifier{
		Secret:   secret,
		Endpoint: DefaultEndpoint,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify checks token against the siteverify API. remoteIP is optional.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) error {
	if token == "" {
		return ErrMissingToken
	}

	formData := url.Values{
		"secret":   {v.Secret},
		"response": {token},
	}
	if remoteIP != "" {
		formData.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.Endpoint, strings.NewReader(formData.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to hCaptcha API: %w", err)
	}
	defer resp.Body.Close()

	var response Response
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode hCaptcha API response: %w", err)
	}

	if !response.Success {
		if len(response.ErrorCodes) > 0 {
			return fmt.Errorf("%w: %s", ErrRejected, strings.Join(response.ErrorCodes, ", "))
		}
		return ErrRejected
	}
	return nil
}
