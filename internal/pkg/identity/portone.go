// Package identity resolves PortOne identity verification codes into the
// verified customer behind them.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuelReschke/Vahana/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.portone.io"

var (
	ErrNotConfigured = errors.New("identity verification is not configured")
	ErrNotVerified   = errors.New("identity verification is not completed")
	ErrNoCustomer    = errors.New("verified customer is missing")
)

// VerifiedCustomer is what a completed verification tells us about a person.
type VerifiedCustomer struct {
	CI       string
	Name     string
	Birthday *time.Time
	Gender   string
	Mobile   string
}

// Verifier looks up a verification code the client obtained from the PortOne SDK.
type Verifier interface {
	Verify(ctx context.Context, code string) (*VerifiedCustomer, error)
}

// Error is a non-2xx answer from PortOne.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("portone identity error: status=%d code=%s message=%s", e.Status, e.Code, e.Message)
}

type PortOneVerifier struct {
	APISecret  string
	APIBaseURL string
	HTTPClient *http.Client
}

func NewPortOneVerifierFromEnv() *PortOneVerifier {
	return &PortOneVerifier{
		APISecret:  strings.TrimSpace(env.GetEnv("PORTONE_API_SECRET", "")),
		APIBaseURL: strings.TrimRight(strings.TrimSpace(env.GetEnv("PORTONE_API_BASE_URL", defaultAPIBaseURL)), "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type verificationResponse struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	VerifiedCustomer *struct {
		CI          string `json:"ci"`
		Name        string `json:"name"`
		Gender      string `json:"gender"`
		BirthDate   string `json:"birthDate"`
		PhoneNumber string `json:"phoneNumber"`
	} `json:"verifiedCustomer"`
}

func (v *PortOneVerifier) Verify(ctx context.Context, code string) (*VerifiedCustomer, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("identity_code is required")
	}
	if v.APISecret == "" {
		return nil, fmt.Errorf("%w: PORTONE_API_SECRET", ErrNotConfigured)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.APIBaseURL+"/identity-verifications/"+url.PathEscape(code), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "PortOne "+v.APISecret)
	req.Header.Set("Accept", "application/json")

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var pe struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &pe)
		if pe.Type == "" {
			pe.Type = "UNKNOWN"
			pe.Message = string(body)
		}
		return nil, &Error{Status: resp.StatusCode, Code: pe.Type, Message: pe.Message}
	}

	var out verificationResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if out.Status != "VERIFIED" {
		return nil, fmt.Errorf("%w: status %s", ErrNotVerified, out.Status)
	}
	if out.VerifiedCustomer == nil || out.VerifiedCustomer.CI == "" {
		return nil, ErrNoCustomer
	}

	vc := out.VerifiedCustomer
	customer := &VerifiedCustomer{
		CI:     vc.CI,
		Name:   vc.Name,
		Gender: normalizeGender(vc.Gender),
		Mobile: digits(vc.PhoneNumber),
	}
	if t, err := time.Parse("2006-01-02", vc.BirthDate); err == nil {
		customer.Birthday = &t
	}
	return customer, nil
}

func normalizeGender(g string) string {
	switch strings.ToUpper(g) {
	case "MALE", "M":
		return "M"
	case "FEMALE", "F":
		return "F"
	}
	return ""
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
