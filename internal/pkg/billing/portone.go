package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/internal/pkg/env"
)

const defaultPortOneAPIBaseURL = "https://api.portone.io"

type PortOneClient struct {
	APISecret  string
	StoreID    string
	APIBaseURL string
	HTTPClient *http.Client
}

type portOneBillingKeyInfo struct {
	Status     string `json:"status"`
	BillingKey string `json:"billingKey"`
	Customer   struct {
		ID string `json:"id"`
	} `json:"customer"`
	Methods []struct {
		Card struct {
			Publisher string `json:"publisher"`
			Issuer    string `json:"issuer"`
			Type      string `json:"type"`
			OwnerType string `json:"ownerType"`
			Number    string `json:"number"`
			Name      string `json:"name"`
		} `json:"card"`
	} `json:"methods"`
}

type portOnePaymentResponse struct {
	Payment struct {
		PgTxID string `json:"pgTxId"`
		PaidAt string `json:"paidAt"`
	} `json:"payment"`
}

type portOneError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PortOnePayment is the subset of GET /payments/{id} used by the webhook sync.
type PortOnePayment struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount struct {
		Total int64 `json:"total"`
	} `json:"amount"`
	PaidAt      string `json:"paidAt"`
	CancelledAt string `json:"cancelledAt"`
	Failure     struct {
		Reason string `json:"reason"`
		PgCode string `json:"pgCode"`
	} `json:"failure"`
}

func NewPortOneClientFromEnv() *PortOneClient {
	return &PortOneClient{
		APISecret:  strings.TrimSpace(env.GetEnv("PORTONE_API_SECRET", "")),
		StoreID:    strings.TrimSpace(env.GetEnv("PORTONE_STORE_ID", "")),
		APIBaseURL: strings.TrimRight(strings.TrimSpace(env.GetEnv("PORTONE_API_BASE_URL", defaultPortOneAPIBaseURL)), "/"),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *PortOneClient) Vendor() string { return models.VENDOR_PORTONE }

// IssueBillingKey verifies a billing key the browser SDK already issued.
func (c *PortOneClient) IssueBillingKey(ctx context.Context, creds Credentials) (*IssuedBilling, error) {
	key := strings.TrimSpace(creds.BillingKey)
	if key == "" {
		return nil, errors.New("billing_key is required")
	}

	var info portOneBillingKeyInfo
	if err := c.do(ctx, http.MethodGet, "/billing-keys/"+url.PathEscape(key), nil, &info); err != nil {
		return nil, err
	}
	if info.Status != "ISSUED" {
		return nil, &ProviderError{Vendor: c.Vendor(), Status: http.StatusOK, Code: "BILLING_KEY_NOT_ISSUED", Message: "billing key status is " + info.Status}
	}

	issued := &IssuedBilling{
		CustomerKey: info.Customer.ID,
		BillingKey:  key,
	}
	if issued.CustomerKey == "" {
		issued.CustomerKey = strings.TrimSpace(creds.CustomerKey)
	}
	if len(info.Methods) > 0 {
		card := info.Methods[0].Card
		issued.CardCompany = card.Name
		issued.CardNumber = card.Number
		issued.CardType = card.Type
		issued.CardOwnerType = card.OwnerType
		issued.CardIssuerCode = card.Issuer
		issued.CardAcquirerCode = card.Publisher
	}
	return issued, nil
}

func (c *PortOneClient) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	body := map[string]interface{}{
		"billingKey": req.BillingKey,
		"orderName":  req.OrderName,
		"amount":     map[string]int64{"total": req.Amount},
		"currency":   "KRW",
	}
	if c.StoreID != "" {
		body["storeId"] = c.StoreID
	}
	if req.CustomerKey != "" || req.CustomerEmail != "" {
		body["customer"] = map[string]interface{}{
			"id":    req.CustomerKey,
			"email": req.CustomerEmail,
		}
	}

	requested := time.Now()
	var out portOnePaymentResponse
	if err := c.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(req.OrderID)+"/billing-key", body, &out); err != nil {
		return nil, err
	}

	res := &ChargeResult{
		PaymentKey:  req.OrderID,
		Status:      models.PAYMENT_DONE,
		Method:      "CARD",
		ApproveNo:   out.Payment.PgTxID,
		RequestedAt: requested,
	}
	if t, err := time.Parse(time.RFC3339, out.Payment.PaidAt); err == nil {
		res.ApprovedAt = &t
	}
	return res, nil
}

func (c *PortOneClient) DeleteBillingKey(ctx context.Context, customerKey, billingKey string) error {
	return c.do(ctx, http.MethodDelete, "/billing-keys/"+url.PathEscape(billingKey), nil, nil)
}

// GetPayment fetches the authoritative state of a payment.
func (c *PortOneClient) GetPayment(ctx context.Context, paymentID string) (*PortOnePayment, error) {
	var out PortOnePayment
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *PortOneClient) do(ctx context.Context, method, path string, in interface{}, out interface{}) error {
	if c.APISecret == "" {
		return fmt.Errorf("%w: PORTONE_API_SECRET", ErrNotConfigured)
	}

	var reader io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "PortOne "+c.APISecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var pe portOneError
		_ = json.Unmarshal(body, &pe)
		if pe.Type == "" {
			pe.Type = "UNKNOWN"
			pe.Message = string(body)
		}
		return &ProviderError{Vendor: c.Vendor(), Status: resp.StatusCode, Code: pe.Type, Message: pe.Message}
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// PortOnePaymentStatus maps a PortOne payment status onto the local one.
func PortOnePaymentStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "PAID":
		return models.PAYMENT_DONE
	case "CANCELLED":
		return models.PAYMENT_CANCELED
	case "PARTIAL_CANCELLED":
		return models.PAYMENT_PARTIAL_CANCELED
	case "FAILED":
		return models.PAYMENT_ABORTED
	case "VIRTUAL_ACCOUNT_ISSUED":
		return models.PAYMENT_WAITING_FOR_DEPOSIT
	case "PAY_PENDING":
		return models.PAYMENT_IN_PROGRESS
	default:
		return models.PAYMENT_READY
	}
}
