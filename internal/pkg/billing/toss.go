package billing

import (
	"bytes"
	"context"
	"encoding/base64"
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

const defaultTossAPIBaseURL = "https://api.tosspayments.com"

type TossClient struct {
	SecretKey  string
	APIBaseURL string
	HTTPClient *http.Client
}

type tossCard struct {
	IssuerCode   string `json:"issuerCode"`
	AcquirerCode string `json:"acquirerCode"`
	Number       string `json:"number"`
	CardType     string `json:"cardType"`
	OwnerType    string `json:"ownerType"`
	ApproveNo    string `json:"approveNo"`
}

type tossBillingResponse struct {
	CustomerKey string   `json:"customerKey"`
	BillingKey  string   `json:"billingKey"`
	CardCompany string   `json:"cardCompany"`
	CardNumber  string   `json:"cardNumber"`
	Card        tossCard `json:"card"`
}

type tossPaymentResponse struct {
	PaymentKey  string   `json:"paymentKey"`
	OrderID     string   `json:"orderId"`
	Status      string   `json:"status"`
	Method      string   `json:"method"`
	TotalAmount int64    `json:"totalAmount"`
	RequestedAt string   `json:"requestedAt"`
	ApprovedAt  string   `json:"approvedAt"`
	Card        tossCard `json:"card"`
	Receipt     struct {
		URL string `json:"url"`
	} `json:"receipt"`
}

type tossError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewTossClientFromEnv() *TossClient {
	return &TossClient{
		SecretKey:  strings.TrimSpace(env.GetEnv("TOSS_SECRET_KEY", "")),
		APIBaseURL: strings.TrimRight(strings.TrimSpace(env.GetEnv("TOSS_API_BASE_URL", defaultTossAPIBaseURL)), "/"),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *TossClient) Vendor() string { return models.VENDOR_TOSS }

func (c *TossClient) IssueBillingKey(ctx context.Context, creds Credentials) (*IssuedBilling, error) {
	if strings.TrimSpace(creds.AuthKey) == "" || strings.TrimSpace(creds.CustomerKey) == "" {
		return nil, errors.New("auth_key and customer_key are required")
	}

	var out tossBillingResponse
	err := c.do(ctx, http.MethodPost, "/v1/billing/authorizations/issue", map[string]string{
		"authKey":     strings.TrimSpace(creds.AuthKey),
		"customerKey": strings.TrimSpace(creds.CustomerKey),
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.BillingKey == "" {
		return nil, &ProviderError{Vendor: c.Vendor(), Status: http.StatusOK, Code: "EMPTY_BILLING_KEY", Message: "billing key missing in response"}
	}

	number := out.CardNumber
	if number == "" {
		number = out.Card.Number
	}
	return &IssuedBilling{
		CustomerKey:      out.CustomerKey,
		BillingKey:       out.BillingKey,
		CardCompany:      out.CardCompany,
		CardNumber:       number,
		CardType:         out.Card.CardType,
		CardOwnerType:    out.Card.OwnerType,
		CardIssuerCode:   out.Card.IssuerCode,
		CardAcquirerCode: out.Card.AcquirerCode,
	}, nil
}

func (c *TossClient) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	body := map[string]interface{}{
		"customerKey": req.CustomerKey,
		"amount":      req.Amount,
		"orderId":     req.OrderID,
		"orderName":   req.OrderName,
	}
	if req.CustomerEmail != "" {
		body["customerEmail"] = req.CustomerEmail
	}
	if req.CustomerName != "" {
		body["customerName"] = req.CustomerName
	}

	var out tossPaymentResponse
	if err := c.do(ctx, http.MethodPost, "/v1/billing/"+url.PathEscape(req.BillingKey), body, &out); err != nil {
		return nil, err
	}

	res := &ChargeResult{
		PaymentKey: out.PaymentKey,
		Status:     out.Status,
		Method:     out.Method,
		CardNumber: out.Card.Number,
		ApproveNo:  out.Card.ApproveNo,
		ReceiptURL: out.Receipt.URL,
	}
	if t, err := time.Parse(time.RFC3339, out.RequestedAt); err == nil {
		res.RequestedAt = t
	}
	if t, err := time.Parse(time.RFC3339, out.ApprovedAt); err == nil {
		res.ApprovedAt = &t
	}
	return res, nil
}

func (c *TossClient) DeleteBillingKey(ctx context.Context, customerKey, billingKey string) error {
	return c.do(ctx, http.MethodDelete, "/v1/billing/"+url.PathEscape(billingKey), nil, nil)
}

func (c *TossClient) do(ctx context.Context, method, path string, in interface{}, out interface{}) error {
	if c.SecretKey == "" {
		return fmt.Errorf("%w: TOSS_SECRET_KEY", ErrNotConfigured)
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
	// Toss expects the secret key as basic auth user with an empty password.
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.SecretKey+":")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var te tossError
		_ = json.Unmarshal(body, &te)
		if te.Code == "" {
			te.Code = "UNKNOWN"
			te.Message = string(body)
		}
		return &ProviderError{Vendor: c.Vendor(), Status: resp.StatusCode, Code: te.Code, Message: te.Message}
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}
