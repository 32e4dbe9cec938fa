package billing

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownVendor   = errors.New("unknown payment vendor")
	ErrBillingInactive = errors.New("billing is not active")
	ErrInvalidAmount   = errors.New("charge amount must not be negative")
	ErrNotConfigured   = errors.New("payment vendor is not configured")
)

// Credentials carries what the client sends after the card authorization
// flow. Toss issues the key from AuthKey, PortOne hands out BillingKey
// directly.
type Credentials struct {
	AuthKey     string `json:"auth_key"`
	CustomerKey string `json:"customer_key"`
	BillingKey  string `json:"billing_key"`
}

// IssuedBilling is a vendor confirmed billing key with its card details.
type IssuedBilling struct {
	CustomerKey      string
	BillingKey       string
	CardCompany      string
	CardNumber       string
	CardType         string
	CardOwnerType    string
	CardIssuerCode   string
	CardAcquirerCode string
}

type ChargeRequest struct {
	OrderID       string
	OrderName     string
	Amount        int64
	CustomerKey   string
	BillingKey    string
	CustomerEmail string
	CustomerName  string
}

type ChargeResult struct {
	PaymentKey  string
	Status      string
	Method      string
	CardNumber  string
	ApproveNo   string
	ReceiptURL  string
	RequestedAt time.Time
	ApprovedAt  *time.Time
}

// Provider is one payment vendor.
type Provider interface {
	Vendor() string
	IssueBillingKey(ctx context.Context, creds Credentials) (*IssuedBilling, error)
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	DeleteBillingKey(ctx context.Context, customerKey, billingKey string) error
}

// ProviderError is a non-2xx answer or vendor reported failure.
type ProviderError struct {
	Vendor  string
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s api error: status=%d code=%s message=%s", e.Vendor, e.Status, e.Code, e.Message)
}

// Order describes what a charge pays for.
type Order struct {
	ID             string
	Name           string
	UserID         uint
	SubscriptionID *uint
	ButlerID       *uint
	CustomerEmail  string
	CustomerName   string
}
