// Package billingtest provides an in-process payment provider for tests.
package billingtest

import (
	"context"
	"sync"
	"time"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/internal/pkg/billing"
)

// Provider records every call. Set Fail to make charges return a
// ProviderError.
type Provider struct {
	mu sync.Mutex

	Name    string
	Fail    bool
	Charges []billing.ChargeRequest
	Deleted []string
}

func New() *Provider {
	return &Provider{Name: models.VENDOR_TOSS}
}

func (p *Provider) Vendor() string { return p.Name }

func (p *Provider) IssueBillingKey(ctx context.Context, creds billing.Credentials) (*billing.IssuedBilling, error) {
	key := creds.BillingKey
	if key == "" {
		key = "bk-" + creds.AuthKey
	}
	return &billing.IssuedBilling{
		CustomerKey: creds.CustomerKey,
		BillingKey:  key,
		CardCompany: "TestCard",
		CardNumber:  "1234****5678",
	}, nil
}

func (p *Provider) Charge(ctx context.Context, req billing.ChargeRequest) (*billing.ChargeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Fail {
		return nil, &billing.ProviderError{Vendor: p.Name, Status: 400, Code: "REJECT_CARD_PAYMENT", Message: "card declined"}
	}
	p.Charges = append(p.Charges, req)
	now := time.Now()
	return &billing.ChargeResult{
		PaymentKey:  "pk-" + req.OrderID,
		Status:      models.PAYMENT_DONE,
		Method:      "CARD",
		RequestedAt: now,
		ApprovedAt:  &now,
	}, nil
}

func (p *Provider) DeleteBillingKey(ctx context.Context, customerKey, billingKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Deleted = append(p.Deleted, billingKey)
	return nil
}

// ChargeCount is safe to call while charges run.
func (p *Provider) ChargeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Charges)
}

func (p *Provider) SetFail(fail bool) {
	p.mu.Lock()
	p.Fail = fail
	p.mu.Unlock()
}
