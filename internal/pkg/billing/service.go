package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/app/repository"
	"github.com/ManuelReschke/Vahana/internal/pkg/env"
	"github.com/ManuelReschke/Vahana/internal/pkg/metrics"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// Service stores billing keys and records every charge attempt as a Payment.
type Service struct {
	repos         *repository.Repositories
	providers     map[string]Provider
	portone       *PortOneClient
	webhookSecret string
	metrics       *metrics.Metrics
	now           func() time.Time
}

// NewService creates a billing service for the given providers.
func NewService(repos *repository.Repositories, providers ...Provider) *Service {
	s := &Service{
		repos:     repos,
		providers: make(map[string]Provider, len(providers)),
		now:       time.Now,
	}
	for _, p := range providers {
		s.providers[p.Vendor()] = p
		if po, ok := p.(*PortOneClient); ok {
			s.portone = po
		}
	}
	return s
}

// NewServiceFromEnv wires the Toss and PortOne clients from configuration.
func NewServiceFromEnv(repos *repository.Repositories) *Service {
	s := NewService(repos, NewTossClientFromEnv(), NewPortOneClientFromEnv())
	s.webhookSecret = strings.TrimSpace(env.GetEnv("PORTONE_WEBHOOK_SECRET", ""))
	s.metrics = metrics.Default()
	return s
}

// SetWebhookSecret overrides the PortOne webhook secret.
func (s *Service) SetWebhookSecret(secret string) {
	s.webhookSecret = secret
}

func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetClock replaces the time source used for payment timestamps.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Provider(vendor string) (Provider, error) {
	p, ok := s.providers[strings.ToUpper(strings.TrimSpace(vendor))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVendor, vendor)
	}
	return p, nil
}

// RegisterBilling confirms the card authorization at the vendor and stores the billing key.
func (s *Service) RegisterBilling(ctx context.Context, userID uint, vendor string, creds Credentials) (*models.Billing, error) {
	p, err := s.Provider(vendor)
	if err != nil {
		return nil, err
	}

	issued, err := p.IssueBillingKey(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("issue billing key: %w", err)
	}

	b := &models.Billing{
		UserID:           userID,
		Vendor:           p.Vendor(),
		CustomerKey:      issued.CustomerKey,
		BillingKey:       issued.BillingKey,
		CardCompany:      issued.CardCompany,
		CardNumber:       issued.CardNumber,
		CardType:         issued.CardType,
		CardOwnerType:    issued.CardOwnerType,
		CardIssuerCode:   issued.CardIssuerCode,
		CardAcquirerCode: issued.CardAcquirerCode,
		IsActive:         true,
	}
	if b.CustomerKey == "" {
		b.CustomerKey = strings.TrimSpace(creds.CustomerKey)
	}
	if err := s.repos.Payment.CreateBilling(b); err != nil {
		return nil, err
	}
	log.Infof("[Billing] Registered %s billing %d for user %d", b.Vendor, b.ID, userID)
	return b, nil
}

func (s *Service) ListBillings(ctx context.Context, userID uint) ([]models.Billing, error) {
	return s.repos.Payment.ListBillings(userID)
}

// ActiveBilling returns a billing owned by userID that can still be charged.
func (s *Service) ActiveBilling(ctx context.Context, userID, billingID uint) (*models.Billing, error) {
	b, err := s.repos.Payment.GetBilling(billingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	if !b.IsActive {
		return nil, ErrBillingInactive
	}
	return b, nil
}

// DeactivateBilling removes the key at the vendor and marks it inactive. A
// vendor failure is logged; the key is never used locally again either way.
func (s *Service) DeactivateBilling(ctx context.Context, userID, billingID uint) error {
	b, err := s.repos.Payment.GetBilling(billingID)
	if err != nil {
		return err
	}
	if b.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	if !b.IsActive {
		return nil
	}

	if p, perr := s.Provider(b.Vendor); perr == nil {
		if derr := p.DeleteBillingKey(ctx, b.CustomerKey, b.BillingKey); derr != nil {
			log.Warnf("[Billing] Failed to delete billing key %d at %s: %v", b.ID, b.Vendor, derr)
		}
	}

	b.IsActive = false
	return s.repos.Payment.UpdateBilling(b)
}

// Charge bills amount on the stored key and records the attempt. A DONE
// payment with the same order id short-circuits, so retried calls never
// charge twice. Zero amounts are recorded as paid without calling the vendor.
func (s *Service) Charge(ctx context.Context, b *models.Billing, amount int64, order Order) (*models.Payment, error) {
	if amount < 0 {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(order.ID) == "" {
		order.ID = uuid.New().String()
	}

	orderID := order.ID
	existing, err := s.repos.Payment.GetPaymentByOrderID(order.ID)
	switch {
	case err == nil && existing.IsDone():
		return existing, nil
	case err == nil:
		// Earlier attempt failed; the vendor needs a fresh order id.
		orderID = fmt.Sprintf("%s-%s", order.ID, uuid.New().String()[:8])
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	now := s.now()
	payment := &models.Payment{
		SubscriptionID: order.SubscriptionID,
		ButlerID:       order.ButlerID,
		Type:           models.PAYMENT_TYPE_BILLING,
		OrderID:        orderID,
		OrderName:      order.Name,
		Currency:       "KRW",
		TotalAmount:    amount,
		RequestedAt:    now,
	}
	if order.UserID != 0 {
		userID := order.UserID
		payment.UserID = &userID
	}
	if b != nil {
		userID, billingID := b.UserID, b.ID
		payment.UserID = &userID
		payment.BillingID = &billingID
		payment.Vendor = b.Vendor
	}

	if amount == 0 {
		payment.Status = models.PAYMENT_DONE
		payment.Method = "FREE"
		payment.ApprovedAt = &now
		if payment.Vendor == "" {
			payment.Vendor = models.VENDOR_TOSS
		}
		return payment, s.record(payment)
	}

	if b == nil {
		return nil, ErrBillingInactive
	}
	if !b.IsActive {
		return nil, ErrBillingInactive
	}
	p, err := s.Provider(b.Vendor)
	if err != nil {
		return nil, err
	}

	res, chargeErr := p.Charge(ctx, ChargeRequest{
		OrderID:       orderID,
		OrderName:     order.Name,
		Amount:        amount,
		CustomerKey:   b.CustomerKey,
		BillingKey:    b.BillingKey,
		CustomerEmail: order.CustomerEmail,
		CustomerName:  order.CustomerName,
	})
	if chargeErr != nil {
		payment.Status = models.PAYMENT_ABORTED
		payment.FailureCode = "REQUEST_FAILED"
		payment.FailureMessage = chargeErr.Error()
		var pe *ProviderError
		if errors.As(chargeErr, &pe) {
			payment.FailureCode = pe.Code
			payment.FailureMessage = pe.Message
		}
		if err := s.record(payment); err != nil {
			log.Errorf("[Billing] Failed to record aborted payment %s: %v", orderID, err)
		}
		return payment, fmt.Errorf("charge %s: %w", orderID, chargeErr)
	}

	payment.PaymentKey = res.PaymentKey
	payment.Status = res.Status
	if payment.Status == "" {
		payment.Status = models.PAYMENT_DONE
	}
	payment.Method = res.Method
	payment.CardNumber = res.CardNumber
	payment.CardApproveNo = res.ApproveNo
	payment.ReceiptURL = res.ReceiptURL
	payment.ApprovedAt = res.ApprovedAt
	if !res.RequestedAt.IsZero() {
		payment.RequestedAt = res.RequestedAt
	}
	if err := s.record(payment); err != nil {
		// The money moved; losing the row must not undo the business action.
		log.Errorf("[Billing] Charged %s (%d KRW) but failed to record payment: %v", orderID, amount, err)
	}
	return payment, nil
}

func (s *Service) record(p *models.Payment) error {
	s.metrics.Payment(p.Vendor, p.Status)
	if err := s.repos.Payment.CreatePayment(p); err != nil {
		return err
	}
	log.Infof("[Billing] Payment %s recorded with status %s (%d KRW)", p.OrderID, p.Status, p.TotalAmount)
	return nil
}

func (s *Service) ListPayments(ctx context.Context, userID uint, offset, limit int) ([]models.Payment, int64, error) {
	return s.repos.Payment.ListPayments(userID, offset, limit)
}

type portOneWebhookEvent struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		PaymentID     string `json:"paymentId"`
		TransactionID string `json:"transactionId"`
		StoreID       string `json:"storeId"`
	} `json:"data"`
}

var portOneEventStatus = map[string]string{
	"Transaction.Paid":                 models.PAYMENT_DONE,
	"Transaction.Cancelled":            models.PAYMENT_CANCELED,
	"Transaction.PartialCancelled":     models.PAYMENT_PARTIAL_CANCELED,
	"Transaction.Failed":               models.PAYMENT_ABORTED,
	"Transaction.VirtualAccountIssued": models.PAYMENT_WAITING_FOR_DEPOSIT,
}

// HandlePortOneWebhook verifies the signature and syncs the payment status.
// Events for unknown payments are acknowledged and ignored.
func (s *Service) HandlePortOneWebhook(ctx context.Context, body []byte, h WebhookHeaders) error {
	if s.webhookSecret == "" {
		return fmt.Errorf("%w: PORTONE_WEBHOOK_SECRET", ErrNotConfigured)
	}
	if !VerifyPortOneWebhookSignature(body, h, s.webhookSecret, s.now()) {
		return ErrInvalidSignature
	}

	var ev portOneWebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("decode webhook: %w", err)
	}
	status, ok := portOneEventStatus[ev.Type]
	if !ok || ev.Data.PaymentID == "" {
		log.Debugf("[Billing] Ignoring PortOne webhook %s", ev.Type)
		return nil
	}

	payment, err := s.repos.Payment.GetPaymentByOrderID(ev.Data.PaymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warnf("[Billing] PortOne webhook for unknown payment %s", ev.Data.PaymentID)
		return nil
	}
	if err != nil {
		return err
	}

	// Prefer the vendor's view over the event type when the API is reachable.
	if s.portone != nil && s.portone.APISecret != "" {
		if remote, rerr := s.portone.GetPayment(ctx, ev.Data.PaymentID); rerr == nil {
			status = PortOnePaymentStatus(remote.Status)
		} else {
			log.Warnf("[Billing] Could not fetch PortOne payment %s: %v", ev.Data.PaymentID, rerr)
		}
	}

	if payment.Status == status {
		return nil
	}
	now := s.now()
	payment.Status = status
	switch status {
	case models.PAYMENT_DONE:
		if payment.ApprovedAt == nil {
			payment.ApprovedAt = &now
		}
	case models.PAYMENT_CANCELED, models.PAYMENT_PARTIAL_CANCELED:
		payment.CancelledAt = &now
	}
	if err := s.repos.Payment.UpdatePayment(payment); err != nil {
		return err
	}
	log.Infof("[Billing] Payment %s synced to %s via webhook", payment.OrderID, status)
	return nil
}
