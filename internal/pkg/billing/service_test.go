package billing_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"testing"
	"time"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/app/repository/memory"
	"github.com/ManuelReschke/Vahana/internal/pkg/billing"
	"github.com/ManuelReschke/Vahana/internal/pkg/billing/billingtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*billing.Service, *billingtest.Provider, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	provider := billingtest.New()
	return billing.NewService(store.Repositories(), provider), provider, store
}

func TestRegisterAndDeactivateBilling(t *testing.T) {
	svc, provider, _ := setup(t)
	ctx := context.Background()

	b, err := svc.RegisterBilling(ctx, 7, "toss", billing.Credentials{AuthKey: "a1", CustomerKey: "c1"})
	require.NoError(t, err)
	assert.Equal(t, models.VENDOR_TOSS, b.Vendor)
	assert.Equal(t, "bk-a1", b.BillingKey)
	assert.True(t, b.IsActive)

	_, err = svc.RegisterBilling(ctx, 7, "unknown", billing.Credentials{})
	assert.ErrorIs(t, err, billing.ErrUnknownVendor)

	assert.ErrorIs(t, svc.DeactivateBilling(ctx, 8, b.ID), gorm.ErrRecordNotFound, "other users cannot touch the key")

	require.NoError(t, svc.DeactivateBilling(ctx, 7, b.ID))
	assert.Equal(t, []string{"bk-a1"}, provider.Deleted)

	list, err := svc.ListBillings(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.ActiveBilling(ctx, 7, b.ID)
	assert.ErrorIs(t, err, billing.ErrBillingInactive)
}

func TestCharge(t *testing.T) {
	svc, provider, _ := setup(t)
	ctx := context.Background()
	b, err := svc.RegisterBilling(ctx, 1, models.VENDOR_TOSS, billing.Credentials{AuthKey: "a", CustomerKey: "c"})
	require.NoError(t, err)

	p, err := svc.Charge(ctx, b, 500000, billing.Order{ID: "sub-1-20240301", Name: "Monthly"})
	require.NoError(t, err)
	assert.Equal(t, models.PAYMENT_DONE, p.Status)
	assert.Equal(t, int64(500000), p.TotalAmount)
	require.NotNil(t, p.UserID)
	assert.Equal(t, uint(1), *p.UserID)

	again, err := svc.Charge(ctx, b, 500000, billing.Order{ID: "sub-1-20240301", Name: "Monthly"})
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID, "same order id is not charged twice")
	assert.Equal(t, 1, provider.ChargeCount())
}

func TestCharge_FailureIsRecorded(t *testing.T) {
	svc, provider, _ := setup(t)
	ctx := context.Background()
	b, err := svc.RegisterBilling(ctx, 1, models.VENDOR_TOSS, billing.Credentials{AuthKey: "a", CustomerKey: "c"})
	require.NoError(t, err)

	provider.SetFail(true)
	p, err := svc.Charge(ctx, b, 1000, billing.Order{ID: "o-1", Name: "Butler"})
	require.Error(t, err)
	var pe *billing.ProviderError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, models.PAYMENT_ABORTED, p.Status)
	assert.Equal(t, "REJECT_CARD_PAYMENT", p.FailureCode)

	provider.SetFail(false)
	retry, err := svc.Charge(ctx, b, 1000, billing.Order{ID: "o-1", Name: "Butler"})
	require.NoError(t, err)
	assert.NotEqual(t, "o-1", retry.OrderID, "a failed order id is not reused at the vendor")

	list, total, err := svc.ListPayments(ctx, 1, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)
}

func TestCharge_ZeroAmount(t *testing.T) {
	svc, provider, _ := setup(t)
	p, err := svc.Charge(context.Background(), nil, 0, billing.Order{ID: "free-1", Name: "Covered by coupon", UserID: 7})
	require.NoError(t, err)
	assert.Equal(t, models.PAYMENT_DONE, p.Status)
	assert.Zero(t, provider.ChargeCount())
	require.NotNil(t, p.UserID, "free payments still belong to the customer")
	assert.Equal(t, uint(7), *p.UserID)

	_, err = svc.Charge(context.Background(), nil, -1, billing.Order{})
	assert.ErrorIs(t, err, billing.ErrInvalidAmount)
}

func TestHandlePortOneWebhook(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	svc.SetWebhookSecret("hook-secret")
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })

	b, err := svc.RegisterBilling(ctx, 1, models.VENDOR_TOSS, billing.Credentials{AuthKey: "a", CustomerKey: "c"})
	require.NoError(t, err)
	_, err = svc.Charge(ctx, b, 1000, billing.Order{ID: "pay-1", Name: "Butler"})
	require.NoError(t, err)

	body := []byte(`{"type":"Transaction.Cancelled","timestamp":"2024-03-01T12:00:00Z","data":{"paymentId":"pay-1"}}`)
	stamp := strconv.FormatInt(now.Unix(), 10)
	mac := hmac.New(sha256.New, []byte("hook-secret"))
	mac.Write([]byte("wh_1." + stamp + "."))
	mac.Write(body)
	h := billing.WebhookHeaders{ID: "wh_1", Timestamp: stamp, Signature: "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))}

	require.NoError(t, svc.HandlePortOneWebhook(ctx, body, h))

	list, _, err := svc.ListPayments(ctx, 1, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.PAYMENT_CANCELED, list[0].Status)
	assert.NotNil(t, list[0].CancelledAt)

	h.Signature = "v1,AAAA"
	assert.ErrorIs(t, svc.HandlePortOneWebhook(ctx, body, h), billing.ErrInvalidSignature)

	unknown := []byte(`{"type":"Transaction.Paid","data":{"paymentId":"nope"}}`)
	mac = hmac.New(sha256.New, []byte("hook-secret"))
	mac.Write([]byte("wh_2." + stamp + "."))
	mac.Write(unknown)
	h2 := billing.WebhookHeaders{ID: "wh_2", Timestamp: stamp, Signature: "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))}
	assert.NoError(t, svc.HandlePortOneWebhook(ctx, unknown, h2), "unknown payments are acknowledged")
}
