package subscription_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/app/repository"
	"github.com/ManuelReschke/Vahana/app/repository/memory"
	"github.com/ManuelReschke/Vahana/internal/pkg/billing"
	"github.com/ManuelReschke/Vahana/internal/pkg/billing/billingtest"
	"github.com/ManuelReschke/Vahana/internal/pkg/coupon"
	"github.com/ManuelReschke/Vahana/internal/pkg/points"
	"github.com/ManuelReschke/Vahana/internal/pkg/subscription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var now = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	emails []string
	sms    []string
}

func (n *recordingNotifier) SendEmail(to, subject, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emails = append(n.emails, to+": "+subject)
}

func (n *recordingNotifier) SendSMS(to, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sms = append(n.sms, to)
}

type fixture struct {
	store    *memory.Store
	svc      *subscription.Service
	billing  *billing.Service
	provider *billingtest.Provider
	notifier *recordingNotifier
	user     models.User
	car      models.Car
}

func noLock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	return func() {}, nil
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repositories()
	provider := billingtest.New()
	billingSvc := billing.NewService(repos, provider)

	svc := subscription.NewService(store, repos, billingSvc)
	notifier := &recordingNotifier{}
	svc.SetNotifier(notifier)
	svc.SetLocker(noLock)
	svc.SetIntervalDays(30)
	svc.SetClock(func() time.Time { return now })

	return &fixture{
		store:    store,
		svc:      svc,
		billing:  billingSvc,
		provider: provider,
		notifier: notifier,
		user:     store.SeedUser("driver@example.com"),
		car:      store.SeedCar("Santa Fe", map[int]int64{1: 700000, 3: 600000}, 0),
	}
}

func (f *fixture) fund(t *testing.T, amount int64) {
	t.Helper()
	require.NoError(t, f.store.Transaction(context.Background(), func(repos *repository.Repositories) error {
		return points.Append(repos, &models.PointTransaction{UserID: f.user.ID, Amount: amount, TransactionType: models.POINT_DEPOSIT})
	}))
}

func (f *fixture) coupon(t *testing.T, rate int) *models.UserCoupon {
	t.Helper()
	ctx := context.Background()
	svc := coupon.NewService(f.store, f.store.Repositories())
	svc.SetClock(func() time.Time { return now })
	c := &models.Coupon{
		Service:      models.SERVICE_SUBSCRIPTION,
		Name:         "Welcome",
		DiscountType: models.DISCOUNT_PERCENTAGE,
		DiscountRate: &rate,
		ValidTo:      now.AddDate(0, 1, 0),
	}
	require.NoError(t, svc.Create(ctx, c))
	uc, err := svc.Redeem(ctx, f.user.ID, c.Code, models.SERVICE_SUBSCRIPTION)
	require.NoError(t, err)
	return uc
}

func (f *fixture) billingID(t *testing.T) *uint {
	t.Helper()
	b, err := f.billing.RegisterBilling(context.Background(), f.user.ID, models.VENDOR_TOSS, billing.Credentials{AuthKey: "auth", CustomerKey: "cust"})
	require.NoError(t, err)
	return &b.ID
}

func (f *fixture) balance(t *testing.T) int64 {
	t.Helper()
	u, err := f.store.Repositories().User.GetByID(f.user.ID)
	require.NoError(t, err)
	return u.Point
}

func (f *fixture) userCoupon(t *testing.T, id uint) *models.UserCoupon {
	t.Helper()
	uc, err := f.store.Repositories().Coupon.GetUserCoupon(id)
	require.NoError(t, err)
	return uc
}

func (f *fixture) reloadCar(t *testing.T) *models.Car {
	t.Helper()
	car, err := f.store.Repositories().Car.GetByID(f.car.ID)
	require.NoError(t, err)
	return car
}

func TestCreateRequestBindsCouponAndPoints(t *testing.T) {
	f := setup(t)
	f.fund(t, 1000)
	uc := f.coupon(t, 10)

	req, err := f.svc.CreateRequest(context.Background(), f.user.ID, subscription.RequestInput{
		CarID:        f.car.ID,
		Month:        3,
		StartDate:    now,
		UserCouponID: &uc.ID,
		PointAmount:  400,
		BillingID:    f.billingID(t),
	})
	require.NoError(t, err)

	assert.True(t, req.IsActive)
	assert.Equal(t, int64(600000), req.MonthlyFee)
	assert.Equal(t, int64(60000), req.DiscountAmount)
	assert.Equal(t, int64(400), req.PointUsed())
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), req.EndDate)

	require.NotNil(t, req.PointTransaction)
	assert.Equal(t, models.POINT_SUBSCRIPTION, req.PointTransaction.TransactionType)
	require.NotNil(t, req.PointTransaction.TransactionID)
	assert.Equal(t, req.ID, *req.PointTransaction.TransactionID)

	assert.Equal(t, int64(600), f.balance(t))
	assert.True(t, f.userCoupon(t, uc.ID).IsUsed())

	car := f.reloadCar(t)
	require.NotNil(t, car.SubscriptionAvailableFrom)
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), *car.SubscriptionAvailableFrom)

	assert.Contains(t, f.notifier.emails, "driver@example.com: Subscription request received")
}

func TestCreateRequestInsufficientPointsLeavesNothingBehind(t *testing.T) {
	f := setup(t)
	f.fund(t, 1000)
	uc := f.coupon(t, 10)

	_, err := f.svc.CreateRequest(context.Background(), f.user.ID, subscription.RequestInput{
		CarID:        f.car.ID,
		Month:        1,
		StartDate:    now,
		UserCouponID: &uc.ID,
		PointAmount:  1500,
	})
	assert.ErrorIs(t, err, points.ErrInsufficientPoints)

	assert.Equal(t, int64(1000), f.balance(t))
	assert.False(t, f.userCoupon(t, uc.ID).IsUsed(), "coupon use rolls back with the request")
	list, err := f.svc.ListRequests(context.Background(), f.user.ID, false)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Nil(t, f.reloadCar(t).SubscriptionAvailableFrom)
}

func TestCreateRequestValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   subscription.RequestInput
		want error
	}{
		{"unpriced month", subscription.RequestInput{CarID: f.car.ID, Month: 12, StartDate: now}, models.ErrMonthNotPriced},
		{"invalid month", subscription.RequestInput{CarID: f.car.ID, Month: 2, StartDate: now}, models.ErrInvalidMonth},
		{"past start", subscription.RequestInput{CarID: f.car.ID, Month: 1, StartDate: now.AddDate(0, 0, -3)}, subscription.ErrStartInPast},
		{"negative points", subscription.RequestInput{CarID: f.car.ID, Month: 1, StartDate: now, PointAmount: -5}, subscription.ErrInvalidPointAmount},
		{"unknown car", subscription.RequestInput{CarID: 9999, Month: 1, StartDate: now}, gorm.ErrRecordNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateRequest(ctx, f.user.ID, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreateRequestRejectsBookedCar(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.CreateRequest(ctx, f.user.ID, subscription.RequestInput{CarID: f.car.ID, Month: 1, StartDate: now})
	require.NoError(t, err)

	other := f.store.SeedUser("second@example.com")
	_, err = f.svc.CreateRequest(ctx, other.ID, subscription.RequestInput{CarID: f.car.ID, Month: 1, StartDate: now.AddDate(0, 0, 10)})
	assert.ErrorIs(t, err, models.ErrCarNotAvailable)
}

func TestDeleteRequestReturnsCouponAndPoints(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fund(t, 1000)
	uc := f.coupon(t, 10)

	req, err := f.svc.CreateRequest(ctx, f.user.ID, subscription.RequestInput{
		CarID: f.car.ID, Month: 1, StartDate: now, UserCouponID: &uc.ID, PointAmount: 300,
	})
	require.NoError(t, err)
	ptID := *req.PointTransactionID

	other := f.store.SeedUser("intruder@example.com")
	assert.ErrorIs(t, f.svc.DeleteRequest(ctx, other.ID, req.ID), gorm.ErrRecordNotFound)

	require.NoError(t, f.svc.DeleteRequest(ctx, f.user.ID, req.ID))

	assert.False(t, f.userCoupon(t, uc.ID).IsUsed())
	assert.Equal(t, int64(1000), f.balance(t))
	_, err = f.store.Repositories().Point.GetByID(ptID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Nil(t, f.reloadCar(t).SubscriptionAvailableFrom)
}

func TestUpdateRequestRebooksPointsAndCoupon(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fund(t, 1000)
	first := f.coupon(t, 10)

	req, err := f.svc.CreateRequest(ctx, f.user.ID, subscription.RequestInput{
		CarID: f.car.ID, Month: 1, StartDate: now, UserCouponID: &first.ID, PointAmount: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500), f.balance(t))

	second := f.coupon(t, 20)
	month := 3
	amount := int64(800)
	updated, err := f.svc.UpdateRequest(ctx, f.user.ID, req.ID, subscription.UpdateInput{
		Month:        &month,
		UserCouponID: &second.ID,
		PointAmount:  &amount,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, updated.Month)
	assert.Equal(t, int64(600000), updated.MonthlyFee)
	assert.Equal(t, int64(120000), updated.DiscountAmount)
	assert.Equal(t, int64(800), updated.PointUsed())
	assert.Equal(t, int64(200), f.balance(t))
	assert.False(t, f.userCoupon(t, first.ID).IsUsed())
	assert.True(t, f.userCoupon(t, second.ID).IsUsed())

	zero := int64(0)
	updated, err = f.svc.UpdateRequest(ctx, f.user.ID, req.ID, subscription.UpdateInput{RemoveCoupon: true, PointAmount: &zero})
	require.NoError(t, err)
	assert.Nil(t, updated.UserCouponID)
	assert.Zero(t, updated.DiscountAmount)
	assert.Zero(t, updated.PointUsed())
	assert.Equal(t, int64(1000), f.balance(t))
	assert.False(t, f.userCoupon(t, second.ID).IsUsed())
}

func TestUpdateRequestTooManyPointsKeepsOldBooking(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fund(t, 1000)

	req, err := f.svc.CreateRequest(ctx, f.user.ID, subscription.RequestInput{CarID: f.car.ID, Month: 1, StartDate: now, PointAmount: 500})
	require.NoError(t, err)

	amount := int64(1200)
	_, err = f.svc.UpdateRequest(ctx, f.user.ID, req.ID, subscription.UpdateInput{PointAmount: &amount})
	assert.ErrorIs(t, err, points.ErrInsufficientPoints)

	got, err := f.svc.GetRequest(ctx, f.user.ID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.PointUsed())
	assert.Equal(t, int64(500), f.balance(t))
}

func TestContractLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	req, err := f.svc.CreateRequest(ctx, f.user.ID, subscription.RequestInput{
		CarID: f.car.ID, Month: 1, StartDate: now, BillingID: f.billingID(t),
	})
	require.NoError(t, err)

	sub, err := f.svc.CreateContract(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, sub.SchedulePaymentDate)
	assert.Equal(t, models.DateOf(now), *sub.SchedulePaymentDate)
	assert.False(t, sub.Request.IsActive)

	_, err = f.svc.CreateContract(ctx, req.ID)
	assert.ErrorIs(t, err, subscription.ErrRequestClosed)
	assert.ErrorIs(t, f.svc.DeleteRequest(ctx, f.user.ID, req.ID), subscription.ErrHasContract)

	contracts, err := f.svc.ListContracts(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, contracts, 1)

	require.NoError(t, f.svc.DeleteContract(ctx, sub.ID))
	got, err := f.svc.GetRequest(ctx, f.user.ID, req.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive, "request is pending again")
	car := f.reloadCar(t)
	require.NotNil(t, car.SubscriptionAvailableFrom)
	assert.Equal(t, models.DateOf(req.EndDate).AddDate(0, 0, 1), *car.SubscriptionAvailableFrom)

	require.NoError(t, f.svc.DeleteRequest(ctx, f.user.ID, req.ID))
	assert.Nil(t, f.reloadCar(t).SubscriptionAvailableFrom)
}

func TestCreateContractRequiresBilling(t *testing.T) {
	f := setup(t)
	req, err := f.svc.CreateRequest(context.Background(), f.user.ID, subscription.RequestInput{CarID: f.car.ID, Month: 1, StartDate: now})
	require.NoError(t, err)

	_, err = f.svc.CreateContract(context.Background(), req.ID)
	assert.ErrorIs(t, err, subscription.ErrBillingRequired)
}

func TestUpdateContractMovesRequest(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	billingID := f.billingID(t)

	first, err := f.svc.CreateRequest(ctx, f.user.ID, subscription.RequestInput{CarID: f.car.ID, Month: 1, StartDate: now, BillingID: billingID})
	require.NoError(t, err)
	otherCar := f.store.SeedCar("Palisade", map[int]int64{1: 900000}, 0)
	second, err := f.svc.CreateRequest(ctx, f.user.ID, subscription.RequestInput{CarID: otherCar.ID, Month: 1, StartDate: now, BillingID: billingID})
	require.NoError(t, err)

	sub, err := f.svc.CreateContract(ctx, first.ID)
	require.NoError(t, err)

	moved, err := f.svc.UpdateContract(ctx, sub.ID, subscription.ContractInput{RequestID: &second.ID})
	require.NoError(t, err)
	assert.Equal(t, second.ID, moved.RequestID)

	a, err := f.svc.GetRequest(ctx, f.user.ID, first.ID)
	require.NoError(t, err)
	b, err := f.svc.GetRequest(ctx, f.user.ID, second.ID)
	require.NoError(t, err)
	assert.True(t, a.IsActive)
	assert.False(t, b.IsActive)
}
