package coupon_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/app/repository"
	"github.com/ManuelReschke/Vahana/app/repository/memory"
	"github.com/ManuelReschke/Vahana/internal/pkg/coupon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*coupon.Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := coupon.NewService(store, store.Repositories())
	svc.SetClock(func() time.Time { return now })
	return svc, store
}

func percentCoupon(service string, rate int) *models.Coupon {
	return &models.Coupon{
		Service:      service,
		Name:         "Spring",
		DiscountType: models.DISCOUNT_PERCENTAGE,
		DiscountRate: &rate,
		ValidTo:      now.AddDate(0, 1, 0),
	}
}

func TestCreateGeneratesCode(t *testing.T) {
	svc, _ := setup(t)
	c := percentCoupon(models.SERVICE_SUBSCRIPTION, 10)
	require.NoError(t, svc.Create(context.Background(), c))

	assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{8}$`), c.Code)
	assert.True(t, c.IsActive)
	assert.Equal(t, 1, c.UsageLimit)
	assert.Equal(t, now, c.ValidFrom)

	found, err := svc.Lookup(context.Background(), c.Code, models.SERVICE_SUBSCRIPTION)
	require.NoError(t, err)
	assert.Equal(t, c.ID, found.ID)
}

func TestCreateRejectsInvalidCampaign(t *testing.T) {
	svc, _ := setup(t)
	c := percentCoupon(models.SERVICE_BUTLER, 0)
	assert.ErrorIs(t, svc.Create(context.Background(), c), models.ErrDiscountRateRequired)

	c = percentCoupon(models.SERVICE_BUTLER, 10)
	c.ValidTo = now
	assert.ErrorIs(t, svc.Create(context.Background(), c), models.ErrValidityWindow)
}

func TestRedeemLimits(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	u1 := store.SeedUser("one@example.com")
	u2 := store.SeedUser("two@example.com")
	u3 := store.SeedUser("three@example.com")

	c := percentCoupon(models.SERVICE_SUBSCRIPTION, 10)
	c.UsageLimit = 2
	require.NoError(t, svc.Create(ctx, c))

	uc, err := svc.Redeem(ctx, u1.ID, c.Code, models.SERVICE_SUBSCRIPTION)
	require.NoError(t, err)
	assert.Equal(t, u1.ID, uc.UserID)

	_, err = svc.Redeem(ctx, u1.ID, c.Code, models.SERVICE_SUBSCRIPTION)
	assert.ErrorIs(t, err, coupon.ErrAlreadyHeld)

	require.NoError(t, store.Transaction(ctx, func(repos *repository.Repositories) error {
		return coupon.MarkUsed(repos, uc.ID, now)
	}))
	_, err = svc.Redeem(ctx, u1.ID, c.Code, models.SERVICE_SUBSCRIPTION)
	assert.ErrorIs(t, err, coupon.ErrUserUsageLimit)

	_, err = svc.Redeem(ctx, u2.ID, c.Code, models.SERVICE_SUBSCRIPTION)
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, u3.ID, c.Code, models.SERVICE_SUBSCRIPTION)
	assert.ErrorIs(t, err, coupon.ErrUsageLimit)

	held, err := svc.List(ctx, u1.ID, "subscription")
	require.NoError(t, err)
	assert.Len(t, held, 1)
}

func TestRedeemChecksServiceAndWindow(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	u := store.SeedUser("svc@example.com")

	c := percentCoupon(models.SERVICE_SUBSCRIPTION, 10)
	require.NoError(t, svc.Create(ctx, c))

	_, err := svc.Redeem(ctx, u.ID, c.Code, models.SERVICE_BUTLER)
	assert.ErrorIs(t, err, coupon.ErrWrongService)

	_, err = svc.Redeem(ctx, u.ID, c.Code, "RENTAL")
	assert.ErrorIs(t, err, coupon.ErrUnsupportedScope)

	svc.SetClock(func() time.Time { return now.AddDate(0, 2, 0) })
	_, err = svc.Redeem(ctx, u.ID, c.Code, models.SERVICE_SUBSCRIPTION)
	assert.ErrorIs(t, err, coupon.ErrInvalidCoupon)
}

func TestBind(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	owner := store.SeedUser("owner@example.com")
	other := store.SeedUser("other@example.com")
	car := store.SeedCar("Avante", map[int]int64{1: 500000}, 0)
	elsewhere := store.SeedCar("Sonata", map[int]int64{1: 700000}, 0)

	open := percentCoupon(models.SERVICE_SUBSCRIPTION, 10)
	require.NoError(t, svc.Create(ctx, open))
	scoped := percentCoupon(models.SERVICE_SUBSCRIPTION, 20)
	scoped.CarIDs = []uint{elsewhere.ID}
	require.NoError(t, svc.Create(ctx, scoped))

	openUC, err := svc.Redeem(ctx, owner.ID, open.Code, models.SERVICE_SUBSCRIPTION)
	require.NoError(t, err)
	scopedUC, err := svc.Redeem(ctx, owner.ID, scoped.Code, models.SERVICE_SUBSCRIPTION)
	require.NoError(t, err)

	repos := store.Repositories()

	_, discount, err := coupon.Bind(repos, owner.ID, openUC.ID, models.SERVICE_SUBSCRIPTION, &car, 500000, 1, now)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), discount)

	_, _, err = coupon.Bind(repos, other.ID, openUC.ID, models.SERVICE_SUBSCRIPTION, &car, 500000, 1, now)
	assert.ErrorIs(t, err, coupon.ErrNotOwner)

	_, _, err = coupon.Bind(repos, owner.ID, openUC.ID, models.SERVICE_BUTLER, &car, 500000, 0, now)
	assert.ErrorIs(t, err, coupon.ErrWrongService)

	_, _, err = coupon.Bind(repos, owner.ID, scopedUC.ID, models.SERVICE_SUBSCRIPTION, &car, 500000, 1, now)
	assert.ErrorIs(t, err, coupon.ErrNotApplicable)

	_, discount, err = coupon.Bind(repos, owner.ID, scopedUC.ID, models.SERVICE_SUBSCRIPTION, &elsewhere, 700000, 1, now)
	require.NoError(t, err)
	assert.Equal(t, int64(140000), discount)
}

func TestMarkUsedAndRelease(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	u := store.SeedUser("use@example.com")
	c := percentCoupon(models.SERVICE_BUTLER, 10)
	require.NoError(t, svc.Create(ctx, c))
	uc, err := svc.Redeem(ctx, u.ID, c.Code, models.SERVICE_BUTLER)
	require.NoError(t, err)

	repos := store.Repositories()
	require.NoError(t, coupon.MarkUsed(repos, uc.ID, now))
	assert.ErrorIs(t, coupon.MarkUsed(repos, uc.ID, now), coupon.ErrInvalidCoupon, "a used coupon cannot be used again")

	require.NoError(t, coupon.Release(repos, uc.ID))
	require.NoError(t, coupon.Release(repos, uc.ID))
	require.NoError(t, coupon.Release(repos, 9999))

	stored, err := repos.Coupon.GetUserCoupon(uc.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsUsed())
}

func TestRebind(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	u := store.SeedUser("rebind@example.com")
	car := store.SeedCar("Tucson", map[int]int64{3: 600000}, 0)

	first := percentCoupon(models.SERVICE_SUBSCRIPTION, 10)
	require.NoError(t, svc.Create(ctx, first))
	second := percentCoupon(models.SERVICE_SUBSCRIPTION, 50)
	require.NoError(t, svc.Create(ctx, second))

	a, err := svc.Redeem(ctx, u.ID, first.Code, models.SERVICE_SUBSCRIPTION)
	require.NoError(t, err)
	b, err := svc.Redeem(ctx, u.ID, second.Code, models.SERVICE_SUBSCRIPTION)
	require.NoError(t, err)

	repos := store.Repositories()
	require.NoError(t, coupon.MarkUsed(repos, a.ID, now))

	discount, err := coupon.Rebind(repos, u.ID, &a.ID, &a.ID, models.SERVICE_SUBSCRIPTION, &car, 600000, 3, now)
	require.NoError(t, err)
	assert.Equal(t, int64(60000), discount, "keeping the coupon recomputes its discount")

	discount, err = coupon.Rebind(repos, u.ID, &a.ID, &b.ID, models.SERVICE_SUBSCRIPTION, &car, 600000, 3, now)
	require.NoError(t, err)
	assert.Equal(t, int64(300000), discount)

	oldUC, err := repos.Coupon.GetUserCoupon(a.ID)
	require.NoError(t, err)
	assert.False(t, oldUC.IsUsed())
	newUC, err := repos.Coupon.GetUserCoupon(b.ID)
	require.NoError(t, err)
	assert.True(t, newUC.IsUsed())

	discount, err = coupon.Rebind(repos, u.ID, &b.ID, nil, models.SERVICE_SUBSCRIPTION, &car, 600000, 3, now)
	require.NoError(t, err)
	assert.Zero(t, discount)
	newUC, err = repos.Coupon.GetUserCoupon(b.ID)
	require.NoError(t, err)
	assert.False(t, newUC.IsUsed())
}
