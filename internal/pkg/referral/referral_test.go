package referral_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/app/repository/memory"
	"github.com/ManuelReschke/Vahana/internal/pkg/referral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*referral.Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := referral.NewService(store, store.Repositories())
	svc.SetClock(func() time.Time { return now })
	return svc, store
}

func TestCreateDefaultRewardIsShared(t *testing.T) {
	svc, store := setup(t)
	repos := store.Repositories()
	owner := store.SeedUser("owner@example.com")
	invitee := store.SeedUser("new@example.com")

	ref, err := svc.Create(context.Background(), invitee.ID, strings.ToLower(owner.ReferralCode))
	require.NoError(t, err)
	assert.Equal(t, owner.ID, ref.ReferrerID)
	assert.Equal(t, invitee.ID, ref.RefereeID)
	require.NotNil(t, ref.CouponID)

	c, err := repos.Coupon.GetByID(*ref.CouponID)
	require.NoError(t, err)
	assert.Equal(t, models.SERVICE_SUBSCRIPTION, c.Service)
	require.NotNil(t, c.DiscountRate)
	assert.Equal(t, 5, *c.DiscountRate)
	assert.Equal(t, int64(700000), c.MaxDiscount)
	assert.Equal(t, 2, c.UsageLimit)
	assert.Equal(t, now.Add(30*24*time.Hour), c.ValidTo)
	assert.Len(t, c.Code, 8)

	for _, u := range []models.User{owner, invitee} {
		held, err := repos.Coupon.ListUserCoupons(u.ID, models.SERVICE_SUBSCRIPTION)
		require.NoError(t, err)
		require.Len(t, held, 1, "user %d", u.ID)
		assert.Equal(t, c.ID, held[0].CouponID)
	}

	list, err := svc.List(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateClonesRuleForInviteeOnly(t *testing.T) {
	svc, store := setup(t)
	repos := store.Repositories()
	owner := store.SeedUser("partner@example.com")
	invitee := store.SeedUser("fan@example.com")

	fixed := int64(100000)
	require.NoError(t, repos.Referral.SaveRule(&models.ReferralRule{
		UserID:       owner.ID,
		Name:         "Partner",
		DiscountType: models.DISCOUNT_FIXED,
		Discount:     &fixed,
		UsageLimit:   100,
		ValidFrom:    now.AddDate(0, -1, 0),
		ValidTo:      now.AddDate(0, 6, 0),
	}))

	ref, err := svc.Create(context.Background(), invitee.ID, owner.ReferralCode)
	require.NoError(t, err)

	c, err := repos.Coupon.GetByID(*ref.CouponID)
	require.NoError(t, err)
	assert.Equal(t, "Partner", c.Name)
	assert.Equal(t, models.DISCOUNT_FIXED, c.DiscountType)

	held, err := repos.Coupon.ListUserCoupons(invitee.ID, models.SERVICE_SUBSCRIPTION)
	require.NoError(t, err)
	assert.Len(t, held, 1)
	held, err = repos.Coupon.ListUserCoupons(owner.ID, models.SERVICE_SUBSCRIPTION)
	require.NoError(t, err)
	assert.Empty(t, held)
}

func TestCreateRejects(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	owner := store.SeedUser("owner@example.com")
	invitee := store.SeedUser("new@example.com")

	_, err := svc.Create(ctx, invitee.ID, "NOPE0000")
	assert.ErrorIs(t, err, referral.ErrUnknownCode)

	_, err = svc.Create(ctx, owner.ID, owner.ReferralCode)
	assert.ErrorIs(t, err, referral.ErrSelfReferral)

	_, err = svc.Create(ctx, invitee.ID, owner.ReferralCode)
	require.NoError(t, err)
	_, err = svc.Create(ctx, invitee.ID, owner.ReferralCode)
	assert.ErrorIs(t, err, referral.ErrAlreadyReferred)
}
