package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/app/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestTransactionRollsBackOnError(t *testing.T) {
	s := NewStore()
	repos := s.Repositories()
	require.NoError(t, repos.User.Create(&models.User{Email: "a@example.com", Username: "a1"}))

	boom := errors.New("boom")
	err := s.Transaction(context.Background(), func(tx *repository.Repositories) error {
		require.NoError(t, tx.User.Create(&models.User{Email: "b@example.com", Username: "b1"}))
		require.NoError(t, tx.User.UpdatePoint(1, 500))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	exists, _ := repos.User.ExistsByEmail("b@example.com")
	assert.False(t, exists)
	u, err := repos.User.GetByID(1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), u.Point)
}

func TestMissingRowsReturnRecordNotFound(t *testing.T) {
	repos := NewStore().Repositories()
	_, err := repos.Car.GetByID(42)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = repos.Coupon.GetByCode("NOPE")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestLatestEndDateIgnoresPastAndInactive(t *testing.T) {
	s := NewStore()
	repos := s.Repositories()
	today := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	add := func(end time.Time, active bool) {
		req := &models.SubscriptionRequest{UserID: 1, CarID: 7, Month: 1, StartDate: end.AddDate(0, -1, 0), EndDate: end, IsActive: active}
		require.NoError(t, repos.Subscription.CreateRequest(req))
	}
	add(today.AddDate(0, 0, -1), true)
	add(today.AddDate(0, 2, 0), false)
	add(today.AddDate(0, 1, 0), true)

	latest, err := repos.Subscription.LatestEndDate(7, today)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, today.AddDate(0, 1, 0), *latest)

	none, err := repos.Subscription.LatestEndDate(8, today)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestCountUserCouponsCountsUsedAndUnused(t *testing.T) {
	repos := NewStore().Repositories()
	used := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, uc := range []models.UserCoupon{
		{UserID: 1, CouponID: 7, IsActive: true},
		{UserID: 1, CouponID: 7, IsActive: true, UsedAt: &used},
		{UserID: 2, CouponID: 7, IsActive: true},
		{UserID: 1, CouponID: 8, IsActive: true},
	} {
		uc := uc
		require.NoError(t, repos.Coupon.CreateUserCoupon(&uc))
	}

	total, err := repos.Coupon.CountUserCoupons(7, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	perUser, err := repos.Coupon.CountUserCoupons(7, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), perUser)
}
