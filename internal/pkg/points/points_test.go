package points_test

import (
	"context"
	"testing"
	"time"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/app/repository"
	"github.com/ManuelReschke/Vahana/app/repository/memory"
	"github.com/ManuelReschke/Vahana/internal/pkg/points"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*points.Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := points.NewService(store, store.Repositories())
	svc.SetClock(func() time.Time { return now })
	return svc, store
}

func assertBalance(t *testing.T, store *memory.Store, userID uint, want int64) {
	t.Helper()
	repos := store.Repositories()
	u, err := repos.User.GetByID(userID)
	require.NoError(t, err)
	sum, err := repos.Point.SumActive(userID)
	require.NoError(t, err)
	assert.Equal(t, want, u.Point, "cached balance")
	assert.Equal(t, want, sum, "ledger sum")
}

func TestAppendKeepsCacheInSync(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	u := store.SeedUser("ledger@example.com")

	_, err := svc.Grant(ctx, u.ID, 1000, models.POINT_DEPOSIT, "welcome")
	require.NoError(t, err)
	assertBalance(t, store, u.ID, 1000)

	_, err = svc.Grant(ctx, u.ID, -400, models.POINT_WITHDRAW, "")
	require.NoError(t, err)
	assertBalance(t, store, u.ID, 600)

	list, total, err := svc.List(ctx, u.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(-400), list[0].Amount)
}

func TestAppendRejectsNegativeBalance(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	u := store.SeedUser("poor@example.com")
	_, err := svc.Grant(ctx, u.ID, 1000, models.POINT_DEPOSIT, "")
	require.NoError(t, err)

	_, err = svc.Grant(ctx, u.ID, -1500, models.POINT_WITHDRAW, "")
	assert.ErrorIs(t, err, points.ErrInsufficientPoints)
	assertBalance(t, store, u.ID, 1000)

	_, total, err := svc.List(ctx, u.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "rejected entry is not written")
}

func TestAppendValidates(t *testing.T) {
	_, store := setup(t)
	u := store.SeedUser("zero@example.com")
	repos := store.Repositories()

	err := points.Append(repos, &models.PointTransaction{UserID: u.ID, Amount: 0, TransactionType: models.POINT_OTHER})
	assert.ErrorIs(t, err, models.ErrPointAmountZero)

	err = points.Append(repos, &models.PointTransaction{UserID: u.ID, Amount: 10, TransactionType: "GIFT"})
	assert.Error(t, err)
}

func TestGrantRejectsReservedTypes(t *testing.T) {
	svc, store := setup(t)
	u := store.SeedUser("reserved@example.com")
	_, err := svc.Grant(context.Background(), u.ID, 100, models.POINT_SUBSCRIPTION, "")
	assert.ErrorIs(t, err, points.ErrInvalidType)
}

func TestRemoveRecomputes(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	u := store.SeedUser("remove@example.com")
	deposit, err := svc.Grant(ctx, u.ID, 1000, models.POINT_DEPOSIT, "")
	require.NoError(t, err)

	var spent models.PointTransaction
	require.NoError(t, store.Transaction(ctx, func(repos *repository.Repositories) error {
		spent = models.PointTransaction{UserID: u.ID, Amount: -300, TransactionType: models.POINT_OTHER}
		return points.Append(repos, &spent)
	}))
	assertBalance(t, store, u.ID, 700)

	// Drift the cache; the next write must heal it rather than compound it.
	require.NoError(t, store.Repositories().User.UpdatePoint(u.ID, 5))

	require.NoError(t, store.Transaction(ctx, func(repos *repository.Repositories) error {
		return points.Remove(repos, spent.ID)
	}))
	assertBalance(t, store, u.ID, 1000)

	err = store.Transaction(ctx, func(repos *repository.Repositories) error {
		require.NoError(t, points.Append(repos, &models.PointTransaction{UserID: u.ID, Amount: -900, TransactionType: models.POINT_OTHER}))
		return points.Remove(repos, deposit.ID)
	})
	assert.ErrorIs(t, err, points.ErrInsufficientPoints, "removing the deposit would leave a negative balance")
	assertBalance(t, store, u.ID, 1000)

	assert.NoError(t, points.Remove(store.Repositories(), 424242))
}

func TestFinalize(t *testing.T) {
	svc, store := setup(t)
	u := store.SeedUser("final@example.com")
	tx, err := svc.Grant(context.Background(), u.ID, 50, models.POINT_OTHER, "")
	require.NoError(t, err)

	repos := store.Repositories()
	require.NoError(t, points.Finalize(repos, tx.ID, models.POINT_BUTLER, 77))
	got, err := repos.Point.GetByID(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.POINT_BUTLER, got.TransactionType)
	require.NotNil(t, got.TransactionID)
	assert.Equal(t, uint(77), *got.TransactionID)
}

func TestRedeemPointCoupon(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	a := store.SeedUser("a@example.com")
	b := store.SeedUser("b@example.com")
	c := store.SeedUser("c@example.com")

	pc := &models.PointCoupon{Name: "Launch", Amount: 3000, UsageLimit: 2, ValidTo: now.AddDate(0, 0, 7)}
	require.NoError(t, svc.CreatePointCoupon(ctx, pc))
	assert.Len(t, pc.Code, points.CouponCodeLength)

	tx, err := svc.RedeemPointCoupon(ctx, a.ID, pc.Code)
	require.NoError(t, err)
	assert.Equal(t, models.POINT_COUPON, tx.TransactionType)
	assertBalance(t, store, a.ID, 3000)

	_, err = svc.RedeemPointCoupon(ctx, a.ID, pc.Code)
	assert.ErrorIs(t, err, points.ErrUserUsageLimit)

	_, err = svc.RedeemPointCoupon(ctx, b.ID, pc.Code)
	require.NoError(t, err)

	_, err = svc.RedeemPointCoupon(ctx, c.ID, pc.Code)
	assert.ErrorIs(t, err, points.ErrUsageLimit)
	assertBalance(t, store, c.ID, 0)

	balance, err := svc.Balance(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), balance)
}

func TestRedeemExpiredPointCoupon(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	u := store.SeedUser("late@example.com")
	pc := &models.PointCoupon{Name: "Old", Amount: 100, ValidTo: now.AddDate(0, 0, 1)}
	require.NoError(t, svc.CreatePointCoupon(ctx, pc))

	svc.SetClock(func() time.Time { return now.AddDate(0, 0, 2) })
	_, err := svc.RedeemPointCoupon(ctx, u.ID, pc.Code)
	assert.ErrorIs(t, err, points.ErrInvalidCoupon)
}
