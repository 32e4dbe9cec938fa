package review_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/app/repository/memory"
	"github.com/ManuelReschke/Vahana/internal/pkg/objectstore"
	"github.com/ManuelReschke/Vahana/internal/pkg/review"
	"github.com/ManuelReschke/Vahana/internal/pkg/upload"
)

var (
	now     = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	pngData = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{1}, 600)...)
)

type fixture struct {
	store  *memory.Store
	svc    *review.Service
	dir    string
	author models.User
	other  models.User
	car    models.Car
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	dir := t.TempDir()
	svc := review.NewService(store.Repositories(), &objectstore.Local{Root: dir, URLPrefix: "/uploads"})
	svc.SetClock(func() time.Time { return now })
	return &fixture{
		store:  store,
		svc:    svc,
		dir:    dir,
		author: store.SeedUser("author@example.com"),
		other:  store.SeedUser("other@example.com"),
		car:    store.SeedCar("Avante", map[int]int64{12: 500000}, 0),
	}
}

func pngImage() *review.Image {
	return &review.Image{Filename: "car.png", Size: int64(len(pngData)), Body: bytes.NewReader(pngData)}
}

func (f *fixture) fileFor(url string) string {
	key := objectstore.KeyFromURL("/uploads", url)
	return filepath.Join(f.dir, filepath.FromSlash(key))
}

func TestCreateWithImage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	rv, err := f.svc.Create(ctx, f.author.ID, models.SERVICE_SUBSCRIPTION, f.car.CarModelID, "  Smooth ride  ", pngImage())
	require.NoError(t, err)
	assert.Equal(t, "Smooth ride", rv.Content)
	assert.False(t, rv.IsVerified)
	require.NotEmpty(t, rv.Image)

	data, err := os.ReadFile(f.fileFor(rv.Image))
	require.NoError(t, err)
	assert.Equal(t, pngData, data)

	list, total, err := f.svc.List(ctx, models.SERVICE_SUBSCRIPTION, f.car.CarModelID, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, list, 1)

	_, total, err = f.svc.List(ctx, models.SERVICE_BUTLER, f.car.CarModelID, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCreateMarksContractHoldersVerified(t *testing.T) {
	f := setup(t)
	repos := f.store.Repositories()
	req := &models.SubscriptionRequest{UserID: f.author.ID, CarID: f.car.ID, Month: 12, StartDate: now}
	req.ApplyDefaults()
	require.NoError(t, repos.Subscription.CreateRequest(req))
	require.NoError(t, repos.Subscription.CreateContract(&models.Subscription{
		RequestID: req.ID, StartDate: req.StartDate, EndDate: req.EndDate, IsActive: true,
	}))

	rv, err := f.svc.Create(context.Background(), f.author.ID, models.SERVICE_SUBSCRIPTION, f.car.CarModelID, "Verified", nil)
	require.NoError(t, err)
	assert.True(t, rv.IsVerified)
}

func TestCreateRejects(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.author.ID, "SALE", f.car.CarModelID, "x", nil)
	assert.ErrorIs(t, err, review.ErrUnknownService)

	_, err = f.svc.Create(ctx, f.author.ID, models.SERVICE_BUTLER, 999, "x", nil)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = f.svc.Create(ctx, f.author.ID, models.SERVICE_BUTLER, f.car.CarModelID, "   ", nil)
	assert.Error(t, err)

	html := []byte("<html><body>hi</body></html>")
	_, err = f.svc.Create(ctx, f.author.ID, models.SERVICE_BUTLER, f.car.CarModelID, "x",
		&review.Image{Filename: "car.png", Size: int64(len(html)), Body: bytes.NewReader(html)})
	assert.ErrorIs(t, err, upload.ErrScriptable)

	noStore := review.NewService(f.store.Repositories(), nil)
	_, err = noStore.Create(ctx, f.author.ID, models.SERVICE_BUTLER, f.car.CarModelID, "x", pngImage())
	assert.ErrorIs(t, err, review.ErrNoStore)
}

func TestUpdateReplacesImage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rv, err := f.svc.Create(ctx, f.author.ID, models.SERVICE_BUTLER, f.car.CarModelID, "First", pngImage())
	require.NoError(t, err)
	oldFile := f.fileFor(rv.Image)

	content := "Second"
	_, err = f.svc.Update(ctx, f.other.ID, models.SERVICE_BUTLER, rv.ID, review.UpdateInput{Content: &content})
	assert.ErrorIs(t, err, review.ErrNotAuthor)

	updated, err := f.svc.Update(ctx, f.author.ID, models.SERVICE_BUTLER, rv.ID, review.UpdateInput{Content: &content, Image: pngImage()})
	require.NoError(t, err)
	assert.Equal(t, "Second", updated.Content)
	assert.NotEqual(t, rv.Image, updated.Image)
	assert.NoFileExists(t, oldFile)
	assert.FileExists(t, f.fileFor(updated.Image))

	cleared, err := f.svc.Update(ctx, f.author.ID, models.SERVICE_BUTLER, rv.ID, review.UpdateInput{RemoveImage: true})
	require.NoError(t, err)
	assert.Empty(t, cleared.Image)
	assert.NoFileExists(t, f.fileFor(updated.Image))
}

func TestDeleteHidesReview(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rv, err := f.svc.Create(ctx, f.author.ID, models.SERVICE_BUTLER, f.car.CarModelID, "Bye", nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.LikeReview(ctx, f.other.ID, models.SERVICE_BUTLER, rv.ID, true))

	assert.ErrorIs(t, f.svc.Delete(ctx, f.other.ID, models.SERVICE_BUTLER, rv.ID), review.ErrNotAuthor)
	require.NoError(t, f.svc.Delete(ctx, f.author.ID, models.SERVICE_BUTLER, rv.ID))

	_, err = f.svc.Get(ctx, models.SERVICE_BUTLER, rv.ID, 0)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	stored, err := f.store.Repositories().Review.GetByID(rv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeletedReviewContent, stored.Content)
	likes, err := f.store.Repositories().Review.CountLikes(rv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, likes)
}

func TestLikes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rv, err := f.svc.Create(ctx, f.author.ID, models.SERVICE_SUBSCRIPTION, f.car.CarModelID, "Nice", nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.LikeReview(ctx, f.other.ID, models.SERVICE_SUBSCRIPTION, rv.ID, true))
	require.NoError(t, f.svc.LikeReview(ctx, f.other.ID, models.SERVICE_SUBSCRIPTION, rv.ID, true))

	d, err := f.svc.Get(ctx, models.SERVICE_SUBSCRIPTION, rv.ID, f.other.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, d.Likes)
	assert.True(t, d.IsLiked)

	_, err = f.svc.Get(ctx, models.SERVICE_BUTLER, rv.ID, f.other.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, f.svc.LikeReview(ctx, f.other.ID, models.SERVICE_SUBSCRIPTION, rv.ID, false))
	liked, err := f.svc.IsReviewLiked(ctx, f.other.ID, models.SERVICE_SUBSCRIPTION, rv.ID)
	require.NoError(t, err)
	assert.False(t, liked)

	require.NoError(t, f.svc.LikeModel(ctx, f.other.ID, models.SERVICE_BUTLER, f.car.CarModelID, true))
	liked, err = f.svc.IsModelLiked(ctx, f.other.ID, models.SERVICE_BUTLER, f.car.CarModelID)
	require.NoError(t, err)
	assert.True(t, liked)
	liked, err = f.svc.IsModelLiked(ctx, f.other.ID, models.SERVICE_SUBSCRIPTION, f.car.CarModelID)
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestRequestModel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	m, err := f.svc.RequestModel(ctx, f.author.ID, models.SERVICE_SUBSCRIPTION, " Ioniq 6 ")
	require.NoError(t, err)
	assert.Equal(t, "Ioniq 6", m.Model)
	assert.NotZero(t, m.ID)

	_, err = f.svc.RequestModel(ctx, f.author.ID, models.SERVICE_SUBSCRIPTION, "")
	assert.Error(t, err)
}
