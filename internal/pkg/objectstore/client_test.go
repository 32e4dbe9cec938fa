package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	key := ObjectKey("/reviews/", ".JPG", time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(key, "reviews/2024/03/"), key)
	assert.True(t, strings.HasSuffix(key, ".jpg"), key)
	assert.NotEqual(t, key, ObjectKey("reviews", ".jpg", time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)))
}

func TestURLFor(t *testing.T) {
	cfg := &Config{BucketName: "vahana", Region: "ap-northeast-2"}
	assert.Equal(t, "https://vahana.s3.ap-northeast-2.amazonaws.com/a/b.png", cfg.URLFor("a/b.png"))

	cfg.EndpointURL = "http://minio:9000/"
	assert.Equal(t, "http://minio:9000/vahana/a/b.png", cfg.URLFor("a/b.png"))

	cfg.PublicURL = "https://cdn.vahana.kr/"
	assert.Equal(t, "https://cdn.vahana.kr/a/b.png", cfg.URLFor("a/b.png"))
}

func TestLoadConfigRequiresCredentials(t *testing.T) {
	t.Setenv("S3_ENABLED", "true")
	t.Setenv("S3_ACCESS_KEY_ID", "")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("S3_ENABLED", "false")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
}

func TestLocalPutAndDelete(t *testing.T) {
	dir := t.TempDir()
	store := &Local{Root: dir, URLPrefix: "/uploads"}

	url, err := store.Put(context.Background(), "reviews/2024/03/x.png", "image/png", strings.NewReader("png"), 3)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/reviews/2024/03/x.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "reviews", "2024", "03", "x.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	key := KeyFromURL("/uploads", url)
	assert.Equal(t, "reviews/2024/03/x.png", key)
	require.NoError(t, store.Delete(context.Background(), key))
	require.NoError(t, store.Delete(context.Background(), key))

	_, err = store.Put(context.Background(), "../escape.png", "image/png", strings.NewReader("x"), 1)
	assert.Error(t, err)
	assert.Equal(t, "", KeyFromURL("/uploads", "https://elsewhere/x.png"))
}
