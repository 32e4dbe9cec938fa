package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func signWebhook(id string, ts time.Time, body []byte, key []byte) WebhookHeaders {
	stamp := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id + "." + stamp + "."))
	mac.Write(body)
	return WebhookHeaders{
		ID:        id,
		Timestamp: stamp,
		Signature: "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil)),
	}
}

func TestVerifyPortOneWebhookSignature(t *testing.T) {
	body := []byte(`{"type":"Transaction.Paid"}`)
	key := []byte("super-secret-key")
	secret := "whsec_" + base64.StdEncoding.EncodeToString(key)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	h := signWebhook("msg_1", now, body, key)
	assert.True(t, VerifyPortOneWebhookSignature(body, h, secret, now))

	rotated := h
	rotated.Signature = "v1,bm90LWl0 " + h.Signature
	assert.True(t, VerifyPortOneWebhookSignature(body, rotated, secret, now), "any listed signature may match")

	assert.False(t, VerifyPortOneWebhookSignature([]byte(`{"type":"Transaction.Failed"}`), h, secret, now), "tampered body")
	assert.False(t, VerifyPortOneWebhookSignature(body, h, "whsec_"+base64.StdEncoding.EncodeToString([]byte("other")), now), "wrong key")
	assert.False(t, VerifyPortOneWebhookSignature(body, h, secret, now.Add(6*time.Minute)), "stale timestamp")
	assert.False(t, VerifyPortOneWebhookSignature(body, WebhookHeaders{}, secret, now), "missing headers")
}

func TestVerifyPortOneWebhookSignature_RawSecret(t *testing.T) {
	body := []byte(`{}`)
	now := time.Now()
	h := signWebhook("msg_2", now, body, []byte("plain"))
	assert.True(t, VerifyPortOneWebhookSignature(body, h, "plain", now))
}
