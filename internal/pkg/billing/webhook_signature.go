package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"hash"
	"strconv"
	"strings"
	"time"
)

// WebhookTolerance bounds the age of a signed webhook timestamp.
const WebhookTolerance = 5 * time.Minute

// WebhookHeaders are the Standard Webhooks headers PortOne signs with.
type WebhookHeaders struct {
	ID        string
	Timestamp string
	Signature string
}

// VerifyPortOneWebhookSignature checks a "v1,<base64>" signature over
// "<id>.<timestamp>.<body>". The secret may carry the "whsec_" prefix, in which
// case the remainder is the base64 encoded key.
func VerifyPortOneWebhookSignature(payload []byte, h WebhookHeaders, webhookSecret string, now time.Time) bool {
	id := strings.TrimSpace(h.ID)
	ts := strings.TrimSpace(h.Timestamp)
	secret := strings.TrimSpace(webhookSecret)
	if id == "" || ts == "" || secret == "" || strings.TrimSpace(h.Signature) == "" {
		return false
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	sent := time.Unix(unix, 0)
	if now.Sub(sent) > WebhookTolerance || sent.Sub(now) > WebhookTolerance {
		return false
	}

	key := []byte(secret)
	if strings.HasPrefix(secret, "whsec_") {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
		if err != nil {
			return false
		}
		key = decoded
	}

	signed := make([]byte, 0, len(id)+len(ts)+len(payload)+2)
	signed = append(signed, id...)
	signed = append(signed, '.')
	signed = append(signed, ts...)
	signed = append(signed, '.')
	signed = append(signed, payload...)

	// The header may list several space separated signatures during key rotation.
	for _, candidate := range strings.Fields(h.Signature) {
		version, sig, ok := strings.Cut(candidate, ",")
		if !ok || version != "v1" {
			continue
		}
		decodedSig, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if verifyHMAC(signed, decodedSig, key, sha256.New) {
			return true
		}
	}
	return false
}

func verifyHMAC(payload, expectedSig, secret []byte, hashFunc func() hash.Hash) bool {
	mac := hmac.New(hashFunc, secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expectedSig)
}
