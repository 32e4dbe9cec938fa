package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ManuelReschke/Vahana/internal/pkg/env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEnv(t *testing.T, values map[string]string) {
	t.Helper()
	prev := env.Env
	env.Env = values
	t.Cleanup(func() { env.Env = prev })
}

func TestSendSMS_PostsToGateway(t *testing.T) {
	var got smsMessage
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	withEnv(t, map[string]string{"SMS_API_URL": srv.URL, "SMS_API_KEY": "k", "SMS_SENDER": "0212345678"})

	require.NoError(t, SendSMS(context.Background(), "01012345678", "code 123456"))
	assert.Equal(t, "Bearer k", auth)
	assert.Equal(t, "01012345678", got.To)
	assert.Equal(t, "0212345678", got.From)
	assert.Equal(t, "code 123456", got.Message)
}

func TestSendSMS_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	withEnv(t, map[string]string{"SMS_API_URL": srv.URL})

	err := SendSMS(context.Background(), "01012345678", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=429")
}

func TestSendSMS_NotConfigured(t *testing.T) {
	withEnv(t, map[string]string{})
	assert.Error(t, SendSMS(context.Background(), "01012345678", "m"))
}
