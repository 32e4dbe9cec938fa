package hcaptcha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "secret", r.PostForm.Get("secret"))
		resp := Response{Success: r.PostForm.Get("response") == "good"}
		if !resp.Success {
			resp.ErrorCodes = []string{"invalid-input-response"}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerify(t *testing.T) {
	srv := newServer(t)
	v := &Verifier{Secret: "secret", Endpoint: srv.URL, Client: srv.Client()}
	ctx := context.Background()

	assert.NoError(t, v.Verify(ctx, "good", "10.0.0.1"))

	err := v.Verify(ctx, "bad", "")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "invalid-input-response")

	assert.ErrorIs(t, v.Verify(ctx, "", ""), ErrMissingToken)
}

func TestNewFromEnvDisabledWithoutSecret(t *testing.T) {
	t.Setenv("HCAPTCHA_SECRET", "")
	assert.Nil(t, NewFromEnv())

	t.Setenv("HCAPTCHA_SECRET", "s3cret")
	v := NewFromEnv()
	require.NotNil(t, v)
	assert.Equal(t, DefaultEndpoint, v.Endpoint)
}
