package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPortOneTestClient(t *testing.T, handler http.HandlerFunc) *PortOneClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &PortOneClient{APISecret: "po_secret", StoreID: "store-1", APIBaseURL: srv.URL, HTTPClient: srv.Client()}
}

func TestPortOneClient_IssueBillingKey(t *testing.T) {
	c := newPortOneTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PortOne po_secret", r.Header.Get("Authorization"))
		assert.Equal(t, "/billing-keys/bk-9", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ISSUED","billingKey":"bk-9","customer":{"id":"cust-9"},"methods":[{"card":{"name":"KB","number":"5365****","type":"CREDIT","ownerType":"PERSONAL","issuer":"KOOKMIN","publisher":"KOOKMIN"}}]}`))
	})

	issued, err := c.IssueBillingKey(context.Background(), Credentials{BillingKey: "bk-9"})
	require.NoError(t, err)
	assert.Equal(t, "cust-9", issued.CustomerKey)
	assert.Equal(t, "KB", issued.CardCompany)
}

func TestPortOneClient_IssueBillingKeyNotIssued(t *testing.T) {
	c := newPortOneTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"DELETED","billingKey":"bk-9"}`))
	})

	_, err := c.IssueBillingKey(context.Background(), Credentials{BillingKey: "bk-9"})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "BILLING_KEY_NOT_ISSUED", pe.Code)
}

func TestPortOneClient_Charge(t *testing.T) {
	c := newPortOneTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/sub-1-20240301/billing-key", r.URL.Path)
		var in map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "store-1", in["storeId"])
		assert.Equal(t, "KRW", in["currency"])
		assert.EqualValues(t, 550000, in["amount"].(map[string]interface{})["total"])
		_, _ = w.Write([]byte(`{"payment":{"pgTxId":"tx-1","paidAt":"2024-03-01T01:00:00Z"}}`))
	})

	res, err := c.Charge(context.Background(), ChargeRequest{OrderID: "sub-1-20240301", OrderName: "Monthly", Amount: 550000, BillingKey: "bk-9"})
	require.NoError(t, err)
	assert.Equal(t, models.PAYMENT_DONE, res.Status)
	assert.Equal(t, "sub-1-20240301", res.PaymentKey)
	assert.Equal(t, "tx-1", res.ApproveNo)
}

func TestPortOneClient_Error(t *testing.T) {
	c := newPortOneTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"type":"ALREADY_PAID","message":"already paid"}`))
	})

	_, err := c.Charge(context.Background(), ChargeRequest{OrderID: "o", Amount: 1, BillingKey: "bk"})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "ALREADY_PAID", pe.Code)
}

func TestPortOnePaymentStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PAID", models.PAYMENT_DONE},
		{"CANCELLED", models.PAYMENT_CANCELED},
		{"PARTIAL_CANCELLED", models.PAYMENT_PARTIAL_CANCELED},
		{"FAILED", models.PAYMENT_ABORTED},
		{"READY", models.PAYMENT_READY},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PortOnePaymentStatus(tt.in), tt.in)
	}
}
