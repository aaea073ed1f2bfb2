package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-reconciliation-service/internal/models"
)

func TestNormalizeWaveStatus(t *testing.T) {
	tests := []struct {
		name           string
		paymentStatus  string
		checkoutStatus string
		want           string
	}{
		{"succeeded", "succeeded", "", models.TxStatusCompleted},
		{"processed", "processed", "open", models.TxStatusCompleted},
		{"uppercase success", "SUCCEEDED", "", models.TxStatusCompleted},
		{"cancelled", "cancelled", "", models.TxStatusFailed},
		{"declined", "declined", "", models.TxStatusFailed},
		{"checkout complete fallback", "", "complete", models.TxStatusCompleted},
		{"checkout expired", "", "expired", models.TxStatusFailed},
		{"processing stays pending", "processing", "open", models.TxStatusPending},
		{"unknown status stays pending", "something_new", "", models.TxStatusPending},
		{"empty stays pending", "", "", models.TxStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeWaveStatus(tt.paymentStatus, tt.checkoutStatus))
		})
	}
}

func TestWaveClient_CheckStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions/cos-123", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cos-123","payment_status":"succeeded","checkout_status":"complete","transaction_id":"TXN-9"}`))
	}))
	defer server.Close()

	client := NewWaveClient(server.URL, "test-key", 2*time.Second)

	result, err := client.CheckStatus(context.Background(), "cos-123")
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusCompleted, result.Status)
	assert.Equal(t, "TXN-9", result.ExternalID)
	assert.Equal(t, "succeeded", result.RawStatus)
}

func TestWaveClient_CheckStatusUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"not-found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewWaveClient(server.URL, "test-key", 2*time.Second)

	_, err := client.CheckStatus(context.Background(), "cos-missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestWaveClient_CheckStatusTimeout(t *testing.T) {
	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer server.Close()
	defer close(blocked)

	client := NewWaveClient(server.URL, "test-key", 50*time.Millisecond)

	_, err := client.CheckStatus(context.Background(), "cos-slow")
	require.Error(t, err, "a stuck aggregator must not hang the caller")
}
