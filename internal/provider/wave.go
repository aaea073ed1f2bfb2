package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"payment-reconciliation-service/internal/models"
)

// WaveClient queries Wave's checkout session API for the status of a
// specific payment attempt.
type WaveClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewWaveClient(baseURL, apiKey string, timeout time.Duration) *WaveClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WaveClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *WaveClient) Name() string {
	return models.MethodWave
}

type waveSessionResponse struct {
	ID             string `json:"id"`
	PaymentStatus  string `json:"payment_status"`
	CheckoutStatus string `json:"checkout_status"`
	TransactionID  string `json:"transaction_id"`
}

func (c *WaveClient) CheckStatus(ctx context.Context, externalID string) (*CheckResult, error) {
	endpoint := fmt.Sprintf("%s/v1/checkout/sessions/%s", c.baseURL, url.PathEscape(externalID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status check request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wave status check failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read wave response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wave status check returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var session waveSessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("failed to decode wave response: %v", err)
	}

	return &CheckResult{
		Status:     NormalizeWaveStatus(session.PaymentStatus, session.CheckoutStatus),
		ExternalID: session.TransactionID,
		RawStatus:  session.PaymentStatus,
	}, nil
}

// NormalizeWaveStatus maps Wave's session fields onto the canonical enum.
// Anything unrecognised stays pending so an API change cannot fabricate a
// terminal outcome.
func NormalizeWaveStatus(paymentStatus, checkoutStatus string) string {
	switch strings.ToLower(paymentStatus) {
	case "succeeded", "success", "processed", "complete", "completed":
		return models.TxStatusCompleted
	case "cancelled", "canceled", "failed", "declined", "error":
		return models.TxStatusFailed
	}

	switch strings.ToLower(checkoutStatus) {
	case "complete", "completed":
		return models.TxStatusCompleted
	case "expired":
		return models.TxStatusFailed
	}

	return models.TxStatusPending
}
