package handlers

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"payment-reconciliation-service/internal/provider"
	"payment-reconciliation-service/internal/ratewatch"
	"payment-reconciliation-service/internal/repositories"
	"payment-reconciliation-service/internal/services"
)

const webhookSecretHeader = "X-Webhook-Secret"

const maxWebhookBodyBytes = 1 << 20

type WebhookHandler struct {
	webhookService *services.WebhookService
	secret         string
	rates          *ratewatch.Tracker
	log            *logrus.Logger
}

func NewWebhookHandler(webhookService *services.WebhookService, secret string, rates *ratewatch.Tracker, log *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		secret:         secret,
		rates:          rates,
		log:            log,
	}
}

// HandlePaymentWebhook ingests aggregator payment events. It fails loudly
// only on auth and parse errors; duplicates and unknown event types are
// acked with 200 so the provider stops retrying.
func (h *WebhookHandler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	h.rates.Observe("webhooks/payment")

	if !h.authorized(r) {
		h.log.WithField("remote", r.RemoteAddr).Warn("Webhook rejected: invalid secret")
		respondWithError(w, http.StatusUnauthorized, "Invalid webhook secret")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	evt, err := provider.ParseWebhookEvent(body)
	if err != nil {
		if errors.Is(err, provider.ErrUnknownEventType) {
			// Providers ship event types we do not consume; ack them so
			// they are not redelivered.
			h.log.WithField("event_type", evt.Type).Debug("Ignoring webhook event type")
			respondWithJSON(w, http.StatusOK, map[string]bool{"received": true, "ignored": true})
			return
		}
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.webhookService.HandleEvent(r.Context(), evt)
	if err != nil {
		if errors.Is(err, repositories.ErrInvoiceNotFound) || errors.Is(err, repositories.ErrTransactionNotFound) {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		h.log.WithFields(logrus.Fields{
			"event_id":   evt.EventID,
			"event_type": evt.Type,
			"invoice_id": evt.InvoiceID,
		}).WithError(err).Error("Failed to process webhook event")
		// Non-2xx here is deliberate: the provider retries and the apply
		// path is idempotent.
		respondWithError(w, http.StatusInternalServerError, "Failed to process webhook event")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{
		"received":  true,
		"applied":   result.Applied,
		"duplicate": result.Duplicate,
	})
}

func (h *WebhookHandler) authorized(r *http.Request) bool {
	if h.secret == "" {
		// Refuse everything rather than run an open endpoint.
		return false
	}
	given := r.Header.Get(webhookSecretHeader)
	return subtle.ConstantTimeCompare([]byte(given), []byte(h.secret)) == 1
}
