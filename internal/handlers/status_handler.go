package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"payment-reconciliation-service/internal/ratewatch"
	"payment-reconciliation-service/internal/repositories"
	"payment-reconciliation-service/internal/services"
)

type StatusHandler struct {
	resolver *services.ResolverService
	rates    *ratewatch.Tracker
	log      *logrus.Logger
}

func NewStatusHandler(resolver *services.ResolverService, rates *ratewatch.Tracker, log *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		resolver: resolver,
		rates:    rates,
		log:      log,
	}
}

type statusRequest struct {
	InvoiceID     string `json:"invoiceId"`
	TransactionID string `json:"transactionId"`
}

// GetPaymentStatus serves the status query consumed by the client monitor.
// Identifiers arrive as query params on GET or a JSON body on POST.
func (h *StatusHandler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	h.rates.Observe("payments/status")

	var req statusRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request payload")
			return
		}
	} else {
		req.InvoiceID = r.URL.Query().Get("invoiceId")
		req.TransactionID = r.URL.Query().Get("transactionId")
	}

	if req.InvoiceID == "" && req.TransactionID == "" {
		respondWithError(w, http.StatusBadRequest, "Either invoiceId or transactionId is required")
		return
	}

	result, err := h.resolver.ResolveStatus(r.Context(), req.InvoiceID, req.TransactionID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingIdentifier):
			respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repositories.ErrInvoiceNotFound),
			errors.Is(err, repositories.ErrTransactionNotFound):
			respondWithError(w, http.StatusNotFound, err.Error())
		default:
			h.log.WithFields(logrus.Fields{
				"invoice_id":     req.InvoiceID,
				"transaction_id": req.TransactionID,
			}).WithError(err).Error("Failed to resolve payment status")
			respondWithError(w, http.StatusInternalServerError, "Failed to resolve payment status")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
