package handlers

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"payment-reconciliation-service/internal/ratewatch"
	"payment-reconciliation-service/internal/repositories"
)

type StatsHandler struct {
	statsRepo repositories.StatsRepository
	rates     *ratewatch.Tracker
	log       *logrus.Logger
}

func NewStatsHandler(statsRepo repositories.StatsRepository, rates *ratewatch.Tracker, log *logrus.Logger) *StatsHandler {
	return &StatsHandler{
		statsRepo: statsRepo,
		rates:     rates,
		log:       log,
	}
}

// GetPaymentStats returns today's reconciliation counters plus recent
// request rates. Operational visibility only.
func (h *StatsHandler) GetPaymentStats(w http.ResponseWriter, r *http.Request) {
	stat, err := h.statsRepo.GetStatsForDate(r.Context(), repositories.Today())
	if err != nil {
		h.log.WithError(err).Error("Failed to load payment stats")
		respondWithError(w, http.StatusInternalServerError, "Failed to load payment stats")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"stats":              stat,
		"requests_last_min":  h.rates.Recent("payments/status", time.Minute),
		"webhooks_last_min":  h.rates.Recent("webhooks/payment", time.Minute),
		"observation_counts": h.rates.Snapshot(),
	})
}
