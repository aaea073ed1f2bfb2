package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"payment-reconciliation-service/internal/config"
	"payment-reconciliation-service/internal/models"
	"payment-reconciliation-service/internal/provider"
	"payment-reconciliation-service/internal/ratewatch"
	"payment-reconciliation-service/internal/realtime"
	"payment-reconciliation-service/internal/repositories"
	"payment-reconciliation-service/internal/services"
)

func SetupRouter(db *sql.DB, cfg *config.Config, log *logrus.Logger) *mux.Router {
	invoiceRepo := repositories.NewInvoiceRepository(db)
	txRepo := repositories.NewTransactionRepository(db)
	webhookRepo := repositories.NewWebhookEventRepository(db)
	statsRepo := repositories.NewStatsRepository(db)

	providers := provider.NewRegistry()
	providers.Register(models.MethodWave, provider.NewWaveClient(
		cfg.Provider.WaveAPIURL,
		cfg.Provider.WaveAPIKey,
		cfg.ProviderTimeout(),
	))
	// Orange Money has no status-query API in this integration; its
	// transactions settle through the webhook path only.

	hub := realtime.NewHub()
	rates := ratewatch.NewTracker(256)

	verificationService := services.NewVerificationService(
		invoiceRepo, txRepo, statsRepo, providers, hub, cfg.ProviderTimeout(), log)
	resolverService := services.NewResolverService(
		invoiceRepo, txRepo, verificationService, providers, log)
	webhookService := services.NewWebhookService(
		invoiceRepo, txRepo, webhookRepo, statsRepo, verificationService, log)

	statusHandler := NewStatusHandler(resolverService, rates, log)
	webhookHandler := NewWebhookHandler(webhookService, cfg.Webhook.Secret, rates, log)
	statsHandler := NewStatsHandler(statsRepo, rates, log)

	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()

	api.Use(loggingMiddleware(log))
	api.Use(jsonContentTypeMiddleware)

	api.HandleFunc("/payments/status", statusHandler.GetPaymentStatus).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/webhooks/payment", webhookHandler.HandlePaymentWebhook).Methods(http.MethodPost)
	api.HandleFunc("/payments/stats", statsHandler.GetPaymentStats).Methods(http.MethodGet)

	router.HandleFunc("/health", healthCheckHandler).Methods(http.MethodGet)

	return router
}

func loggingMiddleware(log *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
				"remote": r.RemoteAddr,
			}).Debug("Incoming request")
			next.ServeHTTP(w, r)
		})
	}
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"status": "healthy",
	}
	respondWithJSON(w, http.StatusOK, response)
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Error marshaling JSON response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
