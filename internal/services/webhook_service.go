package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"payment-reconciliation-service/internal/models"
	"payment-reconciliation-service/internal/provider"
	"payment-reconciliation-service/internal/repositories"
)

// WebhookService ingests normalised provider events. It shares the apply
// path with the verification adapter, so webhook delivery and polling are
// two producers into one idempotent consumer; redelivery is a no-op.
type WebhookService struct {
	invoiceRepo  repositories.InvoiceRepository
	txRepo       repositories.TransactionRepository
	webhookRepo  repositories.WebhookEventRepository
	statsRepo    repositories.StatsRepository
	verification *VerificationService
	log          *logrus.Logger
}

type WebhookResult struct {
	// Applied means this event moved the invoice to paid.
	Applied bool `json:"applied"`
	// Duplicate means this exact event was delivered before.
	Duplicate bool `json:"duplicate"`
}

func NewWebhookService(
	invoiceRepo repositories.InvoiceRepository,
	txRepo repositories.TransactionRepository,
	webhookRepo repositories.WebhookEventRepository,
	statsRepo repositories.StatsRepository,
	verification *VerificationService,
	log *logrus.Logger,
) *WebhookService {
	return &WebhookService{
		invoiceRepo:  invoiceRepo,
		txRepo:       txRepo,
		webhookRepo:  webhookRepo,
		statsRepo:    statsRepo,
		verification: verification,
		log:          log,
	}
}

// HandleEvent records the event for audit and applies its outcome through
// the shared idempotent write path. Duplicates still walk the apply path:
// the conditional update makes the replay harmless, and a replay of an
// event whose first delivery crashed mid-apply completes the work.
func (s *WebhookService) HandleEvent(ctx context.Context, evt *provider.Event) (*WebhookResult, error) {
	if serr := s.statsRepo.IncrementWebhookEvents(ctx); serr != nil {
		s.log.WithError(serr).Debug("Failed to increment webhook stats")
	}

	tx, invoiceID, err := s.correlate(ctx, evt)
	if err != nil {
		return nil, err
	}

	eventID := evt.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	duplicate, err := s.webhookRepo.Record(ctx, &models.WebhookEvent{
		EventID:               eventID,
		Provider:              evt.Provider,
		EventType:             evt.Type,
		InvoiceID:             invoiceID,
		ExternalTransactionID: evt.ExternalTransactionID,
		Payload:               evt.Raw,
	})
	if err != nil {
		// Audit trail is best-effort; the idempotent apply below is what
		// correctness rests on.
		s.log.WithField("event_id", eventID).WithError(err).Warn("Failed to record webhook event")
	}
	if duplicate {
		s.log.WithFields(logrus.Fields{
			"event_id":   eventID,
			"invoice_id": invoiceID,
		}).Info("Duplicate webhook delivery")
	}

	result := &WebhookResult{Duplicate: duplicate}

	transactionID := ""
	paymentMethod := evt.Provider
	if tx != nil {
		transactionID = tx.TransactionID
		paymentMethod = tx.PaymentMethod
	}

	switch evt.Status {
	case models.TxStatusCompleted:
		applied, err := s.verification.ApplyCompletedPayment(ctx, invoiceID, transactionID, paymentMethod, evt.ExternalTransactionID)
		if err != nil {
			return nil, fmt.Errorf("failed to apply webhook payment: %v", err)
		}
		result.Applied = applied

	case models.TxStatusFailed:
		// Transaction-only update: a failed event never regresses the
		// invoice, whether it is still payable or was paid elsewhere.
		if transactionID != "" {
			if err := s.txRepo.MarkFailed(ctx, transactionID); err != nil {
				return nil, fmt.Errorf("failed to record failed transaction: %v", err)
			}
		}
		if serr := s.statsRepo.IncrementFailures(ctx); serr != nil {
			s.log.WithError(serr).Debug("Failed to increment failure stats")
		}
	}

	return result, nil
}

// correlate resolves the event's references to a local transaction and
// invoice. The invoice id may arrive directly or via a known external
// transaction id.
func (s *WebhookService) correlate(ctx context.Context, evt *provider.Event) (*models.PaymentTransaction, string, error) {
	var tx *models.PaymentTransaction

	if evt.ExternalTransactionID != "" {
		found, err := s.txRepo.GetByExternalID(ctx, evt.ExternalTransactionID)
		if err != nil && !errors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, "", err
		}
		tx = found
	}
	if tx == nil && evt.InvoiceID != "" {
		found, err := s.txRepo.GetLatestByInvoiceID(ctx, evt.InvoiceID)
		if err != nil && !errors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, "", err
		}
		tx = found
	}

	invoiceID := evt.InvoiceID
	if invoiceID == "" && tx != nil {
		invoiceID = tx.InvoiceID
	}
	if invoiceID == "" {
		return nil, "", repositories.ErrInvoiceNotFound
	}

	// The invoice must exist before any write path runs against it.
	if _, err := s.invoiceRepo.GetInvoiceByID(ctx, invoiceID); err != nil {
		return nil, "", err
	}
	return tx, invoiceID, nil
}
