package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"payment-reconciliation-service/internal/models"
	"payment-reconciliation-service/internal/provider"
	"payment-reconciliation-service/internal/realtime"
	"payment-reconciliation-service/internal/repositories"
)

// PaidHook runs after an invoice actually transitions to paid. Hooks are
// fire-and-forget: they run on their own goroutine and their failure never
// reaches the caller.
type PaidHook func(invoiceID, externalTransactionID string)

// VerificationService queries the aggregator for a transaction's real
// status and applies the idempotent paid transition. Webhook ingestion and
// client-triggered polls both funnel through ApplyCompletedPayment, which is
// what keeps the two producers race-safe.
type VerificationService struct {
	invoiceRepo  repositories.InvoiceRepository
	txRepo       repositories.TransactionRepository
	statsRepo    repositories.StatsRepository
	providers    *provider.Registry
	events       *realtime.Hub
	log          *logrus.Logger
	checkTimeout time.Duration
	paidHooks    []PaidHook
}

type VerificationResult struct {
	// Success means the provider was reached and gave an answer; it is
	// distinct from "verified as unpaid".
	Success bool `json:"success"`
	// Updated means this call moved the invoice to paid.
	Updated bool `json:"updated"`
}

func NewVerificationService(
	invoiceRepo repositories.InvoiceRepository,
	txRepo repositories.TransactionRepository,
	statsRepo repositories.StatsRepository,
	providers *provider.Registry,
	events *realtime.Hub,
	checkTimeout time.Duration,
	log *logrus.Logger,
) *VerificationService {
	if checkTimeout <= 0 {
		checkTimeout = 5 * time.Second
	}
	return &VerificationService{
		invoiceRepo:  invoiceRepo,
		txRepo:       txRepo,
		statsRepo:    statsRepo,
		providers:    providers,
		events:       events,
		log:          log,
		checkTimeout: checkTimeout,
	}
}

// OnPaid registers a downstream consequence of a paid transition, e.g. an
// accounting export trigger. Registered hooks fire at most once per invoice
// because the conditional update admits only one winner.
func (s *VerificationService) OnPaid(hook PaidHook) {
	s.paidHooks = append(s.paidHooks, hook)
}

// VerifyAndApply checks the provider's view of the payment and reconciles
// the local records with it. Provider-side failures are soft: they are
// logged and reported as Success=false, never returned as errors.
func (s *VerificationService) VerifyAndApply(ctx context.Context, invoiceID, transactionID string) (*VerificationResult, error) {
	tx, err := s.lookupTransaction(ctx, invoiceID, transactionID)
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			// Nothing to verify against; not an error for the caller.
			return &VerificationResult{Success: false, Updated: false}, nil
		}
		return nil, err
	}
	if invoiceID == "" {
		invoiceID = tx.InvoiceID
	}

	invoice, err := s.invoiceRepo.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status == models.InvoiceStatusPaid {
		// The ledger already says paid; no provider round-trip needed.
		return &VerificationResult{Success: true, Updated: false}, nil
	}

	verifier, ok := s.providers.ForMethod(tx.PaymentMethod)
	if !ok {
		return &VerificationResult{Success: false, Updated: false}, nil
	}

	externalID := tx.TransactionID
	if tx.ExternalTransactionID.Valid && tx.ExternalTransactionID.String != "" {
		externalID = tx.ExternalTransactionID.String
	}

	checkCtx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()

	result, err := verifier.CheckStatus(checkCtx, externalID)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"invoice_id":     invoiceID,
			"transaction_id": tx.TransactionID,
			"provider":       verifier.Name(),
		}).WithError(err).Warn("Provider status check failed")
		return &VerificationResult{Success: false, Updated: false}, nil
	}

	switch result.Status {
	case models.TxStatusCompleted:
		updated, err := s.ApplyCompletedPayment(ctx, invoiceID, tx.TransactionID, tx.PaymentMethod, result.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("failed to apply completed payment: %v", err)
		}
		return &VerificationResult{Success: true, Updated: updated}, nil

	case models.TxStatusFailed:
		// A failed attempt updates the transaction log only. The invoice
		// is never regressed; the client may retry with a new attempt.
		if err := s.txRepo.MarkFailed(ctx, tx.TransactionID); err != nil {
			return nil, fmt.Errorf("failed to record failed transaction: %v", err)
		}
		if serr := s.statsRepo.IncrementFailures(ctx); serr != nil {
			s.log.WithError(serr).Debug("Failed to increment failure stats")
		}
		return &VerificationResult{Success: true, Updated: false}, nil

	default:
		if result.ExternalID != "" {
			if err := s.txRepo.SetExternalID(ctx, tx.TransactionID, result.ExternalID); err != nil {
				s.log.WithError(err).Debug("Failed to record external transaction id")
			}
		}
		return &VerificationResult{Success: true, Updated: false}, nil
	}
}

// ApplyCompletedPayment is the single idempotent write path shared by the
// webhook handler and the verification adapter. The conditional update on
// the invoice row decides the winner under concurrency; side effects fire
// only for the winner.
func (s *VerificationService) ApplyCompletedPayment(ctx context.Context, invoiceID, transactionID, paymentMethod, externalID string) (bool, error) {
	if transactionID != "" {
		if err := s.txRepo.MarkCompleted(ctx, transactionID, externalID); err != nil {
			// The transaction row is a log, not the ledger; keep going.
			s.log.WithFields(logrus.Fields{
				"invoice_id":     invoiceID,
				"transaction_id": transactionID,
			}).WithError(err).Warn("Failed to mark transaction completed")
		}
	}

	updated, err := s.invoiceRepo.MarkInvoicePaid(ctx, invoiceID, paymentMethod, time.Now())
	if err != nil {
		return false, err
	}
	if !updated {
		// Another writer got there first; the desired state already holds.
		return false, nil
	}

	s.log.WithFields(logrus.Fields{
		"invoice_id":     invoiceID,
		"transaction_id": transactionID,
		"payment_method": paymentMethod,
	}).Info("Invoice marked as paid")

	if serr := s.statsRepo.IncrementPayments(ctx); serr != nil {
		s.log.WithError(serr).Debug("Failed to increment payment stats")
	}

	if s.events != nil {
		s.events.Publish(realtime.Update{
			InvoiceID: invoiceID,
			Status:    models.InvoiceStatusPaid,
			PaidAt:    time.Now(),
		})
	}

	for _, hook := range s.paidHooks {
		go hook(invoiceID, externalID)
	}

	return true, nil
}

func (s *VerificationService) lookupTransaction(ctx context.Context, invoiceID, transactionID string) (*models.PaymentTransaction, error) {
	if transactionID != "" {
		return s.txRepo.GetByTransactionID(ctx, transactionID)
	}
	return s.txRepo.GetLatestByInvoiceID(ctx, invoiceID)
}
