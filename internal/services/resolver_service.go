package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"payment-reconciliation-service/internal/models"
	"payment-reconciliation-service/internal/provider"
	"payment-reconciliation-service/internal/repositories"
)

var ErrMissingIdentifier = errors.New("either invoiceId or transactionId is required")

// StatusResult is the merged payment view returned to clients. Status is
// the transaction-level outcome; InvoiceStatus is the literal invoice
// status. When the two diverge the invoice is authoritative for "is it
// paid"; the transaction status is diagnostic only.
type StatusResult struct {
	Status                string `json:"status"`
	InvoiceStatus         string `json:"invoiceStatus"`
	TransactionID         string `json:"transactionId,omitempty"`
	ExternalTransactionID string `json:"externalTransactionId,omitempty"`
	PaymentMethod         string `json:"paymentMethod,omitempty"`
	AutoCheckAttempted    bool   `json:"autoCheckAttempted"`
}

// ResolverService determines the authoritative payment status for an
// invoice, triggering an on-demand provider check when the local record is
// stale and the payment method supports querying.
type ResolverService struct {
	invoiceRepo  repositories.InvoiceRepository
	txRepo       repositories.TransactionRepository
	verification *VerificationService
	providers    *provider.Registry
	log          *logrus.Logger
}

func NewResolverService(
	invoiceRepo repositories.InvoiceRepository,
	txRepo repositories.TransactionRepository,
	verification *VerificationService,
	providers *provider.Registry,
	log *logrus.Logger,
) *ResolverService {
	return &ResolverService{
		invoiceRepo:  invoiceRepo,
		txRepo:       txRepo,
		verification: verification,
		providers:    providers,
		log:          log,
	}
}

// ResolveStatus looks up the latest transaction and the invoice, runs the
// auto-check when warranted, and returns the merged view. A verification
// failure never fails the status read: the pre-check view is returned with
// AutoCheckAttempted set.
func (s *ResolverService) ResolveStatus(ctx context.Context, invoiceID, transactionID string) (*StatusResult, error) {
	if invoiceID == "" && transactionID == "" {
		return nil, ErrMissingIdentifier
	}

	tx, err := s.lookupTransaction(ctx, invoiceID, transactionID)
	if err != nil {
		if transactionID != "" || !errors.Is(err, repositories.ErrTransactionNotFound) {
			// A transaction id the caller named must exist; a missing
			// latest-transaction just degrades to the invoice-only view.
			return nil, err
		}
		tx = nil
	}
	if invoiceID == "" {
		invoiceID = tx.InvoiceID
	}

	invoice, err := s.invoiceRepo.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{}
	s.fill(result, invoice, tx)

	// The invoice is the ledger of record: paid short-circuits everything.
	if invoice.Status == models.InvoiceStatusPaid {
		return result, nil
	}

	method := paymentMethodOf(invoice, tx)
	if s.providers.SupportsQuery(method) && (tx == nil || tx.Status != models.TxStatusCompleted) {
		result.AutoCheckAttempted = true

		txID := ""
		if tx != nil {
			txID = tx.TransactionID
		}
		if _, verr := s.verification.VerifyAndApply(ctx, invoiceID, txID); verr != nil {
			// Soft failure: the status read survives a broken check.
			s.log.WithFields(logrus.Fields{
				"invoice_id":     invoiceID,
				"payment_method": method,
			}).WithError(verr).Warn("Auto verification failed during status resolution")
			return result, nil
		}

		// The check may have moved the records; re-read both.
		invoice, err = s.invoiceRepo.GetInvoiceByID(ctx, invoiceID)
		if err != nil {
			return nil, err
		}
		if tx != nil {
			if fresh, rerr := s.txRepo.GetByTransactionID(ctx, tx.TransactionID); rerr == nil {
				tx = fresh
			}
		}
		attempted := result.AutoCheckAttempted
		s.fill(result, invoice, tx)
		result.AutoCheckAttempted = attempted
	}

	return result, nil
}

func (s *ResolverService) fill(result *StatusResult, invoice *models.Invoice, tx *models.PaymentTransaction) {
	result.InvoiceStatus = invoice.Status
	result.PaymentMethod = paymentMethodOf(invoice, tx)

	if tx != nil {
		result.TransactionID = tx.TransactionID
		if tx.ExternalTransactionID.Valid {
			result.ExternalTransactionID = tx.ExternalTransactionID.String
		}
	}

	switch {
	case invoice.Status == models.InvoiceStatusPaid:
		result.Status = models.InvoiceStatusPaid
	case tx != nil:
		result.Status = tx.Status
	default:
		result.Status = models.TxStatusPending
	}
}

func (s *ResolverService) lookupTransaction(ctx context.Context, invoiceID, transactionID string) (*models.PaymentTransaction, error) {
	if transactionID != "" {
		return s.txRepo.GetByTransactionID(ctx, transactionID)
	}
	return s.txRepo.GetLatestByInvoiceID(ctx, invoiceID)
}

func paymentMethodOf(invoice *models.Invoice, tx *models.PaymentTransaction) string {
	if tx != nil && tx.PaymentMethod != "" {
		return tx.PaymentMethod
	}
	if invoice.PaymentMethod.Valid {
		return invoice.PaymentMethod.String
	}
	return ""
}
