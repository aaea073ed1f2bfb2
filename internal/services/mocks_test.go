package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"payment-reconciliation-service/internal/models"
	"payment-reconciliation-service/internal/provider"
	"payment-reconciliation-service/internal/repositories"
)

type fakeInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[string]*models.Invoice
	// paidWins counts calls that actually won the conditional update.
	paidWins int
	getErr   error
}

func newFakeInvoiceRepo(invoices ...*models.Invoice) *fakeInvoiceRepo {
	repo := &fakeInvoiceRepo{invoices: make(map[string]*models.Invoice)}
	for _, inv := range invoices {
		repo.invoices[inv.ID] = inv
	}
	return repo
}

func (f *fakeInvoiceRepo) GetInvoiceByID(ctx context.Context, id string) (*models.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	inv, ok := f.invoices[id]
	if !ok {
		return nil, repositories.ErrInvoiceNotFound
	}
	copied := *inv
	return &copied, nil
}

func (f *fakeInvoiceRepo) MarkInvoicePaid(ctx context.Context, id, paymentMethod string, paidAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invoices[id]
	if !ok || inv.Status == models.InvoiceStatusPaid {
		// Conditional update matched zero rows.
		return false, nil
	}
	inv.Status = models.InvoiceStatusPaid
	inv.PaidAt = sql.NullTime{Time: paidAt, Valid: true}
	inv.PaymentMethod = sql.NullString{String: paymentMethod, Valid: true}
	f.paidWins++
	return true, nil
}

type fakeTransactionRepo struct {
	mu           sync.Mutex
	transactions map[string]*models.PaymentTransaction
}

func newFakeTransactionRepo(transactions ...*models.PaymentTransaction) *fakeTransactionRepo {
	repo := &fakeTransactionRepo{transactions: make(map[string]*models.PaymentTransaction)}
	for _, tx := range transactions {
		repo.transactions[tx.TransactionID] = tx
	}
	return repo
}

func (f *fakeTransactionRepo) GetByTransactionID(ctx context.Context, transactionID string) (*models.PaymentTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.transactions[transactionID]
	if !ok {
		return nil, repositories.ErrTransactionNotFound
	}
	copied := *tx
	return &copied, nil
}

func (f *fakeTransactionRepo) GetByExternalID(ctx context.Context, externalID string) (*models.PaymentTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.transactions {
		if tx.ExternalTransactionID.Valid && tx.ExternalTransactionID.String == externalID {
			copied := *tx
			return &copied, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func (f *fakeTransactionRepo) GetLatestByInvoiceID(ctx context.Context, invoiceID string) (*models.PaymentTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.PaymentTransaction
	for _, tx := range f.transactions {
		if tx.InvoiceID != invoiceID {
			continue
		}
		if latest == nil || tx.CreatedAt.After(latest.CreatedAt) {
			latest = tx
		}
	}
	if latest == nil {
		return nil, repositories.ErrTransactionNotFound
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeTransactionRepo) MarkCompleted(ctx context.Context, transactionID, externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.transactions[transactionID]
	if !ok || tx.Status == models.TxStatusCompleted {
		return nil
	}
	tx.Status = models.TxStatusCompleted
	if externalID != "" {
		tx.ExternalTransactionID = sql.NullString{String: externalID, Valid: true}
	}
	return nil
}

func (f *fakeTransactionRepo) MarkFailed(ctx context.Context, transactionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.transactions[transactionID]
	if !ok || tx.Status == models.TxStatusCompleted {
		return nil
	}
	tx.Status = models.TxStatusFailed
	return nil
}

func (f *fakeTransactionRepo) SetExternalID(ctx context.Context, transactionID, externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.transactions[transactionID]
	if !ok {
		return nil
	}
	if !tx.ExternalTransactionID.Valid || tx.ExternalTransactionID.String == "" {
		tx.ExternalTransactionID = sql.NullString{String: externalID, Valid: true}
	}
	return nil
}

func (f *fakeTransactionRepo) status(transactionID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tx, ok := f.transactions[transactionID]; ok {
		return tx.Status
	}
	return ""
}

type fakeStatsRepo struct {
	mu       sync.Mutex
	payments int
	failures int
	webhooks int
}

func (f *fakeStatsRepo) IncrementPayments(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments++
	return nil
}

func (f *fakeStatsRepo) IncrementFailures(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures++
	return nil
}

func (f *fakeStatsRepo) IncrementWebhookEvents(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhooks++
	return nil
}

func (f *fakeStatsRepo) GetStatsForDate(ctx context.Context, date string) (*models.PaymentStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &models.PaymentStat{
		StatDate:       date,
		TotalPayments:  int64(f.payments),
		FailedPayments: int64(f.failures),
		WebhookEvents:  int64(f.webhooks),
	}, nil
}

type fakeWebhookEventRepo struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeWebhookEventRepo() *fakeWebhookEventRepo {
	return &fakeWebhookEventRepo{seen: make(map[string]bool)}
}

func (f *fakeWebhookEventRepo) Record(ctx context.Context, event *models.WebhookEvent) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := event.Provider + "|" + event.EventID
	if f.seen[key] {
		return true, nil
	}
	f.seen[key] = true
	return false, nil
}

func (f *fakeWebhookEventRepo) CountByInvoiceID(ctx context.Context, invoiceID string) (int64, error) {
	return 0, nil
}

// fakeVerifier is a scripted provider status-check endpoint.
type fakeVerifier struct {
	mu     sync.Mutex
	name   string
	result *provider.CheckResult
	err    error
	calls  int
}

func (f *fakeVerifier) Name() string {
	if f.name == "" {
		return models.MethodWave
	}
	return f.name
}

func (f *fakeVerifier) CheckStatus(ctx context.Context, externalID string) (*provider.CheckResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeVerifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
