package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"payment-reconciliation-service/internal/models"
)

var ErrTransactionNotFound = errors.New("payment transaction not found")

type TransactionRepository interface {
	GetByTransactionID(ctx context.Context, transactionID string) (*models.PaymentTransaction, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.PaymentTransaction, error)
	GetLatestByInvoiceID(ctx context.Context, invoiceID string) (*models.PaymentTransaction, error)
	// MarkCompleted is monotonic: it never rewrites an already completed
	// transaction, so replays leave exactly one completed record.
	MarkCompleted(ctx context.Context, transactionID, externalID string) error
	// MarkFailed never demotes a completed transaction.
	MarkFailed(ctx context.Context, transactionID string) error
	SetExternalID(ctx context.Context, transactionID, externalID string) error
}

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

const transactionColumns = `
	id, transaction_id, external_transaction_id, invoice_id,
	payment_method, amount, status, created_at, updated_at
`

func (r *transactionRepository) scanTransaction(row *sql.Row) (*models.PaymentTransaction, error) {
	tx := &models.PaymentTransaction{}
	err := row.Scan(
		&tx.ID,
		&tx.TransactionID,
		&tx.ExternalTransactionID,
		&tx.InvoiceID,
		&tx.PaymentMethod,
		&tx.Amount,
		&tx.Status,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (r *transactionRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.PaymentTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE transaction_id = ?
	`
	return r.scanTransaction(r.db.QueryRowContext(ctx, query, transactionID))
}

func (r *transactionRepository) GetByExternalID(ctx context.Context, externalID string) (*models.PaymentTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE external_transaction_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return r.scanTransaction(r.db.QueryRowContext(ctx, query, externalID))
}

func (r *transactionRepository) GetLatestByInvoiceID(ctx context.Context, invoiceID string) (*models.PaymentTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE invoice_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return r.scanTransaction(r.db.QueryRowContext(ctx, query, invoiceID))
}

func (r *transactionRepository) MarkCompleted(ctx context.Context, transactionID, externalID string) error {
	query := `
		UPDATE payment_transactions
		SET status = ?,
			external_transaction_id = COALESCE(NULLIF(?, ''), external_transaction_id),
			updated_at = ?
		WHERE transaction_id = ? AND status <> ?
	`
	_, err := r.db.ExecContext(ctx, query,
		models.TxStatusCompleted,
		externalID,
		time.Now(),
		transactionID,
		models.TxStatusCompleted,
	)
	return err
}

func (r *transactionRepository) MarkFailed(ctx context.Context, transactionID string) error {
	query := `
		UPDATE payment_transactions
		SET status = ?,
			updated_at = ?
		WHERE transaction_id = ? AND status <> ?
	`
	_, err := r.db.ExecContext(ctx, query,
		models.TxStatusFailed,
		time.Now(),
		transactionID,
		models.TxStatusCompleted,
	)
	return err
}

func (r *transactionRepository) SetExternalID(ctx context.Context, transactionID, externalID string) error {
	query := `
		UPDATE payment_transactions
		SET external_transaction_id = ?,
			updated_at = ?
		WHERE transaction_id = ? AND (external_transaction_id IS NULL OR external_transaction_id = '')
	`
	_, err := r.db.ExecContext(ctx, query, externalID, time.Now(), transactionID)
	return err
}
