package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"payment-reconciliation-service/internal/models"
)

var ErrInvoiceNotFound = errors.New("invoice not found")

type InvoiceRepository interface {
	GetInvoiceByID(ctx context.Context, id string) (*models.Invoice, error)
	// MarkInvoicePaid performs the conditional paid transition. It returns
	// true only when this call moved the row; zero rows affected means
	// another writer already marked the invoice paid and is not an error.
	MarkInvoicePaid(ctx context.Context, id, paymentMethod string, paidAt time.Time) (bool, error)
}

type invoiceRepository struct {
	db *sql.DB
}

func NewInvoiceRepository(db *sql.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) GetInvoiceByID(ctx context.Context, id string) (*models.Invoice, error) {
	inv := &models.Invoice{}
	query := `
		SELECT id, amount, currency, status, payment_method,
		       paid_at, due_date, created_at, updated_at
		FROM invoices
		WHERE id = ?
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&inv.ID,
		&inv.Amount,
		&inv.Currency,
		&inv.Status,
		&inv.PaymentMethod,
		&inv.PaidAt,
		&inv.DueDate,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *invoiceRepository) MarkInvoicePaid(ctx context.Context, id, paymentMethod string, paidAt time.Time) (bool, error) {
	// The WHERE clause is the whole race story: check-then-set happens in
	// one statement, and status only ever moves toward paid.
	query := `
		UPDATE invoices
		SET status = ?,
			paid_at = ?,
			payment_method = ?,
			updated_at = ?
		WHERE id = ? AND status <> ?
	`
	result, err := r.db.ExecContext(ctx, query,
		models.InvoiceStatusPaid,
		paidAt,
		paymentMethod,
		time.Now(),
		id,
		models.InvoiceStatusPaid,
	)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}
