package repositories

import (
	"context"
	"database/sql"
	"strings"

	"payment-reconciliation-service/internal/models"
)

type WebhookEventRepository interface {
	// Record appends the event to the audit log. It returns duplicate=true
	// when the (provider, event_id) pair was already recorded, which callers
	// treat as an ack-able redelivery, not an error.
	Record(ctx context.Context, event *models.WebhookEvent) (duplicate bool, err error)
	CountByInvoiceID(ctx context.Context, invoiceID string) (int64, error)
}

type webhookEventRepository struct {
	db *sql.DB
}

func NewWebhookEventRepository(db *sql.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) Record(ctx context.Context, event *models.WebhookEvent) (bool, error) {
	query := `
		INSERT INTO webhook_events (
			event_id, provider, event_type, invoice_id,
			external_transaction_id, payload
		) VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		event.EventID,
		event.Provider,
		event.EventType,
		event.InvoiceID,
		event.ExternalTransactionID,
		[]byte(event.Payload),
	)
	if err != nil {
		if strings.Contains(err.Error(), "Duplicate entry") {
			return true, nil
		}
		return false, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return false, err
	}
	event.ID = id
	return false, nil
}

func (r *webhookEventRepository) CountByInvoiceID(ctx context.Context, invoiceID string) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM webhook_events WHERE invoice_id = ?`
	err := r.db.QueryRowContext(ctx, query, invoiceID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
