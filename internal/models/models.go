package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is the billable unit and the ledger of record for "is this paid".
// The reconciliation core mutates it only along the payment axis.
type Invoice struct {
	ID            string          `db:"id" json:"id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Currency      string          `db:"currency" json:"currency"`
	Status        string          `db:"status" json:"status"`
	PaymentMethod sql.NullString  `db:"payment_method" json:"payment_method"`
	PaidAt        sql.NullTime    `db:"paid_at" json:"paid_at"`
	DueDate       time.Time       `db:"due_date" json:"due_date"`
	CreatedAt     time.Time       `db:"created_at" json:"-"`
	UpdatedAt     time.Time       `db:"updated_at" json:"-"`
}

// PaymentTransaction is one attempt to pay an invoice through the
// aggregator. It is a correlation/audit record, never deleted; the invoice
// row is authoritative when the two disagree.
type PaymentTransaction struct {
	ID                    int64           `db:"id" json:"id"`
	TransactionID         string          `db:"transaction_id" json:"transaction_id"`
	ExternalTransactionID sql.NullString  `db:"external_transaction_id" json:"external_transaction_id"`
	InvoiceID             string          `db:"invoice_id" json:"invoice_id"`
	PaymentMethod         string          `db:"payment_method" json:"payment_method"`
	Amount                decimal.Decimal `db:"amount" json:"amount"`
	Status                string          `db:"status" json:"status"`
	CreatedAt             time.Time       `db:"created_at" json:"-"`
	UpdatedAt             time.Time       `db:"updated_at" json:"-"`
}

// WebhookEvent is an append-only audit record of every accepted provider
// event. The (provider, event_id) pair is unique so redelivery is detectable.
type WebhookEvent struct {
	ID                    int64           `db:"id" json:"id"`
	EventID               string          `db:"event_id" json:"event_id"`
	Provider              string          `db:"provider" json:"provider"`
	EventType             string          `db:"event_type" json:"event_type"`
	InvoiceID             string          `db:"invoice_id" json:"invoice_id"`
	ExternalTransactionID string          `db:"external_transaction_id" json:"external_transaction_id"`
	Payload               json.RawMessage `db:"payload" json:"payload"`
	ReceivedAt            time.Time       `db:"received_at" json:"-"`
}

// PaymentStat aggregates per-day operational counters. Best-effort writes
// only; not correctness-critical.
type PaymentStat struct {
	StatDate       string `db:"stat_date" json:"stat_date"`
	TotalPayments  int64  `db:"total_payments" json:"total_payments"`
	FailedPayments int64  `db:"failed_payments" json:"failed_payments"`
	WebhookEvents  int64  `db:"webhook_events" json:"webhook_events"`
}

// Invoice status constants
const (
	InvoiceStatusDraft          = "draft"
	InvoiceStatusSent           = "sent"
	InvoiceStatusPending        = "pending"
	InvoiceStatusPendingPayment = "pending_payment"
	InvoiceStatusPaid           = "paid"
	InvoiceStatusPartiallyPaid  = "partially_paid"
	InvoiceStatusOverdue        = "overdue"
	InvoiceStatusCancelled      = "cancelled"
)

// Canonical transaction status constants. Every provider-specific status
// string is normalized into one of these three before it touches storage.
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
)

// Payment method constants
const (
	MethodWave        = "wave"
	MethodOrangeMoney = "orange_money"
)
