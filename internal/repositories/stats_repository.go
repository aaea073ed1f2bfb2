package repositories

import (
	"context"
	"database/sql"
	"time"

	"payment-reconciliation-service/internal/models"
)

// StatsRepository maintains per-day operational counters. Increments are
// best-effort side effects of the reconciliation path; callers only log
// failures.
type StatsRepository interface {
	IncrementPayments(ctx context.Context) error
	IncrementFailures(ctx context.Context) error
	IncrementWebhookEvents(ctx context.Context) error
	GetStatsForDate(ctx context.Context, date string) (*models.PaymentStat, error)
}

type statsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) increment(ctx context.Context, column string) error {
	// column is one of our own constants below, never caller input.
	query := `
		INSERT INTO payment_stats (stat_date, ` + column + `)
		VALUES (CURDATE(), 1)
		ON DUPLICATE KEY UPDATE ` + column + ` = ` + column + ` + 1
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

func (r *statsRepository) IncrementPayments(ctx context.Context) error {
	return r.increment(ctx, "total_payments")
}

func (r *statsRepository) IncrementFailures(ctx context.Context) error {
	return r.increment(ctx, "failed_payments")
}

func (r *statsRepository) IncrementWebhookEvents(ctx context.Context) error {
	return r.increment(ctx, "webhook_events")
}

func (r *statsRepository) GetStatsForDate(ctx context.Context, date string) (*models.PaymentStat, error) {
	stat := &models.PaymentStat{}
	query := `
		SELECT stat_date, total_payments, failed_payments, webhook_events
		FROM payment_stats
		WHERE stat_date = ?
	`
	err := r.db.QueryRowContext(ctx, query, date).Scan(
		&stat.StatDate,
		&stat.TotalPayments,
		&stat.FailedPayments,
		&stat.WebhookEvents,
	)
	if err == sql.ErrNoRows {
		return &models.PaymentStat{StatDate: date}, nil
	}
	if err != nil {
		return nil, err
	}
	return stat, nil
}

// Today returns the stat bucket key for the current day.
func Today() string {
	return time.Now().Format("2006-01-02")
}
