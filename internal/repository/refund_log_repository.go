package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
)

type RefundLogRepository struct {
	db *sql.DB
}

func NewRefundLogRepository(db *sql.DB) *RefundLogRepository {
	return &RefundLogRepository{db: db}
}

func (r *RefundLogRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS refund_log (
			id BIGSERIAL PRIMARY KEY,
			order_id BIGINT NOT NULL,
			event_id BIGINT NOT NULL,
			vendor_account_id BIGINT NOT NULL,
			refund_type VARCHAR(20) NOT NULL,
			refund_scope VARCHAR(30) NOT NULL,
			amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
			currency VARCHAR(3) NOT NULL,
			donation_refunded BOOLEAN NOT NULL DEFAULT FALSE,
			status VARCHAR(20) NOT NULL,
			reason TEXT,
			error_message TEXT,
			gateway_refund_id VARCHAR(255),
			refund_request_id BIGINT,
			created TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			completed TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_refund_log_order_status ON refund_log(order_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_refund_log_request ON refund_log(refund_request_id)`,
		`CREATE TABLE IF NOT EXISTS refund_payment (
			gateway_refund_id VARCHAR(255) PRIMARY KEY,
			refund_log_id BIGINT NOT NULL,
			payment_id BIGINT NOT NULL,
			amount_cents BIGINT NOT NULL,
			created TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_refund_payment_log ON refund_payment(refund_log_id)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (r *RefundLogRepository) Create(ctx context.Context, log *models.RefundLog) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO refund_log
			(order_id, event_id, vendor_account_id, refund_type, refund_scope, amount_cents,
			 currency, donation_refunded, status, reason, refund_request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, log.OrderID, log.EventID, log.VendorAccountID, log.RefundType, log.RefundScope, log.AmountCents,
		log.Currency, log.DonationRefunded, log.Status, nullString(log.Reason), nullInt64(log.RefundRequestID)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert refund log: %w", err)
	}
	return id, nil
}

// Load returns (nil, nil) when no log has the id.
func (r *RefundLogRepository) Load(ctx context.Context, id int64) (*models.RefundLog, error) {
	var log models.RefundLog
	var reason, errorMessage, gatewayRefundID sql.NullString
	var requestID sql.NullInt64
	var completed sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, event_id, vendor_account_id, refund_type, refund_scope, amount_cents,
		       currency, donation_refunded, status, reason, error_message, gateway_refund_id,
		       refund_request_id, created, completed
		FROM refund_log WHERE id = $1
	`, id).Scan(&log.ID, &log.OrderID, &log.EventID, &log.VendorAccountID, &log.RefundType, &log.RefundScope,
		&log.AmountCents, &log.Currency, &log.DonationRefunded, &log.Status, &reason, &errorMessage,
		&gatewayRefundID, &requestID, &log.Created, &completed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load refund log %d: %w", id, err)
	}

	if reason.Valid {
		log.Reason = &reason.String
	}
	if errorMessage.Valid {
		log.ErrorMessage = &errorMessage.String
	}
	if gatewayRefundID.Valid {
		log.GatewayRefundID = &gatewayRefundID.String
	}
	if requestID.Valid {
		log.RefundRequestID = &requestID.Int64
	}
	if completed.Valid {
		log.Completed = &completed.Time
	}
	return &log, nil
}

// MarkCompleted moves a pending log to completed. It reports false when the
// log was no longer pending.
func (r *RefundLogRepository) MarkCompleted(ctx context.Context, id int64, gatewayRefundID string, at time.Time) (bool, error) {
	var refundID *string
	if gatewayRefundID != "" {
		refundID = &gatewayRefundID
	}
	return r.transition(ctx, `
		UPDATE refund_log
		SET status = $1, gateway_refund_id = $2, completed = $3
		WHERE id = $4 AND status = $5
	`, models.LogCompleted, nullString(refundID), at, id, models.LogPending)
}

// MarkFailed moves a pending log to failed with the given message.
func (r *RefundLogRepository) MarkFailed(ctx context.Context, id int64, errorMessage string, at time.Time) (bool, error) {
	return r.transition(ctx, `
		UPDATE refund_log
		SET status = $1, error_message = $2, completed = $3
		WHERE id = $4 AND status = $5
	`, models.LogFailed, errorMessage, at, id, models.LogPending)
}

func (r *RefundLogRepository) transition(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// PendingAmountCents sums the amounts of the order's logs that have not run yet.
func (r *RefundLogRepository) PendingAmountCents(ctx context.Context, orderID int64) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM refund_log WHERE order_id = $1 AND status = $2
	`, orderID, models.LogPending).Scan(&total)
	return total, err
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}
