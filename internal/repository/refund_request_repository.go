package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
)

// RefundRequestRepository is the request ledger. It does not check which
// status transitions are legal.
type RefundRequestRepository struct {
	db *sql.DB
}

func NewRefundRequestRepository(db *sql.DB) *RefundRequestRepository {
	return &RefundRequestRepository{db: db}
}

func (r *RefundRequestRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS refund_request (
			id BIGSERIAL PRIMARY KEY,
			order_id BIGINT NOT NULL,
			event_id BIGINT NOT NULL,
			buyer_account_id BIGINT NOT NULL,
			vendor_account_id BIGINT NOT NULL,
			amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
			currency VARCHAR(3) NOT NULL,
			status VARCHAR(20) NOT NULL,
			decision_reason TEXT,
			refund_log_id BIGINT,
			created TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_refund_request_event_status ON refund_request(event_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_refund_request_order ON refund_request(order_id)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (r *RefundRequestRepository) Create(ctx context.Context, req *models.RefundRequest) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO refund_request
			(order_id, event_id, buyer_account_id, vendor_account_id, amount_cents, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, req.OrderID, req.EventID, req.BuyerAccountID, req.VendorAccountID, req.AmountCents, req.Currency, req.Status).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert refund request: %w", err)
	}
	return id, nil
}

const refundRequestColumns = `id, order_id, event_id, buyer_account_id, vendor_account_id, amount_cents,
	currency, status, decision_reason, refund_log_id, created, updated`

func scanRefundRequest(row interface{ Scan(...any) error }) (*models.RefundRequest, error) {
	var req models.RefundRequest
	var reason sql.NullString
	var logID sql.NullInt64

	err := row.Scan(&req.ID, &req.OrderID, &req.EventID, &req.BuyerAccountID, &req.VendorAccountID,
		&req.AmountCents, &req.Currency, &req.Status, &reason, &logID, &req.Created, &req.Updated)
	if err != nil {
		return nil, err
	}
	if reason.Valid {
		req.DecisionReason = &reason.String
	}
	if logID.Valid {
		req.RefundLogID = &logID.Int64
	}
	return &req, nil
}

// Load returns (nil, nil) when no request has the id.
func (r *RefundRequestRepository) Load(ctx context.Context, id int64) (*models.RefundRequest, error) {
	req, err := scanRefundRequest(r.db.QueryRowContext(ctx,
		`SELECT `+refundRequestColumns+` FROM refund_request WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load refund request %d: %w", id, err)
	}
	return req, nil
}

// Update writes the non-nil fields and always stamps updated.
func (r *RefundRequestRepository) Update(ctx context.Context, id int64, fields models.RefundRequestUpdate) error {
	sets := []string{"updated = NOW()"}
	var args []any

	if fields.Status != nil {
		args = append(args, *fields.Status)
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if fields.DecisionReason != nil {
		args = append(args, *fields.DecisionReason)
		sets = append(sets, fmt.Sprintf("decision_reason = $%d", len(args)))
	}
	if fields.RefundLogID != nil {
		args = append(args, *fields.RefundLogID)
		sets = append(sets, fmt.Sprintf("refund_log_id = $%d", len(args)))
	}
	args = append(args, id)

	result, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE refund_request SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)),
		args...)
	if err != nil {
		return fmt.Errorf("update refund request %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("update refund request %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// LoadPendingByEvent lists requests still awaiting a vendor decision,
// newest first.
func (r *RefundRequestRepository) LoadPendingByEvent(ctx context.Context, eventID int64) ([]*models.RefundRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+refundRequestColumns+`
		FROM refund_request
		WHERE event_id = $1 AND status = $2
		ORDER BY created DESC, id DESC
	`, eventID, models.RequestRequested)
	if err != nil {
		return nil, fmt.Errorf("list pending refund requests for event %d: %w", eventID, err)
	}
	defer rows.Close()

	var out []*models.RefundRequest
	for rows.Next() {
		req, err := scanRefundRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
