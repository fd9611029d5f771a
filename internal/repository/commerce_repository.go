package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
)

// CommerceRepository reads the commerce tables this service does not own
// and records gateway refunds against payments.
type CommerceRepository struct {
	db       *sql.DB
	adminIDs map[int64]struct{}
}

func NewCommerceRepository(db *sql.DB, adminAccountIDs []int64) *CommerceRepository {
	admins := make(map[int64]struct{}, len(adminAccountIDs))
	for _, id := range adminAccountIDs {
		admins[id] = struct{}{}
	}
	return &CommerceRepository{db: db, adminIDs: admins}
}

// LoadOrder returns the order with its items and payments, or (nil, nil).
func (r *CommerceRepository) LoadOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	var placedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, COALESCE(email, ''), state, total_amount, currency, placed_at
		FROM orders WHERE id = $1
	`, id).Scan(&order.ID, &order.CustomerID, &order.Email, &order.State,
		&order.TotalPrice.Amount, &order.TotalPrice.Currency, &placedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}
	if placedAt.Valid {
		order.PlacedAt = &placedAt.Time
	}

	if order.Items, err = r.loadItems(ctx, id); err != nil {
		return nil, err
	}
	if order.Payments, err = r.loadPayments(ctx, id); err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *CommerceRepository) loadItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, bundle, event_id, quantity, total_amount, currency
		FROM order_items WHERE order_id = $1 ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load items for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		var eventID sql.NullInt64
		if err := rows.Scan(&item.ID, &item.OrderID, &item.Bundle, &eventID, &item.Quantity,
			&item.TotalPrice.Amount, &item.TotalPrice.Currency); err != nil {
			return nil, err
		}
		if eventID.Valid {
			item.EventID = &eventID.Int64
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *CommerceRepository) loadPayments(ctx context.Context, orderID int64) ([]models.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, COALESCE(remote_id, ''), gateway, amount, refunded_amount, currency, state, created_at
		FROM payments WHERE order_id = $1 ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load payments for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.RemoteID, &p.Gateway, &p.Amount.Amount,
			&p.RefundedAmount.Amount, &p.Amount.Currency, &p.State, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.RefundedAmount.Currency = p.Amount.Currency
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *CommerceRepository) LoadEvent(ctx context.Context, id int64) (*models.Event, error) {
	var event models.Event
	var storeID sql.NullInt64
	var startsAt sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, owner_account_id, store_id, refund_policy, starts_at
		FROM events WHERE id = $1
	`, id).Scan(&event.ID, &event.Title, &event.OwnerAccountID, &storeID, &event.RefundPolicy, &startsAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load event %d: %w", id, err)
	}
	if storeID.Valid {
		event.StoreID = &storeID.Int64
	}
	if startsAt.Valid {
		event.StartsAt = &startsAt.Time
	}
	return &event, nil
}

// LoadAccount resolves an account. Accounts listed in ADMIN_ACCOUNT_IDS get
// the platform-admin capability on top of the stored flag.
func (r *CommerceRepository) LoadAccount(ctx context.Context, id int64) (*models.Account, error) {
	var account models.Account
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, is_admin FROM accounts WHERE id = $1
	`, id).Scan(&account.ID, &account.Email, &account.IsAdmin)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load account %d: %w", id, err)
	}
	if _, ok := r.adminIDs[id]; ok {
		account.IsAdmin = true
	}
	return &account, nil
}

// StoreForAccount returns the store the account owns, if any.
func (r *CommerceRepository) StoreForAccount(ctx context.Context, account *models.Account) (*models.Store, error) {
	var store models.Store
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_account_id FROM stores WHERE owner_account_id = $1 ORDER BY id LIMIT 1
	`, account.ID).Scan(&store.ID, &store.OwnerAccountID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load store for account %d: %w", account.ID, err)
	}
	return &store, nil
}

func (r *CommerceRepository) StoreOwnsEvent(_ context.Context, store *models.Store, event *models.Event) (bool, error) {
	return event.StoreID != nil && *event.StoreID == store.ID, nil
}

// RecordPaymentRefund adds amountCents to the payment's refunded amount
// and moves its state to partially_refunded or refunded. The gateway refund
// is entered in refund_payment first; a refund already there is not counted
// again.
func (r *CommerceRepository) RecordPaymentRefund(ctx context.Context, logID, paymentID int64, gatewayRefundID string, amountCents int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin refund record for payment %d: %w", paymentID, err)
	}
	defer tx.Rollback()

	inserted, err := tx.ExecContext(ctx, `
		INSERT INTO refund_payment (gateway_refund_id, refund_log_id, payment_id, amount_cents)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (gateway_refund_id) DO NOTHING
	`, gatewayRefundID, logID, paymentID, amountCents)
	if err != nil {
		return fmt.Errorf("record gateway refund %s: %w", gatewayRefundID, err)
	}
	if n, err := inserted.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return tx.Commit()
	}

	amount := decimal.New(amountCents, -2)
	result, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET refunded_amount = refunded_amount + $1,
		    state = CASE WHEN refunded_amount + $1 >= amount THEN $2 ELSE $3 END
		WHERE id = $4
	`, amount, models.PaymentRefunded, models.PaymentPartiallyRefunded, paymentID)
	if err != nil {
		return fmt.Errorf("record refund on payment %d: %w", paymentID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("record refund on payment %d: %w", paymentID, sql.ErrNoRows)
	}
	return tx.Commit()
}

// GatewayRefundForLog returns the gateway refund recorded for a refund log,
// or "" when none was.
func (r *CommerceRepository) GatewayRefundForLog(ctx context.Context, logID int64) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		SELECT gateway_refund_id FROM refund_payment WHERE refund_log_id = $1 ORDER BY created LIMIT 1
	`, logID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load gateway refund for log %d: %w", logID, err)
	}
	return id, nil
}
