package service

import (
	"errors"
	"fmt"
)

// ErrOrderBusy is returned when another refund on the same order holds the
// order lock.
var ErrOrderBusy = errors.New("another refund is in progress for this order")

// IneligibleError means the buyer-side policy gate failed.
type IneligibleError struct {
	Reason string
}

func (e *IneligibleError) Error() string {
	return "refund not eligible: " + e.Reason
}

// AccessDeniedError means the account may not act as vendor for the order.
type AccessDeniedError struct {
	AccountID int64
	OrderID   int64
	EventID   int64
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("account %d may not refund order %d for event %d", e.AccountID, e.OrderID, e.EventID)
}

type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// Permanent marks the error as one a retry cannot fix.
func (e *NotFoundError) Permanent() bool { return true }

type InvalidAmountError struct {
	AmountCents int64
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("refund amount must be positive, got %d cents", e.AmountCents)
}

type ExceedsRefundableError struct {
	AmountCents     int64
	RefundableCents int64
}

func (e *ExceedsRefundableError) Error() string {
	return fmt.Sprintf("refund amount %d cents exceeds refundable amount %d cents", e.AmountCents, e.RefundableCents)
}

// GatewayError is a single payment's refund failure. It never leaves
// ProcessRefund; it ends up in the log's error message.
type GatewayError struct {
	PaymentID int64
	Err       error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway refund on payment %d: %v", e.PaymentID, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// ValidationError reports malformed input such as an empty rejection reason
// or an unknown refund type.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
