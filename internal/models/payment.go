package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Money is a decimal amount in a single currency. Amounts are never floats.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func NewMoney(amount, currency string) Money {
	return Money{Amount: decimal.RequireFromString(amount), Currency: currency}
}

type PaymentState string

const (
	PaymentCompleted         PaymentState = "completed"
	PaymentPartiallyRefunded PaymentState = "partially_refunded"
	PaymentRefunded          PaymentState = "refunded"
	PaymentFailed            PaymentState = "failed"
)

// Refundable reports whether a payment in this state still carries money
// that can be returned.
func (s PaymentState) Refundable() bool {
	return s == PaymentCompleted || s == PaymentPartiallyRefunded
}

type Payment struct {
	ID             int64        `json:"id"`
	OrderID        int64        `json:"order_id"`
	RemoteID       string       `json:"remote_id"` // gateway reference, e.g. a Stripe payment intent
	Gateway        string       `json:"gateway"`
	Amount         Money        `json:"amount"`
	RefundedAmount Money        `json:"refunded_amount"`
	State          PaymentState `json:"state"`
	CreatedAt      time.Time    `json:"created_at"`
}
