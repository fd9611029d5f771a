package models

import "time"

type RefundRequestStatus string

const (
	RequestRequested RefundRequestStatus = "requested"
	RequestApproved  RefundRequestStatus = "approved"
	RequestRejected  RefundRequestStatus = "rejected"
	RequestCompleted RefundRequestStatus = "completed"
)

type RefundLogStatus string

const (
	LogPending   RefundLogStatus = "pending"
	LogCompleted RefundLogStatus = "completed"
	LogFailed    RefundLogStatus = "failed"
)

type RefundType string

const (
	RefundFull    RefundType = "full"
	RefundPartial RefundType = "partial"
)

type RefundScope string

const (
	ScopeTicketsOnly        RefundScope = "tickets_only"
	ScopeTicketsAndDonation RefundScope = "tickets_and_donation"
	ScopeDonationOnly       RefundScope = "donation_only"
)

// RefundRequest is a buyer's ask, waiting on a vendor decision.
type RefundRequest struct {
	ID              int64               `json:"id"`
	OrderID         int64               `json:"order_id"`
	EventID         int64               `json:"event_id"`
	BuyerAccountID  int64               `json:"buyer_account_id"`
	VendorAccountID int64               `json:"vendor_account_id"`
	AmountCents     int64               `json:"amount_cents"`
	Currency        string              `json:"currency"`
	Status          RefundRequestStatus `json:"status"`
	DecisionReason  *string             `json:"decision_reason,omitempty"`
	RefundLogID     *int64              `json:"refund_log_id,omitempty"`
	Created         time.Time           `json:"created"`
	Updated         time.Time           `json:"updated"`
}

// RefundRequestUpdate carries the fields to change on a request. Nil
// fields are left untouched.
type RefundRequestUpdate struct {
	Status         *RefundRequestStatus
	DecisionReason *string
	RefundLogID    *int64
}

// RefundLog is the audit record of one refund execution attempt.
type RefundLog struct {
	ID               int64           `json:"id"`
	OrderID          int64           `json:"order_id"`
	EventID          int64           `json:"event_id"`
	VendorAccountID  int64           `json:"vendor_account_id"`
	RefundType       RefundType      `json:"refund_type"`
	RefundScope      RefundScope     `json:"refund_scope"`
	AmountCents      int64           `json:"amount_cents"`
	Currency         string          `json:"currency"`
	DonationRefunded bool            `json:"donation_refunded"`
	Status           RefundLogStatus `json:"status"`
	Reason           *string         `json:"reason,omitempty"`
	ErrorMessage     *string         `json:"error_message,omitempty"`
	GatewayRefundID  *string         `json:"gateway_refund_id,omitempty"`
	RefundRequestID  *int64          `json:"refund_request_id,omitempty"`
	Created          time.Time       `json:"created"`
	Completed        *time.Time      `json:"completed,omitempty"`
}

// RefundPayload is the vendor's refund intent, either typed in directly or
// synthesized from an approved buyer request.
type RefundPayload struct {
	RefundType      RefundType  `json:"refund_type" binding:"required,oneof=full partial"`
	RefundScope     RefundScope `json:"refund_scope" binding:"required,oneof=tickets_only tickets_and_donation donation_only"`
	IncludeDonation bool        `json:"include_donation"`
	AmountCents     int64       `json:"amount_cents"`
	Reason          string      `json:"reason"`
	RefundRequestID *int64      `json:"-"`
}

// RefundJob is the queue message that triggers execution.
type RefundJob struct {
	LogID int64 `json:"log_id"`
}

// RefundStateEvent is published on every terminal RefundLog transition.
type RefundStateEvent struct {
	RefundLogID     int64           `json:"refund_log_id"`
	OrderID         int64           `json:"order_id"`
	EventID         int64           `json:"event_id"`
	Status          RefundLogStatus `json:"status"`
	AmountCents     int64           `json:"amount_cents"`
	Currency        string          `json:"currency"`
	GatewayRefundID string          `json:"gateway_refund_id,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}
