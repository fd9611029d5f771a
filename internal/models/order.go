package models

import "time"

type OrderState string

const (
	OrderDraft     OrderState = "draft"
	OrderPlaced    OrderState = "placed"
	OrderCompleted OrderState = "completed"
	OrderFulfilled OrderState = "fulfilled"
	OrderCanceled  OrderState = "canceled"
)

// Refundable reports whether money on an order in this state may be returned.
func (s OrderState) Refundable() bool {
	switch s {
	case OrderCompleted, OrderFulfilled, OrderPlaced:
		return true
	}
	return false
}

// Bundle discriminates the kind of line item.
type Bundle string

const (
	BundleTicket            Bundle = "ticket"
	BundleDonation          Bundle = "donation"
	BundleDonationRecurring Bundle = "donation_recurring"
	BundleDonationTribute   Bundle = "donation_tribute"
	BundleDonationCampaign  Bundle = "donation_campaign"
)

type Order struct {
	ID         int64       `json:"id"`
	CustomerID int64       `json:"customer_id"`
	Email      string      `json:"email"`
	State      OrderState  `json:"state"`
	TotalPrice Money       `json:"total_price"`
	Items      []OrderItem `json:"items"`
	Payments   []Payment   `json:"payments"`
	PlacedAt   *time.Time  `json:"placed_at,omitempty"`
}

type OrderItem struct {
	ID         int64  `json:"id"`
	OrderID    int64  `json:"order_id"`
	Bundle     Bundle `json:"bundle"`
	EventID    *int64 `json:"event_id,omitempty"`
	Quantity   int    `json:"quantity"`
	TotalPrice Money  `json:"total_price"`
}

// TargetsEvent reports whether the item references the given event.
func (i OrderItem) TargetsEvent(eventID int64) bool {
	return i.EventID != nil && *i.EventID == eventID
}
