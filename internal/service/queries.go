package service

import (
	"context"
	"fmt"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/money"
)

// RefundSummary is what a buyer or vendor sees before asking for a refund.
type RefundSummary struct {
	OrderID             int64  `json:"order_id"`
	EventID             int64  `json:"event_id"`
	Currency            string `json:"currency"`
	TicketSubtotalCents int64  `json:"ticket_subtotal_cents"`
	DonationTotalCents  int64  `json:"donation_total_cents"`
	RefundableCents     int64  `json:"refundable_cents"`
	PendingCents        int64  `json:"pending_cents"`
	Eligible            bool   `json:"eligible"`
	IneligibleReason    string `json:"ineligible_reason,omitempty"`
}

// PendingRefundRequests lists an event's undecided requests for a vendor.
func (o *Orchestrator) PendingRefundRequests(ctx context.Context, eventID int64, account *models.Account) ([]*models.RefundRequest, error) {
	event, err := o.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := o.requireManager(ctx, event, account, 0); err != nil {
		return nil, err
	}
	reqs, err := o.requests.LoadPendingByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load pending refund requests for event %d: %w", eventID, err)
	}
	return reqs, nil
}

// RefundRequest returns a request to its buyer or to a vendor of its event.
func (o *Orchestrator) RefundRequest(ctx context.Context, id int64, account *models.Account) (*models.RefundRequest, error) {
	req, err := o.requests.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load refund request %d: %w", id, err)
	}
	if req == nil {
		return nil, &NotFoundError{Entity: "refund request", ID: id}
	}
	if account.Authenticated() && account.ID == req.BuyerAccountID {
		return req, nil
	}

	event, err := o.loadEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if err := o.requireManager(ctx, event, account, req.OrderID); err != nil {
		return nil, err
	}
	return req, nil
}

// RefundLog returns an execution record to a vendor of its event.
func (o *Orchestrator) RefundLog(ctx context.Context, id int64, account *models.Account) (*models.RefundLog, error) {
	log, err := o.logs.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load refund log %d: %w", id, err)
	}
	if log == nil {
		return nil, &NotFoundError{Entity: "refund log", ID: id}
	}

	event, err := o.loadEvent(ctx, log.EventID)
	if err != nil {
		return nil, err
	}
	if err := o.requireManager(ctx, event, account, log.OrderID); err != nil {
		return nil, err
	}
	return log, nil
}

// Summary reports the refundable breakdown of an order for an event. The
// buyer and the event's vendors may read it.
func (o *Orchestrator) Summary(ctx context.Context, order *models.Order, event *models.Event, account *models.Account) (*RefundSummary, error) {
	if !account.Authenticated() || account.ID != order.CustomerID {
		if err := o.requireManager(ctx, event, account, order.ID); err != nil {
			return nil, err
		}
	}

	pending, err := o.logs.PendingAmountCents(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("sum pending refunds for order %d: %w", order.ID, err)
	}
	refundable := money.RefundableAmountCents(order) - pending
	if refundable < 0 {
		refundable = 0
	}

	reason := o.policy.IneligibilityReason(order, event, account)
	return &RefundSummary{
		OrderID:             order.ID,
		EventID:             event.ID,
		Currency:            order.TotalPrice.Currency,
		TicketSubtotalCents: money.TicketSubtotalCents(order, event.ID),
		DonationTotalCents:  money.DonationTotalCents(order),
		RefundableCents:     refundable,
		PendingCents:        pending,
		Eligible:            reason == "",
		IneligibleReason:    reason,
	}, nil
}

func (o *Orchestrator) loadEvent(ctx context.Context, id int64) (*models.Event, error) {
	event, err := o.commerce.LoadEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load event %d: %w", id, err)
	}
	if event == nil {
		return nil, &NotFoundError{Entity: "event", ID: id}
	}
	return event, nil
}

func (o *Orchestrator) requireManager(ctx context.Context, event *models.Event, account *models.Account, orderID int64) error {
	ok, err := o.access.VendorCanManageEvent(ctx, event, account)
	if err != nil {
		return err
	}
	if !ok {
		return &AccessDeniedError{AccountID: accountID(account), OrderID: orderID, EventID: event.ID}
	}
	return nil
}
