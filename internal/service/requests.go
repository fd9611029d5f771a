package service

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/money"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
)

// RequestBuyerRefund records a buyer's refund ask for the tickets they hold
// on event, pending the vendor's decision.
func (o *Orchestrator) RequestBuyerRefund(ctx context.Context, order *models.Order, event *models.Event, buyer *models.Account) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "refund.request_buyer_refund",
		attribute.Int64("order_id", order.ID),
		attribute.Int64("event_id", event.ID),
	)
	defer span.End()

	if reason := o.policy.IneligibilityReason(order, event, buyer); reason != "" {
		return 0, &IneligibleError{Reason: reason}
	}

	amount := money.TicketSubtotalCents(order, event.ID)
	if amount <= 0 {
		return 0, &InvalidAmountError{AmountCents: amount}
	}

	req := &models.RefundRequest{
		OrderID:         order.ID,
		EventID:         event.ID,
		BuyerAccountID:  buyer.ID,
		VendorAccountID: event.OwnerAccountID,
		AmountCents:     amount,
		Currency:        order.TotalPrice.Currency,
		Status:          models.RequestRequested,
	}
	id, err := o.requests.Create(ctx, req)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("create refund request: %w", err)
	}

	telemetry.RefundRequests.WithLabelValues(string(models.RequestRequested)).Inc()
	telemetry.Logger.Info("Refund request created",
		zap.Int64("refund_request_id", id),
		zap.Int64("order_id", order.ID),
		zap.Int64("event_id", event.ID),
		zap.Int64("amount_cents", amount),
	)

	data := map[string]any{
		"refund_request_id": id,
		"order_id":          order.ID,
		"event_id":          event.ID,
		"event_title":       event.Title,
		"amount_cents":      amount,
		"currency":          req.Currency,
	}
	o.notify(ctx, TemplateRequestCreated, o.buyerEmail(ctx, order), data)
	o.notify(ctx, TemplateRequestCreated, o.accountEmail(ctx, event.OwnerAccountID), data)

	return id, nil
}

// loadDecisionContext runs the guards shared by approval and rejection: the
// request must exist and still be requested, its order and event must
// exist, and vendor must be able to refund the order.
func (o *Orchestrator) loadDecisionContext(ctx context.Context, requestID int64, vendor *models.Account) (*models.RefundRequest, *models.Order, *models.Event, error) {
	req, err := o.requests.Load(ctx, requestID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load refund request %d: %w", requestID, err)
	}
	if req == nil || req.Status != models.RequestRequested {
		return nil, nil, nil, &NotFoundError{Entity: "pending refund request", ID: requestID}
	}

	order, err := o.commerce.LoadOrder(ctx, req.OrderID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load order %d: %w", req.OrderID, err)
	}
	if order == nil {
		return nil, nil, nil, &NotFoundError{Entity: "order", ID: req.OrderID}
	}

	event, err := o.commerce.LoadEvent(ctx, req.EventID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load event %d: %w", req.EventID, err)
	}
	if event == nil {
		return nil, nil, nil, &NotFoundError{Entity: "event", ID: req.EventID}
	}

	ok, err := o.access.VendorCanRefundOrder(ctx, order, event, vendor)
	if err != nil {
		return nil, nil, nil, err
	}
	if !ok {
		return nil, nil, nil, &AccessDeniedError{AccountID: accountID(vendor), OrderID: order.ID, EventID: event.ID}
	}

	return req, order, event, nil
}

// lockPendingRequest takes the order lock and reads the request again under
// it, so exactly one decision is applied to a request. The returned func
// releases the lock.
func (o *Orchestrator) lockPendingRequest(ctx context.Context, req *models.RefundRequest) (*models.RefundRequest, *models.Order, func(), error) {
	unlock, err := o.lockOrder(ctx, req.OrderID)
	if err != nil {
		return nil, nil, nil, err
	}

	current, err := o.requests.Load(ctx, req.ID)
	if err != nil {
		unlock()
		return nil, nil, nil, fmt.Errorf("reload refund request %d: %w", req.ID, err)
	}
	if current == nil || current.Status != models.RequestRequested {
		unlock()
		return nil, nil, nil, &NotFoundError{Entity: "pending refund request", ID: req.ID}
	}

	order, err := o.reloadOrder(ctx, req.OrderID)
	if err != nil {
		unlock()
		return nil, nil, nil, err
	}
	return current, order, unlock, nil
}

// ApproveBuyerRefundRequest accepts a pending request and turns it into a
// full, tickets-only refund. It returns the id of the created refund log.
func (o *Orchestrator) ApproveBuyerRefundRequest(ctx context.Context, requestID int64, vendor *models.Account) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "refund.approve_buyer_request", attribute.Int64("refund_request_id", requestID))
	defer span.End()

	req, order, event, err := o.loadDecisionContext(ctx, requestID, vendor)
	if err != nil {
		return 0, err
	}

	req, order, unlock, err := o.lockPendingRequest(ctx, req)
	if err != nil {
		return 0, err
	}
	defer unlock()

	approved := models.RequestApproved
	if err := o.requests.Update(ctx, req.ID, models.RefundRequestUpdate{Status: &approved}); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("approve refund request %d: %w", req.ID, err)
	}
	telemetry.RefundRequests.WithLabelValues(string(models.RequestApproved)).Inc()

	logID, err := o.requestRefund(ctx, order, event, vendor, models.RefundPayload{
		RefundType:      models.RefundFull,
		RefundScope:     models.ScopeTicketsOnly,
		IncludeDonation: false,
		Reason:          fmt.Sprintf("Buyer refund request #%d approved", req.ID),
		RefundRequestID: &req.ID,
	})
	if err != nil {
		// The approval stands; the vendor can still issue a direct refund.
		telemetry.Logger.Error("Approved refund request could not be executed",
			zap.Int64("refund_request_id", req.ID),
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)
		return 0, err
	}

	if err := o.requests.Update(ctx, req.ID, models.RefundRequestUpdate{RefundLogID: &logID}); err != nil {
		return 0, fmt.Errorf("link refund log %d to request %d: %w", logID, req.ID, err)
	}

	telemetry.Logger.Info("Refund request approved",
		zap.Int64("refund_request_id", req.ID),
		zap.Int64("refund_log_id", logID),
		zap.Int64("order_id", order.ID),
	)

	data := map[string]any{
		"refund_request_id": req.ID,
		"refund_log_id":     logID,
		"order_id":          order.ID,
		"event_title":       event.Title,
		"amount_cents":      req.AmountCents,
		"currency":          req.Currency,
	}
	o.notify(ctx, TemplateRequestApproved, o.buyerEmail(ctx, order), data)
	o.notify(ctx, TemplateRequestApproved, vendor.Email, data)

	return logID, nil
}

// RejectBuyerRefundRequest declines a pending request. No refund is ever
// executed for a rejected request.
func (o *Orchestrator) RejectBuyerRefundRequest(ctx context.Context, requestID int64, vendor *models.Account, reason string) error {
	ctx, span := telemetry.StartSpan(ctx, "refund.reject_buyer_request", attribute.Int64("refund_request_id", requestID))
	defer span.End()

	req, order, event, err := o.loadDecisionContext(ctx, requestID, vendor)
	if err != nil {
		return err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return &ValidationError{Field: "reason", Message: "a reason is required to reject a refund request"}
	}

	req, order, unlock, err := o.lockPendingRequest(ctx, req)
	if err != nil {
		return err
	}
	defer unlock()

	rejected := models.RequestRejected
	if err := o.requests.Update(ctx, req.ID, models.RefundRequestUpdate{Status: &rejected, DecisionReason: &reason}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("reject refund request %d: %w", req.ID, err)
	}

	telemetry.RefundRequests.WithLabelValues(string(models.RequestRejected)).Inc()
	telemetry.Logger.Info("Refund request rejected",
		zap.Int64("refund_request_id", req.ID),
		zap.Int64("order_id", order.ID),
		zap.String("reason", reason),
	)

	data := map[string]any{
		"refund_request_id": req.ID,
		"order_id":          order.ID,
		"event_title":       event.Title,
		"amount_cents":      req.AmountCents,
		"currency":          req.Currency,
		"reason":            reason,
	}
	o.notify(ctx, TemplateRequestRejected, o.buyerEmail(ctx, order), data)
	o.notify(ctx, TemplateRequestRejected, vendor.Email, data)

	return nil
}

func accountID(a *models.Account) int64 {
	if a == nil {
		return 0
	}
	return a.ID
}
