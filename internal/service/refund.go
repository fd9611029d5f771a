package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/money"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
)

// resolveAmount turns a payload into the cents to refund and whether the
// refund covers donations.
func resolveAmount(order *models.Order, eventID int64, payload models.RefundPayload) (int64, bool, error) {
	switch payload.RefundType {
	case models.RefundPartial:
		return payload.AmountCents, payload.IncludeDonation, nil
	case models.RefundFull:
	default:
		return 0, false, &ValidationError{Field: "refund_type", Message: fmt.Sprintf("unknown refund type %q", payload.RefundType)}
	}

	tickets := money.TicketSubtotalCents(order, eventID)
	switch payload.RefundScope {
	case models.ScopeTicketsOnly:
		return tickets, false, nil
	case models.ScopeTicketsAndDonation:
		if payload.IncludeDonation {
			return tickets + money.DonationTotalCents(order), true, nil
		}
		return tickets, false, nil
	case models.ScopeDonationOnly:
		return money.DonationTotalCents(order), true, nil
	}
	return 0, false, &ValidationError{Field: "refund_scope", Message: fmt.Sprintf("unknown refund scope %q", payload.RefundScope)}
}

// RequestRefund validates a vendor refund, writes its pending audit row and
// queues it for execution. It returns the refund log id.
//
// The amount check and the audit row insert run under the order lock, and
// amounts already reserved by pending logs on the order count against the
// refundable total.
func (o *Orchestrator) RequestRefund(ctx context.Context, order *models.Order, event *models.Event, account *models.Account, payload models.RefundPayload) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "refund.request_refund",
		attribute.Int64("order_id", order.ID),
		attribute.Int64("event_id", event.ID),
		attribute.String("refund_type", string(payload.RefundType)),
		attribute.String("refund_scope", string(payload.RefundScope)),
	)
	defer span.End()

	ok, err := o.access.VendorCanRefundOrder(ctx, order, event, account)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &AccessDeniedError{AccountID: accountID(account), OrderID: order.ID, EventID: event.ID}
	}

	amount, _, err := resolveAmount(order, event.ID, payload)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, &InvalidAmountError{AmountCents: amount}
	}

	unlock, err := o.lockOrder(ctx, order.ID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	order, err = o.reloadOrder(ctx, order.ID)
	if err != nil {
		return 0, err
	}

	logID, err := o.requestRefund(ctx, order, event, account, payload)
	if err != nil {
		span.RecordError(err)
	}
	return logID, err
}

// requestRefund writes the pending audit row and queues it. The caller
// holds the order lock and passes an order loaded under it.
func (o *Orchestrator) requestRefund(ctx context.Context, order *models.Order, event *models.Event, account *models.Account, payload models.RefundPayload) (int64, error) {
	amount, donationRefunded, err := resolveAmount(order, event.ID, payload)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, &InvalidAmountError{AmountCents: amount}
	}

	pending, err := o.logs.PendingAmountCents(ctx, order.ID)
	if err != nil {
		return 0, fmt.Errorf("sum pending refunds for order %d: %w", order.ID, err)
	}
	refundable := money.RefundableAmountCents(order) - pending
	if refundable < 0 {
		refundable = 0
	}
	if amount > refundable {
		return 0, &ExceedsRefundableError{AmountCents: amount, RefundableCents: refundable}
	}

	log := &models.RefundLog{
		OrderID:          order.ID,
		EventID:          event.ID,
		VendorAccountID:  account.ID,
		RefundType:       payload.RefundType,
		RefundScope:      payload.RefundScope,
		AmountCents:      amount,
		Currency:         order.TotalPrice.Currency,
		DonationRefunded: donationRefunded,
		Status:           models.LogPending,
		RefundRequestID:  payload.RefundRequestID,
	}
	if payload.Reason != "" {
		reason := payload.Reason
		log.Reason = &reason
	}

	logID, err := o.logs.Create(ctx, log)
	if err != nil {
		return 0, fmt.Errorf("create refund log for order %d: %w", order.ID, err)
	}

	telemetry.RefundAmount.Observe(float64(amount))
	telemetry.Logger.Info("Refund log created",
		zap.Int64("refund_log_id", logID),
		zap.Int64("order_id", order.ID),
		zap.Int64("event_id", event.ID),
		zap.Int64("amount_cents", amount),
		zap.String("refund_type", string(payload.RefundType)),
		zap.String("refund_scope", string(payload.RefundScope)),
	)

	// Execution is decoupled; a lost message leaves the log pending for a
	// manual re-run.
	if err := o.queue.Enqueue(ctx, o.queueName, models.RefundJob{LogID: logID}); err != nil {
		telemetry.Logger.Error("Failed to enqueue refund execution",
			zap.Int64("refund_log_id", logID),
			zap.Error(err),
		)
	}

	return logID, nil
}

// reloadOrder reads the order again so balances reflect refunds that
// finished before the lock was taken.
func (o *Orchestrator) reloadOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := o.commerce.LoadOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("reload order %d: %w", orderID, err)
	}
	if order == nil {
		return nil, &NotFoundError{Entity: "order", ID: orderID}
	}
	return order, nil
}
