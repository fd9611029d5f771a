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

// ProcessRefund executes a pending refund log against the order's payments.
// Business failures end in a failed log, not an error; errors are returned
// only for a missing log or infrastructure trouble, in which case the log is
// left pending. Calling it again for a log that is no longer pending is a no-op.
func (o *Orchestrator) ProcessRefund(ctx context.Context, logID int64) error {
	ctx, span := telemetry.StartSpan(ctx, "refund.process", attribute.Int64("refund_log_id", logID))
	defer span.End()

	log, err := o.logs.Load(ctx, logID)
	if err != nil {
		return fmt.Errorf("load refund log %d: %w", logID, err)
	}
	if log == nil {
		return &NotFoundError{Entity: "refund log", ID: logID}
	}
	if log.Status != models.LogPending {
		o.skip(log)
		return nil
	}

	unlock, err := o.lockOrder(ctx, log.OrderID)
	if err != nil {
		return err
	}
	defer unlock()

	// Another worker may have finished this log while we waited for the lock.
	log, err = o.logs.Load(ctx, logID)
	if err != nil {
		return fmt.Errorf("reload refund log %d: %w", logID, err)
	}
	if log == nil || log.Status != models.LogPending {
		if log != nil {
			o.skip(log)
		}
		return nil
	}

	gatewayRefundID, err := o.recordedRefund(ctx, log.ID)
	if err != nil {
		return err
	}

	order, err := o.commerce.LoadOrder(ctx, log.OrderID)
	if err != nil {
		return fmt.Errorf("load order %d: %w", log.OrderID, err)
	}
	if order == nil {
		return o.markRefundFailed(ctx, log, nil, fmt.Sprintf("order %d not found", log.OrderID))
	}

	event, err := o.commerce.LoadEvent(ctx, log.EventID)
	if err != nil {
		return fmt.Errorf("load event %d: %w", log.EventID, err)
	}
	if event == nil {
		return o.markRefundFailed(ctx, log, order, fmt.Sprintf("event %d not found", log.EventID))
	}

	vendor, err := o.commerce.LoadAccount(ctx, log.VendorAccountID)
	if err != nil {
		return fmt.Errorf("load vendor account %d: %w", log.VendorAccountID, err)
	}
	if vendor == nil {
		return o.markRefundFailed(ctx, log, order, fmt.Sprintf("vendor account %d not found", log.VendorAccountID))
	}

	ok, err := o.access.VendorCanRefundOrder(ctx, order, event, vendor)
	if err != nil {
		return err
	}
	if !ok && gatewayRefundID == "" {
		return o.markRefundFailed(ctx, log, order, fmt.Sprintf("account %d may no longer refund order %d", vendor.ID, order.ID))
	}

	if gatewayRefundID != "" {
		telemetry.Logger.Warn("Refund already executed, completing log",
			zap.Int64("refund_log_id", log.ID),
			zap.String("gateway_refund_id", gatewayRefundID),
		)
	} else {
		var failure string
		gatewayRefundID, failure = o.executeAgainstPayments(ctx, log, order)
		if failure != "" {
			return o.markRefundFailed(ctx, log, order, failure)
		}
	}

	changed, err := o.logs.MarkCompleted(ctx, log.ID, gatewayRefundID, o.now())
	if err != nil {
		// The money has moved; surface loudly so the row can be fixed by hand.
		telemetry.Logger.Error("Refund executed but log could not be completed",
			zap.Int64("refund_log_id", log.ID),
			zap.String("gateway_refund_id", gatewayRefundID),
			zap.Error(err),
		)
		return fmt.Errorf("complete refund log %d: %w", log.ID, err)
	}
	if !changed {
		telemetry.Logger.Warn("Refund log left pending state concurrently",
			zap.Int64("refund_log_id", log.ID),
		)
	}

	if log.RefundRequestID != nil {
		completed := models.RequestCompleted
		if err := o.requests.Update(ctx, *log.RefundRequestID, models.RefundRequestUpdate{Status: &completed}); err != nil {
			telemetry.Logger.Error("Failed to complete refund request",
				zap.Int64("refund_request_id", *log.RefundRequestID),
				zap.Int64("refund_log_id", log.ID),
				zap.Error(err),
			)
		}
	}

	telemetry.RefundExecutions.WithLabelValues(string(models.LogCompleted)).Inc()
	telemetry.Logger.Info("Refund completed",
		zap.Int64("refund_log_id", log.ID),
		zap.Int64("order_id", log.OrderID),
		zap.Int64("amount_cents", log.AmountCents),
		zap.String("gateway_refund_id", gatewayRefundID),
	)
	o.publishState(ctx, log, models.LogCompleted, gatewayRefundID, "")

	data := map[string]any{
		"refund_log_id":     log.ID,
		"order_id":          order.ID,
		"event_title":       event.Title,
		"amount_cents":      log.AmountCents,
		"currency":          log.Currency,
		"gateway_refund_id": gatewayRefundID,
	}
	o.notify(ctx, TemplateRefundCompleted, o.buyerEmail(ctx, order), data)
	o.notify(ctx, TemplateRefundCompleted, vendor.Email, data)

	return nil
}

// recordedRefund returns the gateway refund an earlier run of this log
// already recorded, so a retry after a lost completion write does not look
// for another payment.
func (o *Orchestrator) recordedRefund(ctx context.Context, logID int64) (string, error) {
	if o.ledger == nil {
		return "", nil
	}
	id, err := o.ledger.GatewayRefundForLog(ctx, logID)
	if err != nil {
		return "", fmt.Errorf("check recorded refund for log %d: %w", logID, err)
	}
	return id, nil
}

// executeAgainstPayments tries each refundable payment that alone covers
// the amount, stopping at the first gateway success. A gateway error on one
// payment moves on to the next. It returns the gateway refund id, or a
// failure description when nothing succeeded.
func (o *Orchestrator) executeAgainstPayments(ctx context.Context, log *models.RefundLog, order *models.Order) (string, string) {
	var attempted int
	var lastErr error

	for _, payment := range order.Payments {
		if !payment.State.Refundable() {
			continue
		}
		available := money.AvailableCents(payment)
		if available < log.AmountCents {
			telemetry.Logger.Debug("Skipping payment with insufficient balance",
				zap.Int64("refund_log_id", log.ID),
				zap.Int64("payment_id", payment.ID),
				zap.Int64("available_cents", available),
			)
			continue
		}

		attempted++
		refundID, err := o.gateway.Refund(ctx, log.ID, payment, log.AmountCents, log.Currency)
		if err != nil {
			lastErr = &GatewayError{PaymentID: payment.ID, Err: err}
			telemetry.GatewayAttempts.WithLabelValues("error").Inc()
			telemetry.Logger.Error("Gateway refund failed, trying next payment",
				zap.Int64("refund_log_id", log.ID),
				zap.Int64("payment_id", payment.ID),
				zap.Error(err),
			)
			continue
		}

		telemetry.GatewayAttempts.WithLabelValues("success").Inc()
		telemetry.Logger.Info("Gateway refund succeeded",
			zap.Int64("refund_log_id", log.ID),
			zap.Int64("payment_id", payment.ID),
			zap.String("gateway_refund_id", refundID),
		)
		return refundID, ""
	}

	if attempted == 0 {
		return "", fmt.Sprintf("no eligible payment with at least %d cents available", log.AmountCents)
	}
	return "", fmt.Sprintf("all %d gateway attempts failed; last error: %v", attempted, lastErr)
}

// markRefundFailed moves the log to its terminal failed state. It is never
// retried here; order may be nil when the order itself is missing.
func (o *Orchestrator) markRefundFailed(ctx context.Context, log *models.RefundLog, order *models.Order, errorMessage string) error {
	changed, err := o.logs.MarkFailed(ctx, log.ID, errorMessage, o.now())
	if err != nil {
		return fmt.Errorf("mark refund log %d failed: %w", log.ID, err)
	}
	if !changed {
		telemetry.Logger.Warn("Refund log left pending state concurrently",
			zap.Int64("refund_log_id", log.ID),
		)
		return nil
	}

	telemetry.RefundExecutions.WithLabelValues(string(models.LogFailed)).Inc()
	telemetry.Logger.Error("Refund failed",
		zap.Int64("refund_log_id", log.ID),
		zap.Int64("order_id", log.OrderID),
		zap.String("error_message", errorMessage),
	)
	o.publishState(ctx, log, models.LogFailed, "", errorMessage)

	data := map[string]any{
		"refund_log_id": log.ID,
		"order_id":      log.OrderID,
		"amount_cents":  log.AmountCents,
		"currency":      log.Currency,
		"error_message": errorMessage,
	}
	o.notify(ctx, TemplateRefundFailed, o.accountEmail(ctx, log.VendorAccountID), data)
	if order != nil && log.RefundRequestID != nil {
		o.notify(ctx, TemplateRefundFailed, o.buyerEmail(ctx, order), data)
	}
	return nil
}

func (o *Orchestrator) skip(log *models.RefundLog) {
	telemetry.RefundExecutions.WithLabelValues("skipped").Inc()
	telemetry.Logger.Warn("Refund log is not pending, skipping execution",
		zap.Int64("refund_log_id", log.ID),
		zap.String("status", string(log.Status)),
	)
}
