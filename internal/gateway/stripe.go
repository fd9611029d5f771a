// Package gateway issues refunds against the payment provider.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v83"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
)

var ErrMissingRemoteID = errors.New("payment has no gateway reference")

// RefundCreator is the slice of the Stripe client the gateway needs.
type RefundCreator interface {
	Create(ctx context.Context, params *stripe.RefundCreateParams) (*stripe.Refund, error)
}

// PaymentRecorder writes the refunded amount back onto the payment row.
// Recording the same gateway refund twice must count it once.
type PaymentRecorder interface {
	RecordPaymentRefund(ctx context.Context, logID, paymentID int64, gatewayRefundID string, amountCents int64) error
}

type StripeGateway struct {
	refunds  RefundCreator
	payments PaymentRecorder
}

func NewStripeGateway(secretKey string, payments PaymentRecorder) *StripeGateway {
	sc := stripe.NewClient(secretKey)
	return &StripeGateway{refunds: sc.V1Refunds, payments: payments}
}

func NewStripeGatewayWithClient(refunds RefundCreator, payments PaymentRecorder) *StripeGateway {
	return &StripeGateway{refunds: refunds, payments: payments}
}

// IdempotencyKey is the Stripe key for refunding one payment on behalf of
// one refund log. Stripe replays the original refund for a repeated key.
func IdempotencyKey(logID, paymentID int64) string {
	return fmt.Sprintf("refund-log-%d-payment-%d", logID, paymentID)
}

// Refund returns amountCents of the given payment through Stripe. The
// payment's RemoteID is a payment intent ("pi_...") or a charge ("ch_...").
func (g *StripeGateway) Refund(ctx context.Context, logID int64, payment models.Payment, amountCents int64, currency string) (string, error) {
	if payment.RemoteID == "" {
		return "", fmt.Errorf("payment %d: %w", payment.ID, ErrMissingRemoteID)
	}

	params := &stripe.RefundCreateParams{
		Amount: stripe.Int64(amountCents),
		Reason: stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
		Metadata: map[string]string{
			"refund_log_id": fmt.Sprintf("%d", logID),
			"payment_id":    fmt.Sprintf("%d", payment.ID),
			"order_id":      fmt.Sprintf("%d", payment.OrderID),
			"currency":      strings.ToLower(currency),
		},
	}
	if strings.HasPrefix(payment.RemoteID, "ch_") {
		params.Charge = stripe.String(payment.RemoteID)
	} else {
		params.PaymentIntent = stripe.String(payment.RemoteID)
	}
	params.SetIdempotencyKey(IdempotencyKey(logID, payment.ID))

	refund, err := g.refunds.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("stripe refund for payment %d: %w", payment.ID, err)
	}

	if g.payments != nil {
		if err := g.payments.RecordPaymentRefund(ctx, logID, payment.ID, refund.ID, amountCents); err != nil {
			// Stripe has the money back already; the refund stands.
			telemetry.Logger.Error("Failed to record refund on payment",
				zap.Int64("payment_id", payment.ID),
				zap.String("stripe_refund_id", refund.ID),
				zap.Error(err),
			)
		}
	}

	return refund.ID, nil
}
