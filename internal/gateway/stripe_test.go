package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v83"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
)

type fakeRefunds struct {
	params *stripe.RefundCreateParams
	err    error
}

func (f *fakeRefunds) Create(_ context.Context, params *stripe.RefundCreateParams) (*stripe.Refund, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.Refund{ID: "re_123", Amount: *params.Amount}, nil
}

type fakeRecorder struct {
	logID, paymentID, amount int64
	refundID                 string
	err                      error
}

func (f *fakeRecorder) RecordPaymentRefund(_ context.Context, logID, paymentID int64, refundID string, amountCents int64) error {
	f.logID, f.paymentID, f.refundID, f.amount = logID, paymentID, refundID, amountCents
	return f.err
}

func TestRefundAgainstPaymentIntent(t *testing.T) {
	refunds := &fakeRefunds{}
	recorder := &fakeRecorder{}
	g := NewStripeGatewayWithClient(refunds, recorder)

	id, err := g.Refund(context.Background(), 7, models.Payment{ID: 3, OrderID: 100, RemoteID: "pi_abc"}, 7500, "AUD")
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if id != "re_123" {
		t.Errorf("refund id = %q", id)
	}
	if refunds.params.PaymentIntent == nil || *refunds.params.PaymentIntent != "pi_abc" {
		t.Errorf("payment intent not set: %+v", refunds.params)
	}
	if refunds.params.Charge != nil {
		t.Error("charge must not be set for a payment intent")
	}
	if *refunds.params.Amount != 7500 {
		t.Errorf("amount = %d", *refunds.params.Amount)
	}
	if refunds.params.IdempotencyKey == nil || *refunds.params.IdempotencyKey != "refund-log-7-payment-3" {
		t.Errorf("idempotency key = %v", refunds.params.IdempotencyKey)
	}
	if recorder.logID != 7 || recorder.refundID != "re_123" {
		t.Errorf("recorder got log %d refund %q", recorder.logID, recorder.refundID)
	}
	if recorder.paymentID != 3 || recorder.amount != 7500 {
		t.Errorf("recorder got payment %d amount %d", recorder.paymentID, recorder.amount)
	}
}

func TestRefundAgainstCharge(t *testing.T) {
	refunds := &fakeRefunds{}
	g := NewStripeGatewayWithClient(refunds, nil)

	if _, err := g.Refund(context.Background(), 7, models.Payment{ID: 1, RemoteID: "ch_xyz"}, 100, "USD"); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if refunds.params.Charge == nil || *refunds.params.Charge != "ch_xyz" {
		t.Errorf("charge not set: %+v", refunds.params)
	}
}

func TestRefundErrors(t *testing.T) {
	g := NewStripeGatewayWithClient(&fakeRefunds{}, nil)
	if _, err := g.Refund(context.Background(), 7, models.Payment{ID: 1}, 100, "USD"); !errors.Is(err, ErrMissingRemoteID) {
		t.Errorf("expected ErrMissingRemoteID, got %v", err)
	}

	declined := errors.New("card_declined")
	recorder := &fakeRecorder{}
	g = NewStripeGatewayWithClient(&fakeRefunds{err: declined}, recorder)
	if _, err := g.Refund(context.Background(), 7, models.Payment{ID: 1, RemoteID: "pi_1"}, 100, "USD"); !errors.Is(err, declined) {
		t.Errorf("expected wrapped stripe error, got %v", err)
	}
	if recorder.paymentID != 0 {
		t.Error("failed refunds must not be recorded")
	}
}

func TestRecorderFailureDoesNotFailRefund(t *testing.T) {
	g := NewStripeGatewayWithClient(&fakeRefunds{}, &fakeRecorder{err: errors.New("db down")})
	id, err := g.Refund(context.Background(), 7, models.Payment{ID: 1, RemoteID: "pi_1"}, 100, "USD")
	if err != nil || id != "re_123" {
		t.Fatalf("Refund = %q, %v", id, err)
	}
}

func TestRetriedRefundReusesIdempotencyKey(t *testing.T) {
	refunds := &fakeRefunds{}
	g := NewStripeGatewayWithClient(refunds, nil)
	payment := models.Payment{ID: 1, RemoteID: "pi_1"}

	var keys []string
	for i := 0; i < 2; i++ {
		if _, err := g.Refund(context.Background(), 12, payment, 7500, "AUD"); err != nil {
			t.Fatalf("Refund: %v", err)
		}
		keys = append(keys, *refunds.params.IdempotencyKey)
	}
	if keys[0] != keys[1] {
		t.Errorf("keys differ across retries: %v", keys)
	}

	if _, err := g.Refund(context.Background(), 13, payment, 7500, "AUD"); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if *refunds.params.IdempotencyKey == keys[0] {
		t.Error("a different refund log must get its own key")
	}
}
