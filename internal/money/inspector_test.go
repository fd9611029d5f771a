package money

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
)

func eventRef(id int64) *int64 { return &id }

func TestToCents(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"75", 7500},
		{"75.00", 7500},
		{"0.5", 50},
		{"12.349", 1234},
		{"12.345", 1234},
		{"-0.5", -50},
		{"-3.07", -307},
		{"0", 0},
		{"1000000.01", 100000001},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ToCents(decimal.RequireFromString(tt.in)); got != tt.want {
				t.Errorf("ToCents(%s) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestTicketSubtotalCentsOnlyCountsMatchingTickets(t *testing.T) {
	order := &models.Order{
		Items: []models.OrderItem{
			{Bundle: models.BundleTicket, EventID: eventRef(1), Quantity: 2, TotalPrice: models.NewMoney("40.00", "AUD")},
			{Bundle: models.BundleDonation, EventID: eventRef(1), Quantity: 1, TotalPrice: models.NewMoney("10.00", "AUD")},
			{Bundle: models.BundleTicket, EventID: eventRef(2), Quantity: 1, TotalPrice: models.NewMoney("25.00", "AUD")},
		},
	}

	if got := TicketSubtotalCents(order, 1); got != 4000 {
		t.Errorf("event 1 subtotal = %d, want 4000", got)
	}
	if got := TicketSubtotalCents(order, 2); got != 2500 {
		t.Errorf("event 2 subtotal = %d, want 2500", got)
	}
	if got := TicketSubtotalCents(order, 3); got != 0 {
		t.Errorf("unknown event subtotal = %d, want 0", got)
	}
}

func TestDonationTotalCentsIgnoresEvent(t *testing.T) {
	order := &models.Order{
		Items: []models.OrderItem{
			{Bundle: models.BundleDonation, EventID: eventRef(1), TotalPrice: models.NewMoney("10.00", "AUD")},
			{Bundle: models.BundleDonationTribute, TotalPrice: models.NewMoney("5.50", "AUD")},
			{Bundle: models.BundleTicket, EventID: eventRef(1), TotalPrice: models.NewMoney("40.00", "AUD")},
		},
	}

	if got := DonationTotalCents(order); got != 1550 {
		t.Errorf("DonationTotalCents = %d, want 1550", got)
	}
}

func TestRefundableAmountCents(t *testing.T) {
	payment := func(amount, refunded string, state models.PaymentState) models.Payment {
		return models.Payment{
			Amount:         models.NewMoney(amount, "AUD"),
			RefundedAmount: models.NewMoney(refunded, "AUD"),
			State:          state,
		}
	}

	tests := []struct {
		name     string
		payments []models.Payment
		want     int64
	}{
		{"no payments", nil, 0},
		{"single completed", []models.Payment{payment("75.00", "0", models.PaymentCompleted)}, 7500},
		{"partially refunded", []models.Payment{payment("75.00", "20.00", models.PaymentPartiallyRefunded)}, 5500},
		{"ineligible state ignored", []models.Payment{payment("75.00", "0", models.PaymentFailed)}, 0},
		{"over-refunded floors at zero", []models.Payment{
			payment("10.00", "12.00", models.PaymentPartiallyRefunded),
			payment("30.00", "0", models.PaymentCompleted),
		}, 3000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := &models.Order{Payments: tt.payments}
			if got := RefundableAmountCents(order); got != tt.want {
				t.Errorf("RefundableAmountCents = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRefundableAmountNonIncreasingAsRefundsAccrue(t *testing.T) {
	order := &models.Order{Payments: []models.Payment{{
		Amount: models.NewMoney("50.00", "AUD"),
		State:  models.PaymentCompleted,
	}}}

	prev := RefundableAmountCents(order)
	for _, refunded := range []string{"0", "10.00", "25.50", "50.00", "60.00"} {
		order.Payments[0].RefundedAmount = models.NewMoney(refunded, "AUD")
		order.Payments[0].State = models.PaymentPartiallyRefunded
		got := RefundableAmountCents(order)
		if got > prev {
			t.Fatalf("refundable grew from %d to %d at refunded=%s", prev, got, refunded)
		}
		if got < 0 {
			t.Fatalf("refundable negative: %d", got)
		}
		prev = got
	}
}
