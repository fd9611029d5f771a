// Package money computes refund-relevant totals for an order in integer
// cents. Nothing here touches storage or the network.
package money

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
)

var donationBundles = map[models.Bundle]struct{}{
	models.BundleDonation:          {},
	models.BundleDonationRecurring: {},
	models.BundleDonationTribute:   {},
	models.BundleDonationCampaign:  {},
}

func IsDonationItem(item models.OrderItem) bool {
	_, ok := donationBundles[item.Bundle]
	return ok
}

func IsTicketItem(item models.OrderItem) bool {
	return item.Bundle == models.BundleTicket
}

// ToCents converts a decimal amount to integer cents. The fractional part is
// padded or truncated to two digits and a leading sign applies to the whole
// value, so "-0.5" is -50 and "12.349" is 1234.
func ToCents(d decimal.Decimal) int64 {
	s := d.String()

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) < 2 {
		frac += strings.Repeat("0", 2-len(frac))
	}
	frac = frac[:2]

	cents, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		// decimal.String never produces anything but digits here
		return 0
	}
	if negative {
		return -cents
	}
	return cents
}

// TicketSubtotalCents sums the ticket items of the order that target eventID.
func TicketSubtotalCents(order *models.Order, eventID int64) int64 {
	var total int64
	for _, item := range order.Items {
		if IsTicketItem(item) && item.TargetsEvent(eventID) {
			total += ToCents(item.TotalPrice.Amount)
		}
	}
	return total
}

// DonationTotalCents sums every donation item on the order, whatever event
// it points at.
func DonationTotalCents(order *models.Order) int64 {
	var total int64
	for _, item := range order.Items {
		if IsDonationItem(item) {
			total += ToCents(item.TotalPrice.Amount)
		}
	}
	return total
}

// AvailableCents is what is left to refund on a single payment, floored at zero.
func AvailableCents(p models.Payment) int64 {
	available := ToCents(p.Amount.Amount) - ToCents(p.RefundedAmount.Amount)
	if available < 0 {
		return 0
	}
	return available
}

// RefundableAmountCents is the unrefunded remainder across all completed or
// partially refunded payments on the order.
func RefundableAmountCents(order *models.Order) int64 {
	var total int64
	for _, p := range order.Payments {
		if p.State.Refundable() {
			total += AvailableCents(p)
		}
	}
	return total
}

// HasItemForEvent reports whether any line item, ticket or donation, targets
// the event.
func HasItemForEvent(order *models.Order, eventID int64) bool {
	for _, item := range order.Items {
		if (IsTicketItem(item) || IsDonationItem(item)) && item.TargetsEvent(eventID) {
			return true
		}
	}
	return false
}
