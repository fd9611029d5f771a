// Package eligibility decides whether a buyer may ask for a refund on their
// own, without the vendor starting it.
package eligibility

import (
	"time"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/money"
)

const (
	ReasonNotOwner     = "You can only request refunds for your own orders."
	ReasonOrderState   = "This order is not in a state that can be refunded."
	ReasonNoItems      = "This order has no items for this event."
	ReasonNoRefunds    = "This event does not allow refund requests."
	ReasonNoStartTime  = "This event has no start time, so the refund window cannot be determined."
	ReasonWindowClosed = "The refund window for this event has closed."
)

// windowDays maps each recognized policy to its window length. Zero means
// the policy has no fixed cutoff.
var windowDays = map[models.RefundPolicy]int{
	models.RefundPolicyOneDay:     1,
	models.RefundPolicySevenDays:  7,
	models.RefundPolicyFourteen:   14,
	models.RefundPolicyThirtyDays: 30,
	models.RefundPolicyCaseByCase: 0,
}

type Policy struct {
	now func() time.Time
}

func NewPolicy(now func() time.Time) *Policy {
	if now == nil {
		now = time.Now
	}
	return &Policy{now: now}
}

func (p *Policy) IsEligible(order *models.Order, event *models.Event, account *models.Account) bool {
	return p.IneligibilityReason(order, event, account) == ""
}

// IneligibilityReason returns the first failing check, or "" when the
// buyer may request a refund right now.
func (p *Policy) IneligibilityReason(order *models.Order, event *models.Event, account *models.Account) string {
	if !account.Authenticated() || account.ID != order.CustomerID {
		return ReasonNotOwner
	}
	if !order.State.Refundable() {
		return ReasonOrderState
	}
	if !money.HasItemForEvent(order, event.ID) {
		return ReasonNoItems
	}

	days, ok := windowDays[event.RefundPolicy]
	if !ok {
		return ReasonNoRefunds
	}
	if days == 0 {
		return ""
	}

	if event.StartsAt == nil {
		return ReasonNoStartTime
	}
	if !p.now().Before(windowCutoff(*event.StartsAt, days)) {
		return ReasonWindowClosed
	}
	return ""
}

// Cutoff returns the last instant a buyer may ask for a refund, or false if
// the policy has no fixed window.
func Cutoff(event *models.Event) (time.Time, bool) {
	days, ok := windowDays[event.RefundPolicy]
	if !ok || days == 0 || event.StartsAt == nil {
		return time.Time{}, false
	}
	return windowCutoff(*event.StartsAt, days), true
}

func windowCutoff(start time.Time, days int) time.Time {
	return start.Add(-time.Duration(days) * 24 * time.Hour)
}
