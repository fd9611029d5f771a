package models

import "time"

type RefundPolicy string

const (
	RefundPolicyOneDay     RefundPolicy = "1_day"
	RefundPolicySevenDays  RefundPolicy = "7_days"
	RefundPolicyFourteen   RefundPolicy = "14_days"
	RefundPolicyThirtyDays RefundPolicy = "30_days"
	RefundPolicyCaseByCase RefundPolicy = "case_by_case"
	RefundPolicyNone       RefundPolicy = "none"
)

type Event struct {
	ID             int64        `json:"id"`
	Title          string       `json:"title"`
	OwnerAccountID int64        `json:"owner_account_id"`
	StoreID        *int64       `json:"store_id,omitempty"`
	RefundPolicy   RefundPolicy `json:"refund_policy"`
	StartsAt       *time.Time   `json:"starts_at,omitempty"`
}

// Account is an already-resolved actor. Authentication happens upstream;
// an Account with ID 0 is anonymous.
type Account struct {
	ID      int64  `json:"id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

func (a *Account) Authenticated() bool {
	return a != nil && a.ID != 0
}

type Store struct {
	ID             int64 `json:"id"`
	OwnerAccountID int64 `json:"owner_account_id"`
}
