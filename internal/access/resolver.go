// Package access decides whether an account may act as the vendor for an
// event's orders.
package access

import (
	"context"
	"fmt"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/money"
)

type Resolver struct {
	stores interfaces.StoreResolver
}

func NewResolver(stores interfaces.StoreResolver) *Resolver {
	return &Resolver{stores: stores}
}

// VendorCanManageEvent holds for platform admins, the event's owner, and
// the owner of the store the event belongs to.
func (r *Resolver) VendorCanManageEvent(ctx context.Context, event *models.Event, account *models.Account) (bool, error) {
	if !account.Authenticated() || event == nil {
		return false, nil
	}
	if account.IsAdmin || account.ID == event.OwnerAccountID {
		return true, nil
	}
	if r.stores == nil {
		return false, nil
	}

	store, err := r.stores.StoreForAccount(ctx, account)
	if err != nil {
		return false, fmt.Errorf("resolve store for account %d: %w", account.ID, err)
	}
	if store == nil {
		return false, nil
	}

	owns, err := r.stores.StoreOwnsEvent(ctx, store, event)
	if err != nil {
		return false, fmt.Errorf("check store %d owns event %d: %w", store.ID, event.ID, err)
	}
	return owns, nil
}

// VendorCanRefundOrder additionally requires the order to hold an item for
// the event and to be in a refundable state.
func (r *Resolver) VendorCanRefundOrder(ctx context.Context, order *models.Order, event *models.Event, account *models.Account) (bool, error) {
	if order == nil || event == nil {
		return false, nil
	}
	ok, err := r.VendorCanManageEvent(ctx, event, account)
	if err != nil || !ok {
		return false, err
	}
	return money.HasItemForEvent(order, event.ID) && order.State.Refundable(), nil
}
