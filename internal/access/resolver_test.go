package access

import (
	"context"
	"errors"
	"testing"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
)

type fakeStores struct {
	byAccount map[int64]*models.Store
	events    map[int64]int64 // event id -> store id
	err       error
}

func (f *fakeStores) StoreForAccount(_ context.Context, a *models.Account) (*models.Store, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byAccount[a.ID], nil
}

func (f *fakeStores) StoreOwnsEvent(_ context.Context, s *models.Store, e *models.Event) (bool, error) {
	return f.events[e.ID] == s.ID, nil
}

func fixture() (*models.Order, *models.Event) {
	eventID := int64(3)
	order := &models.Order{
		ID:    1,
		State: models.OrderFulfilled,
		Items: []models.OrderItem{{Bundle: models.BundleTicket, EventID: &eventID, TotalPrice: models.NewMoney("20", "USD")}},
	}
	return order, &models.Event{ID: eventID, OwnerAccountID: 10}
}

func TestVendorCanManageEvent(t *testing.T) {
	stores := &fakeStores{
		byAccount: map[int64]*models.Store{20: {ID: 5, OwnerAccountID: 20}, 30: {ID: 6, OwnerAccountID: 30}},
		events:    map[int64]int64{3: 5},
	}
	r := NewResolver(stores)
	_, event := fixture()

	tests := []struct {
		name    string
		account *models.Account
		want    bool
	}{
		{"owner", &models.Account{ID: 10}, true},
		{"admin", &models.Account{ID: 99, IsAdmin: true}, true},
		{"store owner", &models.Account{ID: 20}, true},
		{"other store", &models.Account{ID: 30}, false},
		{"no store", &models.Account{ID: 40}, false},
		{"anonymous", &models.Account{}, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.VendorCanManageEvent(context.Background(), event, tt.account)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("VendorCanManageEvent = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVendorCanManageEventPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("store service down")
	r := NewResolver(&fakeStores{err: boom})
	_, event := fixture()

	_, err := r.VendorCanManageEvent(context.Background(), event, &models.Account{ID: 20})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestVendorCanRefundOrder(t *testing.T) {
	r := NewResolver(nil)
	owner := &models.Account{ID: 10}

	order, event := fixture()
	if ok, _ := r.VendorCanRefundOrder(context.Background(), order, event, owner); !ok {
		t.Error("owner should be able to refund a fulfilled order")
	}

	order.State = models.OrderCanceled
	if ok, _ := r.VendorCanRefundOrder(context.Background(), order, event, owner); ok {
		t.Error("canceled orders are not refundable")
	}

	order, event = fixture()
	other := &models.Event{ID: 4, OwnerAccountID: 10}
	if ok, _ := r.VendorCanRefundOrder(context.Background(), order, other, owner); ok {
		t.Error("order has no items for event 4")
	}

	if ok, _ := r.VendorCanRefundOrder(context.Background(), order, event, &models.Account{ID: 11}); ok {
		t.Error("non-owner must not refund")
	}
}
