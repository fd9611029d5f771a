package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
)

// Gateway returns money to the payer. Implementations refund exactly
// amountCents against the one payment given and return the gateway's
// refund identifier. Repeating a call with the same logID and payment must
// not move money twice.
type Gateway interface {
	Refund(ctx context.Context, logID int64, payment models.Payment, amountCents int64, currency string) (string, error)
}

// RefundLedger reports the gateway refund already recorded for a refund
// log, or "" when there is none.
type RefundLedger interface {
	GatewayRefundForLog(ctx context.Context, logID int64) (string, error)
}

type Queue interface {
	Enqueue(ctx context.Context, queueName string, job models.RefundJob) error
}

// Notifier delivers a templated message. Callers treat delivery as best effort.
type Notifier interface {
	Send(ctx context.Context, templateKey, recipient string, data map[string]any) error
}

// StoreResolver answers delegated-ownership questions for vendors that sell
// through a store.
type StoreResolver interface {
	StoreForAccount(ctx context.Context, account *models.Account) (*models.Store, error)
	StoreOwnsEvent(ctx context.Context, store *models.Store, event *models.Event) (bool, error)
}

// ErrLockHeld is returned by a Locker when another holder keeps the key.
var ErrLockHeld = errors.New("lock is held by another worker")

// Locker serializes work on a key across processes. The returned func
// releases the lock.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// EventPublisher broadcasts refund state changes to other services.
type EventPublisher interface {
	PublishRefundState(ctx context.Context, event models.RefundStateEvent) error
}
