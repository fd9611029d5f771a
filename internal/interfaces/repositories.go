package interfaces

import (
	"context"
	"time"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
)

// RefundRequestRepository is the request ledger. It stores and loads
// buyer refund requests and enforces no transition rules of its own.
type RefundRequestRepository interface {
	Create(ctx context.Context, req *models.RefundRequest) (int64, error)
	Load(ctx context.Context, id int64) (*models.RefundRequest, error)
	Update(ctx context.Context, id int64, fields models.RefundRequestUpdate) error
	LoadPendingByEvent(ctx context.Context, eventID int64) ([]*models.RefundRequest, error)
}

// RefundLogRepository persists execution audit rows. Terminal transitions
// only apply to rows still pending and report whether a row changed.
type RefundLogRepository interface {
	Create(ctx context.Context, log *models.RefundLog) (int64, error)
	Load(ctx context.Context, id int64) (*models.RefundLog, error)
	MarkCompleted(ctx context.Context, id int64, gatewayRefundID string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id int64, errorMessage string, at time.Time) (bool, error)
	PendingAmountCents(ctx context.Context, orderID int64) (int64, error)
}

// CommerceRepository reads the order, event and account data owned by the
// commerce side. Load methods return (nil, nil) when nothing matches.
type CommerceRepository interface {
	LoadOrder(ctx context.Context, id int64) (*models.Order, error)
	LoadEvent(ctx context.Context, id int64) (*models.Event, error)
	LoadAccount(ctx context.Context, id int64) (*models.Account, error)
}
