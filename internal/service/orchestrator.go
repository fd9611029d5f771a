package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/access"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/eligibility"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/money"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
)

const (
	DefaultQueueName = "refund.process"
	defaultLockTTL   = 30 * time.Second
)

// Notification template keys.
const (
	TemplateRequestCreated  = "refund_request_created"
	TemplateRequestApproved = "refund_request_approved"
	TemplateRequestRejected = "refund_request_rejected"
	TemplateRefundCompleted = "refund_completed"
	TemplateRefundFailed    = "refund_failed"
)

// Dependencies are the collaborators the orchestrator calls. Locker, Events
// and Ledger may be nil.
type Dependencies struct {
	Requests interfaces.RefundRequestRepository
	Logs     interfaces.RefundLogRepository
	Commerce interfaces.CommerceRepository
	Stores   interfaces.StoreResolver
	Gateway  interfaces.Gateway
	Queue    interfaces.Queue
	Notifier interfaces.Notifier
	Locker   interfaces.Locker
	Events   interfaces.EventPublisher
	Ledger   interfaces.RefundLedger
}

type Options struct {
	QueueName string
	LockTTL   time.Duration
	Now       func() time.Time
}

type Orchestrator struct {
	requests interfaces.RefundRequestRepository
	logs     interfaces.RefundLogRepository
	commerce interfaces.CommerceRepository
	gateway  interfaces.Gateway
	queue    interfaces.Queue
	notifier interfaces.Notifier
	locker   interfaces.Locker
	events   interfaces.EventPublisher
	ledger   interfaces.RefundLedger

	policy *eligibility.Policy
	access *access.Resolver

	queueName string
	lockTTL   time.Duration
	now       func() time.Time
}

func NewOrchestrator(deps Dependencies, opts Options) *Orchestrator {
	if opts.QueueName == "" {
		opts.QueueName = DefaultQueueName
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Orchestrator{
		requests:  deps.Requests,
		logs:      deps.Logs,
		commerce:  deps.Commerce,
		gateway:   deps.Gateway,
		queue:     deps.Queue,
		notifier:  deps.Notifier,
		locker:    deps.Locker,
		events:    deps.Events,
		ledger:    deps.Ledger,
		policy:    eligibility.NewPolicy(opts.Now),
		access:    access.NewResolver(deps.Stores),
		queueName: opts.QueueName,
		lockTTL:   opts.LockTTL,
		now:       opts.Now,
	}
}

// Read accessors exposed to the HTTP layer.

func (o *Orchestrator) TicketSubtotalCents(order *models.Order, eventID int64) int64 {
	return money.TicketSubtotalCents(order, eventID)
}

func (o *Orchestrator) DonationTotalCents(order *models.Order) int64 {
	return money.DonationTotalCents(order)
}

func (o *Orchestrator) RefundableAmountCents(order *models.Order) int64 {
	return money.RefundableAmountCents(order)
}

func (o *Orchestrator) IsEligible(order *models.Order, event *models.Event, account *models.Account) bool {
	return o.policy.IsEligible(order, event, account)
}

func (o *Orchestrator) IneligibilityReason(order *models.Order, event *models.Event, account *models.Account) string {
	return o.policy.IneligibilityReason(order, event, account)
}

func (o *Orchestrator) VendorCanRefundOrder(ctx context.Context, order *models.Order, event *models.Event, account *models.Account) (bool, error) {
	return o.access.VendorCanRefundOrder(ctx, order, event, account)
}

func (o *Orchestrator) lockOrder(ctx context.Context, orderID int64) (func(), error) {
	if o.locker == nil {
		return func() {}, nil
	}
	release, err := o.locker.Acquire(ctx, fmt.Sprintf("refund_lock:order:%d", orderID), o.lockTTL)
	if errors.Is(err, interfaces.ErrLockHeld) {
		return nil, ErrOrderBusy
	}
	if err != nil {
		return nil, fmt.Errorf("lock order %d: %w", orderID, err)
	}
	return release, nil
}

// notify sends a message and only logs failures.
func (o *Orchestrator) notify(ctx context.Context, template, recipient string, data map[string]any) {
	if o.notifier == nil || recipient == "" {
		return
	}
	if err := o.notifier.Send(ctx, template, recipient, data); err != nil {
		telemetry.Logger.Warn("Failed to send refund notification",
			zap.String("template", template),
			zap.String("recipient", recipient),
			zap.Error(err),
		)
	}
}

// accountEmail looks up an account's address for notifications. Lookup
// failures yield "" so the notification is skipped.
func (o *Orchestrator) accountEmail(ctx context.Context, accountID int64) string {
	account, err := o.commerce.LoadAccount(ctx, accountID)
	if err != nil {
		telemetry.Logger.Warn("Failed to load account for notification",
			zap.Int64("account_id", accountID),
			zap.Error(err),
		)
		return ""
	}
	if account == nil {
		return ""
	}
	return account.Email
}

func (o *Orchestrator) buyerEmail(ctx context.Context, order *models.Order) string {
	if order.Email != "" {
		return order.Email
	}
	return o.accountEmail(ctx, order.CustomerID)
}

func (o *Orchestrator) publishState(ctx context.Context, log *models.RefundLog, status models.RefundLogStatus, gatewayRefundID, errorMessage string) {
	if o.events == nil {
		return
	}
	event := models.RefundStateEvent{
		RefundLogID:     log.ID,
		OrderID:         log.OrderID,
		EventID:         log.EventID,
		Status:          status,
		AmountCents:     log.AmountCents,
		Currency:        log.Currency,
		GatewayRefundID: gatewayRefundID,
		ErrorMessage:    errorMessage,
		Timestamp:       o.now(),
	}
	if err := o.events.PublishRefundState(ctx, event); err != nil {
		telemetry.Logger.Warn("Failed to publish refund state event",
			zap.Int64("refund_log_id", log.ID),
			zap.Error(err),
		)
	}
}
