package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
)

type memRequests struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*models.RefundRequest
}

func newMemRequests() *memRequests {
	return &memRequests{rows: map[int64]*models.RefundRequest{}}
}

func (m *memRequests) Create(_ context.Context, req *models.RefundRequest) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	row := *req
	row.ID = m.nextID
	row.Created = time.Now()
	row.Updated = row.Created
	m.rows[row.ID] = &row
	return row.ID, nil
}

func (m *memRequests) Load(_ context.Context, id int64) (*models.RefundRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (m *memRequests) Update(_ context.Context, id int64, f models.RefundRequestUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("request %d missing", id)
	}
	if f.Status != nil {
		row.Status = *f.Status
	}
	if f.DecisionReason != nil {
		row.DecisionReason = f.DecisionReason
	}
	if f.RefundLogID != nil {
		row.RefundLogID = f.RefundLogID
	}
	row.Updated = time.Now()
	return nil
}

func (m *memRequests) LoadPendingByEvent(_ context.Context, eventID int64) ([]*models.RefundRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.RefundRequest
	for _, row := range m.rows {
		if row.EventID == eventID && row.Status == models.RequestRequested {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type memLogs struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*models.RefundLog
}

func newMemLogs() *memLogs {
	return &memLogs{rows: map[int64]*models.RefundLog{}}
}

func (m *memLogs) Create(_ context.Context, log *models.RefundLog) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	row := *log
	row.ID = m.nextID
	row.Created = time.Now()
	m.rows[row.ID] = &row
	return row.ID, nil
}

func (m *memLogs) Load(_ context.Context, id int64) (*models.RefundLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (m *memLogs) MarkCompleted(_ context.Context, id int64, gatewayRefundID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.Status != models.LogPending {
		return false, nil
	}
	row.Status = models.LogCompleted
	row.Completed = &at
	if gatewayRefundID != "" {
		row.GatewayRefundID = &gatewayRefundID
	}
	return true, nil
}

func (m *memLogs) MarkFailed(_ context.Context, id int64, msg string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.Status != models.LogPending {
		return false, nil
	}
	row.Status = models.LogFailed
	row.ErrorMessage = &msg
	row.Completed = &at
	return true, nil
}

func (m *memLogs) PendingAmountCents(_ context.Context, orderID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, row := range m.rows {
		if row.OrderID == orderID && row.Status == models.LogPending {
			total += row.AmountCents
		}
	}
	return total, nil
}

func (m *memLogs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memCommerce struct {
	orders   map[int64]*models.Order
	events   map[int64]*models.Event
	accounts map[int64]*models.Account

	// onLoadOrder runs before every LoadOrder, outside any lock.
	onLoadOrder func()

	mu       sync.Mutex
	recorded map[int64]string
}

func (m *memCommerce) LoadOrder(_ context.Context, id int64) (*models.Order, error) {
	if m.onLoadOrder != nil {
		m.onLoadOrder()
	}
	return m.orders[id], nil
}

func (m *memCommerce) LoadEvent(_ context.Context, id int64) (*models.Event, error) {
	return m.events[id], nil
}

func (m *memCommerce) LoadAccount(_ context.Context, id int64) (*models.Account, error) {
	return m.accounts[id], nil
}

func (m *memCommerce) GatewayRefundForLog(_ context.Context, logID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recorded[logID], nil
}

func (m *memCommerce) record(logID int64, gatewayRefundID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recorded == nil {
		m.recorded = map[int64]string{}
	}
	m.recorded[logID] = gatewayRefundID
}

type gatewayCall struct {
	LogID       int64
	PaymentID   int64
	AmountCents int64
}

// fakeGateway records successful refunds into ledger when set, the way the
// Stripe gateway writes through its recorder.
type fakeGateway struct {
	mu     sync.Mutex
	calls  []gatewayCall
	fail   map[int64]error
	ledger *memCommerce
}

func (g *fakeGateway) Refund(_ context.Context, logID int64, p models.Payment, amountCents int64, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, gatewayCall{LogID: logID, PaymentID: p.ID, AmountCents: amountCents})
	if err := g.fail[p.ID]; err != nil {
		return "", err
	}
	id := fmt.Sprintf("re_%d", p.ID)
	if g.ledger != nil {
		g.ledger.record(logID, id)
	}
	return id, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fakeQueue struct {
	jobs []models.RefundJob
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, _ string, job models.RefundJob) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type sentNotification struct {
	Template  string
	Recipient string
}

type fakeNotifier struct {
	sent []sentNotification
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, template, recipient string, _ map[string]any) error {
	n.sent = append(n.sent, sentNotification{template, recipient})
	return n.err
}

func (n *fakeNotifier) count(template string) int {
	var c int
	for _, s := range n.sent {
		if s.Template == template {
			c++
		}
	}
	return c
}

// fakeLocker blocks on a held key like the Redis locker's wait loop, or
// reports it held straight away when busy is set.
type fakeLocker struct {
	busy bool

	mu       sync.Mutex
	keys     map[string]*sync.Mutex
	acquired int
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if l.busy {
		return nil, interfaces.ErrLockHeld
	}
	l.mu.Lock()
	if l.keys == nil {
		l.keys = map[string]*sync.Mutex{}
	}
	km, ok := l.keys[key]
	if !ok {
		km = &sync.Mutex{}
		l.keys[key] = km
	}
	l.mu.Unlock()

	km.Lock()
	l.mu.Lock()
	l.acquired++
	l.mu.Unlock()
	return km.Unlock, nil
}

type fakeEvents struct {
	published []models.RefundStateEvent
}

func (e *fakeEvents) PublishRefundState(_ context.Context, ev models.RefundStateEvent) error {
	e.published = append(e.published, ev)
	return nil
}

// flakyLogs fails the first MarkCompleted call without writing anything.
type flakyLogs struct {
	*memLogs
	failures int
}

func (f *flakyLogs) MarkCompleted(ctx context.Context, id int64, gatewayRefundID string, at time.Time) (bool, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return false, errDatabaseDown
	}
	f.mu.Unlock()
	return f.memLogs.MarkCompleted(ctx, id, gatewayRefundID, at)
}

var errDatabaseDown = errors.New("database unavailable")

var errGatewayDown = errors.New("gateway unavailable")
