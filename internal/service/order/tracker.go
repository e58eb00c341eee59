package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gogenie-storefront/internal/domain"
	"gogenie-storefront/internal/retail"
	"gogenie-storefront/internal/tracking"
)

// ErrSuperseded is returned by Refresh when a newer refresh of the same
// order started before this one finished. Its result was discarded.
var ErrSuperseded = errors.New("refresh superseded by a newer one")

const defaultMaxTracked = 10000

type orderFetcher interface {
	GetOrder(ctx context.Context, token, orderID string) (*domain.OrderRecord, error)
	ListOrders(ctx context.Context, token string, params retail.ListOrdersParams) (*retail.OrderList, error)
}

type refreshRecorder interface {
	Refresh(result string)
	StaleDiscard()
}

// Tracker keeps the latest tracking view of each order it has been asked
// about. Refreshes of one order are sequenced: starting a refresh cancels the
// fetch of any older one still in flight, and only the newest refresh may
// store its result.
type Tracker struct {
	fetcher    orderFetcher
	normalizer *tracking.Normalizer
	logger     *zap.Logger
	metrics    refreshRecorder
	maxTracked int

	mu     sync.Mutex
	orders map[string]*orderState
}

type orderState struct {
	seq      uint64
	cancel   context.CancelFunc
	latest   *tracking.View
	nextSub  int
	watchers map[int]chan tracking.View
}

func NewTracker(fetcher orderFetcher, normalizer *tracking.Normalizer, logger *zap.Logger, metrics refreshRecorder) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if normalizer == nil {
		normalizer = tracking.NewNormalizer(logger, nil)
	}
	return &Tracker{
		fetcher:    fetcher,
		normalizer: normalizer,
		logger:     logger,
		metrics:    metrics,
		maxTracked: defaultMaxTracked,
		orders:     make(map[string]*orderState),
	}
}

// Refresh fetches the order and replaces its tracking view. It never merges
// partial data: every applied view is derived from one full order record.
func (t *Tracker) Refresh(ctx context.Context, token, orderID string) (*tracking.View, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id required", domain.ErrValidation)
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.mu.Lock()
	st := t.stateLocked(orderID)
	st.seq++
	seq := st.seq
	if st.cancel != nil {
		st.cancel()
	}
	st.cancel = cancel
	t.mu.Unlock()

	rec, err := t.fetcher.GetOrder(fetchCtx, token, orderID)
	var view *tracking.View
	if err == nil {
		v := t.normalizer.View(*rec)
		if v.OrderID == "" {
			v.OrderID = orderID
		}
		view = &v
	}

	t.mu.Lock()
	if st.seq != seq {
		t.mu.Unlock()
		t.staleDiscard(orderID, seq)
		return nil, ErrSuperseded
	}
	st.cancel = nil
	if err == nil {
		st.latest = view
		t.broadcastLocked(st, *view)
	}
	t.mu.Unlock()

	if err != nil {
		t.record("error")
		return nil, err
	}
	t.record("ok")
	t.logger.Debug("order refreshed",
		zap.String("order_id", orderID),
		zap.String("status", view.Status.String()),
		zap.Int("progress", view.Progress),
		zap.Uint64("seq", seq),
	)
	out := *view
	return &out, nil
}

// Latest returns the last applied view of an order.
func (t *Tracker) Latest(orderID string) (tracking.View, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.orders[orderID]
	if !ok || st.latest == nil {
		return tracking.View{}, false
	}
	return *st.latest, true
}

// IsTracked reports whether the order has been refreshed or watched.
func (t *Tracker) IsTracked(orderID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.orders[orderID]
	return ok
}

// Watch subscribes to applied views of an order. The channel holds at most
// one pending view; a slow reader only ever sees the most recent one. The
// current view, if any, is delivered first. Call stop to unsubscribe.
func (t *Tracker) Watch(orderID string) (<-chan tracking.View, func()) {
	ch := make(chan tracking.View, 1)

	t.mu.Lock()
	st := t.stateLocked(orderID)
	id := st.nextSub
	st.nextSub++
	st.watchers[id] = ch
	if st.latest != nil {
		ch <- *st.latest
	}
	t.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if w, ok := st.watchers[id]; ok {
				delete(st.watchers, id)
				close(w)
			}
		})
	}
	return ch, stop
}

// HistoryEntry is one row of the order history screen.
type HistoryEntry struct {
	OrderID     string          `json:"orderId"`
	OrderNumber string          `json:"orderNumber,omitempty"`
	Status      tracking.Status `json:"status"`
	RawStatus   string          `json:"rawStatus,omitempty"`
	Progress    int             `json:"progress"`
	ItemCount   int             `json:"itemCount"`
	Total       decimal.Decimal `json:"total"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type History struct {
	Orders     []HistoryEntry    `json:"orders"`
	Pagination retail.Pagination `json:"pagination"`
}

// List returns the customer's order history with normalized statuses.
func (t *Tracker) List(ctx context.Context, token string, params retail.ListOrdersParams) (*History, error) {
	list, err := t.fetcher.ListOrders(ctx, token, params)
	if err != nil {
		return nil, err
	}
	out := &History{Orders: make([]HistoryEntry, 0, len(list.Orders)), Pagination: list.Pagination}
	for _, rec := range list.Orders {
		v := t.normalizer.View(rec)
		count := 0
		for _, item := range v.Items {
			count += item.Quantity
		}
		out.Orders = append(out.Orders, HistoryEntry{
			OrderID:     v.OrderID,
			OrderNumber: v.OrderNumber,
			Status:      v.Status,
			RawStatus:   v.RawStatus,
			Progress:    v.Progress,
			ItemCount:   count,
			Total:       v.Total,
			CreatedAt:   v.CreatedAt,
		})
	}
	return out, nil
}

func (t *Tracker) stateLocked(orderID string) *orderState {
	if st, ok := t.orders[orderID]; ok {
		return st
	}
	if len(t.orders) >= t.maxTracked {
		t.evictIdleLocked()
	}
	st := &orderState{watchers: make(map[int]chan tracking.View)}
	t.orders[orderID] = st
	return st
}

// evictIdleLocked drops orders that have no watcher and no fetch in flight.
func (t *Tracker) evictIdleLocked() {
	for id, st := range t.orders {
		if st.cancel == nil && len(st.watchers) == 0 {
			delete(t.orders, id)
		}
	}
}

func (t *Tracker) broadcastLocked(st *orderState, v tracking.View) {
	for _, ch := range st.watchers {
		select {
		case ch <- v:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

func (t *Tracker) staleDiscard(orderID string, seq uint64) {
	if t.metrics != nil {
		t.metrics.StaleDiscard()
	}
	t.logger.Debug("discarding superseded refresh", zap.String("order_id", orderID), zap.Uint64("seq", seq))
}

func (t *Tracker) record(result string) {
	if t.metrics != nil {
		t.metrics.Refresh(result)
	}
}
