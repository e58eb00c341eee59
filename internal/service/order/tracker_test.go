package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gogenie-storefront/internal/domain"
	"gogenie-storefront/internal/retail"
	"gogenie-storefront/internal/tracking"
)

type fetchFunc func(ctx context.Context, call int) (*domain.OrderRecord, error)

type stubFetcher struct {
	mu        sync.Mutex
	calls     int
	get       fetchFunc
	list      *retail.OrderList
	listErr   error
	lastToken string
}

func (s *stubFetcher) GetOrder(ctx context.Context, token, _ string) (*domain.OrderRecord, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.lastToken = token
	s.mu.Unlock()
	return s.get(ctx, call)
}

func (s *stubFetcher) ListOrders(_ context.Context, token string, _ retail.ListOrdersParams) (*retail.OrderList, error) {
	s.lastToken = token
	return s.list, s.listErr
}

type stubRecorder struct {
	mu      sync.Mutex
	results []string
	stale   int
}

func (s *stubRecorder) Refresh(result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
}

func (s *stubRecorder) StaleDiscard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale++
}

func record(status string) *domain.OrderRecord {
	created := time.Date(2024, 8, 12, 10, 0, 0, 0, time.UTC)
	return &domain.OrderRecord{ID: "42", OrderStatus: status, CreatedAt: &created}
}

func newTracker(f *stubFetcher, rec *stubRecorder) *Tracker {
	return NewTracker(f, tracking.NewNormalizer(zap.NewNop(), nil), zap.NewNop(), rec)
}

func TestRefreshStoresLatest(t *testing.T) {
	f := &stubFetcher{get: func(context.Context, int) (*domain.OrderRecord, error) {
		return record("dispatched"), nil
	}}
	rec := &stubRecorder{}
	tr := newTracker(f, rec)

	_, ok := tr.Latest("42")
	assert.False(t, ok)

	v, err := tr.Refresh(context.Background(), "tok", "42")
	require.NoError(t, err)
	assert.Equal(t, tracking.StatusOutForDelivery, v.Status)
	assert.Equal(t, 80, v.Progress)
	assert.Equal(t, "tok", f.lastToken)

	latest, ok := tr.Latest("42")
	require.True(t, ok)
	assert.Equal(t, *v, latest)
	assert.True(t, tr.IsTracked("42"))
	assert.Equal(t, []string{"ok"}, rec.results)
}

func TestRefreshFillsMissingOrderID(t *testing.T) {
	f := &stubFetcher{get: func(context.Context, int) (*domain.OrderRecord, error) {
		return &domain.OrderRecord{OrderStatus: "pending"}, nil
	}}
	v, err := newTracker(f, &stubRecorder{}).Refresh(context.Background(), "", "7")
	require.NoError(t, err)
	assert.Equal(t, "7", v.OrderID)
}

func TestRefreshRequiresID(t *testing.T) {
	tr := newTracker(&stubFetcher{}, &stubRecorder{})
	_, err := tr.Refresh(context.Background(), "tok", " ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRefreshErrorKeepsPreviousView(t *testing.T) {
	f := &stubFetcher{get: func(_ context.Context, call int) (*domain.OrderRecord, error) {
		if call == 1 {
			return record("confirmed"), nil
		}
		return nil, domain.ErrNotFound
	}}
	rec := &stubRecorder{}
	tr := newTracker(f, rec)

	_, err := tr.Refresh(context.Background(), "tok", "42")
	require.NoError(t, err)
	_, err = tr.Refresh(context.Background(), "tok", "42")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	latest, ok := tr.Latest("42")
	require.True(t, ok)
	assert.Equal(t, tracking.StatusOrderConfirmed, latest.Status)
	assert.Equal(t, []string{"ok", "error"}, rec.results)
}

func TestNewerRefreshCancelsOlderFetch(t *testing.T) {
	started := make(chan struct{})
	f := &stubFetcher{get: func(ctx context.Context, call int) (*domain.OrderRecord, error) {
		if call == 1 {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return record("delivered"), nil
	}}
	rec := &stubRecorder{}
	tr := newTracker(f, rec)

	errc := make(chan error, 1)
	go func() {
		_, err := tr.Refresh(context.Background(), "tok", "42")
		errc <- err
	}()
	<-started

	v, err := tr.Refresh(context.Background(), "tok", "42")
	require.NoError(t, err)
	assert.Equal(t, tracking.StatusDelivered, v.Status)

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("older refresh was not cancelled")
	}

	latest, _ := tr.Latest("42")
	assert.Equal(t, tracking.StatusDelivered, latest.Status)
	assert.Equal(t, 1, rec.stale)
}

func TestStaleResultIsNeverApplied(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := &stubFetcher{get: func(_ context.Context, call int) (*domain.OrderRecord, error) {
		if call == 1 {
			close(started)
			<-release
			return record("pending"), nil
		}
		return record("out for delivery"), nil
	}}
	tr := newTracker(f, &stubRecorder{})

	errc := make(chan error, 1)
	go func() {
		_, err := tr.Refresh(context.Background(), "tok", "42")
		errc <- err
	}()
	<-started

	_, err := tr.Refresh(context.Background(), "tok", "42")
	require.NoError(t, err)
	close(release)

	assert.ErrorIs(t, <-errc, ErrSuperseded)
	latest, _ := tr.Latest("42")
	assert.Equal(t, tracking.StatusOutForDelivery, latest.Status)
}

func TestRefreshesOfDifferentOrdersAreIndependent(t *testing.T) {
	f := &stubFetcher{get: func(context.Context, int) (*domain.OrderRecord, error) {
		return record("ready"), nil
	}}
	tr := newTracker(f, &stubRecorder{})

	var wg sync.WaitGroup
	for _, id := range []string{"1", "2", "3"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := tr.Refresh(context.Background(), "tok", id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	for _, id := range []string{"1", "2", "3"} {
		_, ok := tr.Latest(id)
		assert.True(t, ok, id)
	}
}

func TestWatchReceivesCurrentAndUpdates(t *testing.T) {
	statuses := []string{"confirmed", "packed"}
	f := &stubFetcher{get: func(_ context.Context, call int) (*domain.OrderRecord, error) {
		return record(statuses[call-1]), nil
	}}
	tr := newTracker(f, &stubRecorder{})

	_, err := tr.Refresh(context.Background(), "tok", "42")
	require.NoError(t, err)

	ch, stop := tr.Watch("42")
	first := <-ch
	assert.Equal(t, tracking.StatusOrderConfirmed, first.Status)

	_, err = tr.Refresh(context.Background(), "tok", "42")
	require.NoError(t, err)
	second := <-ch
	assert.Equal(t, tracking.StatusReadyToDispatch, second.Status)

	stop()
	stop()
	_, open := <-ch
	assert.False(t, open)
}

func TestWatchSlowReaderSeesNewest(t *testing.T) {
	statuses := []string{"pending", "confirmed", "delivered"}
	f := &stubFetcher{get: func(_ context.Context, call int) (*domain.OrderRecord, error) {
		return record(statuses[call-1]), nil
	}}
	tr := newTracker(f, &stubRecorder{})
	ch, stop := tr.Watch("42")
	defer stop()

	for range statuses {
		_, err := tr.Refresh(context.Background(), "tok", "42")
		require.NoError(t, err)
	}
	got := <-ch
	assert.Equal(t, tracking.StatusDelivered, got.Status)
}

func TestList(t *testing.T) {
	created := time.Date(2024, 8, 12, 10, 0, 0, 0, time.UTC)
	f := &stubFetcher{list: &retail.OrderList{
		Orders: []domain.OrderRecord{
			{
				ID:          "1",
				OrderStatus: "Completed",
				CreatedAt:   &created,
				TotalAmount: decimal.NewNullDecimal(decimal.NewFromInt(510)),
				Items: []domain.OrderLine{
					{ID: "a", Quantity: 2, UnitPrice: decimal.NewNullDecimal(decimal.NewFromInt(10))},
					{ID: "b", Quantity: 1, UnitPrice: decimal.NewNullDecimal(decimal.NewFromInt(5))},
				},
			},
			{ID: "2", Status: domain.StatusText("Order-Preparing"), CreatedAt: &created},
		},
		Pagination: retail.Pagination{Page: 1, Limit: 10, Total: 2, TotalPages: 1},
	}}
	tr := newTracker(f, &stubRecorder{})

	got, err := tr.List(context.Background(), "tok", retail.ListOrdersParams{})
	require.NoError(t, err)
	require.Len(t, got.Orders, 2)
	assert.Equal(t, tracking.StatusDelivered, got.Orders[0].Status)
	assert.Equal(t, 100, got.Orders[0].Progress)
	assert.Equal(t, 3, got.Orders[0].ItemCount)
	assert.True(t, decimal.NewFromInt(510).Equal(got.Orders[0].Total))
	assert.Equal(t, tracking.StatusOrderPreparing, got.Orders[1].Status)
	assert.Equal(t, 2, got.Pagination.Total)
}

func TestListError(t *testing.T) {
	boom := errors.New("boom")
	tr := newTracker(&stubFetcher{listErr: boom}, &stubRecorder{})
	_, err := tr.List(context.Background(), "tok", retail.ListOrdersParams{})
	assert.ErrorIs(t, err, boom)
}

func TestEvictionKeepsWatchedOrders(t *testing.T) {
	f := &stubFetcher{get: func(context.Context, int) (*domain.OrderRecord, error) {
		return record("pending"), nil
	}}
	tr := newTracker(f, &stubRecorder{})
	tr.maxTracked = 2

	_, stop := tr.Watch("watched")
	defer stop()
	_, err := tr.Refresh(context.Background(), "tok", "idle")
	require.NoError(t, err)
	_, err = tr.Refresh(context.Background(), "tok", "new")
	require.NoError(t, err)

	assert.True(t, tr.IsTracked("watched"))
	assert.False(t, tr.IsTracked("idle"))
	assert.True(t, tr.IsTracked("new"))
}
