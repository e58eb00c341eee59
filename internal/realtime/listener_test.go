package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gogenie-storefront/internal/service/order"
	"gogenie-storefront/internal/tracking"
)

type fakeSubscription struct {
	ch     chan *redis.Message
	closed bool
	mu     sync.Mutex
}

func (f *fakeSubscription) Channel(...redis.ChannelOption) <-chan *redis.Message { return f.ch }

func (f *fakeSubscription) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type stubRefresher struct {
	mu        sync.Mutex
	tracked   map[string]bool
	refreshed []string
	tokens    []string
	err       error
	done      chan string
}

func (s *stubRefresher) Refresh(_ context.Context, token, orderID string) (*tracking.View, error) {
	s.mu.Lock()
	s.refreshed = append(s.refreshed, orderID)
	s.tokens = append(s.tokens, token)
	s.mu.Unlock()
	if s.done != nil {
		s.done <- orderID
	}
	if s.err != nil {
		return nil, s.err
	}
	return &tracking.View{OrderID: orderID}, nil
}

func (s *stubRefresher) IsTracked(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracked[orderID]
}

type stubRecorder struct {
	mu      sync.Mutex
	results []string
}

func (s *stubRecorder) RealtimeUpdate(result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
}

func (s *stubRecorder) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.results...)
}

func TestOrderIDFrom(t *testing.T) {
	cases := map[string]struct {
		channel, payload, want string
	}{
		"json numeric id":    {"orders:42", `{"id":42,"orderStatus":"dispatched","totalAmount":"510.00"}`, "42"},
		"json string id":     {"orders:x", `{"id":"abc"}`, "abc"},
		"bare payload":       {"orders:1", "77", "77"},
		"json without id":    {"orders:9", `{"orderStatus":"pending"}`, "9"},
		"empty payload":      {"orders:15", "", "15"},
		"unrelated channel":  {"carts:1", "", ""},
		"malformed json":     {"orders:3", `{"id":`, "3"},
		"sentence not an id": {"orders:4", "order was updated", "4"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, OrderIDFrom(tc.channel, tc.payload))
		})
	}
}

func runListener(t *testing.T, r *stubRefresher, rec *stubRecorder) (chan *redis.Message, context.CancelFunc, chan error, *fakeSubscription) {
	t.Helper()
	sub := &fakeSubscription{ch: make(chan *redis.Message)}
	l := newListener(func(context.Context) subscription { return sub }, r, Config{ServiceToken: "svc"}, zap.NewNop(), rec)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()
	return sub.ch, cancel, errc, sub
}

func TestListenerRefreshesTrackedOrders(t *testing.T) {
	r := &stubRefresher{tracked: map[string]bool{"42": true}, done: make(chan string, 4)}
	rec := &stubRecorder{}
	ch, cancel, errc, sub := runListener(t, r, rec)

	ch <- &redis.Message{Channel: "orders:42", Payload: `{"id":42,"orderStatus":"delivered"}`}
	select {
	case id := <-r.done:
		assert.Equal(t, "42", id)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh not triggered")
	}

	ch <- &redis.Message{Channel: "orders:7", Payload: "7"}

	cancel()
	require.NoError(t, <-errc)

	assert.Equal(t, []string{"42"}, r.refreshed)
	assert.Equal(t, []string{"svc"}, r.tokens)
	assert.ElementsMatch(t, []string{"ok", "ignored"}, rec.snapshot())
	assert.True(t, sub.closed)
}

func TestListenerRecordsFailures(t *testing.T) {
	r := &stubRefresher{tracked: map[string]bool{"1": true, "2": true}, done: make(chan string, 4)}
	rec := &stubRecorder{}
	ch, cancel, errc, _ := runListener(t, r, rec)

	r.err = order.ErrSuperseded
	ch <- &redis.Message{Channel: "orders:1"}
	<-r.done
	cancel()
	require.NoError(t, <-errc)
	assert.Equal(t, []string{"superseded"}, rec.snapshot())

	r2 := &stubRefresher{tracked: map[string]bool{"2": true}, done: make(chan string, 4), err: errors.New("boom")}
	rec2 := &stubRecorder{}
	ch2, cancel2, errc2, _ := runListener(t, r2, rec2)
	ch2 <- &redis.Message{Channel: "orders:2"}
	<-r2.done
	cancel2()
	require.NoError(t, <-errc2)
	assert.Equal(t, []string{"error"}, rec2.snapshot())
}

func TestListenerSkipsMessagesWithoutID(t *testing.T) {
	r := &stubRefresher{tracked: map[string]bool{}}
	rec := &stubRecorder{}
	ch, cancel, errc, _ := runListener(t, r, rec)

	ch <- &redis.Message{Channel: "misc", Payload: "hello world"}
	cancel()
	require.NoError(t, <-errc)
	assert.Equal(t, []string{"invalid"}, rec.snapshot())
	assert.Empty(t, r.refreshed)
}

func TestListenerReturnsWhenSubscriptionCloses(t *testing.T) {
	r := &stubRefresher{}
	ch, cancel, errc, _ := runListener(t, r, &stubRecorder{})
	defer cancel()
	close(ch)
	assert.Error(t, <-errc)
}
