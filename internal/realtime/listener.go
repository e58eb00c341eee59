// Package realtime turns order change notifications published on redis into
// full tracking refreshes.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gogenie-storefront/internal/domain"
	"gogenie-storefront/internal/service/order"
	"gogenie-storefront/internal/tracking"
)

const (
	DefaultPattern        = "orders:*"
	channelPrefix         = "orders:"
	defaultRefreshLimit   = 8
	defaultRefreshTimeout = 10 * time.Second
)

// OrderUpdate is the change notification published for an order row. Only
// the id is used; the payload never replaces a full fetch.
type OrderUpdate struct {
	ID             domain.FlexID `json:"id"`
	OrderNumber    string        `json:"orderNumber"`
	OrderStatus    string        `json:"orderStatus"`
	PaymentStatus  string        `json:"paymentStatus"`
	Subtotal       string        `json:"subtotal"`
	DeliveryCharge string        `json:"deliveryCharge"`
	TotalAmount    string        `json:"totalAmount"`
	DeliverySlot   string        `json:"deliverySlot"`
	UpdatedAt      string        `json:"updatedAt"`
}

type refresher interface {
	Refresh(ctx context.Context, token, orderID string) (*tracking.View, error)
	IsTracked(orderID string) bool
}

type updateRecorder interface {
	RealtimeUpdate(result string)
}

// subscription is the part of *redis.PubSub the listener consumes.
type subscription interface {
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

type Listener struct {
	subscribe      func(ctx context.Context) subscription
	refresher      refresher
	token          string
	logger         *zap.Logger
	metrics        updateRecorder
	refreshLimit   int
	refreshTimeout time.Duration
}

type Config struct {
	// Pattern defaults to DefaultPattern.
	Pattern string
	// ServiceToken authenticates refreshes triggered by notifications.
	ServiceToken   string
	RefreshTimeout time.Duration
}

func NewListener(rdb *redis.Client, r refresher, cfg Config, logger *zap.Logger, metrics updateRecorder) *Listener {
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	return newListener(func(ctx context.Context) subscription {
		return rdb.PSubscribe(ctx, pattern)
	}, r, cfg, logger, metrics)
}

func newListener(subscribe func(context.Context) subscription, r refresher, cfg Config, logger *zap.Logger, metrics updateRecorder) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RefreshTimeout
	if timeout <= 0 {
		timeout = defaultRefreshTimeout
	}
	return &Listener{
		subscribe:      subscribe,
		refresher:      r,
		token:          cfg.ServiceToken,
		logger:         logger,
		metrics:        metrics,
		refreshLimit:   defaultRefreshLimit,
		refreshTimeout: timeout,
	}
}

// Run consumes notifications until ctx is cancelled. Refreshes run
// concurrently up to a fixed limit; when the limit is reached the
// subscription is not read until a refresh finishes.
func (l *Listener) Run(ctx context.Context) error {
	sub := l.subscribe(ctx)
	defer func() { _ = sub.Close() }()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.refreshLimit)
	defer func() { _ = g.Wait() }()

	messages := sub.Channel()
	l.logger.Info("realtime listener started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("realtime listener stopped")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return errors.New("realtime subscription closed")
			}
			orderID := OrderIDFrom(msg.Channel, msg.Payload)
			if orderID == "" {
				l.record("invalid")
				l.logger.Warn("order notification without id", zap.String("channel", msg.Channel))
				continue
			}
			if !l.refresher.IsTracked(orderID) {
				l.record("ignored")
				continue
			}
			g.Go(func() error {
				l.refresh(gctx, orderID)
				return nil
			})
		}
	}
}

func (l *Listener) refresh(ctx context.Context, orderID string) {
	ctx, cancel := context.WithTimeout(ctx, l.refreshTimeout)
	defer cancel()
	if _, err := l.refresher.Refresh(ctx, l.token, orderID); err != nil {
		if errors.Is(err, order.ErrSuperseded) {
			l.record("superseded")
			return
		}
		l.record("error")
		l.logger.Warn("realtime refresh failed", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	l.record("ok")
}

func (l *Listener) record(result string) {
	if l.metrics != nil {
		l.metrics.RealtimeUpdate(result)
	}
}

// OrderIDFrom extracts the order id from a notification: the payload's id
// field when it is a JSON object, otherwise a bare id payload, otherwise the
// suffix of the "orders:<id>" channel.
func OrderIDFrom(channel, payload string) string {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "{") {
		var u OrderUpdate
		if err := json.Unmarshal([]byte(payload), &u); err == nil && u.ID != "" {
			return string(u.ID)
		}
	} else if payload != "" && !strings.ContainsAny(payload, " \t\n") {
		return payload
	}
	if id, ok := strings.CutPrefix(channel, channelPrefix); ok {
		return strings.TrimSpace(id)
	}
	return ""
}
