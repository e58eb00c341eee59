package checkout

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"gogenie-storefront/internal/cart"
	"gogenie-storefront/internal/domain"
	cartrepo "gogenie-storefront/internal/repository/cart"
	"gogenie-storefront/internal/retail"
)

type Service struct {
	// inflight holds sessions with a placement waiting on the retail backend.
	mu       sync.Mutex
	inflight map[string]struct{}

	carts          cartStore
	orders         orderPlacer
	policy         cart.Policy
	defaultStoreID string
	logger         *zap.Logger
	metrics        placementRecorder
}

type cartStore interface {
	Load(ctx context.Context, sessionID string) ([]domain.CartItem, error)
	Mutate(ctx context.Context, sessionID string, fn cartrepo.MutateFunc) ([]domain.CartItem, error)
}

type orderPlacer interface {
	PlaceDeliveryOrder(ctx context.Context, token, storeID string, req retail.DeliveryOrderRequest) (*domain.OrderRecord, error)
}

type placementRecorder interface {
	OrderPlaced(result string)
}

type Config struct {
	Policy cart.Policy
	// DefaultStoreID is used when cart lines carry no store.
	DefaultStoreID string
}

func New(carts cartrepo.Repository, orders orderPlacer, cfg Config, logger *zap.Logger, metrics placementRecorder) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		inflight:       make(map[string]struct{}),
		carts:          carts,
		orders:         orders,
		policy:         cfg.Policy,
		defaultStoreID: cfg.DefaultStoreID,
		logger:         logger,
		metrics:        metrics,
	}
}

type PlaceInput struct {
	DeliverySlot        string `json:"deliverySlot"`
	PaymentMethodID     int64  `json:"paymentMethodId"`
	SpecialInstructions string `json:"specialInstructions,omitempty"`
}

// Receipt is the outcome of a successful checkout.
type Receipt struct {
	Order   *domain.OrderRecord `json:"order"`
	StoreID string              `json:"storeId"`
	Summary cart.Summary        `json:"summary"`
}

// Quote returns the checkout breakdown for the session cart.
func (s *Service) Quote(ctx context.Context, sessionID string) (cart.Summary, error) {
	items, err := s.carts.Load(ctx, sessionID)
	if err != nil {
		return cart.Summary{}, err
	}
	return s.policy.Summarize(cart.FromItems(items)), nil
}

// Place submits the session cart as a delivery order and clears the cart
// once the retail backend accepted it. A session places one order at a time;
// a second call while the first is in flight fails with domain.ErrConflict.
func (s *Service) Place(ctx context.Context, sessionID, token string, in PlaceInput) (*Receipt, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	release, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	items, err := s.carts.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c := cart.FromItems(items)
	if c.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	storeID, err := s.storeFor(c)
	if err != nil {
		return nil, err
	}
	lines, err := orderLines(c)
	if err != nil {
		return nil, err
	}
	summary := s.policy.Summarize(c)

	order, err := s.orders.PlaceDeliveryOrder(ctx, token, storeID, retail.DeliveryOrderRequest{
		Items:               lines,
		DeliverySlot:        strings.TrimSpace(in.DeliverySlot),
		SpecialInstructions: strings.TrimSpace(in.SpecialInstructions),
		PaymentMethodID:     in.PaymentMethodID,
	})
	if err != nil {
		s.record("error")
		s.logger.Warn("delivery order rejected", zap.String("session_id", sessionID), zap.String("store_id", storeID), zap.Error(err))
		return nil, err
	}
	s.record("ok")

	if _, err := s.carts.Mutate(ctx, sessionID, func(current []domain.CartItem) ([]domain.CartItem, error) {
		placed := cart.FromItems(current)
		placed.Clear()
		return placed.Items(), nil
	}); err != nil {
		// The order exists upstream; a failed clear is only logged.
		s.logger.Error("clear cart after checkout", zap.String("session_id", sessionID), zap.String("order_id", string(order.ID)), zap.Error(err))
	}

	s.logger.Info("delivery order placed",
		zap.String("order_id", string(order.ID)),
		zap.String("order_number", order.OrderNumber),
		zap.String("store_id", storeID),
		zap.String("grand_total", summary.GrandTotal.StringFixed(2)),
	)
	return &Receipt{Order: order, StoreID: storeID, Summary: summary}, nil
}

func (s *Service) acquire(sessionID string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[sessionID]; busy {
		s.logger.Warn("checkout already in progress", zap.String("session_id", sessionID))
		return nil, fmt.Errorf("%w: checkout already in progress for this cart", domain.ErrConflict)
	}
	s.inflight[sessionID] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.inflight, sessionID)
		s.mu.Unlock()
	}, nil
}

func (s *Service) record(result string) {
	if s.metrics != nil {
		s.metrics.OrderPlaced(result)
	}
}

// storeFor picks the delivering store. Orders are placed against a single
// store, so a cart mixing stores is rejected.
func (s *Service) storeFor(c *cart.Cart) (string, error) {
	stores := c.StoreIDs()
	switch len(stores) {
	case 0:
		if s.defaultStoreID == "" {
			return "", fmt.Errorf("%w: cart items carry no store", domain.ErrValidation)
		}
		return s.defaultStoreID, nil
	case 1:
		return stores[0], nil
	default:
		return "", fmt.Errorf("%w: cart mixes stores %s", domain.ErrValidation, strings.Join(stores, ", "))
	}
}

func orderLines(c *cart.Cart) ([]retail.DeliveryOrderItem, error) {
	items := c.Items()
	lines := make([]retail.DeliveryOrderItem, 0, len(items))
	for _, item := range items {
		id, err := strconv.ParseInt(item.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: item %q is not a store product id", domain.ErrValidation, item.ID)
		}
		lines = append(lines, retail.DeliveryOrderItem{StoreProductID: id, Quantity: item.Quantity})
	}
	return lines, nil
}

func (in PlaceInput) validate() error {
	if strings.TrimSpace(in.DeliverySlot) == "" {
		return fmt.Errorf("%w: deliverySlot required", domain.ErrValidation)
	}
	if in.PaymentMethodID <= 0 {
		return fmt.Errorf("%w: paymentMethodId required", domain.ErrValidation)
	}
	return nil
}
