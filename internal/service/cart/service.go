package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gogenie-storefront/internal/cart"
	"gogenie-storefront/internal/domain"
	cartrepo "gogenie-storefront/internal/repository/cart"
)

const (
	// MaxQuantity bounds a single cart line.
	MaxQuantity = 999
	priceScale  = 2
)

// maxPrice is the first unit price the cart store cannot hold (NUMERIC(12, 2)).
var maxPrice = decimal.New(1, 10)

type Service struct {
	repo    cartRepo
	policy  cart.Policy
	logger  *zap.Logger
	metrics mutationRecorder
}

type cartRepo interface {
	Load(ctx context.Context, sessionID string) ([]domain.CartItem, error)
	Mutate(ctx context.Context, sessionID string, fn cartrepo.MutateFunc) ([]domain.CartItem, error)
}

type mutationRecorder interface {
	CartMutation(op string)
}

func New(repo cartrepo.Repository, policy cart.Policy, logger *zap.Logger, metrics mutationRecorder) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, policy: policy, logger: logger, metrics: metrics}
}

// View is a session cart together with its checkout breakdown.
type View struct {
	cart.Snapshot
	Summary cart.Summary `json:"summary"`
}

// AddItemInput describes a catalog product being added to the cart.
type AddItemInput struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	StoreID   string          `json:"storeId"`
	StoreName string          `json:"storeName"`
}

func (s *Service) Get(ctx context.Context, sessionID string) (*View, error) {
	items, err := s.repo.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.view(cart.FromItems(items)), nil
}

// Summary returns only the checkout breakdown of the session cart.
func (s *Service) Summary(ctx context.Context, sessionID string) (cart.Summary, error) {
	v, err := s.Get(ctx, sessionID)
	if err != nil {
		return cart.Summary{}, err
	}
	return v.Summary, nil
}

func (s *Service) AddItem(ctx context.Context, sessionID string, in AddItemInput) (*View, error) {
	item, err := in.toItem()
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, sessionID, "add", func(c *cart.Cart) error {
		if c.ItemQuantity(item.ID) >= MaxQuantity {
			return fmt.Errorf("%w: quantity of %s cannot exceed %d", domain.ErrValidation, item.ID, MaxQuantity)
		}
		c.AddItem(item)
		return nil
	})
}

// UpdateQuantity sets an absolute quantity; zero or less removes the item.
// Unknown ids leave the cart unchanged.
func (s *Service) UpdateQuantity(ctx context.Context, sessionID, itemID string, quantity int) (*View, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, fmt.Errorf("%w: item id required", domain.ErrValidation)
	}
	if quantity > MaxQuantity {
		return nil, fmt.Errorf("%w: quantity cannot exceed %d", domain.ErrValidation, MaxQuantity)
	}
	return s.mutate(ctx, sessionID, "update", func(c *cart.Cart) error {
		if !c.UpdateQuantity(itemID, quantity) {
			s.logger.Debug("quantity update for item not in cart", zap.String("session_id", sessionID), zap.String("item_id", itemID))
		}
		return nil
	})
}

func (s *Service) RemoveItem(ctx context.Context, sessionID, itemID string) (*View, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, fmt.Errorf("%w: item id required", domain.ErrValidation)
	}
	return s.mutate(ctx, sessionID, "remove", func(c *cart.Cart) error {
		c.RemoveItem(itemID)
		return nil
	})
}

func (s *Service) Clear(ctx context.Context, sessionID string) (*View, error) {
	return s.mutate(ctx, sessionID, "clear", func(c *cart.Cart) error {
		c.Clear()
		return nil
	})
}

func (s *Service) ItemQuantity(ctx context.Context, sessionID, itemID string) (int, error) {
	items, err := s.repo.Load(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return cart.FromItems(items).ItemQuantity(strings.TrimSpace(itemID)), nil
}

func (s *Service) mutate(ctx context.Context, sessionID, op string, apply func(*cart.Cart) error) (*View, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id required", domain.ErrValidation)
	}
	items, err := s.repo.Mutate(ctx, sessionID, func(stored []domain.CartItem) ([]domain.CartItem, error) {
		c := cart.FromItems(stored)
		if err := apply(c); err != nil {
			return nil, err
		}
		return c.Items(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("cart %s: %w", op, err)
	}
	if s.metrics != nil {
		s.metrics.CartMutation(op)
	}
	v := s.view(cart.FromItems(items))
	s.logger.Debug("cart mutated",
		zap.String("op", op),
		zap.String("session_id", sessionID),
		zap.Int("total_items", v.TotalItems),
		zap.String("total_amount", v.TotalAmount.StringFixed(2)),
	)
	return v, nil
}

func (s *Service) view(c *cart.Cart) *View {
	return &View{Snapshot: c.Snapshot(), Summary: s.policy.Summarize(c)}
}

func (in AddItemInput) toItem() (domain.CartItem, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return domain.CartItem{}, fmt.Errorf("%w: id required", domain.ErrValidation)
	}
	if in.Price.IsNegative() {
		return domain.CartItem{}, fmt.Errorf("%w: price must not be negative", domain.ErrValidation)
	}
	if !in.Price.Equal(in.Price.Truncate(priceScale)) {
		return domain.CartItem{}, fmt.Errorf("%w: price has more than %d decimal places", domain.ErrValidation, priceScale)
	}
	if in.Price.GreaterThanOrEqual(maxPrice) {
		return domain.CartItem{}, fmt.Errorf("%w: price must be below %s", domain.ErrValidation, maxPrice)
	}
	return domain.CartItem{
		ID:        id,
		Name:      strings.TrimSpace(in.Name),
		Unit:      in.Unit,
		Image:     in.Image,
		Price:     in.Price,
		StoreID:   strings.TrimSpace(in.StoreID),
		StoreName: in.StoreName,
	}, nil
}
