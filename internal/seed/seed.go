package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"gogenie-storefront/internal/cart"
	"gogenie-storefront/internal/domain"
	cartrepo "gogenie-storefront/internal/repository/cart"
)

// DemoSessionID is the session the demo cart is written to unless overridden.
const DemoSessionID = "demo-session"

// demoAddedAt stamps every demo line so reseeding writes identical rows.
var demoAddedAt = time.Date(2024, time.August, 12, 9, 0, 0, 0, time.UTC)

type lineSeed struct {
	ID       string
	Name     string
	Unit     string
	Price    string
	Quantity int
}

// demoLines add up to 480, just under the free delivery threshold, so the
// demo cart shows a delivery fee until one more item is added.
var demoLines = []lineSeed{
	{ID: "101", Name: "Basmati Rice", Unit: "1 kg", Price: "120", Quantity: 2},
	{ID: "102", Name: "Toor Dal", Unit: "500 g", Price: "95", Quantity: 2},
	{ID: "103", Name: "Sunflower Oil", Unit: "1 L", Price: "50", Quantity: 1},
}

// Apply replaces the cart of sessionID with the demo lines. Running it again
// yields the same cart.
func Apply(ctx context.Context, repo cartrepo.Repository, sessionID, storeID string) ([]domain.CartItem, error) {
	if sessionID == "" {
		sessionID = DemoSessionID
	}
	items, err := demoItems(storeID)
	if err != nil {
		return nil, err
	}
	saved, err := repo.Mutate(ctx, sessionID, func([]domain.CartItem) ([]domain.CartItem, error) {
		return items, nil
	})
	if err != nil {
		return nil, fmt.Errorf("seed cart %s: %w", sessionID, err)
	}
	return saved, nil
}

func demoItems(storeID string) ([]domain.CartItem, error) {
	c := cart.New()
	for _, l := range demoLines {
		price, err := decimal.NewFromString(l.Price)
		if err != nil {
			return nil, fmt.Errorf("seed price %s: %w", l.ID, err)
		}
		c.AddItem(domain.CartItem{
			ID:        l.ID,
			Name:      l.Name,
			Unit:      l.Unit,
			Price:     price,
			StoreID:   storeID,
			StoreName: "GoGenie Demo Store",
			AddedAt:   demoAddedAt,
		})
		c.UpdateQuantity(l.ID, l.Quantity)
	}
	return c.Items(), nil
}
