// Package cart holds the in-memory cart aggregate and the checkout pricing policy.
package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"gogenie-storefront/internal/domain"
)

// Cart is the set of items a shopper intends to buy. Items keep their
// insertion order and TotalItems/TotalAmount are always recomputed from
// them after a mutation. A Cart is owned by one session and is not safe
// for concurrent use; stores serialize access to it.
type Cart struct {
	order       []string
	items       map[string]*domain.CartItem
	totalItems  int
	totalAmount decimal.Decimal
	now         func() time.Time
}

// Snapshot is a read-only copy of a cart and its derived totals.
type Snapshot struct {
	Items       []domain.CartItem `json:"items"`
	TotalItems  int               `json:"totalItems"`
	TotalAmount decimal.Decimal   `json:"totalAmount"`
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{
		items:       make(map[string]*domain.CartItem),
		totalAmount: decimal.Zero,
		now:         time.Now,
	}
}

// FromItems rebuilds a cart from stored lines, preserving their order and
// quantities. Lines with a non-positive quantity are dropped; a repeated id
// keeps its first position and its last value.
func FromItems(items []domain.CartItem) *Cart {
	c := New()
	for _, item := range items {
		if item.ID == "" || item.Quantity <= 0 {
			continue
		}
		line := item
		if _, ok := c.items[item.ID]; !ok {
			c.order = append(c.order, item.ID)
		}
		c.items[item.ID] = &line
	}
	c.recompute()
	return c
}

// AddItem adds one unit of item. Re-adding an id already in the cart is a
// "+1"; the stored price and metadata are not replaced.
func (c *Cart) AddItem(item domain.CartItem) {
	if existing, ok := c.items[item.ID]; ok {
		existing.Quantity++
		c.recompute()
		return
	}
	line := item
	line.Quantity = 1
	if line.AddedAt.IsZero() {
		line.AddedAt = c.now().UTC()
	}
	c.items[item.ID] = &line
	c.order = append(c.order, item.ID)
	c.recompute()
}

// UpdateQuantity sets the absolute quantity of an existing item. A quantity
// of zero or less removes it. Ids that are not in the cart are left alone
// and reported with false.
func (c *Cart) UpdateQuantity(id string, quantity int) bool {
	if quantity <= 0 {
		return c.RemoveItem(id)
	}
	existing, ok := c.items[id]
	if !ok {
		return false
	}
	existing.Quantity = quantity
	c.recompute()
	return true
}

// RemoveItem deletes an item and reports whether it was present.
func (c *Cart) RemoveItem(id string) bool {
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	for i, key := range c.order {
		if key == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.recompute()
	return true
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.items = make(map[string]*domain.CartItem)
	c.order = nil
	c.recompute()
}

// ItemQuantity returns the quantity held for id, or 0.
func (c *Cart) ItemQuantity(id string) int {
	if item, ok := c.items[id]; ok {
		return item.Quantity
	}
	return 0
}

// Items returns copies of the cart lines in insertion order.
func (c *Cart) Items() []domain.CartItem {
	out := make([]domain.CartItem, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.items[id])
	}
	return out
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int { return len(c.order) }

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool { return len(c.order) == 0 }

// TotalItems is the sum of quantities.
func (c *Cart) TotalItems() int { return c.totalItems }

// TotalAmount is the sum of price * quantity.
func (c *Cart) TotalAmount() decimal.Decimal { return c.totalAmount }

// StoreIDs lists the distinct stores present in the cart, in first-seen order.
func (c *Cart) StoreIDs() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, id := range c.order {
		storeID := c.items[id].StoreID
		if storeID == "" {
			continue
		}
		if _, ok := seen[storeID]; ok {
			continue
		}
		seen[storeID] = struct{}{}
		out = append(out, storeID)
	}
	return out
}

// Snapshot copies the cart state.
func (c *Cart) Snapshot() Snapshot {
	return Snapshot{
		Items:       c.Items(),
		TotalItems:  c.totalItems,
		TotalAmount: c.totalAmount,
	}
}

func (c *Cart) recompute() {
	items := 0
	amount := decimal.Zero
	for _, id := range c.order {
		line := c.items[id]
		items += line.Quantity
		amount = amount.Add(line.LineTotal())
	}
	c.totalItems = items
	c.totalAmount = amount
}
