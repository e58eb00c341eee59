package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is one product line held in a session cart.
// Price is the unit price captured when the product was first added.
type CartItem struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit,omitempty"`
	Image     string          `json:"image,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	StoreID   string          `json:"storeId,omitempty"`
	StoreName string          `json:"storeName,omitempty"`
	AddedAt   time.Time       `json:"addedAt"`
}

// LineTotal returns price * quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
