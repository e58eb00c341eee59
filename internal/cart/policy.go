package cart

import "github.com/shopspring/decimal"

// Policy holds the delivery pricing constants applied at checkout.
type Policy struct {
	// FreeDeliveryThreshold is the subtotal above which delivery is free.
	FreeDeliveryThreshold decimal.Decimal
	DeliveryFee           decimal.Decimal
}

// DefaultPolicy waives the 30 delivery fee for subtotals over 500.
func DefaultPolicy() Policy {
	return Policy{
		FreeDeliveryThreshold: decimal.NewFromInt(500),
		DeliveryFee:           decimal.NewFromInt(30),
	}
}

// Summary is the checkout breakdown of a cart.
type Summary struct {
	TotalItems   int             `json:"totalItems"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	DeliveryFee  decimal.Decimal `json:"deliveryFee"`
	GrandTotal   decimal.Decimal `json:"grandTotal"`
	FreeDelivery bool            `json:"freeDelivery"`
}

// DeliveryFeeFor returns the fee charged for a given subtotal.
func (p Policy) DeliveryFeeFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(p.FreeDeliveryThreshold) {
		return decimal.Zero
	}
	return p.DeliveryFee
}

// Summarize derives the delivery fee and grand total for c.
func (p Policy) Summarize(c *Cart) Summary {
	subtotal := c.TotalAmount()
	fee := p.DeliveryFeeFor(subtotal)
	return Summary{
		TotalItems:   c.TotalItems(),
		Subtotal:     subtotal,
		DeliveryFee:  fee,
		GrandTotal:   subtotal.Add(fee),
		FreeDelivery: fee.IsZero(),
	}
}
