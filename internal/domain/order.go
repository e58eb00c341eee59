package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FlexID accepts identifiers sent either as JSON strings or numbers.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// Int returns the identifier as an integer when it is numeric.
func (f FlexID) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(f), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// StatusObject is the structured status shape used by newer backend versions.
type StatusObject struct {
	Current  *string  `json:"current,omitempty"`
	Status   *string  `json:"status,omitempty"`
	Progress *float64 `json:"progress,omitempty"`
}

// StatusPayload holds either a bare status string or a StatusObject.
// Exactly one of Text and Object is meaningful; both empty means absent.
type StatusPayload struct {
	Text   string
	Object *StatusObject
}

// StatusText wraps a bare status string.
func StatusText(s string) StatusPayload {
	return StatusPayload{Text: s}
}

// IsZero reports whether no status was supplied.
func (p StatusPayload) IsZero() bool {
	return p.Object == nil && strings.TrimSpace(p.Text) == ""
}

// statusString returns the textual status carried by the payload, if any.
func (p StatusPayload) statusString() string {
	if p.Object != nil {
		if p.Object.Current != nil && strings.TrimSpace(*p.Object.Current) != "" {
			return *p.Object.Current
		}
		if p.Object.Status != nil && strings.TrimSpace(*p.Object.Status) != "" {
			return *p.Object.Status
		}
		return ""
	}
	return p.Text
}

func (p *StatusPayload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*p = StatusPayload{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		return json.Unmarshal(data, &p.Text)
	case '{':
		var obj StatusObject
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		p.Object = &obj
		return nil
	default:
		// Numbers and booleans are kept verbatim and fall through to the unmapped path.
		p.Text = string(data)
		return nil
	}
}

func (p StatusPayload) MarshalJSON() ([]byte, error) {
	if p.Object != nil {
		return json.Marshal(p.Object)
	}
	return json.Marshal(p.Text)
}

// OrderTimestamps is the nested timestamp block some backend versions return.
type OrderTimestamps struct {
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// OrderPricing is the nested pricing block some backend versions return.
type OrderPricing struct {
	Subtotal       decimal.NullDecimal `json:"subtotal"`
	DeliveryCharge decimal.NullDecimal `json:"deliveryCharge"`
	TotalAmount    decimal.NullDecimal `json:"totalAmount"`
}

// OrderLine is one line item on a fetched order.
type OrderLine struct {
	ID             FlexID              `json:"id"`
	StoreProductID FlexID              `json:"storeProductId"`
	Name           string              `json:"name"`
	Quantity       int                 `json:"quantity"`
	UnitPrice      decimal.NullDecimal `json:"unitPrice"`
	Price          decimal.NullDecimal `json:"price"`
	TotalPrice     decimal.NullDecimal `json:"totalPrice"`
}

// ResolvedUnitPrice returns unitPrice, falling back to price.
func (l OrderLine) ResolvedUnitPrice() decimal.Decimal {
	if l.UnitPrice.Valid {
		return l.UnitPrice.Decimal
	}
	return l.Price.Decimal
}

// ResolvedTotal returns totalPrice, falling back to unit price * quantity.
func (l OrderLine) ResolvedTotal() decimal.Decimal {
	if l.TotalPrice.Valid {
		return l.TotalPrice.Decimal
	}
	return l.ResolvedUnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderRecord is an order as returned by the retail backend. Its shape varies
// across backend versions, so every field is optional and the Resolved*
// methods apply one fixed resolution order: the first non-null source wins.
//
//	status:     status.current, status.status, status (string), orderStatus
//	progress:   status.progress
//	createdAt:  createdAt, timestamps.createdAt
//	updatedAt:  updatedAt, timestamps.updatedAt
//	totals:     top-level amount, pricing.<amount>
type OrderRecord struct {
	ID                  FlexID              `json:"id"`
	OrderNumber         string              `json:"orderNumber,omitempty"`
	OrderStatus         string              `json:"orderStatus,omitempty"`
	Status              StatusPayload       `json:"status"`
	PaymentStatus       string              `json:"paymentStatus,omitempty"`
	CreatedAt           *time.Time          `json:"createdAt,omitempty"`
	UpdatedAt           *time.Time          `json:"updatedAt,omitempty"`
	Timestamps          *OrderTimestamps    `json:"timestamps,omitempty"`
	DeliverySlot        string              `json:"deliverySlot,omitempty"`
	SpecialInstructions string              `json:"specialInstructions,omitempty"`
	Subtotal            decimal.NullDecimal `json:"subtotal"`
	DeliveryCharge      decimal.NullDecimal `json:"deliveryCharge"`
	TotalAmount         decimal.NullDecimal `json:"totalAmount"`
	Pricing             *OrderPricing       `json:"pricing,omitempty"`
	Items               []OrderLine         `json:"items,omitempty"`
}

// ResolvedStatus returns the status payload to normalize.
func (o OrderRecord) ResolvedStatus() StatusPayload {
	if strings.TrimSpace(o.Status.statusString()) != "" {
		return o.Status
	}
	if strings.TrimSpace(o.OrderStatus) == "" {
		return o.Status
	}
	if o.Status.Object != nil && o.Status.Object.Progress != nil {
		current := o.OrderStatus
		return StatusPayload{Object: &StatusObject{Current: &current, Progress: o.Status.Object.Progress}}
	}
	return StatusText(o.OrderStatus)
}

// ResolvedCreatedAt returns the order creation time.
func (o OrderRecord) ResolvedCreatedAt() (time.Time, bool) {
	if o.CreatedAt != nil {
		return *o.CreatedAt, true
	}
	if o.Timestamps != nil && o.Timestamps.CreatedAt != nil {
		return *o.Timestamps.CreatedAt, true
	}
	return time.Time{}, false
}

// ResolvedUpdatedAt returns the last modification time.
func (o OrderRecord) ResolvedUpdatedAt() (time.Time, bool) {
	if o.UpdatedAt != nil {
		return *o.UpdatedAt, true
	}
	if o.Timestamps != nil && o.Timestamps.UpdatedAt != nil {
		return *o.Timestamps.UpdatedAt, true
	}
	return time.Time{}, false
}

// ResolvedSubtotal returns the item subtotal.
func (o OrderRecord) ResolvedSubtotal() (decimal.Decimal, bool) {
	return firstDecimal(o.Subtotal, o.pricing().Subtotal)
}

// ResolvedDeliveryCharge returns the delivery charge.
func (o OrderRecord) ResolvedDeliveryCharge() (decimal.Decimal, bool) {
	return firstDecimal(o.DeliveryCharge, o.pricing().DeliveryCharge)
}

// ResolvedTotal returns the grand total.
func (o OrderRecord) ResolvedTotal() (decimal.Decimal, bool) {
	return firstDecimal(o.TotalAmount, o.pricing().TotalAmount)
}

// DeliverySlotTime parses the delivery slot when it is an ISO-8601 timestamp.
func (o OrderRecord) DeliverySlotTime() (time.Time, bool) {
	slot := strings.TrimSpace(o.DeliverySlot)
	if slot == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, slot)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (o OrderRecord) pricing() OrderPricing {
	if o.Pricing == nil {
		return OrderPricing{}
	}
	return *o.Pricing
}

func firstDecimal(values ...decimal.NullDecimal) (decimal.Decimal, bool) {
	for _, v := range values {
		if v.Valid {
			return v.Decimal, true
		}
	}
	return decimal.Zero, false
}
