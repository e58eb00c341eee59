package tracking

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gogenie-storefront/internal/domain"
)

// View is the rendering model for the order tracking screen.
type View struct {
	OrderID        string          `json:"orderId"`
	OrderNumber    string          `json:"orderNumber,omitempty"`
	Status         Status          `json:"status"`
	RawStatus      string          `json:"rawStatus,omitempty"`
	Progress       int             `json:"progress"`
	Timeline       []Step          `json:"timeline"`
	Items          []ViewItem      `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DeliveryCharge decimal.Decimal `json:"deliveryCharge"`
	Total          decimal.Decimal `json:"total"`
	PaymentStatus  string          `json:"paymentStatus,omitempty"`
	DeliverySlot   string          `json:"deliverySlot,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// ViewItem is an order line prepared for display.
type ViewItem struct {
	ID             string          `json:"id"`
	StoreProductID string          `json:"storeProductId,omitempty"`
	Name           string          `json:"name"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Total          decimal.Decimal `json:"total"`
}

// Normalizer applies status normalization and reports status strings that
// matched no canonical key instead of masking them silently.
type Normalizer struct {
	logger     *zap.Logger
	onUnmapped func(raw string)
	now        func() time.Time
}

// NewNormalizer builds a Normalizer. onUnmapped may be nil.
func NewNormalizer(logger *zap.Logger, onUnmapped func(raw string)) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		logger:     logger,
		onUnmapped: onUnmapped,
		now:        time.Now,
	}
}

// Normalize is NormalizeStatus plus a diagnostic for unmapped input. A record
// without any status is not unmapped; it is only noted at debug level.
func (n *Normalizer) Normalize(payload domain.StatusPayload) Normalized {
	out := NormalizeStatus(payload)
	if payload.IsZero() {
		n.logger.Debug("order has no status, defaulting to pending")
		return out
	}
	if !out.Mapped {
		n.logger.Warn("unmapped order status, defaulting to pending",
			zap.String("raw_status", out.Raw),
			zap.String("normalized", normalizeSeparators(out.Raw)),
		)
		if n.onUnmapped != nil {
			n.onUnmapped(out.Raw)
		}
	}
	return out
}

// View resolves an order record and derives its tracking view.
func (n *Normalizer) View(rec domain.OrderRecord) View {
	norm := n.Normalize(rec.ResolvedStatus())
	progress := norm.Progress
	if !norm.ProgressSupplied {
		progress = InferProgress(norm.Status)
	}

	updatedAt, hasUpdated := rec.ResolvedUpdatedAt()
	createdAt, ok := rec.ResolvedCreatedAt()
	if !ok {
		if hasUpdated {
			createdAt = updatedAt
		} else {
			createdAt = n.now().UTC()
		}
		n.logger.Debug("order has no creation time, anchoring timeline", zap.String("order_id", string(rec.ID)), zap.Time("anchor", createdAt))
	}
	if !hasUpdated {
		updatedAt = createdAt
	}

	var slot *time.Time
	if t, ok := rec.DeliverySlotTime(); ok {
		slot = &t
	}

	items := make([]ViewItem, 0, len(rec.Items))
	itemsTotal := decimal.Zero
	for _, line := range rec.Items {
		total := line.ResolvedTotal()
		itemsTotal = itemsTotal.Add(total)
		items = append(items, ViewItem{
			ID:             string(line.ID),
			StoreProductID: string(line.StoreProductID),
			Name:           line.Name,
			Quantity:       line.Quantity,
			UnitPrice:      line.ResolvedUnitPrice(),
			Total:          total,
		})
	}

	subtotal, ok := rec.ResolvedSubtotal()
	if !ok {
		subtotal = itemsTotal
	}
	deliveryCharge, _ := rec.ResolvedDeliveryCharge()
	total, ok := rec.ResolvedTotal()
	if !ok {
		total = subtotal.Add(deliveryCharge)
	}

	return View{
		OrderID:        string(rec.ID),
		OrderNumber:    rec.OrderNumber,
		Status:         norm.Status,
		RawStatus:      norm.Raw,
		Progress:       progress,
		Timeline:       BuildTimeline(norm.Status, progress, createdAt, slot),
		Items:          items,
		Subtotal:       subtotal,
		DeliveryCharge: deliveryCharge,
		Total:          total,
		PaymentStatus:  rec.PaymentStatus,
		DeliverySlot:   rec.DeliverySlot,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
}
