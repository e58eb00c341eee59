package tracking

import (
	"fmt"
	"strings"
)

// Status is a canonical, backend-independent order lifecycle stage.
type Status string

const (
	StatusPending         Status = "pending"
	StatusOrderPreparing  Status = "order_preparing"
	StatusOrderConfirmed  Status = "order_confirmed"
	StatusReadyToDispatch Status = "ready_to_dispatch"
	StatusOutForDelivery  Status = "out_for_delivery"
	StatusDelivered       Status = "delivered"
)

// canonicalStatuses is the fixed display order of the timeline.
var canonicalStatuses = []Status{
	StatusPending,
	StatusOrderPreparing,
	StatusOrderConfirmed,
	StatusReadyToDispatch,
	StatusOutForDelivery,
	StatusDelivered,
}

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}

// IsValid reports whether the value is a canonical Status.
func (s Status) IsValid() bool {
	return s.Index() >= 0
}

// Index returns the timeline position of s, or -1 when s is not canonical.
func (s Status) Index() int {
	for i, candidate := range canonicalStatuses {
		if candidate == s {
			return i
		}
	}
	return -1
}

// ParseStatus converts raw input into a canonical Status after synonym resolution.
func ParseStatus(value string) (Status, error) {
	s := Status(CanonicalizeStatusString(value))
	if !s.IsValid() {
		return "", fmt.Errorf("invalid order status %q", value)
	}
	return s, nil
}

// Statuses returns the canonical statuses in timeline order.
func Statuses() []Status {
	out := make([]Status, len(canonicalStatuses))
	copy(out, canonicalStatuses)
	return out
}

// synonyms maps vendor spellings, already normalized to snake_case, onto canonical keys.
// "completed" means delivered; the dispatch stage is reached through the "ready"/"packed" family.
var synonyms = map[string]Status{
	"pending":               StatusPending,
	"placed":                StatusPending,
	"order_placed":          StatusPending,
	"new":                   StatusPending,
	"created":               StatusPending,
	"received":              StatusPending,
	"awaiting_confirmation": StatusPending,

	"order_preparing": StatusOrderPreparing,
	"preparing":       StatusOrderPreparing,
	"processing":      StatusOrderPreparing,
	"in_progress":     StatusOrderPreparing,
	"picking":         StatusOrderPreparing,

	"order_confirmed": StatusOrderConfirmed,
	"confirmed":       StatusOrderConfirmed,
	"accepted":        StatusOrderConfirmed,

	"ready_to_dispatch":  StatusReadyToDispatch,
	"ready":              StatusReadyToDispatch,
	"ready_for_dispatch": StatusReadyToDispatch,
	"ready_for_pickup":   StatusReadyToDispatch,
	"packed":             StatusReadyToDispatch,
	"order_packed":       StatusReadyToDispatch,

	"out_for_delivery": StatusOutForDelivery,
	"dispatched":       StatusOutForDelivery,
	"on_the_way":       StatusOutForDelivery,
	"in_transit":       StatusOutForDelivery,
	"shipped":          StatusOutForDelivery,
	"picked_up":        StatusOutForDelivery,

	"delivered":       StatusDelivered,
	"completed":       StatusDelivered,
	"finished":        StatusDelivered,
	"order_delivered": StatusDelivered,
	"fulfilled":       StatusDelivered,
}

// CanonicalizeStatusString lowercases raw, collapses runs of spaces, underscores
// and hyphens into a single underscore, and resolves synonyms. Unknown values are
// returned in their normalized form so callers can tell them apart from canonical keys.
func CanonicalizeStatusString(raw string) string {
	normalized := normalizeSeparators(raw)
	if s, ok := synonyms[normalized]; ok {
		return string(s)
	}
	return normalized
}

func normalizeSeparators(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	b.Grow(len(lowered))
	pendingSep := false
	for _, r := range lowered {
		switch r {
		case ' ', '_', '-', '\t':
			pendingSep = true
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingSep = false
		b.WriteRune(r)
	}
	return b.String()
}
