// Package metrics exposes the storefront's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Storefront groups the counters recorded by the cart and tracking services.
// A nil *Storefront is valid and records nothing.
type Storefront struct {
	gatherer        prometheus.Gatherer
	cartMutations   *prometheus.CounterVec
	unmappedStatus  prometheus.Counter
	refreshes       *prometheus.CounterVec
	staleDiscards   prometheus.Counter
	ordersPlaced    *prometheus.CounterVec
	realtimeUpdates *prometheus.CounterVec
}

// New registers the collectors on a fresh registry together with the
// process and Go runtime collectors.
func New() *Storefront {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return NewWithRegisterer(reg, reg)
}

// NewWithRegisterer registers the collectors on reg; gatherer backs Handler.
func NewWithRegisterer(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Storefront {
	s := &Storefront{
		gatherer: gatherer,
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Cart mutations by operation.",
		}, []string{"op"}),
		unmappedStatus: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_unmapped_order_status_total",
			Help: "Order status strings that matched no canonical stage.",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_order_refreshes_total",
			Help: "Order tracking refreshes by result.",
		}, []string{"result"}),
		staleDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_order_refresh_stale_total",
			Help: "Refresh results dropped because a newer refresh superseded them.",
		}),
		ordersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_orders_placed_total",
			Help: "Checkout attempts by result.",
		}, []string{"result"}),
		realtimeUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_realtime_updates_total",
			Help: "Realtime order notifications by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(s.cartMutations, s.unmappedStatus, s.refreshes, s.staleDiscards, s.ordersPlaced, s.realtimeUpdates)
	return s
}

// Handler serves the registry in the prometheus exposition format.
func (s *Storefront) Handler() http.Handler {
	if s == nil || s.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
}

func (s *Storefront) CartMutation(op string) {
	if s == nil {
		return
	}
	s.cartMutations.WithLabelValues(normalizeLabel(op)).Inc()
}

// UnmappedStatus matches the tracking.Normalizer hook signature.
func (s *Storefront) UnmappedStatus(string) {
	if s == nil {
		return
	}
	s.unmappedStatus.Inc()
}

func (s *Storefront) Refresh(result string) {
	if s == nil {
		return
	}
	s.refreshes.WithLabelValues(normalizeLabel(result)).Inc()
}

func (s *Storefront) StaleDiscard() {
	if s == nil {
		return
	}
	s.staleDiscards.Inc()
}

func (s *Storefront) OrderPlaced(result string) {
	if s == nil {
		return
	}
	s.ordersPlaced.WithLabelValues(normalizeLabel(result)).Inc()
}

func (s *Storefront) RealtimeUpdate(result string) {
	if s == nil {
		return
	}
	s.realtimeUpdates.WithLabelValues(normalizeLabel(result)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
