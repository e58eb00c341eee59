package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gogenie-storefront/internal/cart"
	"gogenie-storefront/internal/retail"
	cartsvc "gogenie-storefront/internal/service/cart"
	"gogenie-storefront/internal/service/checkout"
	ordersvc "gogenie-storefront/internal/service/order"
	"gogenie-storefront/internal/tracking"
)

type cartService interface {
	Get(ctx context.Context, sessionID string) (*cartsvc.View, error)
	AddItem(ctx context.Context, sessionID string, in cartsvc.AddItemInput) (*cartsvc.View, error)
	UpdateQuantity(ctx context.Context, sessionID, itemID string, quantity int) (*cartsvc.View, error)
	RemoveItem(ctx context.Context, sessionID, itemID string) (*cartsvc.View, error)
	Clear(ctx context.Context, sessionID string) (*cartsvc.View, error)
	ItemQuantity(ctx context.Context, sessionID, itemID string) (int, error)
}

type checkoutService interface {
	Quote(ctx context.Context, sessionID string) (cart.Summary, error)
	Place(ctx context.Context, sessionID, token string, in checkout.PlaceInput) (*checkout.Receipt, error)
}

type orderTracker interface {
	Refresh(ctx context.Context, token, orderID string) (*tracking.View, error)
	Watch(orderID string) (<-chan tracking.View, func())
	List(ctx context.Context, token string, params retail.ListOrdersParams) (*ordersvc.History, error)
}

type storeCatalog interface {
	ListStores(ctx context.Context, token string) (*retail.StoreList, error)
	NearbyStores(ctx context.Context, params retail.NearbyStoresParams) (json.RawMessage, error)
	GetStore(ctx context.Context, storeID string) (json.RawMessage, error)
	ListCategories(ctx context.Context, storeID string) (json.RawMessage, error)
	ListProducts(ctx context.Context, token string, query retail.ProductQuery) (json.RawMessage, error)
	SearchByBarcode(ctx context.Context, token, barcode string) (json.RawMessage, error)
	PurchasedProducts(ctx context.Context, token, storeID string, params retail.PurchasedProductsParams) (json.RawMessage, error)
}

// Deps carries the services behind the API.
type Deps struct {
	CartSvc     cartService
	CheckoutSvc checkoutService
	Orders      orderTracker
	Stores      storeCatalog
	// Metrics serves /metrics when set.
	Metrics        http.Handler
	Readiness      map[string]ReadinessCheck
	AllowedOrigins []string
	Production     bool
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, deps Deps) (*gin.Engine, error) {
	if deps.CartSvc == nil || deps.CheckoutSvc == nil || deps.Orders == nil || deps.Stores == nil {
		return nil, errors.New("httpserver: cart, checkout, order and store services are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery(), cors.New(corsConfig(deps.AllowedOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Readiness))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	h := &handlers{
		logger:   logger,
		carts:    deps.CartSvc,
		checkout: deps.CheckoutSvc,
		orders:   deps.Orders,
		stores:   deps.Stores,
	}

	v1 := router.Group("/v1")
	{
		shop := v1.Group("")
		shop.Use(sessionMiddleware())
		shop.GET("/cart", h.getCart)
		shop.DELETE("/cart", h.clearCart)
		shop.POST("/cart/items", h.addItem)
		shop.PUT("/cart/items/:id", h.updateQuantity)
		shop.DELETE("/cart/items/:id", h.removeItem)
		shop.GET("/cart/items/:id/quantity", h.itemQuantity)
		shop.GET("/checkout/quote", h.quote)
		shop.POST("/checkout", h.placeOrder)

		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.GET("/orders/:id/events", h.orderEvents)
		v1.GET("/stores", h.listStores)
		v1.GET("/stores/nearby", h.nearbyStores)
		v1.GET("/stores/:id", h.getStore)
		v1.GET("/stores/:id/categories", h.listCategories)
		v1.GET("/stores/:id/purchased-products", h.purchasedProducts)
		v1.GET("/products", h.listProducts)
		v1.GET("/products/barcode/:barcode", h.searchByBarcode)
	}

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", sessionHeader},
		ExposeHeaders: []string{sessionHeader},
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
