package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gogenie-storefront/internal/domain"
	"gogenie-storefront/internal/retail"
	cartsvc "gogenie-storefront/internal/service/cart"
	"gogenie-storefront/internal/service/checkout"
	ordersvc "gogenie-storefront/internal/service/order"
	"gogenie-storefront/internal/tracking"
)

const sseHeartbeat = 15 * time.Second

type handlers struct {
	logger   *zap.Logger
	carts    cartService
	checkout checkoutService
	orders   orderTracker
	stores   storeCatalog
}

type quantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *handlers) getCart(c *gin.Context) {
	view, err := h.carts.Get(c.Request.Context(), sessionID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) addItem(c *gin.Context) {
	var in cartsvc.AddItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, h.logger, fmt.Errorf("%w: %v", domain.ErrValidation, err))
		return
	}
	view, err := h.carts.AddItem(c.Request.Context(), sessionID(c), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) updateQuantity(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, fmt.Errorf("%w: quantity required", domain.ErrValidation))
		return
	}
	view, err := h.carts.UpdateQuantity(c.Request.Context(), sessionID(c), c.Param("id"), *req.Quantity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) removeItem(c *gin.Context) {
	view, err := h.carts.RemoveItem(c.Request.Context(), sessionID(c), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) itemQuantity(c *gin.Context) {
	qty, err := h.carts.ItemQuantity(c.Request.Context(), sessionID(c), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "quantity": qty})
}

func (h *handlers) clearCart(c *gin.Context) {
	view, err := h.carts.Clear(c.Request.Context(), sessionID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) quote(c *gin.Context) {
	summary, err := h.checkout.Quote(c.Request.Context(), sessionID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *handlers) placeOrder(c *gin.Context) {
	var in checkout.PlaceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, h.logger, fmt.Errorf("%w: %v", domain.ErrValidation, err))
		return
	}
	receipt, err := h.checkout.Place(c.Request.Context(), sessionID(c), bearerToken(c), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h *handlers) listOrders(c *gin.Context) {
	params := retail.ListOrdersParams{Status: c.Query("status")}
	var err error
	if params.Page, err = intQuery(c, "page"); err != nil {
		writeError(c, h.logger, err)
		return
	}
	if params.Limit, err = intQuery(c, "limit"); err != nil {
		writeError(c, h.logger, err)
		return
	}
	history, err := h.orders.List(c.Request.Context(), bearerToken(c), params)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// getOrder answers with a view fetched under the caller's own token. Views
// cached from other callers are never served.
func (h *handlers) getOrder(c *gin.Context) {
	view, err := h.refreshForCaller(c, c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// orderEvents streams tracking views as server-sent events until the client
// goes away. The stream opens only after the caller's token fetched the order.
func (h *handlers) orderEvents(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	if _, err := h.refreshForCaller(c, id); err != nil {
		writeError(c, h.logger, err)
		return
	}

	updates, stop := h.orders.Watch(id)
	defer stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case view, ok := <-updates:
			if !ok {
				return
			}
			c.SSEvent("tracking", view)
		case <-heartbeat.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
		}
		c.Writer.Flush()
	}
}

// refreshForCaller fetches the order with the caller's token, retrying once
// when a concurrent refresh overtook the first attempt.
func (h *handlers) refreshForCaller(c *gin.Context, id string) (*tracking.View, error) {
	token := bearerToken(c)
	view, err := h.orders.Refresh(c.Request.Context(), token, id)
	if errors.Is(err, ordersvc.ErrSuperseded) {
		view, err = h.orders.Refresh(c.Request.Context(), token, id)
	}
	if errors.Is(err, ordersvc.ErrSuperseded) {
		return nil, fmt.Errorf("order %s is being refreshed, retry: %w", id, err)
	}
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (h *handlers) listStores(c *gin.Context) {
	stores, err := h.stores.ListStores(c.Request.Context(), bearerToken(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stores)
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrValidation, key)
	}
	return n, nil
}

func (h *handlers) nearbyStores(c *gin.Context) {
	var params retail.NearbyStoresParams
	var err error
	if params.Latitude, err = floatQuery(c, "latitude"); err != nil {
		writeError(c, h.logger, err)
		return
	}
	if params.Longitude, err = floatQuery(c, "longitude"); err != nil {
		writeError(c, h.logger, err)
		return
	}
	radius, err := floatQuery(c, "radius")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if radius != nil {
		params.RadiusKM = *radius
	}
	h.passThrough(c)(h.stores.NearbyStores(c.Request.Context(), params))
}

func (h *handlers) getStore(c *gin.Context) {
	h.passThrough(c)(h.stores.GetStore(c.Request.Context(), c.Param("id")))
}

func (h *handlers) listCategories(c *gin.Context) {
	h.passThrough(c)(h.stores.ListCategories(c.Request.Context(), c.Param("id")))
}

func (h *handlers) purchasedProducts(c *gin.Context) {
	params := retail.PurchasedProductsParams{SortBy: c.Query("sortBy")}
	var err error
	if params.Page, err = intQuery(c, "page"); err != nil {
		writeError(c, h.logger, err)
		return
	}
	if params.Limit, err = intQuery(c, "limit"); err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.passThrough(c)(h.stores.PurchasedProducts(c.Request.Context(), bearerToken(c), c.Param("id"), params))
}

func (h *handlers) listProducts(c *gin.Context) {
	query := retail.ProductQuery{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Barcode:  c.Query("barcode"),
	}
	var err error
	if query.Limit, err = intQuery(c, "limit"); err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.passThrough(c)(h.stores.ListProducts(c.Request.Context(), bearerToken(c), query))
}

func (h *handlers) searchByBarcode(c *gin.Context) {
	h.passThrough(c)(h.stores.SearchByBarcode(c.Request.Context(), bearerToken(c), c.Param("barcode")))
}

// passThrough writes a retail response body unchanged.
func (h *handlers) passThrough(c *gin.Context) func(json.RawMessage, error) {
	return func(body json.RawMessage, err error) {
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
	}
}

func floatQuery(c *gin.Context, key string) (*float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %s must be a number", domain.ErrValidation, key)
	}
	return &f, nil
}
