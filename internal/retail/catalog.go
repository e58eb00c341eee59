package retail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gogenie-storefront/internal/domain"
)

const (
	defaultNearbyRadiusKM   = 10
	defaultPurchasedPerPage = 10
	defaultPurchasedSort    = "last_purchased"
)

var purchasedSorts = map[string]bool{
	"last_purchased": true,
	"frequency":      true,
	"name":           true,
}

// NearbyStoresParams locates stores around a point. A nil coordinate is
// left out and the backend falls back to its own default location.
type NearbyStoresParams struct {
	Latitude  *float64
	Longitude *float64
	RadiusKM  float64
}

func (p NearbyStoresParams) query() url.Values {
	q := url.Values{}
	if p.Latitude != nil {
		q.Set("latitude", strconv.FormatFloat(*p.Latitude, 'f', -1, 64))
	}
	if p.Longitude != nil {
		q.Set("longitude", strconv.FormatFloat(*p.Longitude, 'f', -1, 64))
	}
	radius := p.RadiusKM
	if radius <= 0 {
		radius = defaultNearbyRadiusKM
	}
	q.Set("radius", strconv.FormatFloat(radius, 'f', -1, 64))
	return q
}

// ProductQuery filters the store product listing. Category "all" is the
// same as no category.
type ProductQuery struct {
	Search   string
	Category string
	Barcode  string
	Limit    int
}

func (p ProductQuery) query() url.Values {
	q := url.Values{}
	if s := strings.TrimSpace(p.Search); s != "" {
		q.Set("search", s)
	}
	if c := strings.TrimSpace(p.Category); c != "" && !strings.EqualFold(c, "all") {
		q.Set("category", c)
	}
	if b := strings.TrimSpace(p.Barcode); b != "" {
		q.Set("barcode", b)
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

// PurchasedProductsParams pages through what a customer bought at a store.
type PurchasedProductsParams struct {
	Page   int
	Limit  int
	SortBy string
}

func (p PurchasedProductsParams) query() (url.Values, error) {
	page := p.Page
	if page <= 0 {
		page = 1
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultPurchasedPerPage
	}
	sortBy := strings.TrimSpace(p.SortBy)
	if sortBy == "" {
		sortBy = defaultPurchasedSort
	}
	if !purchasedSorts[sortBy] {
		return nil, fmt.Errorf("%w: unsupported sortBy %q", domain.ErrValidation, sortBy)
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sortBy", sortBy)
	return q, nil
}

// NearbyStores lists stores around a point. The mobile endpoints are public,
// so no token is sent.
func (c *Client) NearbyStores(ctx context.Context, params NearbyStoresParams) (json.RawMessage, error) {
	return c.passThrough(ctx, "nearby stores", "/mobile/stores?"+params.query().Encode(), "")
}

func (c *Client) GetStore(ctx context.Context, storeID string) (json.RawMessage, error) {
	storeID, err := requireID("store id", storeID)
	if err != nil {
		return nil, err
	}
	return c.passThrough(ctx, "get store "+storeID, "/mobile/stores/"+url.PathEscape(storeID), "")
}

// ListCategories returns the product categories offered by a store.
func (c *Client) ListCategories(ctx context.Context, storeID string) (json.RawMessage, error) {
	storeID, err := requireID("store id", storeID)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("storeId", storeID)
	return c.passThrough(ctx, "list categories", "/mobile/products/categories?"+q.Encode(), "")
}

// ListProducts searches the point-of-sale product catalog.
func (c *Client) ListProducts(ctx context.Context, token string, query ProductQuery) (json.RawMessage, error) {
	path := "/pos/products"
	if q := query.query(); len(q) > 0 {
		path += "?" + q.Encode()
	}
	return c.passThrough(ctx, "list products", path, token)
}

// SearchByBarcode looks a product up by its scanned barcode.
func (c *Client) SearchByBarcode(ctx context.Context, token, barcode string) (json.RawMessage, error) {
	barcode, err := requireID("barcode", barcode)
	if err != nil {
		return nil, err
	}
	return c.ListProducts(ctx, token, ProductQuery{Barcode: barcode})
}

// PurchasedProducts lists products the token's customer bought before at a store.
func (c *Client) PurchasedProducts(ctx context.Context, token, storeID string, params PurchasedProductsParams) (json.RawMessage, error) {
	storeID, err := requireID("store id", storeID)
	if err != nil {
		return nil, err
	}
	q, err := params.query()
	if err != nil {
		return nil, err
	}
	path := "/customer/stores/" + url.PathEscape(storeID) + "/purchased-products?" + q.Encode()
	return c.passThrough(ctx, "purchased products", path, token)
}

func (c *Client) passThrough(ctx context.Context, op, path, token string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, token, nil, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return raw, nil
}

func requireID(what, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: %s required", domain.ErrValidation, what)
	}
	return id, nil
}
