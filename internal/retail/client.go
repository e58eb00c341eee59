// Package retail is a client for the retail backend's customer and delivery APIs.
package retail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"gogenie-storefront/internal/domain"
)

const (
	defaultTimeout       = 10 * time.Second
	errorBodyReadLimit   = 4096
	defaultOrdersPerPage = 10
)

var errBaseURLRequired = errors.New("retail api base url is required")

// Client calls the retail backend on behalf of a shopper. Every call takes
// the shopper's bearer token and forwards it unchanged.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a client for the backend rooted at baseURL, e.g.
// "https://retail.example.com/api".
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("parse retail api url: %w", err)
	}
	c := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// APIError is a non-2xx answer from the retail backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("retail api: status %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code onto the domain error vocabulary.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.ErrValidation
	default:
		return domain.ErrUpstream
	}
}

// ListOrdersParams filters the order history. Zero values select page 1,
// ten orders per page and every status.
type ListOrdersParams struct {
	Page   int
	Limit  int
	Status string
}

func (p ListOrdersParams) query() url.Values {
	page := p.Page
	if page <= 0 {
		page = 1
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultOrdersPerPage
	}
	status := strings.TrimSpace(p.Status)
	if status == "" {
		status = "all"
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("status", status)
	return q
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type OrderList struct {
	Orders     []domain.OrderRecord `json:"orders"`
	Pagination Pagination           `json:"pagination"`
}

// DeliveryOrderItem references a store product by its numeric id.
type DeliveryOrderItem struct {
	StoreProductID int64 `json:"storeProductId"`
	Quantity       int   `json:"quantity"`
}

type DeliveryOrderRequest struct {
	Items               []DeliveryOrderItem `json:"items"`
	DeliverySlot        string              `json:"deliverySlot"`
	SpecialInstructions string              `json:"specialInstructions,omitempty"`
	PaymentMethodID     int64               `json:"paymentMethodId"`
}

// StoreList passes store records through without interpreting them.
type StoreList struct {
	Stores []json.RawMessage `json:"stores"`
	Total  int               `json:"total"`
}

// GetOrder fetches one order of the token's customer.
func (c *Client) GetOrder(ctx context.Context, token, orderID string) (*domain.OrderRecord, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id required", domain.ErrValidation)
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/customer/orders/"+url.PathEscape(orderID), token, nil, &raw); err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	rec, err := decodeOrder(raw)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return rec, nil
}

func (c *Client) ListOrders(ctx context.Context, token string, params ListOrdersParams) (*OrderList, error) {
	var out OrderList
	path := "/customer/orders?" + params.query().Encode()
	if err := c.do(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if out.Orders == nil {
		out.Orders = []domain.OrderRecord{}
	}
	return &out, nil
}

// PlaceDeliveryOrder creates a delivery order at the given store.
func (c *Client) PlaceDeliveryOrder(ctx context.Context, token, storeID string, req DeliveryOrderRequest) (*domain.OrderRecord, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return nil, fmt.Errorf("%w: store id required", domain.ErrValidation)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", domain.ErrValidation)
	}
	var raw json.RawMessage
	path := "/store/" + url.PathEscape(storeID) + "/delivery/orders"
	if err := c.do(ctx, http.MethodPost, path, token, req, &raw); err != nil {
		return nil, fmt.Errorf("place delivery order: %w", err)
	}
	rec, err := decodeOrder(raw)
	if err != nil {
		return nil, fmt.Errorf("place delivery order: %w", err)
	}
	return rec, nil
}

func (c *Client) ListStores(ctx context.Context, token string) (*StoreList, error) {
	var out StoreList
	if err := c.do(ctx, http.MethodGet, "/customer/stores", token, nil, &out); err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	if out.Stores == nil {
		out.Stores = []json.RawMessage{}
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token = strings.TrimSpace(token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("retail api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrUpstream, err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := ""
	if err := json.Unmarshal(data, &payload); err == nil {
		msg = payload.Error
		if msg == "" {
			msg = payload.Message
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

// decodeOrder accepts both a bare order object and one wrapped as {"order": {...}}.
func decodeOrder(raw json.RawMessage) (*domain.OrderRecord, error) {
	var envelope struct {
		Order json.RawMessage `json:"order"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Order) > 0 && string(envelope.Order) != "null" {
		raw = envelope.Order
	}
	var rec domain.OrderRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode order: %w", domain.ErrUpstream, err)
	}
	return &rec, nil
}
