package retail

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gogenie-storefront/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL+"/api/", WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient("  ")
	require.Error(t, err)
}

func TestGetOrderForwardsTokenAndDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/customer/orders/42", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"id":42,"orderNumber":"ORD-42","status":{"current":"Out for Delivery","progress":80},"totalAmount":"510.00"}`)
	})

	rec, err := c.GetOrder(context.Background(), "tok", "42")
	require.NoError(t, err)
	assert.Equal(t, domain.FlexID("42"), rec.ID)
	assert.Equal(t, "ORD-42", rec.OrderNumber)
	total, ok := rec.ResolvedTotal()
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(510).Equal(total))
}

func TestGetOrderUnwrapsEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"order":{"id":"7","orderStatus":"confirmed"}}`)
	})
	rec, err := c.GetOrder(context.Background(), "", "7")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", rec.OrderStatus)
}

func TestGetOrderNoTokenOmitsHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"id":1}`)
	})
	_, err := c.GetOrder(context.Background(), "", "1")
	require.NoError(t, err)
}

func TestErrorMapping(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
		want   error
		msg    string
	}{
		"not found":    {status: 404, body: `{"error":"Order not found"}`, want: domain.ErrNotFound, msg: "Order not found"},
		"unauthorized": {status: 401, body: `{"message":"expired"}`, want: domain.ErrUnauthorized, msg: "expired"},
		"validation":   {status: 422, body: `bad slot`, want: domain.ErrValidation, msg: "bad slot"},
		"server error": {status: 500, body: ``, want: domain.ErrUpstream, msg: "Internal Server Error"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := c.GetOrder(context.Background(), "tok", "1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.Equal(t, tc.msg, apiErr.Message)
		})
	}
}

func TestListOrdersDefaults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api/customer/orders", r.URL.Path)
		assert.Equal(t, "1", q.Get("page"))
		assert.Equal(t, "10", q.Get("limit"))
		assert.Equal(t, "all", q.Get("status"))
		_, _ = io.WriteString(w, `{"orders":[{"id":1,"orderStatus":"delivered"}],"pagination":{"page":1,"limit":10,"total":1,"totalPages":1}}`)
	})
	list, err := c.ListOrders(context.Background(), "tok", ListOrdersParams{})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, 1, list.Pagination.Total)
}

func TestListOrdersPassesFilters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "3", q.Get("page"))
		assert.Equal(t, "25", q.Get("limit"))
		assert.Equal(t, "pending", q.Get("status"))
		_, _ = io.WriteString(w, `{}`)
	})
	list, err := c.ListOrders(context.Background(), "tok", ListOrdersParams{Page: 3, Limit: 25, Status: "pending"})
	require.NoError(t, err)
	assert.NotNil(t, list.Orders)
	assert.Empty(t, list.Orders)
}

func TestPlaceDeliveryOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/store/3/delivery/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2024-08-12T18:00:00Z", body["deliverySlot"])
		assert.EqualValues(t, 2, body["paymentMethodId"])
		items := body["items"].([]any)
		require.Len(t, items, 1)
		assert.EqualValues(t, 11, items[0].(map[string]any)["storeProductId"])
		assert.NotContains(t, body, "specialInstructions")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"order":{"id":99,"orderNumber":"ORD-99","orderStatus":"pending"}}`)
	})
	rec, err := c.PlaceDeliveryOrder(context.Background(), "tok", "3", DeliveryOrderRequest{
		Items:           []DeliveryOrderItem{{StoreProductID: 11, Quantity: 2}},
		DeliverySlot:    "2024-08-12T18:00:00Z",
		PaymentMethodID: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.FlexID("99"), rec.ID)
}

func TestPlaceDeliveryOrderValidation(t *testing.T) {
	c, err := NewClient("http://unused")
	require.NoError(t, err)
	_, err = c.PlaceDeliveryOrder(context.Background(), "tok", "", DeliveryOrderRequest{Items: []DeliveryOrderItem{{StoreProductID: 1, Quantity: 1}}})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = c.PlaceDeliveryOrder(context.Background(), "tok", "1", DeliveryOrderRequest{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestListStoresPassThrough(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/customer/stores", r.URL.Path)
		_, _ = io.WriteString(w, `{"stores":[{"id":1,"name":"Fresh Mart","extra":{"k":"v"}}],"total":1}`)
	})
	list, err := c.ListStores(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, list.Stores, 1)
	assert.JSONEq(t, `{"id":1,"name":"Fresh Mart","extra":{"k":"v"}}`, string(list.Stores[0]))
}

func TestCanceledContextIsReturnedAsIs(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.GetOrder(ctx, "tok", "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, domain.ErrUpstream)
}
