package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	gateway *Gateway
	store   *repository.Store
	orders  *service.OrderService
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Server:   config.ServerConfig{Name: "storefront", Host: "127.0.0.1", Port: 0},
		Database: config.DatabaseConfig{URL: ":memory:"},
	}
	for _, m := range mutate {
		m(cfg)
	}

	store, err := repository.NewStore(&cfg.Database, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	orders := service.NewOrderService(store, zap.NewNop())
	gw, err := NewGateway(cfg, zap.NewNop(), store, orders)
	require.NoError(t, err)

	return &testEnv{gateway: gw, store: store, orders: orders}
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.gateway.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) postJSON(t *testing.T, target, body string) *httptest.ResponseRecorder {
	return e.do(t, http.MethodPost, target, strings.NewReader(body), "application/json")
}

func (e *testEnv) postForm(t *testing.T, target string, form url.Values) *httptest.ResponseRecorder {
	return e.do(t, http.MethodPost, target, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestAPIListProductsSeedsEmptyCatalog(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/products", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var products []struct {
		ID         int64  `json:"id"`
		SKU        string `json:"sku"`
		Title      string `json:"title"`
		PriceCents int64  `json:"price_cents"`
	}
	decode(t, w, &products)

	require.Len(t, products, 3)
	assert.Equal(t, "SKU-1", products[0].SKU)
	assert.Equal(t, int64(1990), products[0].PriceCents)
	assert.Equal(t, "SKU-2", products[1].SKU)
	assert.Equal(t, int64(1490), products[1].PriceCents)
	assert.Equal(t, "SKU-3", products[2].SKU)
	assert.Equal(t, int64(990), products[2].PriceCents)
	assert.Less(t, products[0].ID, products[1].ID)

	// second request must not seed again
	env.do(t, http.MethodGet, "/api/products", nil, "")
	count, err := env.store.CountProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestAPICreateOrder(t *testing.T) {
	env := newTestEnv(t)

	w := env.postJSON(t, "/api/orders", `{"email":"a@b.com","items":[{"sku":"SKU-1","quantity":2}]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created map[string]interface{}
	decode(t, w, &created)
	require.Len(t, created, 1)
	rawID, ok := created["id"].(float64)
	require.True(t, ok, "id must be a number")

	order, lines, err := env.orders.GetOrder(context.Background(), int64(rawID))
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, int64(3980), order.TotalCents)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestAPICreateOrderErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		error  string
	}{
		{"unknown sku", `{"email":"a@b.com","items":[{"sku":"NOPE"}]}`, http.StatusNotFound, "SKU not found"},
		{"missing email", `{"items":[{"sku":"SKU-1"}]}`, http.StatusBadRequest, "email and items are required"},
		{"empty items", `{"email":"a@b.com","items":[]}`, http.StatusBadRequest, "email and items are required"},
		{"malformed body", `not json`, http.StatusBadRequest, "email and items are required"},
		{"zero quantity", `{"email":"a@b.com","items":[{"sku":"SKU-1","quantity":0}]}`, http.StatusBadRequest, "quantity must be a positive integer"},
		{"negative quantity", `{"email":"a@b.com","items":[{"sku":"SKU-1","quantity":-2}]}`, http.StatusBadRequest, "quantity must be a positive integer"},
		{"total overflows", `{"email":"a@b.com","items":[{"sku":"SKU-1","quantity":5000000000000000}]}`, http.StatusBadRequest, "quantity is too large"},
		{"quantity beyond int range", `{"email":"a@b.com","items":[{"sku":"SKU-1","quantity":1e30}]}`, http.StatusBadRequest, "quantity must be a positive integer"},
	}

	env := newTestEnv(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.postJSON(t, "/api/orders", tt.body)
			require.Equal(t, tt.status, w.Code)

			var body map[string]string
			decode(t, w, &body)
			assert.Equal(t, map[string]string{"error": tt.error}, body)
		})
	}

	orders, err := env.store.CountOrders(context.Background())
	require.NoError(t, err)
	assert.Zero(t, orders)
}

func TestAPICreateOrderUsesFirstItemOnly(t *testing.T) {
	env := newTestEnv(t)

	w := env.postJSON(t, "/api/orders", `{"email":"a@b.com","items":[{"sku":"SKU-3","quantity":"3"},{"sku":"SKU-1","quantity":5}]}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &created)

	w = env.do(t, http.MethodGet, "/api/orders/"+strconv.FormatInt(created.ID, 10), nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var order orderResponse
	decode(t, w, &order)
	assert.Equal(t, created.ID, order.ID)
	assert.Equal(t, "a@b.com", order.Email)
	assert.Equal(t, int64(2970), order.TotalCents)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "SKU-3", order.Items[0].SKU)
	assert.Equal(t, "Mug", order.Items[0].Title)
	assert.Equal(t, 3, order.Items[0].Quantity)
}

func TestAPIGetOrderNotFound(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{"/api/orders/999", "/api/orders/abc"} {
		w := env.do(t, http.MethodGet, target, nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code, target)
		assert.JSONEq(t, `{"error":"order not found"}`, w.Body.String())
	}
}

func TestPages(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "T-Shirt")
	assert.Contains(t, w.Body.String(), "19.90")
	assert.Contains(t, w.Body.String(), "/checkout?sku=SKU-3")

	w = env.do(t, http.MethodGet, "/product/SKU-2", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Cap")
	assert.Contains(t, w.Body.String(), "14.90")

	w = env.do(t, http.MethodGet, "/product/NOPE", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/checkout?sku=SKU-3", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="sku" value="SKU-3"`)

	w = env.do(t, http.MethodGet, "/checkout", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/checkout?sku=NOPE", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckoutFlow(t *testing.T) {
	env := newTestEnv(t)

	w := env.postForm(t, "/checkout", url.Values{"sku": {"SKU-2"}, "email": {"buyer@example.com"}, "quantity": {"2"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	location := w.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/order/"), location)

	w = env.do(t, http.MethodGet, location, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "buyer@example.com")
	assert.Contains(t, body, "Cap")
	assert.Contains(t, body, "29.80")
}

func TestCheckoutMalformedQuantityDefaultsToOne(t *testing.T) {
	env := newTestEnv(t)

	w := env.postForm(t, "/checkout", url.Values{"sku": {"SKU-1"}, "email": {"buyer@example.com"}, "quantity": {"many"}})
	require.Equal(t, http.StatusSeeOther, w.Code)

	id := strings.TrimPrefix(w.Header().Get("Location"), "/order/")
	w = env.do(t, http.MethodGet, "/api/orders/"+id, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var order orderResponse
	decode(t, w, &order)
	assert.Equal(t, int64(1990), order.TotalCents)
}

func TestCheckoutErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		form   url.Values
		status int
	}{
		{"missing sku", url.Values{"email": {"a@b.com"}}, http.StatusBadRequest},
		{"missing email", url.Values{"sku": {"SKU-1"}}, http.StatusBadRequest},
		{"unknown sku", url.Values{"sku": {"NOPE"}, "email": {"a@b.com"}}, http.StatusNotFound},
		{"zero quantity", url.Values{"sku": {"SKU-1"}, "email": {"a@b.com"}, "quantity": {"0"}}, http.StatusBadRequest},
		{"quantity beyond int range", url.Values{"sku": {"SKU-1"}, "email": {"a@b.com"}, "quantity": {"99999999999999999999"}}, http.StatusBadRequest},
		{"total overflows", url.Values{"sku": {"SKU-1"}, "email": {"a@b.com"}, "quantity": {"5000000000000000"}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.postForm(t, "/checkout", tt.form)
			assert.Equal(t, tt.status, w.Code)
		})
	}

	orders, err := env.store.CountOrders(context.Background())
	require.NoError(t, err)
	assert.Zero(t, orders)
}

func TestOrderPageNotFound(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/order/12345", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/order/first", nil, "").Code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	env.postJSON(t, "/api/orders", `{"email":"a@b.com","items":[{"sku":"SKU-1"}]}`)

	w = env.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "storefront_orders_created_total 1")
	assert.Contains(t, w.Body.String(), `route="/api/orders"`)

	require.NoError(t, env.store.Close())
	w = env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-42")
	w := httptest.NewRecorder()
	env.gateway.Handler().ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))
}

func TestAPIRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Server.RateLimit = 0.001
		cfg.Server.RateBurst = 2
	})

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/products", nil, "").Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/products", nil, "").Code)

	w := env.do(t, http.MethodGet, "/api/products", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())

	// pages are not limited
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/", nil, "").Code)
}
