package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShopMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewShopMetrics(reg, "test")

	m.OrderCreated()
	m.OrderCreated()
	m.CheckoutConflict()
	m.CartMutation("add")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orderConflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cartMutations.WithLabelValues("add")))
}

func TestNilShopMetrics(t *testing.T) {
	t.Parallel()

	var m *ShopMetrics
	assert.NotPanics(t, func() {
		m.OrderCreated()
		m.CheckoutConflict()
		m.OrderCancelled()
		m.StatusChanged("shipped")
		m.CartMutation("add")
	})
}

func TestServerMiddleware(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewServerMetrics(reg, "test")

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/items/:id", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/metrics", echo.WrapHandler(Handler(reg)))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/items/:id", "204")))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shopcore_test_http_requests_total")
}
