package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	cartrepo "github.com/Skotchmaster/shopcore/internal/cart/repo"
	cartservice "github.com/Skotchmaster/shopcore/internal/cart/service"
	catalogrepo "github.com/Skotchmaster/shopcore/internal/catalog/repo"
	"github.com/Skotchmaster/shopcore/internal/domain"
	"github.com/Skotchmaster/shopcore/internal/models"
	orderservice "github.com/Skotchmaster/shopcore/internal/order/service"
	"github.com/Skotchmaster/shopcore/internal/stock"
	"github.com/Skotchmaster/shopcore/internal/testdb"
	middleware "github.com/Skotchmaster/shopcore/pkg/middleware/auth"
	"github.com/Skotchmaster/shopcore/pkg/tokens"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var secret = []byte("http-test-secret")

type server struct {
	e  *echo.Echo
	db *gorm.DB
}

func newServer(t *testing.T) *server {
	t.Helper()

	db := testdb.New(t)
	catalog := &catalogrepo.GormRepo{DB: db}
	carts := cartservice.New(&cartrepo.GormRepo{DB: db}, catalog, nil, nil)
	orders := orderservice.New(orderservice.Deps{
		DB:      db,
		Carts:   carts,
		Factory: orderservice.NewFactory(stock.NewLedger()),
	})

	e := echo.New()
	e.Validator = NewRequestValidator()
	Register(e, &Deps{
		Cart:     &CartHTTP{Svc: carts},
		Order:    &OrderHTTP{Svc: orders},
		Admin:    &AdminHTTP{Orders: orders, Catalog: catalog},
		Identity: middleware.NewIdentityMiddleware(secret, false),
		DB:       db,
		Gatherer: prometheus.NewRegistry(),
	})
	return &server{e: e, db: db}
}

type caller struct {
	session string
	token   string
}

func anon() caller { return caller{session: uuid.NewString()} }

func user(t *testing.T, id, role string) caller {
	t.Helper()
	tok, err := tokens.NewAccessToken(id, role, time.Hour, secret)
	require.NoError(t, err)
	return caller{session: uuid.NewString(), token: tok}
}

func (s *server) do(t *testing.T, who caller, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if who.session != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: who.session})
	}
	if who.token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.AccessCookie, Value: who.token})
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func shipping() map[string]string {
	return map[string]string{
		"first_name": "Ann",
		"last_name":  "Lee",
		"email":      "ann@example.com",
		"address":    "1 Main St",
		"city":       "Springfield",
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, caller{}, http.MethodGet, "/health/live", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, caller{}, http.MethodGet, "/health/ready", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, caller{}, http.MethodGet, "/metrics", nil).Code)
}

func TestAnonymousCheckoutFlow(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	admin := user(t, "admin-1", tokens.RoleAdmin)

	rec := s.do(t, admin, http.MethodPost, "/admin/products", map[string]any{
		"name": "Lamp", "price": "12.50", "stock_quantity": 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	prod := decode[models.Product](t, rec)
	assert.True(t, prod.IsActive)

	shopper := anon()
	rec = s.do(t, shopper, http.MethodPost, "/cart/items", map[string]any{"product_id": prod.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, shopper, http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[models.CartView](t, rec)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "Lamp", view.Lines[0].ProductName)
	assert.Equal(t, "25", view.Total.String())

	rec = s.do(t, shopper, http.MethodPost, "/orders", shipping())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[models.Order](t, rec)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "25", order.TotalAmount.String())
	assert.Equal(t, 3, testdb.Stock(t, s.db, prod.ID))

	rec = s.do(t, shopper, http.MethodGet, "/cart/count", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[map[string]int](t, rec)["count"])

	rec = s.do(t, admin, http.MethodGet, "/admin/orders/top-products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	top := decode[[]models.ProductSales](t, rec)
	require.Len(t, top, 1)
	assert.Equal(t, 2, top[0].Quantity)
}

func TestUserOrderLifecycle(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	p := testdb.Product(t, s.db, "Mug", "4.00", 10)
	buyer := user(t, "user-1", "user")
	admin := user(t, "admin-1", tokens.RoleAdmin)

	rec := s.do(t, buyer, http.MethodPost, "/cart/items", map[string]any{"product_id": p.ID, "quantity": 3})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = s.do(t, buyer, http.MethodPost, "/orders", shipping())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[models.Order](t, rec)

	rec = s.do(t, buyer, http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[orderservice.OrderPage](t, rec)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 3, page.Items[0].ItemCount)

	other := user(t, "user-2", "user")
	rec = s.do(t, other, http.MethodGet, "/orders/"+order.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, admin, http.MethodPatch, "/admin/orders/"+order.ID.String()+"/status", map[string]string{"status": "processing"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.OrderStatusProcessing, decode[models.Order](t, rec).Status)

	rec = s.do(t, buyer, http.MethodPost, "/orders/"+order.ID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 7, testdb.Stock(t, s.db, p.ID))
}

func TestCancelRestoresStock(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	p := testdb.Product(t, s.db, "Mug", "4.00", 10)
	buyer := user(t, "user-1", "user")

	s.do(t, buyer, http.MethodPost, "/cart/items", map[string]any{"product_id": p.ID, "quantity": 4})
	rec := s.do(t, buyer, http.MethodPost, "/orders", shipping())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[models.Order](t, rec)
	require.Equal(t, 6, testdb.Stock(t, s.db, p.ID))

	rec = s.do(t, buyer, http.MethodPost, "/orders/"+order.ID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 10, testdb.Stock(t, s.db, p.ID))

	rec = s.do(t, buyer, http.MethodPost, "/orders/"+uuid.NewString()+"/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMergeAfterLogin(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	p := testdb.Product(t, s.db, "Pen", "1.00", 10)

	guest := anon()
	rec := s.do(t, guest, http.MethodPost, "/cart/items", map[string]any{"product_id": p.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	loggedIn := user(t, "user-9", "user")
	loggedIn.session = guest.session
	rec = s.do(t, loggedIn, http.MethodPost, "/cart/merge", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[models.CartView](t, rec)
	require.NotNil(t, view.UserID)
	assert.Equal(t, "user-9", *view.UserID)
	assert.Equal(t, 2, view.ItemCount)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, guest, http.MethodPost, "/cart/merge", nil).Code)
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	p := testdb.Product(t, s.db, "Pen", "1.00", 2)
	off := testdb.Product(t, s.db, "Old", "1.00", 2)
	testdb.Deactivate(t, s.db, off.ID)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown product", http.MethodPost, "/cart/items", map[string]any{"product_id": uuid.New(), "quantity": 1}, http.StatusNotFound},
		{"zero quantity", http.MethodPost, "/cart/items", map[string]any{"product_id": p.ID, "quantity": 0}, http.StatusBadRequest},
		{"missing product id", http.MethodPost, "/cart/items", map[string]any{"quantity": 1}, http.StatusBadRequest},
		{"over stock", http.MethodPost, "/cart/items", map[string]any{"product_id": p.ID, "quantity": 3}, http.StatusConflict},
		{"inactive product", http.MethodPost, "/cart/items", map[string]any{"product_id": off.ID, "quantity": 1}, http.StatusConflict},
		{"bad line id", http.MethodPatch, "/cart/items/nope", map[string]any{"quantity": 1}, http.StatusBadRequest},
		{"unknown line", http.MethodPatch, "/cart/items/" + uuid.NewString(), map[string]any{"quantity": 1}, http.StatusNotFound},
		{"empty cart checkout", http.MethodPost, "/orders", shipping(), http.StatusBadRequest},
		{"orders need login", http.MethodGet, "/orders", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, anon(), tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	body := map[string]any{"name": "X", "price": "1.00", "stock_quantity": 1}

	assert.Equal(t, http.StatusUnauthorized, s.do(t, anon(), http.MethodPost, "/admin/products", body).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, user(t, "user-1", "user"), http.MethodPost, "/admin/products", body).Code)

	bad := caller{session: uuid.NewString(), token: "garbage"}
	assert.Equal(t, http.StatusUnauthorized, s.do(t, bad, http.MethodGet, "/cart", nil).Code)
}

func TestAdminProductAndStatusValidation(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	admin := user(t, "admin-1", tokens.RoleAdmin)
	p := testdb.Product(t, s.db, "Pen", "1.00", 2)

	rec := s.do(t, admin, http.MethodPost, "/admin/products", map[string]any{"name": "", "price": "1.00"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, admin, http.MethodPost, "/admin/products", map[string]any{"name": "Neg", "price": "-1.00"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, admin, http.MethodPatch, "/admin/products/"+p.ID.String(), map[string]any{"is_active": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decode[models.Product](t, rec).IsActive)

	rec = s.do(t, admin, http.MethodPatch, "/admin/orders/"+uuid.NewString()+"/status", map[string]string{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, admin, http.MethodPatch, "/admin/orders/"+uuid.NewString()+"/status", map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{domain.NotFound("order"), http.StatusNotFound},
		{domain.Validation("bad"), http.StatusBadRequest},
		{domain.Conflict("taken"), http.StatusConflict},
		{domain.State("nope"), http.StatusConflict},
		{domain.Storage("op", assert.AnError), http.StatusServiceUnavailable},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := statusFor(tt.err)
		assert.Equal(t, tt.want, got, tt.err.Error())
	}
}
