package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/Skotchmaster/shopcore/pkg/metrics"
	middleware "github.com/Skotchmaster/shopcore/pkg/middleware/auth"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type Deps struct {
	Cart     *CartHTTP
	Order    *OrderHTTP
	Admin    *AdminHTTP
	Identity *middleware.IdentityMiddleware
	DB       *gorm.DB
	Gatherer prometheus.Gatherer
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		sqlDB, err := d.DB.DB()
		if err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
		defer cancel()
		if err := sqlDB.PingContext(ctx); err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(d.Gatherer)))
	}

	cart := e.Group("/cart", d.Identity.Resolve)
	cart.GET("", d.Cart.GetCart)
	cart.GET("/count", d.Cart.GetItemCount)
	cart.POST("/items", d.Cart.AddItem)
	cart.PATCH("/items/:id", d.Cart.UpdateItem)
	cart.DELETE("/items/:id", d.Cart.RemoveItem)
	cart.DELETE("", d.Cart.ClearCart)
	cart.POST("/merge", d.Cart.MergeCarts, middleware.RequireUser)

	orders := e.Group("/orders", d.Identity.Resolve)
	orders.POST("", d.Order.CreateOrder)
	orders.GET("", d.Order.ListOrders, middleware.RequireUser)
	orders.GET("/:id", d.Order.GetOrder, middleware.RequireUser)
	orders.POST("/:id/cancel", d.Order.CancelOrder, middleware.RequireUser)

	admin := e.Group("/admin", d.Identity.Resolve, middleware.RequireAdmin)
	admin.PATCH("/orders/:id/status", d.Admin.UpdateStatus)
	admin.GET("/orders/top-products", d.Admin.TopProducts)
	admin.POST("/products", d.Admin.CreateProduct)
	admin.PATCH("/products/:id", d.Admin.PatchProduct)
}
