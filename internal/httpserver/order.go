package httpserver

import (
	"net/http"
	"strconv"

	orderservice "github.com/Skotchmaster/shopcore/internal/order/service"
	"github.com/Skotchmaster/shopcore/pkg/logging"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type OrderHTTP struct {
	Svc *orderservice.OrderService
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	var req orderservice.ShippingInfo
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "create_order_error", "invalid body", err)
	}

	order, err := h.Svc.CreateOrder(ctx, identity(c), req)
	if err != nil {
		return fail(c, l, "create_order_error", err)
	}

	l.Info("create_order_success", "order_number", order.OrderNumber)
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, l, "get_order_error", "invalid order id", err)
	}

	order, err := h.Svc.GetOrder(ctx, id, owner(c))
	if err != nil {
		return fail(c, l, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_orders")

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("page_size"))

	out, err := h.Svc.ListOrders(ctx, owner(c), page, size)
	if err != nil {
		return fail(c, l, "list_orders_error", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHTTP) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.cancel_order")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, l, "cancel_order_error", "invalid order id", err)
	}

	ok, err := h.Svc.CancelOrder(ctx, id, owner(c))
	if err != nil {
		return fail(c, l, "cancel_order_error", err)
	}
	if !ok {
		l.Warn("cancel_order_error", "status", http.StatusNotFound, "order_id", id)
		return c.JSON(http.StatusNotFound, errorResponse{Error: "order not found"})
	}
	return c.JSON(http.StatusOK, map[string]bool{"cancelled": true})
}
