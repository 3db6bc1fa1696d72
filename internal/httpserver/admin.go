package httpserver

import (
	"net/http"
	"strconv"

	catalogrepo "github.com/Skotchmaster/shopcore/internal/catalog/repo"
	"github.com/Skotchmaster/shopcore/internal/models"
	orderservice "github.com/Skotchmaster/shopcore/internal/order/service"
	"github.com/Skotchmaster/shopcore/pkg/logging"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type AdminHTTP struct {
	Orders  *orderservice.OrderService
	Catalog *catalogrepo.GormRepo
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type createProductRequest struct {
	Name          string          `json:"name"           validate:"required,max=200"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
	IsActive      *bool           `json:"is_active"`
}

func (h *AdminHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.update_status")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, l, "update_status_error", "invalid order id", err)
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "update_status_error", "invalid body", err)
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, l, "update_status_error", "status required", err)
	}

	ok, err := h.Orders.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		return fail(c, l, "update_status_error", err)
	}
	if !ok {
		l.Warn("update_status_error", "status", http.StatusNotFound, "order_id", id)
		return c.JSON(http.StatusNotFound, errorResponse{Error: "order not found"})
	}

	order, err := h.Orders.GetOrder(ctx, id, nil)
	if err != nil {
		return fail(c, l, "update_status_error", err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *AdminHTTP) TopProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.top_products")

	count, _ := strconv.Atoi(c.QueryParam("count"))
	out, err := h.Orders.TopProducts(ctx, count)
	if err != nil {
		return fail(c, l, "top_products_error", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.create_product")

	var req createProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "create_product_error", "invalid body", err)
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, l, "create_product_error", "name required and stock_quantity >= 0", err)
	}

	prod := &models.Product{
		Name:          req.Name,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		IsActive:      req.IsActive == nil || *req.IsActive,
	}
	created, err := h.Catalog.CreateProduct(ctx, prod)
	if err != nil {
		return fail(c, l, "create_product_error", err)
	}

	l.Info("product created", "product_id", created.ID)
	return c.JSON(http.StatusCreated, created)
}

func (h *AdminHTTP) PatchProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.patch_product")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, l, "patch_product_error", "invalid product id", err)
	}
	var req catalogrepo.PatchProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "patch_product_error", "invalid body", err)
	}

	prod, err := h.Catalog.PatchProduct(ctx, req, id)
	if err != nil {
		return fail(c, l, "patch_product_error", err)
	}
	return c.JSON(http.StatusOK, prod)
}
