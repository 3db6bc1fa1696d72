package httpserver

import (
	"net/http"

	cartservice "github.com/Skotchmaster/shopcore/internal/cart/service"
	middleware "github.com/Skotchmaster/shopcore/pkg/middleware/auth"
	"github.com/Skotchmaster/shopcore/pkg/logging"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type CartHTTP struct {
	Svc *cartservice.CartService
}

type addItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get")

	view, err := h.Svc.GetCart(ctx, identity(c))
	if err != nil {
		return fail(c, l, "get_cart_error", err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *CartHTTP) GetItemCount(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.count")

	n, err := h.Svc.GetItemCount(ctx, identity(c))
	if err != nil {
		return fail(c, l, "cart_count_error", err)
	}
	return c.JSON(http.StatusOK, map[string]int{"count": n})
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	var req addItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "add_to_cart_error", "invalid body", err)
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, l, "add_to_cart_error", "product_id required", err)
	}

	item, err := h.Svc.AddItem(ctx, identity(c), req.ProductID, req.Quantity)
	if err != nil {
		return fail(c, l, "add_to_cart_error", err)
	}

	l.Info("item added to cart", "product_id", req.ProductID, "quantity", item.Quantity)
	return c.JSON(http.StatusCreated, item)
}

func (h *CartHTTP) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.update_item")

	lineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, l, "update_cart_item_error", "invalid line id", err)
	}
	var req updateItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "update_cart_item_error", "invalid body", err)
	}

	item, err := h.Svc.UpdateItem(ctx, identity(c), lineID, req.Quantity)
	if err != nil {
		return fail(c, l, "update_cart_item_error", err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	lineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, l, "remove_cart_item_error", "invalid line id", err)
	}

	removed, err := h.Svc.RemoveItem(ctx, identity(c), lineID)
	if err != nil {
		return fail(c, l, "remove_cart_item_error", err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"removed": removed})
}

func (h *CartHTTP) ClearCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear")

	cleared, err := h.Svc.ClearCart(ctx, identity(c))
	if err != nil {
		return fail(c, l, "clear_cart_error", err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"cleared": cleared})
}

// MergeCarts is called right after login with the pre-login session cookie.
func (h *CartHTTP) MergeCarts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.merge")

	userID := middleware.UserID(c)
	if _, err := h.Svc.MergeCarts(ctx, userID, middleware.SessionID(c)); err != nil {
		return fail(c, l, "merge_cart_error", err)
	}

	view, err := h.Svc.GetCart(ctx, cartservice.Identity{UserID: userID})
	if err != nil {
		return fail(c, l, "merge_cart_error", err)
	}
	l.Info("carts merged", "cart_id", view.ID, "item_count", view.ItemCount)
	return c.JSON(http.StatusOK, view)
}
