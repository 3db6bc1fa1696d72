package httpserver

import (
	cartservice "github.com/Skotchmaster/shopcore/internal/cart/service"
	middleware "github.com/Skotchmaster/shopcore/pkg/middleware/auth"
	"github.com/Skotchmaster/shopcore/pkg/tokens"
	"github.com/labstack/echo/v4"
)

func identity(c echo.Context) cartservice.Identity {
	return cartservice.Identity{
		UserID:    middleware.UserID(c),
		SessionID: middleware.SessionID(c),
	}
}

// owner scopes order reads to the caller. Admins see every order.
func owner(c echo.Context) *string {
	if isAdmin(c) {
		return nil
	}
	id := middleware.UserID(c)
	return &id
}

func isAdmin(c echo.Context) bool {
	return middleware.Role(c) == tokens.RoleAdmin
}
