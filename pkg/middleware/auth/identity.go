package middleware

import (
	"net/http"
	"time"

	"github.com/Skotchmaster/shopcore/pkg/tokens"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	AccessCookie  = "accessToken"
	SessionCookie = "session_id"

	keyUserID    = "user_id"
	keyRole      = "role"
	keySessionID = "session_id"

	sessionTTL = 30 * 24 * time.Hour
)

// IdentityMiddleware resolves who is calling. A valid access token makes the
// caller a user; every caller also gets a session id, issued on first visit.
type IdentityMiddleware struct {
	JWTSecret     []byte
	SecureCookies bool
}

func NewIdentityMiddleware(secret []byte, secureCookies bool) *IdentityMiddleware {
	return &IdentityMiddleware{JWTSecret: secret, SecureCookies: secureCookies}
}

func (m *IdentityMiddleware) Resolve(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if accessCookie, err := c.Cookie(AccessCookie); err == nil && accessCookie.Value != "" {
			claims, err := tokens.AccessClaimsFromToken(accessCookie.Value, m.JWTSecret)
			if err != nil {
				c.SetCookie(DeleteCookie(AccessCookie, "/"))
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}
			c.Set(keyUserID, claims.Subject)
			c.Set(keyRole, claims.Role)
		}

		sessionID := ""
		if sessionCookie, err := c.Cookie(SessionCookie); err == nil {
			if _, perr := uuid.Parse(sessionCookie.Value); perr == nil {
				sessionID = sessionCookie.Value
			}
		}
		if sessionID == "" {
			sessionID = uuid.NewString()
			c.SetCookie(m.CreateCookie(SessionCookie, sessionID, "/", time.Now().Add(sessionTTL)))
		}
		c.Set(keySessionID, sessionID)

		return next(c)
	}
}

func RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if UserID(c) == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "login required")
		}
		return next(c)
	}
}

func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if UserID(c) == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "login required")
		}
		if Role(c) != tokens.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return next(c)
	}
}

func UserID(c echo.Context) string {
	s, _ := c.Get(keyUserID).(string)
	return s
}

func Role(c echo.Context) string {
	s, _ := c.Get(keyRole).(string)
	return s
}

func SessionID(c echo.Context) string {
	s, _ := c.Get(keySessionID).(string)
	return s
}

func (m *IdentityMiddleware) CreateCookie(name, value, path string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func DeleteCookie(name, path string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	}
}
