// Package csrf guards cookie-authenticated mutations with a double-submit
// token and an optional same-origin check.
package csrf

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const ContextKey = "csrf_token"

type Config struct {
	CookieName string
	HeaderName string
	Secure     bool
	MaxAge     time.Duration

	EnforceSameOrigin bool

	// SkipPaths are matched against the route template, e.g. "/health/live".
	SkipPaths []string
}

func DefaultConfig() Config {
	return Config{
		CookieName:        "XSRF-TOKEN",
		HeaderName:        echo.HeaderXCSRFToken,
		Secure:            true,
		MaxAge:            24 * time.Hour,
		EnforceSameOrigin: true,
	}
}

func Middleware(cfg Config) echo.MiddlewareFunc {
	def := DefaultConfig()
	if cfg.CookieName == "" {
		cfg.CookieName = def.CookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = def.HeaderName
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = def.MaxAge
	}

	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	skipper := func(c echo.Context) bool {
		_, ok := skip[c.Path()]
		return ok
	}

	token := middleware.CSRFWithConfig(middleware.CSRFConfig{
		Skipper:        skipper,
		TokenLookup:    "header:" + cfg.HeaderName,
		ContextKey:     ContextKey,
		CookieName:     cfg.CookieName,
		CookiePath:     "/",
		CookieMaxAge:   int(cfg.MaxAge.Seconds()),
		CookieSecure:   cfg.Secure,
		CookieSameSite: http.SameSiteLaxMode,
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		echoToHeader := func(c echo.Context) error {
			if safeMethod(c.Request().Method) {
				if t, ok := c.Get(ContextKey).(string); ok {
					c.Response().Header().Set(cfg.HeaderName, t)
				}
			}
			return next(c)
		}
		guarded := token(echoToHeader)

		return func(c echo.Context) error {
			if skipper(c) {
				return next(c)
			}
			if cfg.EnforceSameOrigin && !safeMethod(c.Request().Method) && !sameOrigin(c.Request()) {
				return echo.NewHTTPError(http.StatusForbidden, "invalid origin")
			}
			return guarded(c)
		}
	}
}

func safeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// sameOrigin falls back to Referer when Origin is absent. Requests carrying
// neither are left to the double-submit token.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = r.Header.Get("Referer")
	}
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, schemeOf(r)) && strings.EqualFold(u.Host, r.Host)
}

func schemeOf(r *http.Request) string {
	if p := r.Header.Get(echo.HeaderXForwardedProto); p != "" {
		return p
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
