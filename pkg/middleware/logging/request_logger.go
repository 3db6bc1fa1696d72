package loggingmw

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shopcore/pkg/logging"
)

// RequestLogger puts a request-scoped logger into the context and writes one
// line per request. Errors are rendered here so the logged status is final.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, rid)

			l := base.With(
				"request_id", rid,
				"method", c.Request().Method,
				"path", c.Path(),
				"remote_ip", c.RealIP(),
			)
			c.SetRequest(c.Request().WithContext(logging.IntoContext(c.Request().Context(), l)))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			status := c.Response().Status
			attrs := []any{"status", status, "duration_ms", time.Since(start).Milliseconds()}

			switch {
			case status >= 500:
				l.Error("request completed", append(attrs, "error", errString(err))...)
			case status >= 400:
				l.Warn("request completed", append(attrs, "error", errString(err))...)
			default:
				l.Info("request completed", append(attrs, "bytes", c.Response().Size)...)
			}
			return nil
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
