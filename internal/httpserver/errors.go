package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Skotchmaster/shopcore/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrState):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrTransientStorage):
		return http.StatusServiceUnavailable, "storage unavailable, retry later"
	}
	return http.StatusInternalServerError, "internal error"
}

// fail logs under event and writes the mapped status. Server-side failures log
// at error level, caller mistakes at warn.
func fail(c echo.Context, l *slog.Logger, event string, err error) error {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		l.Error(event, "status", status, "error", err)
	} else {
		l.Warn(event, "status", status, "error", err)
	}
	return c.JSON(status, errorResponse{Error: msg})
}

func badRequest(c echo.Context, l *slog.Logger, event, msg string, err error) error {
	l.Warn(event, "status", http.StatusBadRequest, "reason", msg, "error", err)
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *RequestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}
