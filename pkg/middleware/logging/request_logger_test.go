package loggingmw

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/shopcore/pkg/logging"
)

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestLogger(logging.NewWithWriter(&buf, "info")))
	e.GET("/boom", func(c echo.Context) error {
		logging.FromContext(c.Request().Context()).Info("inside")
		return echo.NewHTTPError(http.StatusConflict, "nope")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(echo.HeaderXRequestID, "rid-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "rid-1", rec.Header().Get(echo.HeaderXRequestID))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var inside, done map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &inside))
	require.NoError(t, json.Unmarshal(lines[1], &done))
	assert.Equal(t, "rid-1", inside["request_id"])
	assert.Equal(t, "request completed", done["msg"])
	assert.Equal(t, "WARN", done["level"])
	assert.EqualValues(t, 409, done["status"])
}
