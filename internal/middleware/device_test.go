package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runDevice(t *testing.T, mutate func(*http.Request)) (string, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got string
	h := DeviceID()(func(c echo.Context) error {
		got, _ = c.Get("device_id").(string)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	return got, rec
}

func TestDeviceIDPrefersHeader(t *testing.T) {
	got, _ := runDevice(t, func(r *http.Request) {
		r.Header.Set("X-Device-ID", "device-from-header")
		r.AddCookie(&http.Cookie{Name: DeviceCookieName, Value: "device-from-cookie"})
	})
	assert.Equal(t, "device-from-header", got)
}

func TestDeviceIDFallsBackToCookie(t *testing.T) {
	got, _ := runDevice(t, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: DeviceCookieName, Value: "device-from-cookie"})
	})
	assert.Equal(t, "device-from-cookie", got)
}

func TestDeviceIDGeneratesWhenAbsent(t *testing.T) {
	got, rec := runDevice(t, nil)
	assert.NotEmpty(t, got)

	// The new identity must be persisted on the response.
	setCookie := rec.Header().Get("Set-Cookie")
	assert.Contains(t, setCookie, DeviceCookieName+"="+got)
}

func TestDeviceIDTruncatesOversizedValues(t *testing.T) {
	long := strings.Repeat("x", maxDeviceIDLen+20)
	got, _ := runDevice(t, func(r *http.Request) {
		r.Header.Set("X-Device-ID", long)
	})
	assert.Len(t, got, maxDeviceIDLen)
}

func TestDeviceIDRefreshesCookie(t *testing.T) {
	_, rec := runDevice(t, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: DeviceCookieName, Value: "stable-id"})
	})
	assert.Contains(t, rec.Header().Get("Set-Cookie"), DeviceCookieName+"=stable-id")
}
