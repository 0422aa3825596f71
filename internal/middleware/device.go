package middleware

// device.go implements the server half of device identity: every request
// carries an opaque, client-held device id that identifies a returning
// browser without a login. Browser clients persist it in a long-lived
// cookie; non-browser clients may send it in the X-Device-ID header. The
// id is a convenience token, not a security credential: clearing the
// cookie simply yields a fresh identity.

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// DeviceCookieName is the cookie under which the device id is persisted.
const DeviceCookieName = "sh_device_id"

// deviceCookieTTL keeps the identity stable for a year; every response
// refreshes the deadline so active devices never roll over.
const deviceCookieTTL = 365 * 24 * time.Hour

// maxDeviceIDLen caps what we accept from the client. Ids are opaque,
// but unbounded values would bloat every row keyed by them.
const maxDeviceIDLen = 64

// DeviceID returns middleware that resolves the caller's device
// identity and stores it on the context under "device_id". Resolution
// order: X-Device-ID header, then the device cookie, then a freshly
// generated uuid which is also set as a cookie on the response. A
// client that discards cookies and sends no header gets a new id per
// request; that degraded mode is logged and everything still works, it
// just never recognizes the device as returning.
func DeviceID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get("X-Device-ID")
			if id == "" {
				if ck, err := c.Cookie(DeviceCookieName); err == nil {
					id = ck.Value
				}
			}
			if len(id) > maxDeviceIDLen {
				id = id[:maxDeviceIDLen]
			}
			if id == "" {
				id = uuid.NewString()
				logrus.WithField("device_id", id).Warn("request without device identity, issued a fresh one")
			}
			// Refresh the cookie on every response so the identity
			// survives as long as the device keeps visiting.
			c.SetCookie(&http.Cookie{
				Name:     DeviceCookieName,
				Value:    id,
				Path:     "/",
				Expires:  time.Now().Add(deviceCookieTTL),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			c.Set("device_id", id)
			return next(c)
		}
	}
}
