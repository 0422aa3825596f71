package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health responds with a static payload so load balancers and uptime
// checks can probe the service without touching the database.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
