package router

import (
	"github.com/labstack/echo/v4"

	"github.com/ramswarooppatel/sharehub/internal/handler"
	"github.com/ramswarooppatel/sharehub/internal/middleware"
)

// RegisterAuth registers the optional account endpoints. Token issuing
// and rotation live under /v1/auth without middleware; /v1/me requires
// a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}
