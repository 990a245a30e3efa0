// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/project-portal/internal/handler"
	"github.com/iliyamo/project-portal/internal/kv"
	"github.com/iliyamo/project-portal/internal/middleware"
	"github.com/iliyamo/project-portal/internal/utils"
)

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, store kv.Store) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(store))
}

// RegisterAuth registers the credential endpoints under /auth.  limiter
// guards every route of the group; pass nil to disable it.  Minting a magic
// link returns a live credential, so that route needs a DEVELOPER token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/auth")
	if limiter != nil {
		g.Use(limiter)
	}
	g.POST("/verify", a.Verify)
	g.POST("/reset", a.RequestReset)
	g.POST("/reset/confirm", a.ConfirmReset)
	g.POST("/magic-link", a.MagicLink,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleDeveloper),
	)
	g.GET("/magic-link/verify", a.MagicLinkVerify)
	g.POST("/magic-session/verify", a.MagicSessionVerify)
}

// RegisterInternal registers service-to-service endpoints guarded by the
// shared secret.
func RegisterInternal(e *echo.Echo, p *handler.PaymentHandler, secret string) {
	g := e.Group("/internal", middleware.SharedSecret(secret))
	g.POST("/payment-update", p.Update)
}
