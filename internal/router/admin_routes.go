package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/project-portal/internal/handler"
	"github.com/iliyamo/project-portal/internal/middleware"
	"github.com/iliyamo/project-portal/internal/utils"
)

// RegisterAdmin registers the developer login and the DEVELOPER-scoped
// project management routes.
func RegisterAdmin(e *echo.Echo, a *handler.AuthHandler, h *handler.AdminHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	if limiter != nil {
		e.POST("/admin/login", a.AdminLogin, limiter)
	} else {
		e.POST("/admin/login", a.AdminLogin)
	}

	g := e.Group(
		"/admin/projects",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleDeveloper),
	)

	// ---- Projects ----
	g.GET("", h.List)
	g.POST("", h.Create)
	g.POST("/reindex", h.Reindex)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)

	// ---- Overrides ----
	g.PUT("/:id/phase", h.SetPhase)
	g.PUT("/:id/payment", h.SetPayment)

	// ---- Credentials ----
	g.PUT("/:id/password", h.SetPassword)
	g.DELETE("/:id/password", h.ClearPassword)
	g.POST("/:id/magic-link", h.SendMagicLink)

	// ---- Messages ----
	g.POST("/:id/messages", h.PostMessage)
	g.POST("/:id/messages/read", h.MarkRead)
}
