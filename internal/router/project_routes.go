package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/project-portal/internal/handler"
	"github.com/iliyamo/project-portal/internal/middleware"
)

// RegisterProject registers the client routes.  A CLIENT token only opens
// the project it was issued for; DEVELOPER tokens open all of them.
func RegisterProject(e *echo.Echo, p *handler.ProjectHandler, jwtSecret string) {
	g := e.Group(
		"/project/:id",
		middleware.JWTAuth(jwtSecret),
		middleware.ProjectAccess(),
	)
	g.GET("", p.Get)
	g.POST("/ready-for-design", p.ReadyForDesign)
	g.POST("/onboarding", p.Onboarding)
	g.POST("/messages", p.PostMessage)
	g.POST("/messages/read", p.MarkRead)
}
