package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/project-portal/internal/model"
	"github.com/iliyamo/project-portal/internal/repository"
	"github.com/iliyamo/project-portal/internal/utils"
)

// deny writes the API error envelope used by the handlers.
func deny(c echo.Context, status int, code repository.ErrorCode, msg string) error {
	return c.JSON(status, echo.Map{"error": code, "message": msg})
}

// JWTAuth validates a Bearer access token and stores its subject and role
// in the context under "user_id" and "role".
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return deny(c, http.StatusUnauthorized, repository.CodeUnauthorized, "missing bearer token")
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return deny(c, http.StatusUnauthorized, repository.CodeUnauthorized, "invalid token")
			}
			c.Set("user_id", claims.Subject)
			c.Set("role", claims.Role)
			return next(c)
		}
	}
}

// ProjectAccess lets a client token through only for the project named by
// the :id path parameter.  Developer tokens reach every project.
func ProjectAccess() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if role == utils.RoleDeveloper {
				return next(c)
			}
			sub, _ := c.Get("user_id").(string)
			if role != utils.RoleClient || sub == "" || sub != model.NormalizeID(c.Param("id")) {
				return deny(c, http.StatusForbidden, repository.CodeUnauthorized, "token does not grant access to this project")
			}
			return next(c)
		}
	}
}
