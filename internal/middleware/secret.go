package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/project-portal/internal/repository"
	"github.com/iliyamo/project-portal/internal/utils"
)

// InternalSecretHeader carries the shared secret on internal calls.
const InternalSecretHeader = "X-Internal-Secret"

// SharedSecret guards service-to-service endpoints.  The header value is
// compared in constant time; an empty configured secret rejects everything.
func SharedSecret(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.Request().Header.Get(InternalSecretHeader)
			if secret == "" || got == "" || !utils.ConstantTimeEqual(got, secret) {
				return deny(c, http.StatusUnauthorized, repository.CodeUnauthorized, "invalid internal secret")
			}
			return next(c)
		}
	}
}
