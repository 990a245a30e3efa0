package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/project-portal/internal/kv"
)

// Health reports that the process is up.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready pings the store and answers 503 when it cannot be reached.
func Ready(store kv.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := requestCtx(c)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			return fail(c, err)
		}
		return c.String(http.StatusOK, "ready")
	}
}
