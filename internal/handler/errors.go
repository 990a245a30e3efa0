package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/project-portal/internal/repository"
)

// requestTimeout bounds the store work a single request may do.
const requestTimeout = 5 * time.Second

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func statusFor(code repository.ErrorCode) int {
	switch code {
	case repository.CodeNotFound:
		return http.StatusNotFound
	case repository.CodeUnauthorized:
		return http.StatusUnauthorized
	case repository.CodeConflict, repository.CodeAlreadyUsed:
		return http.StatusConflict
	case repository.CodeExpired:
		return http.StatusGone
	case repository.CodeUnavailable:
		return http.StatusServiceUnavailable
	case repository.CodeInvalidInput:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail writes the error envelope {"error": code, "message": text}.  Store
// and internal failures are logged and their detail kept out of the body.
func fail(c echo.Context, err error) error {
	code := repository.Code(err)
	msg := err.Error()
	switch code {
	case repository.CodeUnavailable:
		log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
		msg = "storage temporarily unavailable"
	case repository.CodeInternal:
		log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
		msg = "internal error"
	}
	return c.JSON(statusFor(code), echo.Map{"error": code, "message": msg})
}

func invalid(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": repository.CodeInvalidInput, "message": msg})
}
