package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/project-portal/internal/service"
)

// PaymentHandler receives payment status updates relayed from the payment
// provider.  It sits behind middleware.SharedSecret.
type PaymentHandler struct {
	Payments *service.PaymentReconciler
}

func NewPaymentHandler(p *service.PaymentReconciler) *PaymentHandler {
	return &PaymentHandler{Payments: p}
}

// Update: POST /internal/payment-update
func (h *PaymentHandler) Update(c echo.Context) error {
	var ev service.PaymentEvent
	if err := c.Bind(&ev); err != nil {
		return invalid(c, "invalid body")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	p, err := h.Payments.Reconcile(ctx, ev)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"projectId": p.ID, "paymentStatus": p.PaymentStatus, "phase": p.Phase})
}
