package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/project-portal/internal/model"
	"github.com/iliyamo/project-portal/internal/repository"
	"github.com/iliyamo/project-portal/internal/service"
)

// AdminHandler serves the developer routes under /admin/projects.  Every
// route requires a DEVELOPER token.
type AdminHandler struct {
	Projects *repository.ProjectRepo
	Creds    *service.CredentialService
	Phases   *service.PhaseEngine
	Payments *service.PaymentReconciler
	Messages *service.MessageService
}

type adminProject struct {
	*model.Project
	HasPassword bool `json:"hasPassword"`
}

type phaseReq struct {
	Phase string `json:"phase"`
}
type paymentReq struct {
	PaymentStatus string `json:"paymentStatus"`
}
type passwordReq struct {
	Password string `json:"password"`
}

func (h *AdminHandler) withPassword(c echo.Context, status int, p *model.Project) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	has, err := h.Creds.HasPassword(ctx, p.ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(status, adminProject{Project: p, HasPassword: has})
}

// List: GET /admin/projects, newest first.
func (h *AdminHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	list, err := h.Projects.ListAll(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"projects": list, "count": len(list)})
}

// Create: POST /admin/projects
func (h *AdminHandler) Create(c echo.Context) error {
	var d repository.ProjectDraft
	if err := c.Bind(&d); err != nil {
		return invalid(c, "invalid body")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	p, err := h.Projects.Create(ctx, d)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, adminProject{Project: p})
}

// Get: GET /admin/projects/:id
func (h *AdminHandler) Get(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	p, err := h.Projects.Get(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return h.withPassword(c, http.StatusOK, p)
}

// Update: PATCH /admin/projects/:id.  Phase and payment status have their
// own routes so the transition rules and notifications apply.
func (h *AdminHandler) Update(c echo.Context) error {
	var patch repository.ProjectPatch
	if err := c.Bind(&patch); err != nil {
		return invalid(c, "invalid body")
	}
	if patch.Phase != nil || patch.PaymentStatus != nil {
		return invalid(c, "use the phase and payment routes to change phase or paymentStatus")
	}
	patch.AppendActivity = nil

	ctx, cancel := requestCtx(c)
	defer cancel()

	p, err := h.Projects.Update(ctx, c.Param("id"), patch)
	if err != nil {
		return fail(c, err)
	}
	return h.withPassword(c, http.StatusOK, p)
}

// SetPhase: PUT /admin/projects/:id/phase
func (h *AdminHandler) SetPhase(c echo.Context) error {
	var req phaseReq
	if err := c.Bind(&req); err != nil {
		return invalid(c, "invalid body")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	p, changed, err := h.Phases.Override(ctx, c.Param("id"), req.Phase)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"phase": p.Phase, "changed": changed})
}

// SetPayment: PUT /admin/projects/:id/payment
func (h *AdminHandler) SetPayment(c echo.Context) error {
	var req paymentReq
	if err := c.Bind(&req); err != nil {
		return invalid(c, "invalid body")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	p, err := h.Payments.Override(ctx, c.Param("id"), req.PaymentStatus)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"paymentStatus": p.PaymentStatus, "phase": p.Phase})
}

// SetPassword: PUT /admin/projects/:id/password
func (h *AdminHandler) SetPassword(c echo.Context) error {
	var req passwordReq
	if err := c.Bind(&req); err != nil {
		return invalid(c, "invalid body")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Creds.SetPassword(ctx, c.Param("id"), req.Password); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ClearPassword: DELETE /admin/projects/:id/password
func (h *AdminHandler) ClearPassword(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Creds.ClearPassword(ctx, c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SendMagicLink: POST /admin/projects/:id/magic-link mails a fresh link to
// the customer and returns it.
func (h *AdminHandler) SendMagicLink(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	link, err := h.Creds.SendMagicLink(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"url": link})
}

// PostMessage: POST /admin/projects/:id/messages, from the developer.
func (h *AdminHandler) PostMessage(c echo.Context) error {
	var req messageReq
	if err := c.Bind(&req); err != nil {
		return invalid(c, "invalid body")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	_, msg, err := h.Messages.PostDeveloperMessage(ctx, c.Param("id"), req.Message)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// MarkRead: POST /admin/projects/:id/messages/read
func (h *AdminHandler) MarkRead(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	_, n, err := h.Messages.MarkMessagesRead(ctx, c.Param("id"), model.FromClient)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"marked": n})
}

// Reindex: POST /admin/projects/reindex
func (h *AdminHandler) Reindex(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	added, err := h.Projects.Reindex(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"added": added})
}
