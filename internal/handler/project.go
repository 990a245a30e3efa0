package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/project-portal/internal/model"
	"github.com/iliyamo/project-portal/internal/repository"
	"github.com/iliyamo/project-portal/internal/service"
)

// ProjectHandler serves the client-facing /project/:id routes.  Access to
// the project in the path is checked by middleware.ProjectAccess.
type ProjectHandler struct {
	Projects *repository.ProjectRepo
	Phases   *service.PhaseEngine
	Messages *service.MessageService
}

func NewProjectHandler(projects *repository.ProjectRepo, phases *service.PhaseEngine, messages *service.MessageService) *ProjectHandler {
	return &ProjectHandler{Projects: projects, Phases: phases, Messages: messages}
}

// projectView is what a client sees of its project: no activity log and
// no customer contact details beyond the name.
type projectView struct {
	ID                 string              `json:"id"`
	Phase              model.Phase         `json:"phase"`
	PaymentStatus      model.PaymentStatus `json:"paymentStatus"`
	PaymentCompletedAt *time.Time          `json:"paymentCompletedAt,omitempty"`
	CustomerName       string              `json:"customerName"`
	CompanyName        string              `json:"companyName,omitempty"`
	OnboardingData     map[string]any      `json:"onboardingData,omitempty"`
	OnboardingDone     bool                `json:"onboardingComplete"`
	Messages           []model.Message     `json:"messages"`
	ReadyForDesignAt   *time.Time          `json:"readyForDesignAt,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

func viewOf(p *model.Project) projectView {
	msgs := p.Messages
	if msgs == nil {
		msgs = []model.Message{}
	}
	return projectView{
		ID:                 p.ID,
		Phase:              p.Phase,
		PaymentStatus:      p.PaymentStatus,
		PaymentCompletedAt: p.PaymentCompletedAt,
		CustomerName:       p.Customer.Name,
		CompanyName:        p.Customer.CompanyName,
		OnboardingData:     p.OnboardingData,
		OnboardingDone:     p.OnboardingDone(),
		Messages:           msgs,
		ReadyForDesignAt:   p.ReadyForDesignAt,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

type onboardingReq struct {
	Answers  map[string]any `json:"answers"`
	Complete bool           `json:"complete"`
}

type messageReq struct {
	Message string `json:"message"`
}

// Get: GET /project/:id
func (h *ProjectHandler) Get(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	p, err := h.Projects.Get(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(p))
}

// ReadyForDesign: POST /project/:id/ready-for-design.  Repeating the call
// once in design answers 200 with changed=false.
func (h *ProjectHandler) ReadyForDesign(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	p, changed, err := h.Phases.MarkReadyForDesign(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"phase": p.Phase, "changed": changed, "readyForDesignAt": p.ReadyForDesignAt})
}

// Onboarding: POST /project/:id/onboarding
func (h *ProjectHandler) Onboarding(c echo.Context) error {
	var req onboardingReq
	if err := c.Bind(&req); err != nil {
		return invalid(c, "invalid body")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	p, err := h.Phases.SubmitOnboarding(ctx, c.Param("id"), req.Answers, req.Complete)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(p))
}

// PostMessage: POST /project/:id/messages, from the client.
func (h *ProjectHandler) PostMessage(c echo.Context) error {
	var req messageReq
	if err := c.Bind(&req); err != nil {
		return invalid(c, "invalid body")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	p, _, err := h.Messages.PostClientMessage(ctx, c.Param("id"), req.Message)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"messages": p.Messages})
}

// MarkRead: POST /project/:id/messages/read marks the developer's messages
// as seen by the client.
func (h *ProjectHandler) MarkRead(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	p, n, err := h.Messages.MarkMessagesRead(ctx, c.Param("id"), model.FromDeveloper)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"marked": n, "messages": p.Messages})
}
