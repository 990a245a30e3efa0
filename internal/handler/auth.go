package handler

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/project-portal/internal/config"
	"github.com/iliyamo/project-portal/internal/model"
	"github.com/iliyamo/project-portal/internal/repository"
	"github.com/iliyamo/project-portal/internal/service"
	"github.com/iliyamo/project-portal/internal/utils"
)

// AuthHandler serves the customer-facing credential endpoints and the
// developer login.
type AuthHandler struct {
	Cfg   config.Config
	Creds *service.CredentialService
}

func NewAuthHandler(cfg config.Config, creds *service.CredentialService) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Creds: creds}
}

// ----- DTOs -----

type verifyReq struct {
	ProjectID string `json:"projectId"`
	Password  string `json:"password"`
}
type resetReq struct {
	ProjectID string `json:"projectId"`
	Email     string `json:"email"`
}
type resetConfirmReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}
type magicLinkReq struct {
	ProjectID string `json:"projectId"`
}
type magicSessionReq struct {
	ProjectID    string `json:"projectId"`
	SessionToken string `json:"sessionToken"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type grantResp struct {
	Granted   bool      `json:"granted"`
	ProjectID string    `json:"projectId,omitempty"`
	Token     string    `json:"token,omitempty"`
	Expires   time.Time `json:"expires"`
}

// clientGrant issues the access token a client uses on /project/:id.
func (h *AuthHandler) clientGrant(c echo.Context, projectID string) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, projectID, utils.RoleClient, h.Cfg.AccessTTL())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, grantResp{
		Granted:   true,
		ProjectID: projectID,
		Token:     access.Token,
		Expires:   access.Exp,
	})
}

// Verify: password check for a project.  Projects without a password are
// granted regardless of what was sent.
func (h *AuthHandler) Verify(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return invalid(c, "invalid body")
	}
	id := model.NormalizeID(req.ProjectID)
	if id == "" {
		return invalid(c, "projectId required")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	granted, err := h.Creds.VerifyPassword(ctx, id, req.Password)
	if err != nil {
		return fail(c, err)
	}
	if !granted {
		return c.JSON(http.StatusUnauthorized, echo.Map{"granted": false, "error": repository.CodeUnauthorized, "message": "invalid project id or password"})
	}
	return h.clientGrant(c, id)
}

// RequestReset always answers ok so the endpoint cannot be used to probe
// which project/email pairs exist.
func (h *AuthHandler) RequestReset(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return invalid(c, "invalid body")
	}
	if strings.TrimSpace(req.ProjectID) == "" || strings.TrimSpace(req.Email) == "" {
		return invalid(c, "projectId and email required")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	if _, err := h.Creds.IssueResetToken(ctx, req.ProjectID, req.Email); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// ConfirmReset: consume the token and set the new password.
func (h *AuthHandler) ConfirmReset(c echo.Context) error {
	var req resetConfirmReq
	if err := c.Bind(&req); err != nil {
		return invalid(c, "invalid body")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Creds.ConfirmReset(ctx, req.Token, req.NewPassword); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// MagicLink mints a link and returns it to the caller.  It does not mail it;
// the admin endpoint does.  The route is developer-only.
func (h *AuthHandler) MagicLink(c echo.Context) error {
	var req magicLinkReq
	if err := c.Bind(&req); err != nil {
		return invalid(c, "invalid body")
	}
	if strings.TrimSpace(req.ProjectID) == "" {
		return invalid(c, "projectId required")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	link, err := h.Creds.IssueMagicLink(ctx, req.ProjectID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"url": link})
}

// MagicLinkVerify is the target of the emailed link.  On success it
// redirects to the portal with a one-time session token; the long-lived
// magic token never reaches the portal URL.
func (h *AuthHandler) MagicLinkVerify(c echo.Context) error {
	id := model.NormalizeID(c.QueryParam("projectId"))

	ctx, cancel := requestCtx(c)
	defer cancel()

	session, err := h.Creds.VerifyMagicLink(ctx, id, c.QueryParam("token"))
	if err != nil {
		return fail(c, err)
	}
	target := h.Cfg.PortalURL + "/project/" + url.PathEscape(id) + "?" + url.Values{"session": {session}}.Encode()
	return c.Redirect(http.StatusFound, target)
}

// MagicSessionVerify consumes the session token carried by the redirect.
func (h *AuthHandler) MagicSessionVerify(c echo.Context) error {
	var req magicSessionReq
	if err := c.Bind(&req); err != nil {
		return invalid(c, "invalid body")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Creds.VerifyMagicSession(ctx, req.ProjectID, req.SessionToken); err != nil {
		return fail(c, err)
	}
	return h.clientGrant(c, model.NormalizeID(req.ProjectID))
}

// AdminLogin checks the developer account from configuration and returns a
// DEVELOPER token.
func (h *AuthHandler) AdminLogin(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return invalid(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return invalid(c, "email/password required")
	}
	if h.Cfg.DeveloperPasswordHash == "" ||
		!strings.EqualFold(req.Email, h.Cfg.DeveloperEmail) ||
		!utils.VerifyPassword(h.Cfg.DeveloperPasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": repository.CodeUnauthorized, "message": "invalid credentials"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, req.Email, utils.RoleDeveloper, h.Cfg.AccessTTL())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"token": access.Token, "expires": access.Exp})
}
