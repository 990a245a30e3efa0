package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/project-portal/internal/config"
	"github.com/iliyamo/project-portal/internal/handler"
	"github.com/iliyamo/project-portal/internal/kv"
	"github.com/iliyamo/project-portal/internal/middleware"
	"github.com/iliyamo/project-portal/internal/model"
	"github.com/iliyamo/project-portal/internal/queue"
	"github.com/iliyamo/project-portal/internal/repository"
	"github.com/iliyamo/project-portal/internal/router"
	"github.com/iliyamo/project-portal/internal/service"
	"github.com/iliyamo/project-portal/internal/utils"
)

type app struct {
	e        *echo.Echo
	projects *repository.ProjectRepo
	creds    *service.CredentialService
}

func newApp(t *testing.T) *app {
	t.Helper()
	devHash, err := utils.HashPassword("dev-pass", 4)
	require.NoError(t, err)
	cfg := config.Config{
		PublicBaseURL:         "https://api.example.nl",
		PortalURL:             "https://portal.example.nl",
		JWTSecret:             "jwt-secret",
		AccessTTLMin:          60,
		InternalSecret:        "internal-secret",
		DeveloperEmail:        "dev@example.nl",
		DeveloperPasswordHash: devHash,
	}

	store := kv.NewMemoryStore()
	dispatch := service.NewDispatcher(queue.LogNotifier{})
	t.Cleanup(dispatch.Wait)

	projects := repository.NewProjectRepo(store)
	creds := service.NewCredentialService(projects, repository.NewCredentialRepo(store), utils.PasswordHasher{Pepper: "p", Iterations: 1000}, dispatch)
	creds.PublicBaseURL = cfg.PublicBaseURL
	creds.PortalURL = cfg.PortalURL
	phases := service.NewPhaseEngine(projects, dispatch, cfg.DeveloperEmail)
	payments := service.NewPaymentReconciler(projects, dispatch)
	messages := service.NewMessageService(projects, dispatch, cfg.DeveloperEmail)

	e := echo.New()
	auth := handler.NewAuthHandler(cfg, creds)
	router.RegisterRoutes(e, store)
	router.RegisterAuth(e, auth, cfg.JWTSecret, nil)
	router.RegisterProject(e, handler.NewProjectHandler(projects, phases, messages), cfg.JWTSecret)
	router.RegisterInternal(e, handler.NewPaymentHandler(payments), cfg.InternalSecret)
	router.RegisterAdmin(e, auth, &handler.AdminHandler{
		Projects: projects, Creds: creds, Phases: phases, Payments: payments, Messages: messages,
	}, cfg.JWTSecret, nil)

	return &app{e: e, projects: projects, creds: creds}
}

func (a *app) do(t *testing.T, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *app) seed(t *testing.T, id string, phase model.Phase) {
	t.Helper()
	_, err := a.projects.Create(context.Background(), repository.ProjectDraft{
		ID:       id,
		Phase:    phase,
		Customer: model.Customer{Name: "Anna", Email: "a@b.nl"},
	})
	require.NoError(t, err)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func bearer(tok string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + tok}
}

func (a *app) clientToken(t *testing.T, id string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/auth/verify", `{"projectId":"`+id+`","password":"x"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode(t, rec)["token"].(string)
}

func (a *app) developerToken(t *testing.T) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/admin/login", `{"email":"DEV@example.nl","password":"dev-pass"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode(t, rec)["token"].(string)
}

func TestProbes(t *testing.T) {
	a := newApp(t)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/readyz", "", nil).Code)
}

func TestVerify(t *testing.T) {
	a := newApp(t)
	a.seed(t, "WS-OPEN", "")
	a.seed(t, "WS-LOCK", "")
	require.NoError(t, a.creds.SetPassword(context.Background(), "WS-LOCK", "secret"))

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "open project", body: `{"projectId":"ws-open","password":""}`, status: http.StatusOK},
		{name: "right password", body: `{"projectId":"WS-LOCK","password":"secret"}`, status: http.StatusOK},
		{name: "wrong password", body: `{"projectId":"WS-LOCK","password":"nope"}`, status: http.StatusUnauthorized},
		{name: "unknown project", body: `{"projectId":"WS-NONE","password":"x"}`, status: http.StatusUnauthorized},
		{name: "missing id", body: `{"password":"x"}`, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, http.MethodPost, "/auth/verify", tt.body, nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusOK {
				body := decode(t, rec)
				assert.Equal(t, true, body["granted"])
				assert.NotEmpty(t, body["token"])
			}
		})
	}
}

func TestProjectRoutes_Access(t *testing.T) {
	a := newApp(t)
	a.seed(t, "WS-ONE", "")
	a.seed(t, "WS-TWO", "")
	tok := a.clientToken(t, "WS-ONE")

	rec := a.do(t, http.MethodGet, "/project/WS-ONE", "", bearer(tok))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "WS-ONE", body["id"])
	assert.Equal(t, "Anna", body["customerName"])
	assert.NotContains(t, body, "activity")

	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodGet, "/project/WS-TWO", "", bearer(tok)).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/project/WS-ONE", "", nil).Code)
}

func TestReadyForDesign_HTTP(t *testing.T) {
	a := newApp(t)
	a.seed(t, "WS-RFD", model.PhaseOnboarding)
	a.seed(t, "WS-DEV", model.PhaseDevelopment)

	tok := a.clientToken(t, "WS-RFD")
	rec := a.do(t, http.MethodPost, "/project/WS-RFD/ready-for-design", "", bearer(tok))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["changed"])

	rec = a.do(t, http.MethodPost, "/project/WS-RFD/ready-for-design", "", bearer(tok))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["changed"])
	assert.Equal(t, "design", body["phase"])

	devTok := a.clientToken(t, "WS-DEV")
	rec = a.do(t, http.MethodPost, "/project/WS-DEV/ready-for-design", "", bearer(devTok))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decode(t, rec)["error"])
}

func TestOnboardingAndMessages_HTTP(t *testing.T) {
	a := newApp(t)
	a.seed(t, "WS-ONB", model.PhaseOnboarding)
	tok := a.clientToken(t, "WS-ONB")

	rec := a.do(t, http.MethodPost, "/project/WS-ONB/onboarding", `{"answers":{"goal":"shop"},"complete":true}`, bearer(tok))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode(t, rec)["onboardingComplete"])

	rec = a.do(t, http.MethodPost, "/project/WS-ONB/messages", `{"message":"When do we start?"}`, bearer(tok))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	msgs := decode(t, rec)["messages"].([]any)
	require.Len(t, msgs, 1)

	rec = a.do(t, http.MethodPost, "/project/WS-ONB/messages", `{"message":""}`, bearer(tok))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetFlow_HTTP(t *testing.T) {
	a := newApp(t)
	a.seed(t, "WS-TEST1", "")

	for _, body := range []string{
		`{"projectId":"WS-TEST1","email":"a@b.nl"}`,
		`{"projectId":"WS-TEST1","email":"other@b.nl"}`,
		`{"projectId":"WS-NONE","email":"a@b.nl"}`,
	} {
		rec := a.do(t, http.MethodPost, "/auth/reset", body, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]any{"ok": true}, decode(t, rec))
	}

	token, err := a.creds.IssueResetToken(context.Background(), "WS-TEST1", "a@b.nl")
	require.NoError(t, err)
	body := `{"token":"` + token + `","newPassword":"fresh"}`
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/auth/reset/confirm", body, nil).Code)

	rec := a.do(t, http.MethodPost, "/auth/reset/confirm", body, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, rec)["error"])
}

func TestMagicLinkFlow_HTTP(t *testing.T) {
	a := newApp(t)
	a.seed(t, "WS-MAGIC", "")
	dev := bearer(a.developerToken(t))

	rec := a.do(t, http.MethodPost, "/auth/magic-link", `{"projectId":"ws-magic"}`, dev)
	require.Equal(t, http.StatusOK, rec.Code)
	link, err := url.Parse(decode(t, rec)["url"].(string))
	require.NoError(t, err)

	rec = a.do(t, http.MethodGet, link.RequestURI(), "", nil)
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "portal.example.nl", loc.Host)
	assert.Equal(t, "/project/WS-MAGIC", loc.Path)
	session := loc.Query().Get("session")
	require.NotEmpty(t, session)

	body := `{"projectId":"WS-MAGIC","sessionToken":"` + session + `"}`
	rec = a.do(t, http.MethodPost, "/auth/magic-session/verify", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["token"])

	rec = a.do(t, http.MethodPost, "/auth/magic-session/verify", body, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_USED", decode(t, rec)["error"])

	rec = a.do(t, http.MethodPost, "/auth/magic-link", `{"projectId":"WS-NONE"}`, dev)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMagicLink_RequiresDeveloper(t *testing.T) {
	a := newApp(t)
	a.seed(t, "WS-LOCKED", "")
	a.seed(t, "WS-OTHER", "")
	require.NoError(t, a.creds.SetPassword(context.Background(), "WS-LOCKED", "s3cret"))

	link, err := a.creds.IssueMagicLink(context.Background(), "WS-LOCKED")
	require.NoError(t, err)

	body := `{"projectId":"WS-LOCKED"}`
	rec := a.do(t, http.MethodPost, "/auth/magic-link", body, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), "token=")

	client := bearer(a.clientToken(t, "WS-OTHER"))
	rec = a.do(t, http.MethodPost, "/auth/magic-link", body, client)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "token=")

	// the customer's link still works after the refused calls
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, a.do(t, http.MethodGet, u.RequestURI(), "", nil).Code)

	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/project/WS-LOCKED", "", nil).Code)
}

func TestPaymentUpdate_HTTP(t *testing.T) {
	a := newApp(t)
	a.seed(t, "WS-PAY", model.PhaseDesignApproved)
	body := `{"projectId":"WS-PAY","paymentStatus":"paid"}`

	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodPost, "/internal/payment-update", body, nil).Code)

	secret := map[string]string{middleware.InternalSecretHeader: "internal-secret"}
	rec := a.do(t, http.MethodPost, "/internal/payment-update", body, secret)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode(t, rec)
	assert.Equal(t, "paid", got["paymentStatus"])
	assert.Equal(t, "development", got["phase"])

	rec = a.do(t, http.MethodPost, "/internal/payment-update", `{"projectId":"WS-NONE","paymentStatus":"paid"}`, secret)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_HTTP(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodPost, "/admin/login", `{"email":"dev@example.nl","password":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	a.seed(t, "WS-CLIENT", "")
	dev := bearer(a.developerToken(t))
	client := bearer(a.clientToken(t, "WS-CLIENT"))

	rec = a.do(t, http.MethodPost, "/admin/projects", `{"id":"ws-new","customer":{"name":"Anna","email":"a@b.nl"}}`, dev)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "WS-NEW", decode(t, rec)["id"])

	rec = a.do(t, http.MethodPost, "/admin/projects", `{"id":"WS-NEW","customer":{"email":"a@b.nl"}}`, dev)
	assert.Equal(t, http.StatusConflict, rec.Code)

	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodGet, "/admin/projects", "", client).Code)

	rec = a.do(t, http.MethodGet, "/admin/projects", "", dev)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode(t, rec)["count"])

	rec = a.do(t, http.MethodPatch, "/admin/projects/WS-NEW", `{"id":"WS-OTHER","customer":{"phone":"0612"}}`, dev)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode(t, rec)
	assert.Equal(t, "WS-NEW", got["id"])
	assert.Equal(t, false, got["hasPassword"])

	rec = a.do(t, http.MethodPatch, "/admin/projects/WS-NEW", `{"phase":"live"}`, dev)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPatch, "/admin/projects/WS-NEW", `{"version":1,"customer":{"name":"B"}}`, dev)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPut, "/admin/projects/WS-NEW/phase", `{"phase":"review"}`, dev)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["changed"])

	rec = a.do(t, http.MethodPut, "/admin/projects/WS-NEW/payment", `{"paymentStatus":"paid"}`, dev)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "review", decode(t, rec)["phase"])

	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodPut, "/admin/projects/WS-NEW/password", `{"password":"pw"}`, dev).Code)
	rec = a.do(t, http.MethodGet, "/admin/projects/WS-NEW", "", dev)
	assert.Equal(t, true, decode(t, rec)["hasPassword"])
	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, "/admin/projects/WS-NEW/password", "", dev).Code)

	rec = a.do(t, http.MethodPost, "/admin/projects/WS-NEW/magic-link", "", dev)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec)["url"], "/auth/magic-link/verify?")

	rec = a.do(t, http.MethodPost, "/admin/projects/WS-NEW/messages", `{"message":"Draft is ready"}`, dev)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "developer", decode(t, rec)["from"])

	rec = a.do(t, http.MethodPost, "/admin/projects/reindex", "", dev)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode(t, rec)["added"])
}
