package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/project-portal/internal/kv"
	"github.com/iliyamo/project-portal/internal/model"
	"github.com/iliyamo/project-portal/internal/queue"
	"github.com/iliyamo/project-portal/internal/repository"
	"github.com/iliyamo/project-portal/internal/utils"
)

// recordingNotifier captures dispatched events; Fail makes every send error.
type recordingNotifier struct {
	mu     sync.Mutex
	events []queue.NotificationEvent
	Fail   bool
}

func (r *recordingNotifier) Notify(_ context.Context, ev queue.NotificationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if r.Fail {
		return errors.New("smtp unreachable")
	}
	return nil
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type testEnv struct {
	store    *kv.MemoryStore
	projects *repository.ProjectRepo
	creds    *repository.CredentialRepo
	notifier *recordingNotifier
	dispatch *Dispatcher
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    kv.NewMemoryStore(),
		notifier: &recordingNotifier{},
		now:      time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	env.projects = repository.NewProjectRepo(env.store)
	env.projects.Now = env.clock
	env.creds = repository.NewCredentialRepo(env.store)
	env.dispatch = NewDispatcher(env.notifier)
	return env
}

func (e *testEnv) clock() time.Time { return e.now }

func (e *testEnv) advance(d time.Duration) { e.now = e.now.Add(d) }

func (e *testEnv) credentials() *CredentialService {
	s := NewCredentialService(e.projects, e.creds, utils.PasswordHasher{Pepper: "test", Iterations: 1000}, e.dispatch)
	s.PublicBaseURL = "https://api.example.nl"
	s.PortalURL = "https://portal.example.nl"
	s.Now = e.clock
	return s
}

func (e *testEnv) phases() *PhaseEngine {
	pe := NewPhaseEngine(e.projects, e.dispatch, "dev@example.nl")
	pe.Now = e.clock
	return pe
}

func (e *testEnv) payments() *PaymentReconciler {
	r := NewPaymentReconciler(e.projects, e.dispatch)
	r.Now = e.clock
	return r
}

func (e *testEnv) create(t *testing.T, id string, phase model.Phase) *model.Project {
	t.Helper()
	p, err := e.projects.Create(context.Background(), repository.ProjectDraft{
		ID:       id,
		Phase:    phase,
		Customer: model.Customer{Name: "Anna", Email: "a@b.nl"},
	})
	require.NoError(t, err)
	return p
}
