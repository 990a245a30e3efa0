package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/project-portal/internal/kv"
	"github.com/iliyamo/project-portal/internal/model"
)

const projectSetKey = "projects"

func projectKey(id string) string { return "project:" + id }

// ProjectDraft is the input to Create.  An empty ID is generated.
type ProjectDraft struct {
	ID             string              `json:"id"`
	Customer       model.Customer      `json:"customer"`
	OnboardingData map[string]any      `json:"onboardingData"`
	Phase          model.Phase         `json:"phase"`
	PaymentStatus  model.PaymentStatus `json:"paymentStatus"`
}

// CustomerPatch carries the customer fields to overwrite; nil fields are
// left alone.
type CustomerPatch struct {
	Name        *string `json:"name,omitempty"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	CompanyName *string `json:"companyName,omitempty"`
}

// ProjectPatch is a partial update.  ID and CreatedAt are accepted so that
// round-tripped payloads bind cleanly, but they are never applied.  A
// non-zero Version makes the update conditional on the stored version.
type ProjectPatch struct {
	ID                 *string              `json:"id,omitempty"`
	CreatedAt          *time.Time           `json:"createdAt,omitempty"`
	Version            int64                `json:"version,omitempty"`
	Phase              *model.Phase         `json:"phase,omitempty"`
	PaymentStatus      *model.PaymentStatus `json:"paymentStatus,omitempty"`
	PaymentCompletedAt *time.Time           `json:"paymentCompletedAt,omitempty"`
	Customer           *CustomerPatch       `json:"customer,omitempty"`
	OnboardingData     map[string]any       `json:"onboardingData,omitempty"`
	ReadyForDesignAt   *time.Time           `json:"readyForDesignAt,omitempty"`
	AppendActivity     []model.Activity     `json:"-"`
}

// MutateFunc edits a loaded project in place.  Returning false skips the
// write entirely, leaving version and updatedAt untouched.
type MutateFunc func(p *model.Project) (bool, error)

var errSkipWrite = errors.New("skip write")

// ProjectRepo stores projects as JSON under project:{ID} and keeps the set
// of known ids in "projects".
type ProjectRepo struct {
	kv  kv.Store
	Now func() time.Time
}

func NewProjectRepo(store kv.Store) *ProjectRepo {
	return &ProjectRepo{kv: store, Now: func() time.Time { return time.Now().UTC() }}
}

// NewProjectID returns a fresh WS-XXXXXX identifier.
func NewProjectID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "WS-" + strings.ToUpper(hex.EncodeToString(b)), nil
}

// Create stores a new project with default phase and payment status.  The
// id is upper-cased; creating an id that already exists is a conflict.
func (r *ProjectRepo) Create(ctx context.Context, d ProjectDraft) (*model.Project, error) {
	d.Customer.Email = strings.TrimSpace(d.Customer.Email)
	if d.Customer.Email == "" {
		return nil, fmt.Errorf("%w: customer email required", ErrValidation)
	}
	id := model.NormalizeID(d.ID)
	if id == "" {
		var err error
		if id, err = NewProjectID(); err != nil {
			return nil, err
		}
	}
	phase := model.PhaseOnboarding
	if d.Phase != "" {
		p, ok := model.ParsePhase(string(d.Phase))
		if !ok {
			return nil, fmt.Errorf("%w: unknown phase %q", ErrValidation, d.Phase)
		}
		phase = p
	}
	status := model.PaymentPending
	if d.PaymentStatus != "" {
		s, ok := model.ParsePaymentStatus(string(d.PaymentStatus))
		if !ok {
			return nil, fmt.Errorf("%w: unknown payment status %q", ErrValidation, d.PaymentStatus)
		}
		status = s
	}

	now := r.Now()
	p := &model.Project{
		ID:             id,
		Phase:          phase,
		PaymentStatus:  status,
		Customer:       d.Customer,
		OnboardingData: d.OnboardingData,
		Messages:       []model.Message{},
		Activity:       []model.Activity{{At: now, Kind: "created", Detail: string(phase)}},
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	ok, err := r.kv.SetNX(ctx, projectKey(id), b, 0)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: project %s already exists", ErrConflict, id)
	}
	if err := r.kv.SAdd(ctx, projectSetKey, id); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProjectRepo) load(ctx context.Context, key string) (*model.Project, error) {
	b, err := r.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var p model.Project
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &p, nil
}

// Get loads a project by id, case-insensitively.  Records written under a
// non-canonical key by older clients are found through a fallback read and
// moved to the canonical key.
func (r *ProjectRepo) Get(ctx context.Context, id string) (*model.Project, error) {
	p, _, err := r.locate(ctx, id)
	return p, err
}

// locate is Get that also returns the key currently holding the record.
// That is the legacy key when its migration did not go through.
func (r *ProjectRepo) locate(ctx context.Context, id string) (*model.Project, string, error) {
	raw := strings.TrimSpace(id)
	canonical := model.NormalizeID(raw)
	if canonical == "" {
		return nil, "", fmt.Errorf("%w: project id required", ErrValidation)
	}
	p, err := r.load(ctx, projectKey(canonical))
	if err == nil || !errors.Is(err, ErrNotFound) || raw == canonical {
		return p, projectKey(canonical), err
	}
	p, err = r.load(ctx, projectKey(raw))
	if err != nil {
		return nil, "", err
	}
	if r.migrate(ctx, raw, p) {
		return p, projectKey(p.ID), nil
	}
	return p, projectKey(raw), nil
}

// migrate copies a legacy-keyed record to its canonical key and reports
// whether the canonical key now holds it.  Failures are logged; the
// fallback read keeps working until a migration succeeds.
func (r *ProjectRepo) migrate(ctx context.Context, raw string, p *model.Project) bool {
	p.ID = model.NormalizeID(p.ID)
	if p.ID == "" {
		p.ID = model.NormalizeID(raw)
	}
	b, err := json.Marshal(p)
	if err != nil {
		return false
	}
	if _, err := r.kv.SetNX(ctx, projectKey(p.ID), b, 0); err != nil {
		log.Printf("project: migrate %s: %v", raw, err)
		return false
	}
	if err := r.kv.SAdd(ctx, projectSetKey, p.ID); err != nil {
		log.Printf("project: register %s: %v", p.ID, err)
		return true
	}
	if err := r.kv.Delete(ctx, projectKey(raw)); err != nil {
		log.Printf("project: drop legacy key %s: %v", raw, err)
	}
	return true
}

// Mutate applies fn to the stored project as one conditional write.  The
// id and createdAt are restored after fn runs, version is bumped and
// updatedAt stamped.  A concurrent writer surfaces as ErrConflict.
func (r *ProjectRepo) Mutate(ctx context.Context, id string, fn MutateFunc) (*model.Project, error) {
	cur, key, err := r.locate(ctx, id)
	if err != nil {
		return nil, err
	}

	var out model.Project
	err = r.kv.Update(ctx, key, func(b []byte) ([]byte, error) {
		var p model.Project
		if err := json.Unmarshal(b, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		origID, origCreated := cur.ID, p.CreatedAt
		changed, err := fn(&p)
		if err != nil {
			return nil, err
		}
		p.ID, p.CreatedAt = origID, origCreated
		if !changed {
			out = p
			return nil, errSkipWrite
		}
		p.Version++
		p.UpdatedAt = r.Now()
		out = p
		return json.Marshal(&p)
	})
	switch {
	case errors.Is(err, errSkipWrite):
		return &out, nil
	case errors.Is(err, kv.ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, kv.ErrConflict):
		return nil, fmt.Errorf("%w: project %s was modified concurrently", ErrConflict, cur.ID)
	case err != nil:
		return nil, err
	}
	return &out, nil
}

// Update merges patch over the stored project.  Top-level fields are
// replaced, customer and onboardingData are merged key by key.
func (r *ProjectRepo) Update(ctx context.Context, id string, patch ProjectPatch) (*model.Project, error) {
	return r.Mutate(ctx, id, func(p *model.Project) (bool, error) {
		if patch.Version != 0 && patch.Version != p.Version {
			return false, fmt.Errorf("%w: stale version %d, current is %d", ErrConflict, patch.Version, p.Version)
		}
		applyPatch(p, patch)
		return true, nil
	})
}

func applyPatch(p *model.Project, patch ProjectPatch) {
	if patch.Phase != nil {
		p.Phase = *patch.Phase
	}
	if patch.PaymentStatus != nil {
		p.PaymentStatus = *patch.PaymentStatus
	}
	if patch.PaymentCompletedAt != nil {
		t := *patch.PaymentCompletedAt
		p.PaymentCompletedAt = &t
	}
	if patch.ReadyForDesignAt != nil {
		t := *patch.ReadyForDesignAt
		p.ReadyForDesignAt = &t
	}
	if c := patch.Customer; c != nil {
		if c.Name != nil {
			p.Customer.Name = *c.Name
		}
		if c.Email != nil {
			p.Customer.Email = strings.TrimSpace(*c.Email)
		}
		if c.Phone != nil {
			p.Customer.Phone = *c.Phone
		}
		if c.CompanyName != nil {
			p.Customer.CompanyName = *c.CompanyName
		}
	}
	if len(patch.OnboardingData) > 0 {
		if p.OnboardingData == nil {
			p.OnboardingData = make(map[string]any, len(patch.OnboardingData))
		}
		for k, v := range patch.OnboardingData {
			p.OnboardingData[k] = v
		}
	}
	p.Activity = append(p.Activity, patch.AppendActivity...)
}

// ListAll returns every registered project, newest first.  Ids that fail to
// load are skipped so one corrupt record does not hide the rest.
func (r *ProjectRepo) ListAll(ctx context.Context) ([]model.Project, error) {
	ids, err := r.kv.SMembers(ctx, projectSetKey)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(ids))
	out := make([]model.Project, 0, len(ids))
	for _, id := range ids {
		p, err := r.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				return nil, err
			}
			log.Printf("project: skip %s in listing: %v", id, err)
			continue
		}
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, *p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Reindex registers every project:{ID} key that is missing from the id set
// and returns how many were added.
func (r *ProjectRepo) Reindex(ctx context.Context) (int, error) {
	keys, err := r.kv.ScanPrefix(ctx, "project:")
	if err != nil {
		return 0, err
	}
	members, err := r.kv.SMembers(ctx, projectSetKey)
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool, len(members))
	for _, m := range members {
		known[m] = true
	}
	added := 0
	for _, k := range keys {
		id := strings.TrimPrefix(k, "project:")
		if id == "" || strings.Contains(id, ":") || known[id] {
			continue
		}
		if err := r.kv.SAdd(ctx, projectSetKey, id); err != nil {
			return added, err
		}
		known[id] = true
		added++
	}
	return added, nil
}
