package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/project-portal/internal/model"
	"github.com/iliyamo/project-portal/internal/repository"
)

// PaymentEvent is the status update the payment provider's webhook relay
// posts to the internal endpoint.
type PaymentEvent struct {
	ProjectID          string     `json:"projectId"`
	PaymentStatus      string     `json:"paymentStatus"`
	PaymentCompletedAt *time.Time `json:"paymentCompletedAt,omitempty"`
}

// PaymentReconciler applies payment status updates to projects.
type PaymentReconciler struct {
	Projects *repository.ProjectRepo
	Dispatch *Dispatcher
	Now      func() time.Time
}

func NewPaymentReconciler(projects *repository.ProjectRepo, d *Dispatcher) *PaymentReconciler {
	return &PaymentReconciler{
		Projects: projects,
		Dispatch: d,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile records the reported status.  A "paid" event for a project in
// design_approved also advances it to development; no other combination
// touches the phase.  Replaying an event leaves the same state behind,
// although the phase notification may be sent again.
func (r *PaymentReconciler) Reconcile(ctx context.Context, ev PaymentEvent) (*model.Project, error) {
	if strings.TrimSpace(ev.ProjectID) == "" {
		return nil, fmt.Errorf("%w: projectId required", repository.ErrValidation)
	}
	status, ok := model.ParsePaymentStatus(ev.PaymentStatus)
	if !ok {
		return nil, fmt.Errorf("%w: unknown paymentStatus %q", repository.ErrValidation, ev.PaymentStatus)
	}

	advanced := false
	p, err := r.Projects.Mutate(ctx, ev.ProjectID, func(p *model.Project) (bool, error) {
		now := r.Now()
		if p.PaymentStatus != status {
			p.Activity = append(p.Activity, model.Activity{At: now, Kind: "payment", Detail: fmt.Sprintf("%s -> %s", p.PaymentStatus, status)})
		}
		p.PaymentStatus = status
		if ev.PaymentCompletedAt != nil {
			t := ev.PaymentCompletedAt.UTC()
			p.PaymentCompletedAt = &t
		}
		if status == model.PaymentPaid && p.Phase == model.PhaseDesignApproved {
			p.Activity = append(p.Activity, phaseActivity(now, p.Phase, model.PhaseDevelopment))
			p.Phase = model.PhaseDevelopment
			advanced = true
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("payment: %s status=%s phase=%s", p.ID, p.PaymentStatus, p.Phase)
	if advanced {
		r.Dispatch.Dispatch(phaseChanged(p, model.PhaseDesignApproved))
	}
	return p, nil
}

// Override sets the payment status on behalf of a developer.  It never
// advances the phase.
func (r *PaymentReconciler) Override(ctx context.Context, projectID, status string) (*model.Project, error) {
	next, ok := model.ParsePaymentStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown paymentStatus %q", repository.ErrValidation, status)
	}
	return r.Projects.Mutate(ctx, projectID, func(p *model.Project) (bool, error) {
		if p.PaymentStatus == next {
			return false, nil
		}
		p.Activity = append(p.Activity, model.Activity{At: r.Now(), Kind: "payment_override", Detail: fmt.Sprintf("%s -> %s", p.PaymentStatus, next)})
		p.PaymentStatus = next
		return true, nil
	})
}
