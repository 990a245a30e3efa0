package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/project-portal/internal/model"
	"github.com/iliyamo/project-portal/internal/queue"
	"github.com/iliyamo/project-portal/internal/repository"
)

// PhaseEngine applies lifecycle transitions.  It is the only component that
// writes a project's phase, apart from the payment reconciler's automatic
// advance out of design_approved.
type PhaseEngine struct {
	Projects       *repository.ProjectRepo
	Dispatch       *Dispatcher
	DeveloperEmail string
	Now            func() time.Time
}

func NewPhaseEngine(projects *repository.ProjectRepo, d *Dispatcher, developerEmail string) *PhaseEngine {
	return &PhaseEngine{
		Projects:       projects,
		Dispatch:       d,
		DeveloperEmail: developerEmail,
		Now:            func() time.Time { return time.Now().UTC() },
	}
}

func phaseActivity(at time.Time, from, to model.Phase) model.Activity {
	return model.Activity{At: at, Kind: "phase", Detail: fmt.Sprintf("%s -> %s", from, to)}
}

// MarkReadyForDesign moves a project out of onboarding into design.  A
// project already in design is left untouched and reported unchanged; any
// other phase is a conflict.
func (e *PhaseEngine) MarkReadyForDesign(ctx context.Context, projectID string) (*model.Project, bool, error) {
	changed := false
	p, err := e.Projects.Mutate(ctx, projectID, func(p *model.Project) (bool, error) {
		switch {
		case p.Phase == model.PhaseDesign:
			return false, nil
		case p.Phase.IsOnboarding():
			now := e.Now()
			p.Activity = append(p.Activity, phaseActivity(now, p.Phase, model.PhaseDesign))
			p.Phase = model.PhaseDesign
			p.ReadyForDesignAt = &now
			changed = true
			return true, nil
		default:
			return false, fmt.Errorf("%w: ready-for-design does not apply in phase %s", repository.ErrConflict, p.Phase)
		}
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		log.Printf("phase: %s ready for design", p.ID)
		e.Dispatch.Dispatch(queue.NotificationEvent{
			Type:      queue.EventClientDesignConfirmation,
			ProjectID: p.ID,
			To:        p.Customer.Email,
			Data:      map[string]string{"name": p.Customer.Name},
		})
		e.Dispatch.Dispatch(queue.NotificationEvent{
			Type:      queue.EventDeveloperDesignAlert,
			ProjectID: p.ID,
			To:        e.DeveloperEmail,
			Data:      map[string]string{"name": p.Customer.Name, "email": p.Customer.Email},
		})
	}
	return p, changed, nil
}

// Override sets any phase directly.  It is the developer escape hatch and is
// not guarded by the transition rules.
func (e *PhaseEngine) Override(ctx context.Context, projectID, phase string) (*model.Project, bool, error) {
	next, ok := model.ParsePhase(phase)
	if !ok {
		return nil, false, fmt.Errorf("%w: unknown phase %q", repository.ErrValidation, phase)
	}
	var from model.Phase
	changed := false
	p, err := e.Projects.Mutate(ctx, projectID, func(p *model.Project) (bool, error) {
		if p.Phase == next {
			return false, nil
		}
		from = p.Phase
		p.Activity = append(p.Activity, phaseActivity(e.Now(), p.Phase, next))
		p.Activity[len(p.Activity)-1].Kind = "phase_override"
		p.Phase = next
		changed = true
		return true, nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		log.Printf("phase: %s overridden %s -> %s", p.ID, from, next)
		e.Dispatch.Dispatch(phaseChanged(p, from))
	}
	return p, changed, nil
}

func phaseChanged(p *model.Project, from model.Phase) queue.NotificationEvent {
	return queue.NotificationEvent{
		Type:      queue.EventPhaseChanged,
		ProjectID: p.ID,
		To:        p.Customer.Email,
		Data:      map[string]string{"from": string(from), "phase": string(p.Phase)},
	}
}

// SubmitOnboarding merges intake answers into the project.  When complete is
// set the intake is marked done and timestamped.  Intake can only change
// while the project is still onboarding.
func (e *PhaseEngine) SubmitOnboarding(ctx context.Context, projectID string, answers map[string]any, complete bool) (*model.Project, error) {
	if len(answers) == 0 && !complete {
		return nil, fmt.Errorf("%w: no onboarding answers", repository.ErrValidation)
	}
	return e.Projects.Mutate(ctx, projectID, func(p *model.Project) (bool, error) {
		if !p.Phase.IsOnboarding() {
			return false, fmt.Errorf("%w: onboarding is closed in phase %s", repository.ErrConflict, p.Phase)
		}
		if p.OnboardingData == nil {
			p.OnboardingData = make(map[string]any, len(answers)+2)
		}
		for k, v := range answers {
			if k == model.OnboardingComplete || k == model.OnboardingSubmittedAt {
				continue
			}
			p.OnboardingData[k] = v
		}
		if complete {
			p.OnboardingData[model.OnboardingComplete] = true
			p.OnboardingData[model.OnboardingSubmittedAt] = e.Now().Format(time.RFC3339)
			p.Activity = append(p.Activity, model.Activity{At: e.Now(), Kind: "onboarding_submitted"})
		}
		return true, nil
	})
}
