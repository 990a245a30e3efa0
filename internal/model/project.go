package model

import (
	"strings"
	"time"
)

// Phase is a project's position in the delivery lifecycle.
type Phase string

const (
	PhaseOnboarding     Phase = "onboarding"
	PhaseIntake         Phase = "intake" // legacy alias of onboarding
	PhaseDesign         Phase = "design"
	PhaseDesignApproved Phase = "design_approved"
	PhaseDevelopment    Phase = "development"
	PhaseReview         Phase = "review"
	PhaseLive           Phase = "live"
)

var phases = map[Phase]bool{
	PhaseOnboarding:     true,
	PhaseIntake:         true,
	PhaseDesign:         true,
	PhaseDesignApproved: true,
	PhaseDevelopment:    true,
	PhaseReview:         true,
	PhaseLive:           true,
}

// ParsePhase normalizes s and reports whether it names a known phase.
func ParsePhase(s string) (Phase, bool) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	return p, phases[p]
}

// IsOnboarding treats intake and onboarding as the same state.
func (p Phase) IsOnboarding() bool {
	return p == PhaseOnboarding || p == PhaseIntake
}

// PaymentStatus mirrors the payment provider's status vocabulary.
type PaymentStatus string

const (
	PaymentPending         PaymentStatus = "pending"
	PaymentAwaitingPayment PaymentStatus = "awaiting_payment"
	PaymentPaid            PaymentStatus = "paid"
	PaymentFailed          PaymentStatus = "failed"
)

// ParsePaymentStatus normalizes s and reports whether it is a known status.
func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	ps := PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
	switch ps {
	case PaymentPending, PaymentAwaitingPayment, PaymentPaid, PaymentFailed:
		return ps, true
	}
	return ps, false
}

// Customer is the contact the project is delivered to.  Email is the join
// key for the reset and lookup flows.
type Customer struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
}

// Project is the central aggregate stored under project:{ID}.  Credentials
// never live on it.
type Project struct {
	ID                 string         `json:"id"`
	Phase              Phase          `json:"phase"`
	PaymentStatus      PaymentStatus  `json:"paymentStatus"`
	PaymentCompletedAt *time.Time     `json:"paymentCompletedAt,omitempty"`
	Customer           Customer       `json:"customer"`
	OnboardingData     map[string]any `json:"onboardingData,omitempty"`
	Messages           []Message      `json:"messages"`
	ReadyForDesignAt   *time.Time     `json:"readyForDesignAt,omitempty"`
	Activity           []Activity     `json:"activity,omitempty"`
	Version            int64          `json:"version"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// Activity is one entry of the append-only project log.
type Activity struct {
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

// Onboarding keys with fixed meaning inside OnboardingData.
const (
	OnboardingComplete    = "isComplete"
	OnboardingSubmittedAt = "submittedAt"
)

// OnboardingDone reports whether the intake form was submitted.
func (p Project) OnboardingDone() bool {
	done, _ := p.OnboardingData[OnboardingComplete].(bool)
	return done
}

// NormalizeID returns the canonical upper-cased form of a project id.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
