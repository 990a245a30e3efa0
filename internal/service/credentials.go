package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/project-portal/internal/model"
	"github.com/iliyamo/project-portal/internal/queue"
	"github.com/iliyamo/project-portal/internal/repository"
	"github.com/iliyamo/project-portal/internal/utils"
)

// Token lifetimes.
const (
	ResetTTL        = time.Hour
	MagicTokenTTL   = 7 * 24 * time.Hour
	MagicSessionTTL = 5 * time.Minute
)

const tokenBytes = 32

// CredentialService owns project passwords and the reset, magic-link and
// magic-session token families.
type CredentialService struct {
	Projects *repository.ProjectRepo
	Creds    *repository.CredentialRepo
	Hasher   utils.PasswordHasher
	Dispatch *Dispatcher
	Now      func() time.Time

	// PublicBaseURL is where this API is reachable; magic links point here.
	PublicBaseURL string
	// PortalURL is the customer-facing frontend; reset links point here.
	PortalURL     string
}

func NewCredentialService(projects *repository.ProjectRepo, creds *repository.CredentialRepo, hasher utils.PasswordHasher, d *Dispatcher) *CredentialService {
	return &CredentialService{
		Projects: projects,
		Creds:    creds,
		Hasher:   hasher,
		Dispatch: d,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// HashPassword derives a digest for storage.
func (s *CredentialService) HashPassword(plain string) (string, error) {
	return s.Hasher.Hash(plain)
}

// VerifyPassword checks plain against the project's stored digest.  A
// project with no stored digest is open: any password is granted.  An
// unknown project is never granted.  Digests in an older format are
// upgraded after a successful match.
func (s *CredentialService) VerifyPassword(ctx context.Context, projectID, plain string) (bool, error) {
	p, err := s.Projects.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrValidation) {
			return false, nil
		}
		return false, err
	}
	digest, err := s.Creds.PasswordHash(ctx, p.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	ok, rehash := s.Hasher.Verify(digest, plain)
	if ok && rehash {
		if fresh, err := s.Hasher.Hash(plain); err == nil {
			if err := s.Creds.StorePasswordHash(ctx, p.ID, fresh); err != nil {
				log.Printf("credentials: upgrade digest for %s: %v", p.ID, err)
			}
		}
	}
	return ok, nil
}

// HasPassword reports whether the project is password protected.
func (s *CredentialService) HasPassword(ctx context.Context, projectID string) (bool, error) {
	_, err := s.Creds.PasswordHash(ctx, model.NormalizeID(projectID))
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// SetPassword stores a new password for an existing project.
func (s *CredentialService) SetPassword(ctx context.Context, projectID, plain string) error {
	if strings.TrimSpace(plain) == "" {
		return fmt.Errorf("%w: password required", repository.ErrValidation)
	}
	p, err := s.Projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	digest, err := s.Hasher.Hash(plain)
	if err != nil {
		return err
	}
	return s.Creds.StorePasswordHash(ctx, p.ID, digest)
}

// ClearPassword removes the project's password, reopening it.
func (s *CredentialService) ClearPassword(ctx context.Context, projectID string) error {
	p, err := s.Projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	return s.Creds.DeletePasswordHash(ctx, p.ID)
}

// IssueResetToken creates a reset token and mails it when the project
// exists and its customer email matches.  In every other case it returns
// an empty token and a nil error, so callers cannot tell whether an email
// is registered.  Only store failures are reported.
func (s *CredentialService) IssueResetToken(ctx context.Context, projectID, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", nil
	}
	p, err := s.Projects.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrUnavailable) {
			return "", err
		}
		return "", nil
	}
	if !strings.EqualFold(strings.TrimSpace(p.Customer.Email), email) {
		return "", nil
	}

	raw, err := utils.NewToken(tokenBytes)
	if err != nil {
		return "", err
	}
	rec := model.ResetToken{ProjectID: p.ID, Email: p.Customer.Email, ExpiresAt: s.Now().Add(ResetTTL)}
	if err := s.Creds.StoreReset(ctx, utils.HashToken(raw), rec, ResetTTL); err != nil {
		return "", err
	}

	s.Dispatch.Dispatch(queue.NotificationEvent{
		Type:      queue.EventPasswordReset,
		ProjectID: p.ID,
		To:        p.Customer.Email,
		Data:      map[string]string{"url": s.PortalURL + "/reset-password?" + url.Values{"token": {raw}}.Encode()},
	})
	return raw, nil
}

// ConfirmReset consumes a reset token and sets the new password.  The token
// is deleted as soon as it is read, so it is single-use even when it turns
// out to be expired.
func (s *CredentialService) ConfirmReset(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" || strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: token and newPassword required", repository.ErrValidation)
	}
	rec, err := s.Creds.TakeReset(ctx, utils.HashToken(token))
	if err != nil {
		return err
	}
	if !s.Now().Before(rec.ExpiresAt) {
		return fmt.Errorf("%w: reset token expired at %s", repository.ErrExpired, rec.ExpiresAt.Format(time.RFC3339))
	}
	digest, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.Creds.StorePasswordHash(ctx, rec.ProjectID, digest)
}

// IssueMagicLink mints a new magic token for the project and returns the
// link that carries it.  The previous token for the project, if any, stops
// working.
func (s *CredentialService) IssueMagicLink(ctx context.Context, projectID string) (string, error) {
	p, err := s.Projects.Get(ctx, projectID)
	if err != nil {
		return "", err
	}
	raw, err := utils.NewToken(tokenBytes)
	if err != nil {
		return "", err
	}
	if err := s.Creds.StoreMagicToken(ctx, p.ID, utils.HashToken(raw), MagicTokenTTL); err != nil {
		return "", err
	}
	q := url.Values{"token": {raw}, "projectId": {p.ID}}
	return s.PublicBaseURL + "/auth/magic-link/verify?" + q.Encode(), nil
}

// SendMagicLink issues a magic link and mails it to the customer.
func (s *CredentialService) SendMagicLink(ctx context.Context, projectID string) (string, error) {
	link, err := s.IssueMagicLink(ctx, projectID)
	if err != nil {
		return "", err
	}
	p, err := s.Projects.Get(ctx, projectID)
	if err != nil {
		return link, err
	}
	s.Dispatch.Dispatch(queue.NotificationEvent{
		Type:      queue.EventMagicLink,
		ProjectID: p.ID,
		To:        p.Customer.Email,
		Data:      map[string]string{"url": link},
	})
	return link, nil
}

// VerifyMagicLink checks a presented magic token and, on success, returns a
// short-lived single-use session token.  The magic token itself stays valid
// until it expires or is reissued.
func (s *CredentialService) VerifyMagicLink(ctx context.Context, projectID, token string) (string, error) {
	id := model.NormalizeID(projectID)
	token = strings.TrimSpace(token)
	if id == "" || token == "" {
		return "", fmt.Errorf("%w: projectId and token required", repository.ErrValidation)
	}
	stored, err := s.Creds.MagicToken(ctx, id)
	if err != nil {
		return "", err
	}
	if !utils.ConstantTimeEqual(utils.HashToken(token), stored) {
		return "", fmt.Errorf("%w: magic token mismatch", repository.ErrUnauthorized)
	}
	session, err := utils.NewToken(tokenBytes)
	if err != nil {
		return "", err
	}
	if err := s.Creds.StoreMagicSession(ctx, id, utils.HashToken(session), MagicSessionTTL); err != nil {
		return "", err
	}
	return session, nil
}

// VerifyMagicSession consumes a session token.  It succeeds at most once per
// token; any later presentation fails with ErrAlreadyUsed.
func (s *CredentialService) VerifyMagicSession(ctx context.Context, projectID, sessionToken string) error {
	id := model.NormalizeID(projectID)
	sessionToken = strings.TrimSpace(sessionToken)
	if id == "" || sessionToken == "" {
		return fmt.Errorf("%w: projectId and sessionToken required", repository.ErrValidation)
	}
	err := s.Creds.TakeMagicSession(ctx, id, utils.HashToken(sessionToken))
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: session token invalid or already used", repository.ErrAlreadyUsed)
	}
	return err
}
