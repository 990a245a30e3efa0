package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/iliyamo/project-portal/internal/kv"
	"github.com/iliyamo/project-portal/internal/model"
)

// CredentialRepo persists password digests and the three token families.
// Tokens are stored by digest only; raw values never reach the store.
type CredentialRepo struct{ kv kv.Store }

func NewCredentialRepo(store kv.Store) *CredentialRepo { return &CredentialRepo{kv: store} }

func passwordKey(projectID string) string { return "project:" + projectID + ":password" }
func resetKey(digest string) string { return "reset:" + digest }
func magicTokenKey(projectID string) string { return "magic_token:" + projectID }
func magicSessionKey(projectID, digest string) string {
	return "magic_session:" + projectID + ":" + digest
}

func notFound(err error) error {
	if errors.Is(err, kv.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// PasswordHash returns the stored digest, or ErrNotFound when the project
// has no password.
func (r *CredentialRepo) PasswordHash(ctx context.Context, projectID string) (string, error) {
	b, err := r.kv.Get(ctx, passwordKey(projectID))
	if err != nil {
		return "", notFound(err)
	}
	return string(b), nil
}

// StorePasswordHash overwrites the project's digest.
func (r *CredentialRepo) StorePasswordHash(ctx context.Context, projectID, digest string) error {
	return r.kv.Set(ctx, passwordKey(projectID), []byte(digest), 0)
}

// DeletePasswordHash removes the digest, reopening password-less access.
func (r *CredentialRepo) DeletePasswordHash(ctx context.Context, projectID string) error {
	return r.kv.Delete(ctx, passwordKey(projectID))
}

// StoreReset saves a reset record keyed by the token digest.
func (r *CredentialRepo) StoreReset(ctx context.Context, digest string, rec model.ResetToken, ttl time.Duration) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.kv.Set(ctx, resetKey(digest), b, ttl)
}

// TakeReset reads and deletes a reset record in one step.
func (r *CredentialRepo) TakeReset(ctx context.Context, digest string) (model.ResetToken, error) {
	var rec model.ResetToken
	b, err := r.kv.Take(ctx, resetKey(digest))
	if err != nil {
		return rec, notFound(err)
	}
	err = json.Unmarshal(b, &rec)
	return rec, err
}

// StoreMagicToken replaces the project's magic token digest; any previous
// token stops working.
func (r *CredentialRepo) StoreMagicToken(ctx context.Context, projectID, digest string, ttl time.Duration) error {
	return r.kv.Set(ctx, magicTokenKey(projectID), []byte(digest), ttl)
}

// MagicToken returns the active magic token digest for a project.
func (r *CredentialRepo) MagicToken(ctx context.Context, projectID string) (string, error) {
	b, err := r.kv.Get(ctx, magicTokenKey(projectID))
	if err != nil {
		return "", notFound(err)
	}
	return string(b), nil
}

// StoreMagicSession saves a single-use session marker.
func (r *CredentialRepo) StoreMagicSession(ctx context.Context, projectID, digest string, ttl time.Duration) error {
	return r.kv.Set(ctx, magicSessionKey(projectID, digest), []byte("1"), ttl)
}

// TakeMagicSession consumes a session marker.  A second call for the same
// digest returns ErrNotFound.
func (r *CredentialRepo) TakeMagicSession(ctx context.Context, projectID, digest string) error {
	_, err := r.kv.Take(ctx, magicSessionKey(projectID, digest))
	return notFound(err)
}
