// Package repository defines the error taxonomy shared by every layer and
// the key-value backed repositories for projects and credentials.  The
// sentinel values let handlers distinguish failure classes with errors.Is
// and translate them into stable API codes.
package repository

import (
	"errors"

	"github.com/iliyamo/project-portal/internal/kv"
)

// ErrNotFound is returned for an unknown project or token.
var ErrNotFound = errors.New("not found")

// ErrUnauthorized is returned for a wrong password or a bad shared secret.
var ErrUnauthorized = errors.New("unauthorized")

// ErrConflict is returned when an operation does not apply to the current
// state (wrong phase, duplicate id) or a concurrent writer won an update.
var ErrConflict = errors.New("conflict")

// ErrExpired is returned for a token that exists but is past its expiry.
var ErrExpired = errors.New("expired")

// ErrAlreadyUsed is returned when a single-use token is replayed.
var ErrAlreadyUsed = errors.New("already used")

// ErrUnavailable is returned when the store cannot be reached.  It is the
// same value the kv package wraps transport failures with.
var ErrUnavailable = kv.ErrUnavailable

// ErrValidation is returned when a required field is missing or malformed.
var ErrValidation = errors.New("invalid input")

// ErrorCode is the stable, client-visible name of an error class.
type ErrorCode string

const (
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	CodeConflict     ErrorCode = "CONFLICT"
	CodeExpired      ErrorCode = "EXPIRED"
	CodeAlreadyUsed  ErrorCode = "ALREADY_USED"
	CodeUnavailable  ErrorCode = "SERVICE_UNAVAILABLE"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	CodeInternal     ErrorCode = "INTERNAL_ERROR"
)

// Code classifies err.  Unknown errors are CodeInternal.
func Code(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, kv.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrConflict), errors.Is(err, kv.ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrExpired):
		return CodeExpired
	case errors.Is(err, ErrAlreadyUsed):
		return CodeAlreadyUsed
	case errors.Is(err, ErrUnavailable):
		return CodeUnavailable
	case errors.Is(err, ErrValidation):
		return CodeInvalidInput
	}
	return CodeInternal
}
