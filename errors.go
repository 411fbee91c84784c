package sessiongate

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the stable classification of a surfaced failure.
type Kind string

const (
	KindConflict     Kind = "CONFLICT"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindNotFound     Kind = "NOT_FOUND"
	KindValidation   Kind = "VALIDATION"
	KindInternal     Kind = "INTERNAL"
)

// Base sentinels. Every error returned by Engine matches exactly one of
// these with errors.Is.
var (
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is what a CredentialStore returns for a missing user.
	// Engine never surfaces it; a vanished account reads as ErrAccountGone.
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
)

var (
	ErrEmailTaken = fmt.Errorf("%w: email already registered", ErrConflict)

	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	ErrTokenMissing       = fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	ErrTokenInvalid       = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrTokenExpired       = fmt.Errorf("%w: token expired", ErrUnauthorized)
	ErrTokenRevoked       = fmt.Errorf("%w: token revoked", ErrUnauthorized)
	ErrAccountGone        = fmt.Errorf("%w: account no longer exists", ErrUnauthorized)

	ErrCredentialStore = fmt.Errorf("%w: credential store failure", ErrInternal)
	ErrTokenIssue      = fmt.Errorf("%w: token issuance failed", ErrInternal)
	ErrEngineNotReady  = fmt.Errorf("%w: engine not initialized", ErrInternal)
)

// invalidInput builds a validation error whose message is safe to show.
func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidInput):
		return KindValidation
	default:
		return KindInternal
	}
}

// Message returns the client-facing text for err. Token failures share one
// message so callers cannot tell which check rejected them.
func Message(err error) string {
	switch KindOf(err) {
	case "":
		return ""
	case KindConflict:
		return "Email already registered"
	case KindUnauthorized:
		if errors.Is(err, ErrInvalidCredentials) {
			return "Invalid credentials"
		}
		if errors.Is(err, ErrTokenMissing) {
			return "Missing bearer token"
		}
		return "Invalid or expired token"
	case KindNotFound:
		return "Invalid or expired token"
	case KindValidation:
		msg := strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": ")
		if msg == "" || msg == ErrInvalidInput.Error() {
			return "Invalid request"
		}
		return msg
	default:
		return "Internal server error"
	}
}
