package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for the matching/messaging core. Services return these (possibly
// wrapped); the HTTP layer maps them to status codes in one place.
var (
	// ErrAuthenticationRequired means no actor could be resolved for the request.
	// Fatal to the calling operation; the client must re-authenticate.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrInvalidOperation marks a malformed request, e.g. deciding on yourself.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrDuplicateDecision signals an already-recorded decision for the same
	// actor/target pair. Benign: the protocol layer swallows it.
	ErrDuplicateDecision = errors.New("duplicate decision")

	// ErrNotAParticipant means the caller is not one of the match's two parties.
	ErrNotAParticipant = errors.New("not a participant of this match")

	// ErrMatchInactive means the match has been deactivated by an unmatch.
	ErrMatchInactive = errors.New("match is no longer active")

	// ErrNotFound is the generic missing-record error.
	ErrNotFound = errors.New("not found")
)

// transientError wraps a storage/network hiccup that is safe to retry.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return "transient: " + e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err (or anything it wraps) is retryable.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// Invalid builds an ErrInvalidOperation with a caller-facing reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOperation, fmt.Sprintf(format, args...))
}
