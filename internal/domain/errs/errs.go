// Package errs defines the error kinds surfaced by the audience engine.
//
// Every kind is a terminal, locally detected condition. Packages wrap a kind
// with detail using fmt.Errorf("%w: ...", errs.ErrX) and callers classify
// with errors.Is. The HTTP layer maps kinds to status codes (see apierr).
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden is an audience/authorization failure: read or write denied.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTarget is a malformed target descriptor.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrNotFound means a referenced entity is absent.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyInvited is a duplicate activation of an event invitation.
	ErrAlreadyInvited = errors.New("already invited")
	// ErrAlreadyMember is a duplicate insertion of a membership row.
	ErrAlreadyMember = errors.New("already a member")
	// ErrNotMember is the precondition failure for leaving, role changes and
	// subscription toggles when no active row exists.
	ErrNotMember = errors.New("not a member")
	// ErrLastAdmin means the operation would leave a group without an active admin.
	ErrLastAdmin = errors.New("last admin")
	// ErrCapacityExceeded means an event has no seats left for another "going" RSVP.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrInvalidInput is a malformed request value (bad role, status, empty title...).
	ErrInvalidInput = errors.New("invalid input")
)

// Forbidden wraps ErrForbidden with a reason.
func Forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

// NotFound wraps ErrNotFound with the missing entity's kind.
func NotFound(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}

// Invalid wraps ErrInvalidInput with a reason.
func Invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}

// Kind returns the sentinel that err wraps, or nil when err is not one of
// the kinds above.
func Kind(err error) error {
	for _, k := range []error{
		ErrForbidden, ErrInvalidTarget, ErrNotFound, ErrAlreadyInvited,
		ErrAlreadyMember, ErrNotMember, ErrLastAdmin, ErrCapacityExceeded,
		ErrInvalidInput,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
