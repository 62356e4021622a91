// internal/reservation/errors.go
package reservation

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means no caller identity could be resolved.
	ErrUnauthenticated = errors.New("must be signed in")
	// ErrNotAvailable means the item had no copies left at creation time.
	ErrNotAvailable = errors.New("no copies available")
	// ErrNotFound covers both a missing reservation and one owned by someone
	// else; callers cannot tell the two apart.
	ErrNotFound = errors.New("reservation not found")
	// ErrInvalidTransition is the base error for every rejected transition.
	ErrInvalidTransition = errors.New("invalid reservation transition")
	// ErrRateLimited means the caller is creating reservations too fast.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// InvalidTransitionError reports a transition whose status or deadline
// precondition failed. It unwraps to ErrInvalidTransition.
type InvalidTransitionError struct {
	Op       string
	Required Status
	Actual   Status
	Reason   string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s reservation: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("cannot %s reservation: requires status %q, have %q", e.Op, e.Required, e.Actual)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}
