package orchestrator

import (
	"errors"
)

// GuardError reports an attempted transition whose guard is false. Handled
// locally: no state change, no network call.
type GuardError struct {
	Reason string
}

func (e *GuardError) Error() string {
	return "guard violation: " + e.Reason
}

func guardf(reason string) error {
	return &GuardError{Reason: reason}
}

// IsGuardViolation reports whether err is a guard violation.
func IsGuardViolation(err error) bool {
	var ge *GuardError
	return errors.As(err, &ge)
}

// ErrSessionReset is returned when an operation's result arrived after the
// session was reset. The late result is discarded, never applied.
var ErrSessionReset = errors.New("session was reset during operation")

// ErrSynthesisPending is returned when a feedback synthesis request for the
// conversation is already in flight.
var ErrSynthesisPending = errors.New("feedback synthesis already in flight")
