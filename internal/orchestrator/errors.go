package orchestrator

import (
	"errors"
	"fmt"
)

// Kind classifies engine errors so the tool boundary can map them to
// distinct failure modes and callers can decide what is retryable.
type Kind string

const (
	// KindInvalidInput covers malformed or missing request fields.
	KindInvalidInput Kind = "invalid_input"

	// KindUnknownTechnique is returned when a plan names a technique
	// the catalog does not know.
	KindUnknownTechnique Kind = "unknown_technique"

	// KindSessionNotFound is returned when no session exists for the id.
	KindSessionNotFound Kind = "session_not_found"

	// KindStepSequence is returned when the step index is neither the
	// expected next step nor a valid revision. The session is left
	// exactly as it was.
	KindStepSequence Kind = "step_sequence_error"

	// KindPlanMismatch is returned when the caller executes a
	// technique that is not in the session's declared plan.
	KindPlanMismatch Kind = "plan_technique_mismatch"

	// KindPersistence wraps backend errors. Retryable by the caller;
	// the engine never drops a computed record silently.
	KindPersistence Kind = "persistence_failure"

	// KindSessionLocked is returned when another execute is in flight
	// for the same session id. The engine fails fast rather than
	// queueing writers.
	KindSessionLocked Kind = "session_locked"
)

// Error is a structured engine error carrying the failing operation
// and its classification.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError builds a classified error wrapping cause, which may be nil.
func newError(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

func errorf(kind Kind, op, format string, args ...any) *Error {
	return newError(kind, op, fmt.Errorf(format, args...))
}

// KindOf extracts the classification from err, or "" if err is not an
// engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
