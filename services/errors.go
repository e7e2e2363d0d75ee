package services

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes engine errors for the UI layer.
type ErrorKind string

const (
	// KindValidation is raised locally before any network call.
	KindValidation ErrorKind = "VALIDATION"

	// KindConflict means the server refused because production moved on.
	KindConflict ErrorKind = "CONFLICT"

	// KindTransient is a network or timeout failure; nothing was mutated.
	KindTransient ErrorKind = "TRANSIENT"
)

var (
	ErrEmptyReason         = errors.New("cancellation reason is required")
	ErrNonPositiveQty      = errors.New("quantity must be at least 1")
	ErrQtyExceedsMax       = errors.New("quantity exceeds the cancellable amount")
	ErrNonNegativeDelta    = errors.New("decrement delta must be negative")
	ErrLocked              = errors.New("line is locked by the kitchen")
	ErrNotFound            = errors.New("line or order not found")
	ErrAlreadyInProduction = errors.New("cannot cancel, already in production")
	ErrDispatchInFlight    = errors.New("a kitchen notification is already being sent")
	ErrNoActiveOrder       = errors.New("table has no active order")
)

// EngineError carries the kind and the operation that failed.
type EngineError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *EngineError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

func validationError(op string, err error) *EngineError {
	return &EngineError{Kind: KindValidation, Op: op, Err: err}
}

func conflictError(op string, err error) *EngineError {
	return &EngineError{Kind: KindConflict, Op: op, Err: err}
}

func transientError(op string, err error) *EngineError {
	return &EngineError{Kind: KindTransient, Op: op, Err: err}
}

// classify wraps a server-call error with its kind. LOCKED/NOT_FOUND are
// conflicts, everything else (network, timeouts, 5xx) is transient.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return err
	}
	if errors.Is(err, ErrLocked) || errors.Is(err, ErrNotFound) {
		return conflictError(op, err)
	}
	return transientError(op, err)
}

// KindOf returns the kind of err, or "" when err is not an engine error.
func KindOf(err error) ErrorKind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsConflict(err error) bool   { return KindOf(err) == KindConflict }
func IsTransient(err error) bool  { return KindOf(err) == KindTransient }
