package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by adapters when the addressed entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAborted is returned by Run when the context ended before the plan was fully applied.
	ErrAborted = errors.New("reconciliation aborted")

	// ErrDuplicateRecord is returned when a snapshot receives the same identifier twice.
	ErrDuplicateRecord = errors.New("duplicate record")

	// ErrUnsupported is returned by adapters for operations the side cannot perform.
	ErrUnsupported = errors.New("unsupported operation")
)

// Failure reason codes.
const (
	ReasonFailed      = "failed"
	ReasonConflict    = "conflict"
	ReasonUnsupported = "unsupported"
)

// FetchError reports a failed snapshot load. It is fatal for the whole run.
type FetchError struct {
	// Adapter is the name of the adapter whose load failed.
	Adapter string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("load %s snapshot: %v", e.Adapter, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ConflictError is raised by adapters when the target rejects an operation because the
// entity already exists in an unexpected state.
type ConflictError struct {
	Kind Kind
	ID   string
	Err  error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s conflicts with existing entity: %v", e.Kind, e.ID, e.Err)
	}
	return fmt.Sprintf("%s %s conflicts with existing entity", e.Kind, e.ID)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// OpError reports a single failed operation. It never escapes the executor; it is recorded
// in the report instead.
type OpError struct {
	Op     OpType
	Kind   Kind
	ID     string
	Reason string
	Err    error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Op, e.Kind, e.ID, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// newOpError classifies an adapter error into an OpError with a reason code.
func newOpError(op Operation, err error) *OpError {
	reason := ReasonFailed
	var conflict *ConflictError
	switch {
	case errors.As(err, &conflict):
		reason = ReasonConflict
	case errors.Is(err, ErrUnsupported):
		reason = ReasonUnsupported
	}
	return &OpError{Op: op.Type, Kind: op.Kind, ID: op.ID, Reason: reason, Err: err}
}
