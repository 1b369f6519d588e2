// Package apperr defines the error kinds shared by the synchronization
// engine and its stores.
//
// Every failure surfaced by a store or a component carries one of four
// kinds. Callers test for a kind with errors.Is:
//
//	if errors.Is(err, apperr.ErrPermissionDenied) { ... }
//
// An *Error also unwraps to the underlying driver error, so
// errors.Is(err, redis.Nil) keeps working through the wrapper.
package apperr

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	// ErrTransientIO marks store or network unavailability. Read paths
	// recover by re-subscribing; write paths surface it to the caller.
	ErrTransientIO = errors.New("transient i/o failure")

	// ErrPermissionDenied marks a write rejected by ownership or access
	// rules. It is never retried.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrValidation marks input rejected locally before any I/O.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an operation on a document that no longer exists.
	ErrNotFound = errors.New("not found")
)

// Error is a classified failure. Kind is one of the sentinel kinds above.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Validation returns an ErrValidation error for op.
func Validation(op, msg string) error {
	return &Error{Kind: ErrValidation, Op: op, Err: errors.New(msg)}
}

// PermissionDenied returns an ErrPermissionDenied error for op.
func PermissionDenied(op, msg string) error {
	return &Error{Kind: ErrPermissionDenied, Op: op, Err: errors.New(msg)}
}

// NotFound returns an ErrNotFound error naming the missing document.
func NotFound(op, what string) error {
	return &Error{Kind: ErrNotFound, Op: op, Err: errors.New(what)}
}

// Transient wraps a driver error as ErrTransientIO. A nil err returns nil,
// and an error that already carries a kind is returned unchanged.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	return &Error{Kind: ErrTransientIO, Op: op, Err: err}
}

// KindOf returns the wire name of err's kind, or "" when err is
// unclassified.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransientIO):
		return "transient"
	default:
		return ""
	}
}
