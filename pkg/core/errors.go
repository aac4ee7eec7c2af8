package core

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
)

var (
	// ErrInvalidName is returned when a routine name fails validation.
	ErrInvalidName = errors.New("invalid query name")

	// ErrInvalidPage is returned for a negative page index or non-positive page size.
	ErrInvalidPage = errors.New("invalid page window")

	// ErrUnsupported is returned when a dialect has no way to run a mode.
	ErrUnsupported = errors.New("operation not supported by dialect")

	// ErrStreamConsumed is returned when a single-pass stream is enumerated again.
	ErrStreamConsumed = errors.New("stream already consumed")

	// ErrEmptyBatch is returned when Batch receives no entries.
	ErrEmptyBatch = errors.New("batch has no entries")

	// ErrEmptyTable is returned when a bulk load payload has no columns.
	ErrEmptyTable = errors.New("table has no columns")

	ErrMissingServer   = errors.New("server name cannot be empty")
	ErrMissingDatabase = errors.New("database name cannot be empty")
	ErrMissingUser     = errors.New("username cannot be empty")
	ErrMissingPassword = errors.New("password cannot be empty")
)

// ErrorKind is the failure taxonomy shared by every execution mode.
type ErrorKind int

const (
	// KindValidation is a malformed routine name, page window or config.
	KindValidation ErrorKind = iota + 1
	// KindConnection is an open/close failure or misuse of the handle.
	KindConnection
	// KindCommand is an execution-time driver failure.
	KindCommand
	// KindTransient is a command failure the dialect considers retryable.
	KindTransient
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConnection:
		return "connection"
	case KindCommand:
		return "command"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error is the single failure shape returned by the access layer. It keeps
// the original cause reachable through errors.Is and errors.As.
type Error struct {
	Kind  ErrorKind
	Op    string
	Query string
	Err   error
}

// NewError builds an *Error.
func NewError(kind ErrorKind, op, query string, err error) *Error {
	return &Error{Kind: kind, Op: op, Query: query, Err: err}
}

func (e *Error) Error() string {
	if e.Query != "" {
		return fmt.Sprintf("%s %s error (%s): %v", e.Op, e.Kind, e.Query, e.Err)
	}
	return fmt.Sprintf("%s %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind carried by err, or zero if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsConnection reports whether err is a connection failure.
func IsConnection(err error) bool { return KindOf(err) == KindConnection }

// IsTransient reports whether err was classified as transient.
func IsTransient(err error) bool { return KindOf(err) == KindTransient }

// IsCommand reports whether err is a command failure. Transient failures are
// command failures too.
func IsCommand(err error) bool {
	k := KindOf(err)
	return k == KindCommand || k == KindTransient
}

// TransientCause reports the engine-independent transient conditions: a
// broken driver connection or an expired deadline.
func TransientCause(err error) bool {
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded)
}

// ClassifyError wraps a driver error for op, choosing KindTransient when the
// dialect recognizes it. Errors that already carry a kind are returned as is.
func ClassifyError(d Dialect, op, query string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if TransientCause(err) || (d != nil && d.IsTransient(err)) {
		return NewError(KindTransient, op, query, err)
	}
	return NewError(KindCommand, op, query, err)
}
