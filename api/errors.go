// File: api/errors.go
//
// Error kinds shared by the pooling core and its collaborators.
// License: Apache-2.0

package api

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the pool surface.
var (
	// ErrPoolExhausted is returned by non-suspending acquires when no slot
	// is free at that instant. Expected and recoverable; the pool never
	// retries on the caller's behalf.
	ErrPoolExhausted = errors.New("pool exhausted")

	// ErrAcquireTimeout is returned by timed acquires on expiry. Pool state
	// is exactly as if the call had not been made.
	ErrAcquireTimeout = errors.New("acquire timeout")

	// ErrConstructionFailed wraps a factory error during pool construction
	// or growth. Construction errors are fatal: no pool is created and no
	// partial growth is applied.
	ErrConstructionFailed = errors.New("pool construction failed")

	// ErrCopyOverflow is returned when an external copy length exceeds the
	// buffer capacity. No partial write is performed.
	ErrCopyOverflow = errors.New("copy exceeds buffer capacity")

	// ErrBufferConsumed is returned when a loaned buffer is used after
	// Freeze or Release.
	ErrBufferConsumed = errors.New("buffer already frozen or released")

	// ErrInvalidArgument covers malformed construction parameters.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ErrorCode classifies structured errors.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeExhausted
	ErrCodeTimeout
	ErrCodeConstruction
	ErrCodeOverflow
	ErrCodeInternal
)

// Error is a structured error carrying a code and free-form context,
// used where a bare sentinel loses too much information (construction
// failures, config validation).
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	wrapped error
}

func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Unwrap exposes the wrapped sentinel for errors.Is.
func (e *Error) Unwrap() error { return e.wrapped }

// NewError creates a structured error wrapping the given sentinel.
func NewError(code ErrorCode, sentinel error, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
		wrapped: sentinel,
	}
}

// WithContext attaches a key/value pair for diagnostics.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
