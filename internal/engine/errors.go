package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/kobzar/internal/ident"
)

// RuntimeError represents an error detected by the engine itself, as
// opposed to the typed errors of the thread and msg packages that the
// engine returns on behalf of the boundary.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Thread identifies the affected thread, if any.
	Thread ident.Uid

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownThread indicates a uid that names no thread.
	ErrCodeUnknownThread RuntimeErrorCode = "UNKNOWN_THREAD"

	// ErrCodeUnknownResource indicates a snapshot download for an unknown uid.
	ErrCodeUnknownResource RuntimeErrorCode = "UNKNOWN_RESOURCE"

	// ErrCodeNotOwner indicates a control call by a thread that neither owns
	// the target nor is the target.
	ErrCodeNotOwner RuntimeErrorCode = "NOT_OWNER"

	// ErrCodeDuplicateImplementation indicates a second registration of the
	// same interface.
	ErrCodeDuplicateImplementation RuntimeErrorCode = "DUPLICATE_IMPLEMENTATION"

	// ErrCodeStopped indicates the scheduler loop is no longer running.
	ErrCodeStopped RuntimeErrorCode = "ENGINE_STOPPED"

	// ErrCodeCeased is returned to a thread at its confirmation point once
	// its cease request has been confirmed. The body should return.
	ErrCodeCeased RuntimeErrorCode = "THREAD_CEASED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if !e.Thread.IsZero() {
		return fmt.Sprintf("%s: %s (thread=%s)", e.Code, e.Message, e.Thread.Short())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newRuntimeError(code RuntimeErrorCode, thread ident.Uid, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: code, Thread: thread, Message: fmt.Sprintf(format, args...)}
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsUnknownThread reports whether err names a missing thread.
// Uses errors.As to handle wrapped errors.
func IsUnknownThread(err error) bool { return hasCode(err, ErrCodeUnknownThread) }

// IsNotOwner reports whether err is an ownership violation.
func IsNotOwner(err error) bool { return hasCode(err, ErrCodeNotOwner) }

// IsStopped reports whether err was caused by a stopped engine.
func IsStopped(err error) bool { return hasCode(err, ErrCodeStopped) }

// IsCeased reports whether err tells a thread body to return because its
// cease request was confirmed.
func IsCeased(err error) bool { return hasCode(err, ErrCodeCeased) }
