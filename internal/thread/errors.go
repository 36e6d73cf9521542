package thread

import (
	"errors"
	"fmt"
)

var (
	// ErrTerminal is returned for any event applied to a dead thread.
	ErrTerminal = errors.New("thread: thread is dead")

	// ErrInvalidTransition is returned when an event has no meaning in the
	// current state.
	ErrInvalidTransition = errors.New("thread: invalid transition")

	// ErrInvalidType is returned when a thread type fails validation.
	ErrInvalidType = errors.New("thread: invalid thread type")

	// ErrGuarded is returned by BruteKill when the target holds a kill guard.
	ErrGuarded = errors.New("thread: thread is guarded against kill")

	// ErrNotSelf is returned when anyone but the thread itself toggles its
	// kill guard.
	ErrNotSelf = errors.New("thread: only the thread itself may change its kill guard")
)

// PolicyError reports a refused performance policy change together with the
// most permissive policy the caller is authorized for.
type PolicyError struct {
	Requested     PerformancePolicy
	MostSupported PerformancePolicy
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("thread: performance policy %s not permitted (most supported: %s)",
		e.Requested, e.MostSupported)
}

// BuildErrorCode categorizes thread creation failures.
type BuildErrorCode string

const (
	// ErrCodeCreationNotPermitted means the creator lacks rights for this
	// kind of thread.
	ErrCodeCreationNotPermitted BuildErrorCode = "THREAD_CREATION_NOT_PERMITTED"

	// ErrCodePolicyNotPermitted means the requested performance policy is
	// above what the creator may grant.
	ErrCodePolicyNotPermitted BuildErrorCode = "PERFORMANCE_POLICY_NOT_PERMITTED"

	// ErrCodeNotFound means no implementation exists for the interface.
	ErrCodeNotFound BuildErrorCode = "NOT_FOUND"
)

// BuildError is returned by Builder.Build.
type BuildError struct {
	Code    BuildErrorCode
	Path    string
	Message string

	// MostSupported is set for ErrCodePolicyNotPermitted.
	MostSupported PerformancePolicy
}

func (e *BuildError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "cannot build thread"
	}
	if e.Code == ErrCodePolicyNotPermitted {
		return fmt.Sprintf("%s: %s (path=%s, most_supported=%s)", e.Code, msg, e.Path, e.MostSupported)
	}
	return fmt.Sprintf("%s: %s (path=%s)", e.Code, msg, e.Path)
}

// IsCreationNotPermitted reports whether err is a BuildError refusing
// creation rights.
func IsCreationNotPermitted(err error) bool {
	return buildCode(err) == ErrCodeCreationNotPermitted
}

// IsPolicyNotPermitted reports whether err is a BuildError refusing the
// requested performance policy.
func IsPolicyNotPermitted(err error) bool {
	return buildCode(err) == ErrCodePolicyNotPermitted
}

// IsNotFound reports whether err is a BuildError for a missing
// implementation.
func IsNotFound(err error) bool {
	return buildCode(err) == ErrCodeNotFound
}

func buildCode(err error) BuildErrorCode {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
