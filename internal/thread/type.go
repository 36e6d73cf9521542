package thread

import (
	"fmt"
	"math"
	"time"
)

// Priority is the relative importance of a task among tasks of the same type.
type Priority = float32

// TaskDetail tells the scheduler how and when to run a task.
type TaskDetail struct {
	// EstimateLeft is the expected remaining run time. It goes negative
	// once the task overruns its estimate.
	EstimateLeft time.Duration
	Margin       time.Duration
	Priority     Priority
}

// Kind enumerates the thread types.
type Kind uint8

const (
	KindParallel Kind = iota
	KindTimerTask
	KindCachingTask
)

func (k Kind) String() string {
	switch k {
	case KindParallel:
		return "parallel"
	case KindTimerTask:
		return "timer_task"
	case KindCachingTask:
		return "caching_task"
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Type is a thread type with the scheduling data that goes with it.
// The zero value is a Parallel thread.
type Type struct {
	Kind   Kind
	Detail TaskDetail

	// Probability and Until are used by caching tasks only.
	Probability float32
	Until       time.Time
}

// Parallel is an ordinary thread running alongside others.
func Parallel() Type {
	return Type{Kind: KindParallel}
}

// TimerTask is a task with an execution time estimate.
func TimerTask(d TaskDetail) Type {
	return Type{Kind: KindTimerTask, Detail: d}
}

// CachingTask is opportunistic work run when the system would otherwise be
// idle. probability estimates how likely the cached data is needed; until is
// the network time the data should stay cached.
func CachingTask(basic TaskDetail, probability float32, until time.Time) Type {
	return Type{Kind: KindCachingTask, Detail: basic, Probability: probability, Until: until}
}

// Validate checks the type's invariants.
func (t Type) Validate() error {
	switch t.Kind {
	case KindParallel, KindTimerTask:
		return nil
	case KindCachingTask:
		if math.IsNaN(float64(t.Probability)) || t.Probability < 0 || t.Probability > 1 {
			return fmt.Errorf("%w: caching probability %v outside [0, 1]", ErrInvalidType, t.Probability)
		}
		if t.Until.IsZero() {
			return fmt.Errorf("%w: caching task without deadline", ErrInvalidType)
		}
		return nil
	}
	return fmt.Errorf("%w: kind %d", ErrInvalidType, t.Kind)
}

func (t Type) String() string {
	switch t.Kind {
	case KindTimerTask:
		return fmt.Sprintf("timer_task(estimate=%s, margin=%s, priority=%g)",
			t.Detail.EstimateLeft, t.Detail.Margin, t.Detail.Priority)
	case KindCachingTask:
		return fmt.Sprintf("caching_task(p=%g, until=%s)", t.Probability, t.Until.Format(time.RFC3339))
	}
	return t.Kind.String()
}
