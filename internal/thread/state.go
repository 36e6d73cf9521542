package thread

import "fmt"

// State is the lifecycle state of a thread.
type State uint8

const (
	Paused State = iota
	PausedRunRequested
	Running
	RunningPauseRequested
	RunningCeaseRequested
	PausedCeaseRequested
	Ceased
	Killed
)

var stateNames = [...]string{
	Paused:                "paused",
	PausedRunRequested:    "paused_run_requested",
	Running:               "running",
	RunningPauseRequested: "running_pause_requested",
	RunningCeaseRequested: "running_cease_requested",
	PausedCeaseRequested:  "paused_cease_requested",
	Ceased:                "ceased",
	Killed:                "killed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", s)
}

// ParseState is the inverse of State.String.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("thread: unknown state %q", name)
}

func (s State) IsRunning() bool        { return s == Running }
func (s State) IsPaused() bool         { return s == Paused }
func (s State) IsPauseRequested() bool { return s == RunningPauseRequested }
func (s State) IsRunRequested() bool   { return s == PausedRunRequested }
func (s State) IsKilled() bool         { return s == Killed }
func (s State) IsCeased() bool         { return s == Ceased }

func (s State) IsCeaseRequested() bool {
	return s == RunningCeaseRequested || s == PausedCeaseRequested
}

// IsDead reports whether s is terminal.
func (s State) IsDead() bool { return s == Ceased || s == Killed }

// HasPending reports whether s waits for environment confirmation.
func (s State) HasPending() bool {
	return s.IsRunRequested() || s.IsPauseRequested() || s.IsCeaseRequested()
}

// Executing reports whether a thread in state s is allowed to execute
// its body.
func (s State) Executing() bool {
	return s == Running || s == RunningPauseRequested || s == RunningCeaseRequested
}

// Event drives the state machine.
type Event uint8

const (
	EventAllowRun Event = iota + 1
	EventRequestPause
	EventRequestCease
	// EventConfirm is the environment acknowledging the pending request.
	EventConfirm
	EventKill
	// EventExit is the thread body returning on its own.
	EventExit
)

var eventNames = [...]string{
	EventAllowRun:     "allow_run",
	EventRequestPause: "request_pause",
	EventRequestCease: "request_cease",
	EventConfirm:      "confirm",
	EventKill:         "kill",
	EventExit:         "exit",
}

func (e Event) String() string {
	if int(e) < len(eventNames) && eventNames[e] != "" {
		return eventNames[e]
	}
	return fmt.Sprintf("event(%d)", e)
}

// Apply returns the state reached by applying ev to s.
//
// Requests that are already satisfied are no-ops: pausing a paused thread
// or allowing a running thread to run returns s unchanged. A pause request
// withdraws a pending run request and vice versa.
func (s State) Apply(ev Event) (State, error) {
	if s.IsDead() {
		return s, fmt.Errorf("%w: %s on %s", ErrTerminal, ev, s)
	}
	switch ev {
	case EventKill:
		return Killed, nil
	case EventExit:
		return Ceased, nil
	case EventAllowRun:
		switch s {
		case Paused:
			return PausedRunRequested, nil
		case PausedRunRequested, Running:
			return s, nil
		case RunningPauseRequested:
			return Running, nil
		}
	case EventRequestPause:
		switch s {
		case Running:
			return RunningPauseRequested, nil
		case Paused, RunningPauseRequested:
			return s, nil
		case PausedRunRequested:
			return Paused, nil
		}
	case EventRequestCease:
		switch s {
		case Running, RunningPauseRequested:
			return RunningCeaseRequested, nil
		case Paused, PausedRunRequested:
			return PausedCeaseRequested, nil
		case RunningCeaseRequested, PausedCeaseRequested:
			return s, nil
		}
	case EventConfirm:
		switch s {
		case PausedRunRequested:
			return Running, nil
		case RunningPauseRequested:
			return Paused, nil
		case RunningCeaseRequested, PausedCeaseRequested:
			return Ceased, nil
		}
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, s)
}
