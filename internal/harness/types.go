package harness

import "fmt"

// Trace event types.
const (
	TraceTransition = "transition"
	TraceDelivery   = "delivery"
)

// TraceEvent is one engine event with thread uids replaced by aliases.
//
// For transitions From and To are states; for deliveries they are the
// sender and receiver aliases.
type TraceEvent struct {
	Seq       int64  `json:"seq" yaml:"seq"`
	Type      string `json:"type" yaml:"type"`
	Thread    string `json:"thread,omitempty" yaml:"thread,omitempty"`
	Event     string `json:"event,omitempty" yaml:"event,omitempty"`
	From      string `json:"from" yaml:"from"`
	To        string `json:"to" yaml:"to"`
	Interface string `json:"interface,omitempty" yaml:"interface,omitempty"`
	Mode      string `json:"mode,omitempty" yaml:"mode,omitempty"`
	Outcome   string `json:"outcome,omitempty" yaml:"outcome,omitempty"`
}

// Label is the short form assertions match against:
// "echo:running" for a transition, "root->echo:queued" for a delivery.
func (e TraceEvent) Label() string {
	if e.Type == TraceDelivery {
		return fmt.Sprintf("%s->%s:%s", e.From, e.To, e.Outcome)
	}
	return fmt.Sprintf("%s:%s", e.Thread, e.To)
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace contains all transitions and deliveries in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed expectations and assertions.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Threads maps every alias to the thread's final state.
	Threads map[string]string `json:"threads,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Threads: make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Labels returns the label of every trace event.
func (r *Result) Labels() []string {
	out := make([]string, len(r.Trace))
	for i, e := range r.Trace {
		out[i] = e.Label()
	}
	return out
}
