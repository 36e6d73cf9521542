package compiler

import (
	"fmt"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/kobzar/internal/engine"
	"github.com/roach88/kobzar/internal/ident"
	"github.com/roach88/kobzar/internal/thread"
)

// Behaviors the harness and CLI know how to run.
const (
	BehaviorEcho = "echo" // replies to every message with its payload
	BehaviorSink = "sink" // holds a mailbox and never receives
	BehaviorIdle = "idle" // checkpoints until asked to cease
)

// InterfaceSpec is one compiled interface manifest.
type InterfaceSpec struct {
	Name        string
	Interface   ident.Interface
	Purpose     string
	Behavior    string
	Publicity   thread.Publicity
	Accepts     []ident.Interface
	Type        thread.Type
	Performance thread.PerformancePolicy

	// Scenarios lists scenario files exercising the interface, relative
	// to the manifest directory.
	Scenarios []string

	Pos token.Pos
}

// Implementation turns the manifest into an engine registration running body.
func (s *InterfaceSpec) Implementation(body engine.Body) engine.Implementation {
	return engine.Implementation{
		Interface: s.Interface,
		Accepts:   append([]ident.Interface(nil), s.Accepts...),
		Publicity: s.Publicity,
		Body:      body,
	}
}

// Builder returns a thread builder for an instance at path.
func (s *InterfaceSpec) Builder(path ident.LocalPath) *thread.Builder {
	return &thread.Builder{
		Path:        path,
		Type:        s.Type,
		Publicity:   s.Publicity,
		Performance: s.Performance,
		Implements:  s.Interface,
	}
}

// CompileInterface parses a CUE value into an InterfaceSpec.
//
// The CUE value should be the interface struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`interface: Echo: { path: "svc/echo", ... }`)
//	spec, err := CompileInterface(v.LookupPath(cue.ParsePath("interface.Echo")))
func CompileInterface(v cue.Value) (*InterfaceSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &InterfaceSpec{Pos: v.Pos(), Behavior: BehaviorSink}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	pathStr, err := requiredString(v, "path")
	if err != nil {
		return nil, err
	}
	path, err := ident.ParsePath(pathStr)
	if err != nil {
		return nil, fieldError(v, "path", err.Error())
	}

	verStr, err := requiredString(v, "version")
	if err != nil {
		return nil, err
	}
	ver, err := ident.ParseVersion(verStr)
	if err != nil {
		return nil, fieldError(v, "version", err.Error())
	}
	spec.Interface = ident.NewInterface(path, ver)

	if spec.Purpose, err = optionalString(v, "purpose", ""); err != nil {
		return nil, err
	}
	if spec.Behavior, err = optionalString(v, "behavior", BehaviorSink); err != nil {
		return nil, err
	}

	pub, err := optionalString(v, "publicity", "")
	if err != nil {
		return nil, err
	}
	if spec.Publicity, err = thread.ParsePublicity(pub); err != nil {
		return nil, fieldError(v, "publicity", err.Error())
	}

	perf, err := optionalString(v, "performance", "")
	if err != nil {
		return nil, err
	}
	if spec.Performance, err = thread.ParsePerformancePolicy(perf); err != nil {
		return nil, fieldError(v, "performance", err.Error())
	}

	if spec.Accepts, err = parseAccepts(v); err != nil {
		return nil, err
	}
	if spec.Type, err = parseThreadType(v); err != nil {
		return nil, err
	}
	if spec.Scenarios, err = parseStringList(v, "scenarios"); err != nil {
		return nil, err
	}

	return spec, nil
}

func parseAccepts(v cue.Value) ([]ident.Interface, error) {
	acceptsVal := v.LookupPath(cue.ParsePath("accepts"))
	if !acceptsVal.Exists() {
		return nil, nil
	}

	iter, err := acceptsVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "accepts",
			Message: "accepts must be a list of \"path@version\" strings",
			Pos:     acceptsVal.Pos(),
		}
	}

	var out []ident.Interface
	for i := 0; iter.Next(); i++ {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		iface, err := ident.ParseInterface(s)
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("accepts[%d]", i),
				Message: err.Error(),
				Pos:     iter.Value().Pos(),
			}
		}
		out = append(out, iface)
	}
	return out, nil
}

func parseStringList(v cue.Value, field string) ([]string, error) {
	lv := v.LookupPath(cue.ParsePath(field))
	if !lv.Exists() {
		return nil, nil
	}
	iter, err := lv.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: field + " must be a list of strings", Pos: lv.Pos()}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// parseThreadType reads the optional thread block. Durations are integer
// milliseconds; priority and probability are integer percentages.
func parseThreadType(v cue.Value) (thread.Type, error) {
	tv := v.LookupPath(cue.ParsePath("thread"))
	if !tv.Exists() {
		return thread.Parallel(), nil
	}

	kind, err := optionalString(tv, "kind", "parallel")
	if err != nil {
		return thread.Type{}, err
	}

	estimate, err := optionalInt(tv, "estimate_ms")
	if err != nil {
		return thread.Type{}, err
	}
	margin, err := optionalInt(tv, "margin_ms")
	if err != nil {
		return thread.Type{}, err
	}
	priority, err := optionalInt(tv, "priority_pct")
	if err != nil {
		return thread.Type{}, err
	}
	detail := thread.TaskDetail{
		EstimateLeft: time.Duration(estimate) * time.Millisecond,
		Margin:       time.Duration(margin) * time.Millisecond,
		Priority:     thread.Priority(priority) / 100,
	}

	switch kind {
	case "parallel":
		return thread.Parallel(), nil
	case "timer_task":
		return thread.TimerTask(detail), nil
	case "caching_task":
		prob, err := optionalInt(tv, "probability_pct")
		if err != nil {
			return thread.Type{}, err
		}
		untilStr, err := requiredString(tv, "until")
		if err != nil {
			return thread.Type{}, err
		}
		until, err := time.Parse(time.RFC3339, untilStr)
		if err != nil {
			return thread.Type{}, fieldError(tv, "until", "until must be an RFC 3339 timestamp")
		}
		return thread.CachingTask(detail, float32(prob)/100, until), nil
	}
	return thread.Type{}, fieldError(tv, "kind",
		fmt.Sprintf("unknown thread kind %q, must be \"parallel\", \"timer_task\", or \"caching_task\"", kind))
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field, def string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return def, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// optionalInt rejects floats so manifests stay exact.
func optionalInt(v cue.Value, field string) (int64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, nil
	}
	if fv.IncompleteKind() == cue.FloatKind {
		return 0, &CompileError{
			Field:   field,
			Message: "float values are not allowed, use int",
			Pos:     fv.Pos(),
		}
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

func fieldError(v cue.Value, field, message string) *CompileError {
	pos := v.Pos()
	if fv := v.LookupPath(cue.ParsePath(field)); fv.Exists() {
		pos = fv.Pos()
	}
	return &CompileError{Field: field, Message: message, Pos: pos}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError converts a CUE error into a CompileError carrying the
// position of its first error.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
