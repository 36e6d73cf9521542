package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/kobzar/internal/ident"
)

// Validation error codes (E100-E199)
const (
	ErrPurposeEmpty       = "E101" // purpose is required
	ErrUnknownBehavior    = "E102" // behavior is not one of Behaviors
	ErrDuplicateInterface = "E103" // two manifests implement the same interface
	ErrSelfAccept         = "E104" // accepts lists the implemented interface
	ErrDuplicateAccept    = "E105" // accepts lists an interface twice
	ErrInvalidThreadType  = "E106" // thread block fails type validation
)

// Behaviors lists the behavior names a manifest may use.
var Behaviors = []string{BehaviorEcho, BehaviorSink, BehaviorIdle}

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks one compiled manifest.
// Returns all errors found (does not fail-fast).
func Validate(spec *InterfaceSpec) []ValidationError {
	var errs []ValidationError
	line := 0
	if spec.Pos.IsValid() {
		line = spec.Pos.Line()
	}

	// E101: purpose is required
	if strings.TrimSpace(spec.Purpose) == "" {
		errs = append(errs, ValidationError{
			Field:   "purpose",
			Message: "purpose is required and must be non-empty",
			Code:    ErrPurposeEmpty,
			Line:    line,
		})
	}

	// E102: behavior must be known
	if !slices.Contains(Behaviors, spec.Behavior) {
		errs = append(errs, ValidationError{
			Field:   "behavior",
			Message: fmt.Sprintf("unknown behavior %q, must be one of %s", spec.Behavior, strings.Join(Behaviors, ", ")),
			Code:    ErrUnknownBehavior,
			Line:    line,
		})
	}

	seen := make(map[ident.Interface]bool)
	for i, a := range spec.Accepts {
		// E104: accepting the implemented interface is redundant
		if a == spec.Interface {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("accepts[%d]", i),
				Message: fmt.Sprintf("%s is the implemented interface", a),
				Code:    ErrSelfAccept,
				Line:    line,
			})
		}
		// E105: duplicate accepted interface
		if seen[a] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("accepts[%d]", i),
				Message: fmt.Sprintf("duplicate accepted interface: %s", a),
				Code:    ErrDuplicateAccept,
				Line:    line,
			})
		}
		seen[a] = true
	}

	// E106: thread type invariants
	if err := spec.Type.Validate(); err != nil {
		errs = append(errs, ValidationError{
			Field:   "thread",
			Message: err.Error(),
			Code:    ErrInvalidThreadType,
			Line:    line,
		})
	}

	return errs
}

// ValidateAll checks every manifest and the set as a whole.
func ValidateAll(specs []*InterfaceSpec) []ValidationError {
	var errs []ValidationError
	byIface := make(map[ident.Interface]string)

	for _, spec := range specs {
		for _, e := range Validate(spec) {
			e.Field = spec.Name + "." + e.Field
			errs = append(errs, e)
		}

		// E103: one implementation per interface
		if prev, ok := byIface[spec.Interface]; ok {
			line := 0
			if spec.Pos.IsValid() {
				line = spec.Pos.Line()
			}
			errs = append(errs, ValidationError{
				Field:   spec.Name,
				Message: fmt.Sprintf("interface %s already implemented by %s", spec.Interface, prev),
				Code:    ErrDuplicateInterface,
				Line:    line,
			})
			continue
		}
		byIface[spec.Interface] = spec.Name
	}

	return errs
}
