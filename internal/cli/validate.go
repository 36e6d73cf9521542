package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/kobzar/internal/compiler"
	"github.com/roach88/kobzar/internal/harness"
)

// ErrCodeConformance marks a manifest whose listed scenarios fail.
const ErrCodeConformance = "E_CONFORMANCE"

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Conformance bool // run the scenarios each manifest lists
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                       `json:"valid"`
	Interfaces []InterfaceSummary         `json:"interfaces,omitempty"`
	Errors     []compiler.ValidationError `json:"errors,omitempty"`

	Conformance *harness.ConformanceResult `json:"conformance,omitempty"`
}

// InterfaceSummary describes one compiled manifest.
type InterfaceSummary struct {
	Name      string   `json:"name"`
	Interface string   `json:"interface"`
	Behavior  string   `json:"behavior"`
	Publicity string   `json:"publicity"`
	Accepts   []string `json:"accepts,omitempty"`
	Thread    string   `json:"thread"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Compile and check interface manifests",
		Long: `Compile every CUE interface manifest in a directory and check it.

All manifests are compiled even after a failure so every problem is
reported in one pass. With --conformance, the scenarios each manifest
lists under "scenarios" are run as well, once the manifests are valid.

Exit codes:
  0 - All manifests valid
  1 - One or more manifests invalid
  2 - Command error (directory not found, no CUE files, etc.)

Examples:
  kobzar validate ./specs
  kobzar validate ./specs --conformance --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Conformance, "conformance", false, "also run the scenarios each manifest lists")

	return cmd
}

func runValidate(opts *ValidateOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := compiler.LoadDir(specsDir, compiler.LoadModeCollectAll)
	if loadResult == nil {
		code, message := compiler.ErrCodeGeneric, "failed to load specs"
		var loadErr *compiler.LoadError
		if len(loadErrors) > 0 && errors.As(loadErrors[0], &loadErr) {
			code, message = loadErr.Code, loadErr.Message
		} else if len(loadErrors) > 0 {
			message = loadErrors[0].Error()
		}
		_ = formatter.Error(code, message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	validationErrors := loadErrorsToValidation(loadErrors)
	validationErrors = append(validationErrors, compiler.ValidateAll(loadResult.Interfaces)...)

	result := ValidationResult{
		Valid:      len(validationErrors) == 0,
		Interfaces: summarize(loadResult.Interfaces),
		Errors:     validationErrors,
	}
	for _, s := range result.Interfaces {
		formatter.VerboseLog("Compiled %s (%s)", s.Name, s.Interface)
	}

	if result.Valid && opts.Conformance {
		ctx, stop := signalContext(cmd)
		defer stop()

		conf, err := harness.ValidateConformance(ctx, loadResult.Interfaces, specsDir)
		if err != nil {
			return WrapExitError(ExitCommandError, "conformance run failed", err)
		}
		formatter.VerboseLog("Ran %d scenario(s): %d passed, %d failed", conf.TotalScenarios, conf.Passed, conf.Failed)
		result.Conformance = conf
		validationErrors = conformanceErrors(conf)
		result.Errors = validationErrors
		result.Valid = len(validationErrors) == 0
	}

	if result.Valid {
		return formatter.Report(result, nil, func(w io.Writer) {
			fmt.Fprintf(w, "✓ All specs valid (%d interface(s))\n", len(result.Interfaces))
			if c := result.Conformance; c != nil {
				fmt.Fprintf(w, "✓ Conformance: %d scenario(s) passed, %d interface(s) without scenarios\n", c.Passed, c.Skipped)
			}
		})
	}

	failure := &CLIError{Code: validationErrors[0].Code, Message: validationErrors[0].Message}
	if err := formatter.Report(result, failure, func(w io.Writer) {
		writeValidationErrors(w, validationErrors)
	}); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(validationErrors)))
}

// loadErrorsToValidation converts loader errors to validation errors.
func loadErrorsToValidation(errs []error) []compiler.ValidationError {
	var out []compiler.ValidationError
	for _, err := range errs {
		var loadErr *compiler.LoadError
		if !errors.As(err, &loadErr) {
			out = append(out, compiler.ValidationError{Field: "load", Message: err.Error(), Code: compiler.ErrCodeGeneric})
			continue
		}
		line := 0
		if loadErr.Pos.IsValid() {
			line = loadErr.Pos.Line()
		}
		out = append(out, compiler.ValidationError{
			Field:   "load",
			Message: loadErr.Message,
			Code:    loadErr.Code,
			Line:    line,
		})
	}
	return out
}

// conformanceErrors reports each failed scenario against its interface.
func conformanceErrors(c *harness.ConformanceResult) []compiler.ValidationError {
	var out []compiler.ValidationError
	for _, f := range c.Failures {
		field := f.Interface
		if f.ScenarioPath != "" {
			field += ".scenarios"
		}
		out = append(out, compiler.ValidationError{
			Field:   field,
			Message: f.Error,
			Code:    ErrCodeConformance,
		})
	}
	return out
}

func summarize(specs []*compiler.InterfaceSpec) []InterfaceSummary {
	out := make([]InterfaceSummary, 0, len(specs))
	for _, s := range specs {
		accepts := make([]string, len(s.Accepts))
		for i, a := range s.Accepts {
			accepts[i] = a.String()
		}
		out = append(out, InterfaceSummary{
			Name:      s.Name,
			Interface: s.Interface.String(),
			Behavior:  s.Behavior,
			Publicity: s.Publicity.String(),
			Accepts:   accepts,
			Thread:    s.Type.Kind.String(),
		})
	}
	return out
}

func writeValidationErrors(w io.Writer, errs []compiler.ValidationError) {
	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(w, "line %d\n", err.Line)
		}
		fmt.Fprintf(w, "  %s: %s\n\n", err.Code, err.Message)
	}
}
