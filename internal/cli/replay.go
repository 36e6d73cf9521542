package cli

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/kobzar/internal/harness"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Specs []string
	Runs  int
}

// ReplayResult holds the outcome of repeated runs of one scenario.
type ReplayResult struct {
	Scenario      string   `json:"scenario"`
	Runs          int      `json:"runs"`
	Events        int      `json:"events"`
	Deterministic bool     `json:"deterministic"`
	Diverged      int      `json:"diverged_run,omitempty"` // first run that differed, 1-based
	Expected      []string `json:"expected,omitempty"`
	Actual        []string `json:"actual,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Run a scenario repeatedly and verify determinism",
		Long: `Run the same scenario on fresh engines several times and compare
the trace snapshots. Uids, thread states and deliveries must be identical
on every run.

Exit codes:
  0 - All runs produced the same trace
  1 - Determinism verification failed (differences detected)
  2 - Command error (scenario not found, etc.)

Examples:
  kobzar replay ./scenarios/echo.yaml
  kobzar replay ./scenarios/echo.yaml --runs 10 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Specs, "specs", nil, "extra manifest directories")
	cmd.Flags().IntVar(&opts.Runs, "runs", 2, "number of runs to compare (at least 2)")

	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	if opts.Runs < 2 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--runs must be at least 2, got %d", opts.Runs))
	}

	cfg, err := opts.engineConfig()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	formatter := newFormatter(opts.RootOptions, cmd)
	result := ReplayResult{Runs: opts.Runs, Deterministic: true}

	var first harness.TraceSnapshot
	var firstBytes []byte
	for run := 1; run <= opts.Runs; run++ {
		scenario, err := harness.LoadScenarioWithBasePath(path, filepath.Dir(path))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load scenario", err)
		}
		result.Scenario = scenario.Name

		res, err := harness.RunWithOptions(ctx, scenario, harness.Options{Config: cfg, Specs: opts.Specs})
		if err != nil {
			return WrapExitError(ExitCommandError, "scenario could not run", err)
		}

		snapshot := harness.NewTraceSnapshot(scenario.Name, res)
		data, err := snapshot.Marshal()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to marshal trace", err)
		}
		formatter.VerboseLog("run %d: %d event(s)", run, len(snapshot.Events))

		if run == 1 {
			first, firstBytes = snapshot, data
			result.Events = len(snapshot.Events)
			continue
		}
		if !bytes.Equal(firstBytes, data) {
			result.Deterministic = false
			result.Diverged = run
			result.Expected = first.Events
			result.Actual = snapshot.Events
			break
		}
	}

	var failure *CLIError
	if !result.Deterministic {
		failure = &CLIError{
			Code:    "E_NONDETERMINISTIC",
			Message: fmt.Sprintf("run %d differs from run 1", result.Diverged),
		}
	}
	if err := formatter.Report(result, failure, func(w io.Writer) {
		writeReplayText(w, result)
	}); err != nil {
		return err
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

func writeReplayText(w io.Writer, r ReplayResult) {
	fmt.Fprintf(w, "Scenario: %s (%d runs, %d events)\n", r.Scenario, r.Runs, r.Events)
	if r.Deterministic {
		fmt.Fprintln(w, "✓ All runs deterministic")
		return
	}

	fmt.Fprintf(w, "✗ Run %d diverged\n", r.Diverged)
	n := max(len(r.Expected), len(r.Actual))
	for i := 0; i < n; i++ {
		var want, got string
		if i < len(r.Expected) {
			want = r.Expected[i]
		}
		if i < len(r.Actual) {
			got = r.Actual[i]
		}
		if want != got {
			fmt.Fprintf(w, "  event %d: expected %q, got %q\n", i, want, got)
		}
	}
}
