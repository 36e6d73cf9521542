package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/kobzar/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Specs    []string
}

// RunResult is the outcome of one scenario run.
type RunResult struct {
	Scenario string               `json:"scenario"`
	Pass     bool                 `json:"pass"`
	Trace    []harness.TraceEvent `json:"trace"`
	Threads  map[string]string    `json:"threads,omitempty"`
	Errors   []string             `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario on a fresh engine",
		Long: `Start an engine, perform the scenario's steps as the root thread and
print the resulting trace.

Spec directories named in the scenario resolve against the scenario's own
directory. With --db the ledger is kept in a SQLite file, otherwise it
lives in memory.

Exit codes:
  0 - Scenario passed
  1 - Scenario failed
  2 - Command error (scenario not found, bad config, etc.)

Examples:
  kobzar run ./scenarios/echo.yaml
  kobzar run ./scenarios/echo.yaml --specs ./specs --db ./ledger.db
  kobzar run ./scenarios/echo.yaml --config ./engine.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite ledger (default in-memory)")
	cmd.Flags().StringSliceVar(&opts.Specs, "specs", nil, "extra manifest directories")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := opts.engineConfig()
	if err != nil {
		return err
	}

	scenario, err := harness.LoadScenarioWithBasePath(path, filepath.Dir(path))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	formatter.VerboseLog("Loaded scenario %s (%d step(s))", scenario.Name, len(scenario.Steps))

	ctx, stop := signalContext(cmd)
	defer stop()

	slog.Debug("running scenario", "scenario", scenario.Name, "db", opts.Database)
	result, err := harness.RunWithOptions(ctx, scenario, harness.Options{
		StorePath: opts.Database,
		Config:    cfg,
		Specs:     opts.Specs,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario could not run", err)
	}

	out := RunResult{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Trace:    result.Trace,
		Threads:  result.Threads,
		Errors:   result.Errors,
	}

	var failure *CLIError
	if !result.Pass {
		failure = &CLIError{
			Code:    "E_SCENARIO_FAILED",
			Message: fmt.Sprintf("%d expectation(s) failed", len(result.Errors)),
		}
	}
	if err := formatter.Report(out, failure, func(w io.Writer) {
		writeRunText(w, out)
	}); err != nil {
		return err
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

// signalContext returns the command's context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func writeRunText(w io.Writer, r RunResult) {
	fmt.Fprintf(w, "Scenario: %s\n\n", r.Scenario)
	for _, e := range r.Trace {
		fmt.Fprintf(w, "  [%d] %s\n", e.Seq, e.Label())
	}

	if len(r.Threads) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Threads:")
		aliases := make([]string, 0, len(r.Threads))
		for alias := range r.Threads {
			aliases = append(aliases, alias)
		}
		slices.Sort(aliases)
		for _, alias := range aliases {
			fmt.Fprintf(w, "  %s: %s\n", alias, r.Threads[alias])
		}
	}

	fmt.Fprintln(w)
	if r.Pass {
		fmt.Fprintln(w, "✓ Scenario passed")
		return
	}
	fmt.Fprintln(w, "✗ Scenario failed")
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
