package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/kobzar/internal/store"
)

// LedgerOptions holds flags for the ledger command.
type LedgerOptions struct {
	*RootOptions
	Database string
	Thread   string // optional - one thread's transitions and deliveries only
}

// LedgerResult is the content of a ledger database.
type LedgerResult struct {
	Resources   []store.Resource   `json:"resources"`
	Transitions []store.Transition `json:"transitions"`
	Deliveries  []store.Delivery   `json:"deliveries"`
	LastSeq     int64              `json:"last_seq"`
}

// NewLedgerCommand creates the ledger command.
func NewLedgerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LedgerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Print the resources, transitions and deliveries in a ledger",
		Long: `Print what a ledger recorded: every tracked uid with its live
reference count, every thread state transition, and every delivery, in
logical-clock order.

Exit codes:
  0 - Ledger printed
  2 - Command error (database not found, etc.)

Examples:
  kobzar ledger --db ./ledger.db
  kobzar ledger --db ./ledger.db --thread 3f2a... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLedger(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite ledger (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Thread, "thread", "", "show one thread uid only")

	return cmd
}

func runLedger(opts *LedgerOptions, cmd *cobra.Command) error {
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := readLedger(ctx, st, opts.Thread)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read ledger", err)
	}

	formatter := newFormatter(opts.RootOptions, cmd)
	return formatter.Report(result, nil, func(w io.Writer) {
		writeLedgerText(w, result)
	})
}

func readLedger(ctx context.Context, st *store.Store, thread string) (LedgerResult, error) {
	var result LedgerResult
	var err error

	if thread == "" {
		result.Resources, err = st.ReadResources(ctx)
		if err != nil {
			return result, err
		}
	} else {
		r, err := st.ReadResource(ctx, thread)
		if err != nil {
			return result, err
		}
		result.Resources = []store.Resource{r}
	}

	result.Transitions, err = st.ReadTransitions(ctx, thread)
	if err != nil {
		return result, err
	}

	deliveries, err := st.ReadDeliveries(ctx)
	if err != nil {
		return result, err
	}
	result.Deliveries = []store.Delivery{}
	for _, d := range deliveries {
		if thread == "" || d.From == thread || d.To == thread {
			result.Deliveries = append(result.Deliveries, d)
		}
	}

	result.LastSeq, err = st.MaxSeq(ctx)
	return result, err
}

func writeLedgerText(w io.Writer, r LedgerResult) {
	fmt.Fprintf(w, "Resources (%d):\n", len(r.Resources))
	for _, res := range r.Resources {
		fmt.Fprintf(w, "  %s  %-8s live=%d  seq %d..%d\n", truncateID(res.Uid), res.Kind, res.Live, res.FirstSeq, res.LastSeq)
	}

	fmt.Fprintf(w, "\nTransitions (%d):\n", len(r.Transitions))
	for _, tr := range r.Transitions {
		fmt.Fprintf(w, "  [%d] %s %s: %s -> %s\n", tr.Seq, truncateID(tr.Thread), tr.Event, tr.From, tr.To)
	}

	fmt.Fprintf(w, "\nDeliveries (%d):\n", len(r.Deliveries))
	for _, d := range r.Deliveries {
		fmt.Fprintf(w, "  [%d] %s -> %s %s %s (%s)\n", d.Seq, truncateID(d.From), truncateID(d.To), d.Mode, d.Outcome, d.Interface)
	}

	fmt.Fprintf(w, "\nLast seq: %d\n", r.LastSeq)
}

// truncateID shortens a uid for display.
func truncateID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
