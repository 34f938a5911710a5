package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/restsql/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit       int
	Fingerprint string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently executed queries",
		Long: `List queries recorded in the history database (history.path in
restsql.yaml), newest first.

Examples:
  restsql history
  restsql history --limit 50 --format json
  restsql history --fingerprint 3f2a...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "maximum entries (default history.limit)")
	cmd.Flags().StringVar(&opts.Fingerprint, "fingerprint", "", "only queries with this fingerprint")

	return cmd
}

// openHistory opens the configured history database.
func openHistory(opts *RootOptions, f *OutputFormatter) (*store.Store, int, error) {
	cfg, err := loadConfig(opts, f)
	if err != nil {
		return nil, 0, err
	}
	if cfg.History.Path == "" {
		return nil, 0, NewExitError(ExitCommandError, "query history is disabled: set history.path in restsql.yaml")
	}
	st, err := store.Open(cfg.History.Path)
	if err != nil {
		return nil, 0, WrapExitError(ExitCommandError, "failed to open history", err)
	}
	return st, cfg.History.Limit, nil
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	st, defaultLimit, err := openHistory(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer st.Close()

	limit := opts.Limit
	if limit == 0 {
		limit = defaultLimit
	}

	var entries []store.Entry
	if opts.Fingerprint != "" {
		entries, err = st.ByFingerprint(cmd.Context(), opts.Fingerprint, limit)
	} else {
		entries, err = st.Recent(cmd.Context(), limit)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}

	if f.Format == "json" {
		return f.Success("", entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(f.Writer, "No queries recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(f.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tQUERY ID\tSTARTED\tSTATUS\tROWS\tREQUESTS\tDURATION")
	for _, e := range entries {
		status := string(e.Status)
		if e.Status == store.StatusError {
			status = errMark(string(e.ErrorCode))
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%s\n",
			e.Seq, e.QueryID, e.StartedAt.Local().Format(time.DateTime), status, e.Rows, e.Requests, e.Duration)
	}
	return tw.Flush()
}
