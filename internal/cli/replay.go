package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/restsql/internal/store"
)

// ReplayResult compares a recorded query with its re-execution.
type ReplayResult struct {
	QueryID      string       `json:"query_id"`
	ReplayID     string       `json:"replay_id,omitempty"`
	Fingerprint  string       `json:"fingerprint"`
	OriginalRows int          `json:"original_rows"`
	Rows         int          `json:"rows"`
	Status       store.Status `json:"status"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <query-id>",
		Short: "Re-run a query from history",
		Long: `Re-run a recorded query against the current backends and compare the
row count with the recorded run. The replay is recorded as a new entry.

Exit codes:
  0 - Replay succeeded
  1 - Replay failed
  2 - Command error (history disabled, unknown query id)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runReplay(opts *RootOptions, queryID string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	env, err := openEnvironment(cmd.Context(), opts, cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	if env.history == nil {
		return NewExitError(ExitCommandError, "query history is disabled: set history.path in restsql.yaml")
	}
	entry, err := env.history.Get(cmd.Context(), queryID)
	if errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitCommandError, "unknown query", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}
	doc, err := entry.Query()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to decode recorded query", err)
	}

	result := ReplayResult{
		QueryID:      entry.QueryID,
		Fingerprint:  entry.Fingerprint,
		OriginalRows: entry.Rows,
		Status:       store.StatusOK,
	}
	res, err := env.client.Query(cmd.Context(), doc)
	if err != nil {
		_ = f.Error(err)
		return WrapExitError(ExitFailure, "replay failed", err)
	}
	result.ReplayID = res.QueryID
	result.Rows = res.Table.Len()

	if f.Format == "json" {
		return f.Success(res.QueryID, result)
	}
	return f.Done(fmt.Sprintf("replayed %s as %s: %d rows (recorded %d)",
		result.QueryID, result.ReplayID, result.Rows, result.OriginalRows), result)
}
