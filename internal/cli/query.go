package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [file|-]",
		Short: "Run a query document",
		Long: `Run a JSON query document against the configured backends and print
the resulting records. The document is read from the named file, or from
stdin when the argument is "-" or omitted.

Exit codes:
  0 - Query succeeded
  1 - Query failed (invalid document, unknown column, backend error)
  2 - Command error (config not found, unreadable input)

Examples:
  restsql query orders.json
  echo '{"select":{"from":"db.users","limit":5}}' | restsql query --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, argOrStdin(args), cmd)
		},
	}
	return cmd
}

func runQuery(opts *RootOptions, input string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	doc, err := readDocument(input, cmd.InOrStdin())
	if err != nil {
		return reportError(f, err)
	}

	env, err := openEnvironment(cmd.Context(), opts, cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	res, err := env.client.Query(cmd.Context(), doc)
	if err != nil {
		return reportError(f, err)
	}
	f.VerboseLog("query %s: %d rows, %d requests, %s", res.QueryID, res.Table.Len(), res.Requests, res.Duration)
	return f.Success(res.QueryID, NewGrid(res.Columns(), res.Records(), res))
}

// reportError prints err and converts it to an exit error. Errors already
// carrying an exit code keep it; everything else is a query failure.
func reportError(f *OutputFormatter, err error) error {
	_ = f.Error(err)
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return WrapExitError(ExitFailure, "query failed", err)
}
