package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/restsql/internal/engine"
)

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain [file|-]",
		Short: "Show the backend requests a query would issue",
		Long: `Compile a query document without executing it. Prints one plan per
subquery: the SQL statement and parameters, or the search DSL body. Joins
folded into a single statement are marked as such.

Examples:
  restsql explain orders.json
  restsql explain --format json < orders.json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(rootOpts, argOrStdin(args), cmd)
		},
	}
	return cmd
}

func runExplain(opts *RootOptions, input string, cmd *cobra.Command) error {
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

	exp, err := env.client.Explain(cmd.Context(), doc)
	if err != nil {
		return reportError(f, err)
	}
	if f.Format == "json" {
		return f.Success("", exp)
	}
	return renderExplanation(f.Writer, exp)
}

func renderExplanation(w io.Writer, exp *engine.Explanation) error {
	for _, sp := range exp.Subqueries {
		fmt.Fprintf(w, "%s (%s) %s on %s [%s]\n", sp.Name, sp.Role, sp.From, sp.Backend, sp.Kind)
		if sp.FoldedInto != "" {
			fmt.Fprintf(w, "  folded into %s\n", sp.FoldedInto)
			continue
		}
		fmt.Fprint(w, "  ")
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("  ", "  ")
		if err := enc.Encode(sp.Plan); err != nil {
			return err
		}
	}
	if len(exp.Sort) > 0 {
		fmt.Fprintf(w, "sort: %v\n", exp.Sort)
	}
	_, err := fmt.Fprintf(w, "limit: %d\n", exp.Limit)
	return err
}
