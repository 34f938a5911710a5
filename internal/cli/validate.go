package cli

import (
	"github.com/spf13/cobra"
)

// ValidationResult is the JSON payload of a successful validation.
type ValidationResult struct {
	Valid bool `json:"valid"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [file|-]",
		Short: "Check a query document without running it",
		Long: `Check a query document's shape, backend references, columns and
filter operators against the configured schemas. Nothing is sent to any
backend.

Exit codes:
  0 - Document is valid
  1 - Document is invalid
  2 - Command error`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, argOrStdin(args), cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, input string, cmd *cobra.Command) error {
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

	if err := env.client.Validate(cmd.Context(), doc); err != nil {
		return reportError(f, err)
	}
	return f.Done("query is valid", ValidationResult{Valid: true})
}
