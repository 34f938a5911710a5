package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/restsql/internal/server"
)

// BackendsOptions holds flags for the backends command.
type BackendsOptions struct {
	*RootOptions
	Check bool
}

// NewBackendsCommand creates the backends command.
func NewBackendsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BackendsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "backends",
		Short: "List configured backends and their tables",
		Long: `List the backends declared in restsql.yaml with their kind, redacted
connection string and declared tables.

With --check every backend is connected (and pinged, for SQL backends)
before listing.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackends(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Check, "check", false, "connect to every backend")

	return cmd
}

func runBackends(opts *BackendsOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cfg, err := loadConfig(opts.RootOptions, f)
	if err != nil {
		return err
	}

	if opts.Check {
		reg, err := cfg.Connect(cmd.Context())
		if err != nil {
			_ = f.Error(err)
			return WrapExitError(ExitFailure, "backend check failed", err)
		}
		_ = reg.Close()
	}

	infos := make([]server.BackendInfo, 0, len(cfg.Backends))
	for _, b := range cfg.Backends {
		infos = append(infos, server.Describe(b.Descriptor()))
	}
	if f.Format == "json" {
		return f.Success("", infos)
	}

	if len(infos) == 0 {
		fmt.Fprintln(f.Writer, "No backends configured.")
		return nil
	}
	for _, info := range infos {
		fmt.Fprintf(f.Writer, "%s [%s] %s\n", info.Name, info.Kind, info.Connection)
		tables := make([]string, 0, len(info.Tables))
		for table := range info.Tables {
			tables = append(tables, table)
		}
		slices.Sort(tables)
		for _, table := range tables {
			fmt.Fprintf(f.Writer, "  %s: %s\n", table, strings.Join(info.Tables[table], ", "))
		}
	}
	return nil
}
