package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/restsql/internal/client"
	"github.com/roach88/restsql/internal/config"
	"github.com/roach88/restsql/internal/engine"
	"github.com/roach88/restsql/internal/queryir"
	"github.com/roach88/restsql/internal/registry"
	"github.com/roach88/restsql/internal/store"
)

// environment is everything a command needs to run queries.
type environment struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *registry.Registry
	history  *store.Store
	client   *client.Client
}

// newLogger writes text logs to w, at debug level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads restsql.yaml. A missing or invalid file is a command
// error.
func loadConfig(opts *RootOptions, f *OutputFormatter) (*config.Config, error) {
	cfg, path, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if path == "" {
		f.VerboseLog("no config file found, using defaults")
	} else {
		f.VerboseLog("config: %s", path)
	}
	return cfg, nil
}

// openEnvironment loads config, connects every backend and opens the
// history store when one is configured.
func openEnvironment(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*environment, error) {
	f := opts.formatter(cmd)
	cfg, err := loadConfig(opts, f)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	reg, err := cfg.Connect(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to connect backends", err)
	}

	env := &environment{cfg: cfg, logger: logger, registry: reg}
	clientOpts := []client.Option{client.WithLogger(logger)}
	if cfg.History.Path != "" {
		st, err := store.Open(cfg.History.Path)
		if err != nil {
			_ = reg.Close()
			return nil, WrapExitError(ExitCommandError, "failed to open history", err)
		}
		env.history = st
		clientOpts = append(clientOpts, client.WithHistory(st))
	}

	eng := engine.New(reg,
		engine.WithLogger(logger),
		engine.WithParallelSubqueries(cfg.Engine.Parallel),
		engine.WithPushDown(cfg.Engine.PushDown),
		engine.WithMaxJoins(cfg.Engine.MaxJoins),
	)
	env.client = client.New(eng, clientOpts...)
	return env, nil
}

// Close releases backends and the history store.
func (e *environment) Close() error {
	var errs []error
	if e.history != nil {
		errs = append(errs, e.history.Close())
	}
	errs = append(errs, e.registry.Close())
	return errors.Join(errs...)
}

// readDocument reads a query document from the named file, or from stdin
// when name is "-" or empty.
func readDocument(name string, stdin io.Reader) (map[string]any, error) {
	var (
		data []byte
		err  error
	)
	if name == "" || name == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read query document", err)
	}
	return queryir.Decode(data)
}

func argOrStdin(args []string) string {
	if len(args) == 0 {
		return "-"
	}
	return args[0]
}
