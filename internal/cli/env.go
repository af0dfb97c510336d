package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/phdtrack/internal/catalog"
	"github.com/roach88/phdtrack/internal/collab"
	"github.com/roach88/phdtrack/internal/config"
	"github.com/roach88/phdtrack/internal/engine"
	"github.com/roach88/phdtrack/internal/harness"
	"github.com/roach88/phdtrack/internal/store"
)

// env is everything a command needs, opened from the resolved config.
type env struct {
	cfg     config.Config
	store   *store.Store
	runner  *engine.Runner
	catalog *catalog.Catalog
	suite   *harness.Suite
	logger  *slog.Logger

	closers []func(context.Context) error
}

// newLogger writes structured logs to the command's stderr so stdout stays
// parseable.
func (o *RootOptions) newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// loadConfig resolves defaults, the config file, PHDTRACK_* variables and
// the global flags.
func (o *RootOptions) loadConfig(cmd *cobra.Command) (config.Config, error) {
	v := viper.New()
	if err := config.BindFlags(v, cmd.Root().PersistentFlags()); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(v, o.ConfigFile)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// open builds the env. The caller must close it.
func (o *RootOptions) open(cmd *cobra.Command) (*env, error) {
	ctx := cmd.Context()
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: o.newLogger(cmd)}

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		e.store, err = store.OpenPostgres(ctx, cfg.Postgres())
	default:
		e.store, err = store.Open(cfg.Database.Path)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	e.closers = append(e.closers, func(context.Context) error { return e.store.Close() })

	runnerOpts := []engine.Option{engine.WithLogger(e.logger)}
	if cfg.Telemetry.Stdout {
		tp, err := engine.NewStdoutTracerProvider(cmd.ErrOrStderr())
		if err != nil {
			e.close(ctx)
			return nil, WrapExitError(ExitCommandError, "failed to start tracing", err)
		}
		e.closers = append(e.closers, engine.InstallTracerProvider(tp))
		runnerOpts = append(runnerOpts, engine.WithTracerProvider(tp))
	}
	runnerOpts = append(runnerOpts, o.runnerOptions...)
	e.runner = engine.NewRunner(e.store, runnerOpts...)

	e.catalog, err = catalog.Default()
	if err != nil {
		e.close(ctx)
		return nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
	}

	processor, err := e.documentProcessor(ctx)
	if err != nil {
		e.close(ctx)
		return nil, err
	}
	e.suite = harness.NewSuite(e.runner, e.catalog, collab.NewTemplateGenerator(e.catalog), processor)
	return e, nil
}

// documentProcessor routes plain text locally and, when configured, PDFs
// and scans to Document AI.
func (e *env) documentProcessor(ctx context.Context) (collab.DocumentProcessor, error) {
	router := collab.NewMimeRouter()
	if !e.cfg.DocumentAIEnabled() {
		return router, nil
	}
	p, err := collab.NewDocumentAIProcessor(ctx, e.cfg.DocumentAIConfig())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create Document AI processor", err)
	}
	e.closers = append(e.closers, func(context.Context) error { return p.Close() })
	router.Handle(p, "application/pdf", "image/png", "image/jpeg", "image/tiff")
	return router, nil
}

// close releases resources in reverse order of acquisition.
func (e *env) close(ctx context.Context) error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
