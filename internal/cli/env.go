package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/campusledger/internal/config"
	"github.com/roach88/campusledger/internal/ledger"
	"github.com/roach88/campusledger/internal/store"
)

// ledgerEnv is the opened store and engine a command runs against.
type ledgerEnv struct {
	config *config.Config
	store  *store.Store
	engine *ledger.Engine
	logger *slog.Logger
}

// loadConfig reads --config (or the defaults) and applies flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		var err error
		cfg, err = config.Load(opts.ConfigPath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	return cfg, nil
}

// newLogger creates the stderr text logger. --verbose forces debug level.
func newLogger(w io.Writer, cfg *config.Config, verbose bool) *slog.Logger {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openLedger loads configuration, opens the database and builds the engine.
// The caller must Close the returned env.
func openLedger(cmd *cobra.Command, opts *RootOptions, extra ...ledger.Option) (*ledgerEnv, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg, opts.Verbose)

	ledgerOpts, err := cfg.LedgerOptions()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	ledgerOpts = append(ledgerOpts, ledger.WithLogger(logger))
	ledgerOpts = append(ledgerOpts, extra...)

	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	eng, err := ledger.New(st, ledgerOpts...)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}

	return &ledgerEnv{config: cfg, store: st, engine: eng, logger: logger}, nil
}

// Close closes the database.
func (e *ledgerEnv) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Error("error closing database", "error", err)
	}
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
