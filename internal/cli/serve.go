package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/campusledger/internal/httpapi"
	"github.com/roach88/campusledger/internal/ledger"
	"github.com/roach88/campusledger/internal/metrics"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr            string
	ShutdownTimeout time.Duration

	// Listener overrides Addr (for testing).
	Listener net.Listener
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger over HTTP",
		Long: `Serve the positional call surface over HTTP until interrupted.

  POST /v1/call      {"caller": "ADDR", "call": ["op", "arg", ...]}
  GET  /v1/counters
  GET  /v1/journal?after=N&limit=N
  GET  /healthz
  GET  /metrics

Example:
  campusledger --config campus.yaml serve --addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config http.addr)")
	cmd.Flags().DurationVar(&opts.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	collector := metrics.New()
	env, err := openLedger(cmd, opts.RootOptions, ledger.WithObserver(collector))
	if err != nil {
		return err
	}
	defer env.Close()

	addr := env.config.HTTP.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	ln := opts.Listener
	if ln == nil {
		ln, err = net.Listen("tcp", addr)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to listen", err)
		}
	}

	handler := httpapi.New(env.engine, env.store, collector.Registry, env.logger)
	srv := &http.Server{
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		env.logger.Info("starting http server", "addr", ln.Addr().String(), "db", env.config.Database)
		fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		env.logger.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	env.logger.Info("server stopped")
	return nil
}
