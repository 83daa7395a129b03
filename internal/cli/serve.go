package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/feed"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ledger"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string

	// Ready, when set, receives the bound address once the server accepts
	// connections (for testing).
	Ready func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay loop and serve the event feed",
		Long: `Run the decryption relay against the devnet oracle and serve:

  /events   websocket feed of ledger events (?after=<seq> replays the backlog)
  /metrics  Prometheus metrics
  /healthz  liveness

Pending requests left by earlier processes are resumed on start.

Example:
  civbuilder serve --db ./civ.db --listen 127.0.0.1:8545`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides server.listen)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	cfg, logger, err := loadRuntime(opts.RootOptions, f.GetErrWriter())
	if err != nil {
		return f.Fail(err)
	}
	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}

	broadcaster := feed.NewBroadcaster(feed.DefaultBuffer, logger)
	defer broadcaster.Close()

	a, err := openLedger(cfg, logger, ledger.WithPublisher(broadcaster))
	if err != nil {
		return f.Fail(err)
	}
	defer a.Close()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.ledger.SyncMetrics(ctx); err != nil {
		return f.Fail(err)
	}
	if _, err := a.resume(ctx); err != nil {
		return f.Fail(err)
	}

	mux := http.NewServeMux()
	mux.Handle("/events", feed.NewHandler(a.ledger, broadcaster, logger))
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		fmt.Fprintln(rw, "ok")
	})

	listener, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return f.Fail(WrapExitError(ExitCommandError, "failed to listen", err))
	}
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	relayDone := make(chan error, 1)
	go func() {
		relayDone <- a.relay.Run(ctx)
	}()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(listener)
	}()

	addr := listener.Addr().String()
	logger.Info("server started", "addr", addr, "db", cfg.Database.Path, "policy", a.ledger.Policy())
	if opts.Ready != nil {
		opts.Ready(addr)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-serveDone:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	a.relay.Stop()
	if err := <-relayDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("relay stopped with error", "error", err)
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return f.Fail(WrapExitError(ExitFailure, "server error", serveErr))
	}
	logger.Info("server stopped gracefully")
	return nil
}
