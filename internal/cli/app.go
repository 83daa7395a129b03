package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/config"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/engine"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/fhe"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ledger"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/store"
)

// app is the wired runtime behind every ledger command: config, store,
// devnet engine, relay and ledger.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *store.Store
	devnet   *fhe.Devnet
	relay    *engine.Relay
	ledger   *ledger.Ledger
	registry *prometheus.Registry
}

// openApp loads configuration and opens the ledger. Extra ledger options
// are applied after the defaults.
func openApp(opts *RootOptions, logOut io.Writer, extra ...ledger.Option) (*app, error) {
	cfg, logger, err := loadRuntime(opts, logOut)
	if err != nil {
		return nil, err
	}
	return openLedger(cfg, logger, extra...)
}

// loadRuntime loads the config, applies flag overrides and builds the
// logger.
func loadRuntime(opts *RootOptions, logOut io.Writer) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return config.Config{}, nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}

	level := cfg.SlogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}

// openLedger wires store, devnet engine, ledger and relay.
func openLedger(cfg config.Config, logger *slog.Logger, extra ...ledger.Option) (*app, error) {
	policy, err := ledger.ParsePolicy(cfg.Ledger.Policy)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid ledger policy", err)
	}

	logger.Debug("opening database", "path", cfg.Database.Path, "driver", cfg.Database.Driver)
	st, err := store.Open(cfg.Database.Path, store.WithDriver(cfg.Database.Driver))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	devnet, err := fhe.NewDevnet([]byte(cfg.Devnet.Secret), fhe.WithLogger(logger))
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start devnet engine", err)
	}

	registry := prometheus.NewRegistry()
	ledgerOpts := []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithPolicy(policy),
		ledger.WithMetrics(ledger.NewMetrics(registry)),
	}
	l := ledger.New(st, devnet, append(ledgerOpts, extra...)...)

	relay := engine.New(devnet, l, engine.WithLogger(logger))
	devnet.SetDispatcher(relay)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		devnet:   devnet,
		relay:    relay,
		ledger:   l,
		registry: registry,
	}, nil
}

// resume hands pending requests from earlier processes back to the devnet
// oracle and the relay queue.
func (a *app) resume(ctx context.Context) (int, error) {
	pending, err := a.ledger.ListPendingRequests(ctx)
	if err != nil {
		return 0, err
	}
	return a.relay.Resume(pending, a.devnet.Restore), nil
}

// Close stops the relay and closes the database.
func (a *app) Close() error {
	a.relay.Stop()
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

// withApp opens the app, runs fn and reports any error through the
// formatter.
func withApp(opts *RootOptions, f *OutputFormatter, fn func(*app) error, extra ...ledger.Option) error {
	a, err := openApp(opts, f.GetErrWriter(), extra...)
	if err != nil {
		return f.Fail(err)
	}
	defer a.Close()

	if err := fn(a); err != nil {
		return f.Fail(err)
	}
	return nil
}

// encryptValue encrypts a decimal or 0x-hex plaintext with the devnet
// engine, standing in for client-side encryption.
func (a *app) encryptValue(name, value string) (ir.Handle, error) {
	v, err := parseUint256(value)
	if err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("--%s: %v", name, err))
	}
	return a.devnet.Encrypt(v)
}

func parseUint256(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("value is required")
	}
	if strings.HasPrefix(s, "0x") {
		return uint256.FromHex(s)
	}
	return uint256.FromDecimal(s)
}

func parseKey(label string) (ir.AggregateKey, error) {
	key, err := ir.ParseAggregateKey(label)
	if err != nil {
		return ir.AggregateKey{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid aggregate key: %v", err))
	}
	return key, nil
}
