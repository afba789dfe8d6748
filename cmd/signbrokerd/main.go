// Command signbrokerd is the trusted authority daemon. It holds the keyring,
// queues requests from callers connecting over WebSocket and serves the
// review API that decides them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	signbroker "github.com/vaultsandbox/signbroker-go"
	"github.com/vaultsandbox/signbroker-go/internal/audit"
	"github.com/vaultsandbox/signbroker-go/internal/config"
	"github.com/vaultsandbox/signbroker-go/internal/server"
	"github.com/vaultsandbox/signbroker-go/internal/telemetry"
	"github.com/vaultsandbox/signbroker-go/keyring"
)

var version = "dev"

// Config holds the process-level dependencies of run.
type Config struct {
	Stderr io.Writer
	// Ready, if set, receives the bound address once the server listens.
	Ready func(addr net.Addr)
}

// DefaultConfig returns a Config wired to the process.
func DefaultConfig() Config {
	return Config{Stderr: os.Stderr}
}

func run(ctx context.Context, args []string, pc Config) error {
	flags := flag.NewFlagSet("signbrokerd", flag.ContinueOnError)
	flags.SetOutput(pc.Stderr)
	configPath := flags.String("config", "", "path to a YAML configuration file")
	envFile := flags.String("env", ".env", "path to an optional .env file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		return err
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewJSONHandler(pc.Stderr, &slog.HandlerOptions{Level: level}))

	ring, err := loadKeyring(cfg.KeyringPath, logger)
	if err != nil {
		return err
	}

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
	}, logger)
	if err != nil {
		return err
	}

	opts := []signbroker.Option{
		signbroker.WithLogger(logger),
		signbroker.WithMaxPending(cfg.MaxPending),
		signbroker.WithMetrics(tel.Metrics()),
	}
	var store *audit.SQLiteStore
	if cfg.AuditPath != "" {
		store, err = audit.Open(ctx, cfg.AuditPath)
		if err != nil {
			return errors.Join(err, tel.Shutdown(context.Background()))
		}
		opts = append(opts, signbroker.WithRecorder(store))
	}

	auth := signbroker.NewAuthority(ring, opts...)
	srv := server.New(auth,
		server.WithLogger(logger),
		server.WithReviewToken(cfg.ReviewToken),
		server.WithAllowedOrigins(cfg.AllowedOrigins),
	)
	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		srv.Close()
		errs := []error{err, auth.Close(ctx), tel.Shutdown(context.Background())}
		if store != nil {
			errs = append(errs, store.Close())
		}
		return errors.Join(errs...)
	}
	logger.InfoContext(ctx, "signbrokerd listening",
		"addr", ln.Addr().String(),
		"version", version,
		"accounts", len(ring.Accounts()),
		"audit", cfg.AuditPath != "",
	)
	if pc.Ready != nil {
		pc.Ready(ln.Addr())
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(ln)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	logger.InfoContext(shutdownCtx, "shutting down", "pending", auth.Len())

	// Closing the authority first answers every waiting caller with Terminated
	// before their connections go away.
	errs := []error{auth.Close(shutdownCtx)}
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errs = append(errs, err)
	}
	srv.Close()
	errs = append(errs, tel.Shutdown(shutdownCtx))
	if store != nil {
		errs = append(errs, store.Close())
	}
	if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
		errs = append(errs, runErr)
	}
	return errors.Join(errs...)
}

// loadKeyring reads the keyring file. A missing file starts an empty keyring;
// accounts are added with the signbroker CLI.
func loadKeyring(path string, logger *slog.Logger) (*keyring.Keyring, error) {
	ring, err := keyring.LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("keyring file not found, starting empty", "path", path)
		return keyring.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load keyring: %w", err)
	}
	return ring, nil
}
