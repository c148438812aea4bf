// Package cli provides common initialization shared by cmd/ledgerspace and
// cmd/ledgerspace-worker.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ledgerspace/internal/amqp"
	"ledgerspace/internal/blob"
	"ledgerspace/internal/config"
	"ledgerspace/internal/ledger"
	"ledgerspace/internal/log"
	"ledgerspace/internal/storage"
)

// SetupLogger builds the process logger on stderr at the configured level
// and format, and installs it as the slog default.
func SetupLogger(w io.Writer, level, format string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := log.New(log.Options{
		Level:     log.ParseLevel(level),
		Format:    log.ParseFormat(format),
		Component: log.ComponentApp,
		Output:    w,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Runtime bundles the wired ledger and everything that must be closed with it.
type Runtime struct {
	Store      *ledger.Store
	Repository *storage.Repository
	Blobs      blob.Store
	AMQP       *amqp.Client
}

// Close releases the AMQP connection and the blob backend.
func (r *Runtime) Close() error {
	var errs []error
	if r.AMQP != nil {
		if err := r.AMQP.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if r.Blobs != nil {
		if err := blob.Close(r.Blobs); err != nil {
			errs = append(errs, fmt.Errorf("blob: %w", err))
		}
	}
	return errors.Join(errs...)
}

// OpenRepository opens the configured blob backend and the snapshot
// repository on top of it.
func OpenRepository(ctx context.Context, cfg *config.Config, logger *log.Logger) (*storage.Repository, blob.Store, error) {
	store, err := blob.Open(ctx, cfg.BlobOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("open %s blob store: %w", cfg.BlobDriver, err)
	}
	bootstrap := storage.Bootstrap{AdminSecret: cfg.AdminSecret, MasterSecret: cfg.MasterSecret}
	return storage.NewRepository(store, cfg.StateKey, bootstrap, logger), store, nil
}

// OpenStore loads the snapshot and builds a ledger.Store that saves every
// commit back to it. When AMQP is configured, commits are also announced;
// a broker that cannot be reached only disables publishing.
func OpenStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Runtime, error) {
	repo, blobs, err := OpenRepository(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Repository: repo, Blobs: blobs}

	state, err := repo.Load(ctx)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	opts := []ledger.Option{ledger.WithPersister(repo), ledger.WithLogger(logger)}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.WarnContext(ctx, "AMQP unavailable, state changes will not be announced", log.FieldError, err)
		} else {
			rt.AMQP = client
			opts = append(opts, ledger.WithPublisher(client))
		}
	}

	st, err := ledger.NewStore(state, opts...)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	rt.Store = st
	return rt, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
