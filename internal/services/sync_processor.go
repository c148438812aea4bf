package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ledgerspace/internal/log"
)

// FullExporter exports every workspace of the current snapshot.
type FullExporter interface {
	ExportAll(ctx context.Context) error
}

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often a full export is attempted (default: 5m)
	PollInterval time.Duration

	// MaxRetries is how many consecutive failures are tolerated before the
	// processor logs at error level (default: 3)
	MaxRetries int
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 5 * time.Minute,
		MaxRetries:   3,
	}
}

// SyncProcessor periodically re-exports the whole ledger as a backstop for
// lost state-change messages.
type SyncProcessor struct {
	exporter FullExporter
	config   SyncProcessorConfig
	logger   *log.Logger

	// Lifecycle management
	mu       sync.Mutex
	running  bool
	failures int
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(exporter FullExporter, config SyncProcessorConfig, logger *log.Logger) *SyncProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultSyncProcessorConfig().MaxRetries
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncProcessor{
		exporter: exporter,
		config:   config,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval)

	return nil
}

// Run blocks until ctx is cancelled or Stop is called. It is meant for
// errgroup-style supervision; the returned error is always ctx.Err() or nil.
func (p *SyncProcessor) Run(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	done := p.doneCh
	p.mu.Unlock()

	<-done
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	if err := ctx.Err(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	// Signal stop
	select {
	case <-stopCh:
	default:
		close(stopCh)
	}

	// Wait for completion or context cancellation
	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Failures returns the current count of consecutive failed exports.
func (p *SyncProcessor) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

// runLoop is the main processing loop
func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single export attempt and tracks consecutive failures.
func (p *SyncProcessor) RunOnce(ctx context.Context) {
	err := p.exporter.ExportAll(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		if p.failures > 0 {
			p.logger.InfoContext(ctx, "Periodic export recovered", "after_failures", p.failures)
		}
		p.failures = 0
		return
	}

	p.failures++
	if p.failures >= p.config.MaxRetries {
		p.logger.ErrorContext(ctx, "Periodic export keeps failing",
			"attempt", p.failures,
			log.FieldError, err)
		return
	}
	p.logger.WarnContext(ctx, "Periodic export failed",
		"attempt", p.failures,
		log.FieldError, err)
}
