// Package trace tags each CLI command with an id and logs how it went.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"ledgerspace/internal/core"
	"ledgerspace/internal/log"
)

// ContextKey type for context keys
type ContextKey string

const (
	// CommandIDKey is the context key for the command id
	CommandIDKey ContextKey = log.FieldCommandID
)

// Metrics tracks command outcomes
type Metrics struct {
	TotalCommands  int64
	FailedCommands int64
	LastDurationUs int64
}

// Tracer wraps command execution with structured start and finish logs.
type Tracer struct {
	logger   *log.Logger
	expected []error
	total    atomic.Int64
	failed   atomic.Int64
	lastDur  atomic.Int64
}

// NewTracer builds a tracer. Errors matching one of expected are logged like
// ledger rejections rather than failures.
func NewTracer(logger *log.Logger, expected ...error) *Tracer {
	if logger == nil {
		logger = log.Discard()
	}
	return &Tracer{logger: logger.WithComponent(log.ComponentCLI), expected: expected}
}

func (t *Tracer) isExpected(err error) bool {
	for _, e := range t.expected {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// Run executes fn under a fresh command id. The id and a logger carrying it
// are placed in the context handed to fn. Rejections log at Warn and
// unexpected failures at Error.
func (t *Tracer) Run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	id := GenerateCommandID()
	logger := t.logger.With(log.FieldCommandID, id, "command", name)
	ctx = context.WithValue(ctx, CommandIDKey, id)
	ctx = log.NewContext(ctx, logger)

	logger.DebugContext(ctx, "Command started")
	t.total.Add(1)

	err := fn(ctx)

	duration := time.Since(start)
	t.lastDur.Store(duration.Microseconds())

	level := slog.LevelInfo
	kind := core.Kind(err)
	switch {
	case err == nil:
	case kind == "internal" && !t.isExpected(err):
		level = slog.LevelError
		t.failed.Add(1)
	default:
		level = slog.LevelWarn
		t.failed.Add(1)
	}
	attrs := []any{"duration_ms", duration.Milliseconds(), "success", err == nil}
	if err != nil {
		attrs = append(attrs, log.FieldError, err, log.FieldErrorKind, kind)
	}
	logger.Log(ctx, level, "Command completed", attrs...)
	return err
}

// GenerateCommandID creates a unique command id for tracing
func GenerateCommandID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("cmd_%d", time.Now().UnixNano())
	}
	return "cmd_" + hex.EncodeToString(b)
}

// CommandID extracts the command id from context
func CommandID(ctx context.Context) string {
	if id, ok := ctx.Value(CommandIDKey).(string); ok {
		return id
	}
	return ""
}

// Metrics returns current counters
func (t *Tracer) Metrics() Metrics {
	return Metrics{
		TotalCommands:  t.total.Load(),
		FailedCommands: t.failed.Load(),
		LastDurationUs: t.lastDur.Load(),
	}
}
