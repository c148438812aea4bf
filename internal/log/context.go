package log

import (
	"context"
	"log/slog"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	// Return default logger if not found
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogTransition logs the outcome of one state transition. Rejections are
// expected outcomes and go out at Warn, not Error.
func (sl *StructuredLogger) LogTransition(ctx context.Context, name, actorID string, version int64, kind string, err error) {
	fields := NewFields().
		WithTransition(name, version).
		WithActor(actorID).
		WithOperation(OpApply).
		WithComponent(ComponentLedger)
	fields[FieldSuccess] = err == nil

	if err != nil {
		fields.WithError(err)
		fields[FieldErrorKind] = kind
		sl.logger.Logger.Log(ctx, slog.LevelWarn, "Transition rejected", fields.ToSlice()...)
		return
	}
	sl.logger.Logger.Log(ctx, slog.LevelInfo, "Transition applied", fields.ToSlice()...)
}

// LogExpenseCreated logs successful expense creation
func (sl *StructuredLogger) LogExpenseCreated(ctx context.Context, workspaceID, id, desc string, amountCents int64, category string) {
	fields := NewFields().
		WithExpense(id, desc, amountCents, category).
		WithWorkspace(workspaceID).
		WithOperation(OpApply).
		WithComponent(ComponentLedger).
		ToSlice()

	sl.logger.Logger.InfoContext(ctx, "Expense created successfully", fields...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation).
		WithComponent(component)

	sl.logger.Logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
