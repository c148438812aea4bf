package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ledgerspace/internal/amqp"
	"ledgerspace/internal/core"
	"ledgerspace/internal/log"
	"ledgerspace/internal/sheets"
)

// SnapshotLoader reads the committed ledger snapshot.
type SnapshotLoader interface {
	Load(ctx context.Context) (core.AppState, error)
}

// ErrStaleSnapshot is returned when the stored snapshot is older than the
// event being handled; the message should be redelivered later.
var ErrStaleSnapshot = errors.New("snapshot older than event")

// SyncWorker mirrors workspace ledgers into the spreadsheet exporter.
type SyncWorker struct {
	loader   SnapshotLoader
	exporter sheets.LedgerExporter
	logger   *log.Logger

	mu           sync.Mutex
	lastExported int64
}

func NewSyncWorker(loader SnapshotLoader, exporter sheets.LedgerExporter, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{
		loader:   loader,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// touchesAllWorkspaces reports transitions whose effects are not confined to
// one workspace: profile edits rename owners across every ledger and user
// deletion rewrites rosters.
func touchesAllWorkspaces(msg *amqp.StateChangedMessage) bool {
	if msg.WorkspaceID == "" {
		return true
	}
	switch msg.Transition {
	case "update_own_profile", "delete_user":
		return true
	}
	return false
}

// HandleStateChanged re-exports what a committed transition changed.
func (w *SyncWorker) HandleStateChanged(ctx context.Context, msg *amqp.StateChangedMessage) error {
	w.logger.InfoContext(ctx, "Processing state change",
		log.FieldTransition, msg.Transition,
		log.FieldVersion, msg.Version,
		log.FieldWorkspaceID, msg.WorkspaceID)

	state, err := w.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if state.Version < msg.Version {
		return fmt.Errorf("%w: have %d, event %d", ErrStaleSnapshot, state.Version, msg.Version)
	}

	if touchesAllWorkspaces(msg) {
		return w.exportAll(ctx, state)
	}

	ws, ok := state.Workspace(msg.WorkspaceID)
	if !ok {
		w.logger.WarnContext(ctx, "Workspace no longer exists, skipping export",
			log.FieldWorkspaceID, msg.WorkspaceID)
		return nil
	}
	return w.exportOne(ctx, ws, state.Expenses)
}

// ExportAll exports every workspace unless the snapshot version has already
// been exported. It is the periodic backstop for lost messages.
func (w *SyncWorker) ExportAll(ctx context.Context) error {
	state, err := w.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	w.mu.Lock()
	done := w.lastExported
	w.mu.Unlock()
	if state.Version != 0 && state.Version == done {
		w.logger.DebugContext(ctx, "Snapshot unchanged since last export", log.FieldVersion, state.Version)
		return nil
	}
	return w.exportAll(ctx, state)
}

// StartupSync runs a full export when the worker starts, to recover from
// events missed while it was down.
func (w *SyncWorker) StartupSync(ctx context.Context) error {
	state, err := w.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot for startup sync: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync",
		log.FieldVersion, state.Version,
		"workspaces", len(state.Workspaces))
	return w.exportAll(ctx, state)
}

// exportAll keeps going past a failing workspace and reports the first error.
func (w *SyncWorker) exportAll(ctx context.Context, state core.AppState) error {
	var first error
	exported := 0
	for _, ws := range state.Workspaces {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.exportOne(ctx, ws, state.Expenses); err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		exported++
	}
	if first != nil {
		return first
	}

	w.mu.Lock()
	w.lastExported = state.Version
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Export completed",
		log.FieldVersion, state.Version,
		"workspaces", exported)
	return nil
}

func (w *SyncWorker) exportOne(ctx context.Context, ws core.Workspace, expenses []core.Expense) error {
	ref, err := w.exporter.ExportWorkspace(ctx, sheets.NewWorkspaceExport(ws, expenses))
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to export workspace",
			log.FieldWorkspaceID, ws.ID,
			log.FieldError, err)
		return fmt.Errorf("export workspace %s: %w", ws.ID, err)
	}
	w.logger.InfoContext(ctx, "Exported workspace",
		log.FieldWorkspaceID, ws.ID,
		"sheets_ref", ref)
	return nil
}
