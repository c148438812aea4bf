package worker

import (
	"context"
	"errors"
	"testing"

	"ledgerspace/internal/amqp"
	"ledgerspace/internal/core"
	"ledgerspace/internal/sheets"
	"ledgerspace/internal/sheets/memory"
)

type stubLoader struct {
	state core.AppState
	err   error
}

func (l *stubLoader) Load(context.Context) (core.AppState, error) {
	return l.state, l.err
}

type failingExporter struct{ calls int }

func (f *failingExporter) ExportWorkspace(context.Context, sheets.WorkspaceExport) (string, error) {
	f.calls++
	return "", errors.New("quota exceeded")
}

func twoWorkspaces(version int64) core.AppState {
	return core.AppState{
		Version: version,
		Users:   []core.User{{ID: "u1", Name: "Ann", Email: "ann@example.com", Role: core.RoleAdmin}},
		Workspaces: []core.Workspace{
			{ID: "w1", Name: "Home", CurrencySymbol: "$", Budget: core.Money{Cents: 10000}, MemberIDs: []string{"u1"}},
			{ID: "w2", Name: "Trip", CurrencySymbol: "€", Budget: core.Money{Cents: 50000}, MemberIDs: []string{"u1"}},
		},
		Expenses: []core.Expense{
			{ID: "e1", Amount: core.Money{Cents: 1500}, Description: "Milk", Category: core.Food, Date: core.NewDate(2025, 3, 1), WorkspaceID: "w1", OwnerID: "u1", OwnerName: "Ann"},
		},
	}
}

func msg(transition string, version int64, ws string) *amqp.StateChangedMessage {
	return amqp.NewStateChangedMessage(transition, version, ws)
}

func TestHandleStateChanged_ExportsOneWorkspace(t *testing.T) {
	loader := &stubLoader{state: twoWorkspaces(4)}
	exp := memory.New("Ledger")
	w := NewSyncWorker(loader, exp, nil)

	if err := w.HandleStateChanged(context.Background(), msg("add_expense", 4, "w1")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if exp.Exports() != 1 {
		t.Fatalf("exports = %d, want 1", exp.Exports())
	}
	if _, ok := exp.Tab("Ledger - Home"); !ok {
		t.Fatal("Home tab not written")
	}
	if _, ok := exp.Tab("Ledger - Trip"); ok {
		t.Fatal("Trip tab should not be written")
	}
}

func TestHandleStateChanged_GlobalTransitions(t *testing.T) {
	tests := []struct {
		name       string
		transition string
		workspace  string
	}{
		{"profile edit", "update_own_profile", "w1"},
		{"user deletion", "delete_user", "w1"},
		{"no workspace", "register_user", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := memory.New("Ledger")
			w := NewSyncWorker(&stubLoader{state: twoWorkspaces(2)}, exp, nil)
			if err := w.HandleStateChanged(context.Background(), msg(tt.transition, 2, tt.workspace)); err != nil {
				t.Fatalf("handle: %v", err)
			}
			if exp.Exports() != 2 {
				t.Fatalf("exports = %d, want 2", exp.Exports())
			}
		})
	}
}

func TestHandleStateChanged_StaleSnapshot(t *testing.T) {
	exp := memory.New("Ledger")
	w := NewSyncWorker(&stubLoader{state: twoWorkspaces(3)}, exp, nil)

	err := w.HandleStateChanged(context.Background(), msg("add_expense", 5, "w1"))
	if !errors.Is(err, ErrStaleSnapshot) {
		t.Fatalf("err = %v, want ErrStaleSnapshot", err)
	}
	if exp.Exports() != 0 {
		t.Fatalf("stale snapshot was exported")
	}
}

func TestHandleStateChanged_MissingWorkspace(t *testing.T) {
	exp := memory.New("Ledger")
	w := NewSyncWorker(&stubLoader{state: twoWorkspaces(3)}, exp, nil)

	if err := w.HandleStateChanged(context.Background(), msg("add_expense", 3, "gone")); err != nil {
		t.Fatalf("missing workspace should be skipped, got %v", err)
	}
	if exp.Exports() != 0 {
		t.Fatalf("exports = %d", exp.Exports())
	}
}

func TestHandleStateChanged_LoadError(t *testing.T) {
	w := NewSyncWorker(&stubLoader{err: errors.New("disk gone")}, memory.New(""), nil)
	if err := w.HandleStateChanged(context.Background(), msg("add_expense", 1, "w1")); err == nil {
		t.Fatal("expected load error")
	}
}

func TestExportAll_SkipsUnchangedVersion(t *testing.T) {
	loader := &stubLoader{state: twoWorkspaces(7)}
	exp := memory.New("Ledger")
	w := NewSyncWorker(loader, exp, nil)
	ctx := context.Background()

	if err := w.ExportAll(ctx); err != nil {
		t.Fatalf("first export: %v", err)
	}
	if err := w.ExportAll(ctx); err != nil {
		t.Fatalf("second export: %v", err)
	}
	if exp.Exports() != 2 {
		t.Fatalf("exports = %d, want 2 (one per workspace, once)", exp.Exports())
	}

	loader.state = twoWorkspaces(8)
	if err := w.ExportAll(ctx); err != nil {
		t.Fatalf("third export: %v", err)
	}
	if exp.Exports() != 4 {
		t.Fatalf("exports = %d after version bump, want 4", exp.Exports())
	}
}

func TestExportAll_FailureIsRetried(t *testing.T) {
	exp := &failingExporter{}
	w := NewSyncWorker(&stubLoader{state: twoWorkspaces(2)}, exp, nil)
	ctx := context.Background()

	if err := w.ExportAll(ctx); err == nil {
		t.Fatal("expected export error")
	}
	if exp.calls != 2 {
		t.Fatalf("calls = %d, every workspace should be attempted", exp.calls)
	}
	if err := w.ExportAll(ctx); err == nil {
		t.Fatal("failed version must not be marked exported")
	}
	if exp.calls != 4 {
		t.Fatalf("calls = %d, want 4", exp.calls)
	}
}

func TestStartupSync(t *testing.T) {
	exp := memory.New("Ledger")
	w := NewSyncWorker(&stubLoader{state: twoWorkspaces(1)}, exp, nil)
	if err := w.StartupSync(context.Background()); err != nil {
		t.Fatalf("startup: %v", err)
	}
	rows, ok := exp.Tab("Ledger - Home")
	if !ok || len(rows) == 0 {
		t.Fatal("Home tab missing after startup sync")
	}
}
