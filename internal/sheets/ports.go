package sheets

import (
	"context"

	"ledgerspace/internal/core"
	"ledgerspace/internal/query"
)

// WorkspaceExport is everything written for one workspace.
type WorkspaceExport struct {
	Workspace core.Workspace
	Overview  core.BudgetOverview
	Expenses  []core.Expense // newest first
}

// NewWorkspaceExport selects ws's expenses from the ledger and summarizes them.
func NewWorkspaceExport(ws core.Workspace, ledger []core.Expense) WorkspaceExport {
	return WorkspaceExport{
		Workspace: ws,
		Overview:  query.Summary(ws, ledger),
		Expenses: query.View(ledger, query.Filter{
			WorkspaceID: ws.ID,
			Key:         query.SortByDate,
			Direction:   query.Desc,
		}),
	}
}

// Ports for outbound adapters.
type (
	// LedgerExporter mirrors one workspace into a spreadsheet tab, replacing
	// whatever the tab held before.
	LedgerExporter interface {
		ExportWorkspace(ctx context.Context, export WorkspaceExport) (ref string, err error)
	}
)
