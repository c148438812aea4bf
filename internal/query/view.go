package query

import "ledgerspace/internal/core"

// Filter describes one ledger listing.
type Filter struct {
	WorkspaceID string
	Term        string
	Category    core.Category
	Key         SortKey
	Direction   Direction
}

// View composes scope, search, category filter and sort, in that order.
// An empty WorkspaceID skips scoping.
func View(expenses []core.Expense, f Filter) []core.Expense {
	out := expenses
	if f.WorkspaceID != "" {
		out = ScopeToWorkspace(out, f.WorkspaceID)
	}
	out = Search(out, f.Term)
	out = FilterByCategory(out, f.Category)
	key, dir := f.Key, f.Direction
	if key == "" {
		key = SortByDate
	}
	if dir == "" {
		dir = Desc
	}
	return SortBy(out, key, dir)
}

// Summary computes the budget overview of ws from the full ledger.
func Summary(ws core.Workspace, expenses []core.Expense) core.BudgetOverview {
	scoped := ScopeToWorkspace(expenses, ws.ID)
	return core.BudgetOverview{
		WorkspaceID:    ws.ID,
		CurrencySymbol: ws.CurrencySymbol,
		Budget:         ws.Budget,
		Total:          TotalSpent(scoped),
		Remaining:      BudgetRemaining(ws.Budget, scoped),
		Percentage:     SpendingPercentage(ws.Budget, scoped),
		ByCategory:     CategoryBreakdown(scoped),
		Count:          len(scoped),
	}
}
