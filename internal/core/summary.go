package core

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	Category Category `json:"category"`
	Amount   Money    `json:"amount"`
}

// BudgetOverview is a compact summary of one workspace's spending.
type BudgetOverview struct {
	WorkspaceID    string           `json:"workspaceId"`
	CurrencySymbol string           `json:"currencySymbol"`
	Budget         Money            `json:"budgetLimit"`
	Total          Money            `json:"totalSpent"`
	Remaining      Money            `json:"budgetRemaining"` // negative when over budget
	Percentage     float64          `json:"spendingPercentage"`
	ByCategory     []CategoryAmount `json:"categoryBreakdown"`
	Count          int              `json:"count"`
}

// OverBudget reports whether spending exceeded the limit.
func (o BudgetOverview) OverBudget() bool {
	return o.Remaining.Cents < 0
}
