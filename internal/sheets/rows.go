package sheets

import (
	"fmt"
	"strings"
)

// ExpenseHeader is the header row of the expense table.
var ExpenseHeader = []any{"Date", "Description", "Category", "Amount", "Owner", "ID"}

const maxTitleLen = 100

// TabTitle names the tab holding a workspace. Characters Sheets rejects in
// titles are replaced.
func TabTitle(prefix, workspaceName string) string {
	title := strings.TrimSpace(workspaceName)
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		title = prefix + " - " + title
	}
	title = strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '*', '?', '/', '\\', ':':
			return '_'
		}
		return r
	}, title)
	if r := []rune(title); len(r) > maxTitleLen {
		title = string(r[:maxTitleLen])
	}
	return title
}

// Rows lays out a workspace export: a summary block, a blank row, the
// expense table, a blank row, then the category breakdown. Amounts are
// written as plain decimals so the sheet can sum them.
func Rows(x WorkspaceExport) [][]any {
	o := x.Overview
	rows := [][]any{
		{"Workspace", x.Workspace.Name, "Currency", x.Workspace.CurrencySymbol},
		{"Budget", o.Budget.String(), "Spent", o.Total.String(), "Remaining", o.Remaining.String(), "Used %", fmt.Sprintf("%.1f", o.Percentage)},
		{},
		ExpenseHeader,
	}
	for _, e := range x.Expenses {
		rows = append(rows, []any{
			e.Date.Format("2006-01-02"),
			e.Description,
			string(e.Category),
			e.Amount.String(),
			e.OwnerName,
			e.ID,
		})
	}
	rows = append(rows, []any{}, []any{"Category", "Amount"})
	for _, c := range o.ByCategory {
		rows = append(rows, []any{string(c.Category), c.Amount.String()})
	}
	return rows
}
