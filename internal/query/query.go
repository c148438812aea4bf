// Package query holds read-only views over a ledger: filtering, ordering and
// budget aggregates. Nothing here mutates its input.
package query

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"ledgerspace/internal/core"
)

// SortKey names an expense field usable for ordering.
type SortKey string

const (
	SortByDate        SortKey = "date"
	SortByAmount      SortKey = "amount"
	SortByDescription SortKey = "description"
	SortByCategory    SortKey = "category"
	SortByOwner       SortKey = "owner"
)

// Direction is ascending or descending.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseSortKey accepts a key name, case-insensitively.
func ParseSortKey(s string) (SortKey, error) {
	k := SortKey(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case SortByDate, SortByAmount, SortByDescription, SortByCategory, SortByOwner:
		return k, nil
	case "":
		return SortByDate, nil
	}
	return "", fmt.Errorf("%w: unknown sort key %q", core.ErrValidation, s)
}

// ParseDirection accepts "asc" or "desc"; empty means desc.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Asc, Desc:
		return d, nil
	case "":
		return Desc, nil
	}
	return "", fmt.Errorf("%w: unknown sort direction %q", core.ErrValidation, s)
}

// ScopeToWorkspace keeps the expenses belonging to workspaceID.
func ScopeToWorkspace(expenses []core.Expense, workspaceID string) []core.Expense {
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if e.WorkspaceID == workspaceID {
			out = append(out, e)
		}
	}
	return out
}

// Search keeps expenses whose description or owner name contains term,
// ignoring case. An empty term matches everything.
func Search(expenses []core.Expense, term string) []core.Expense {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return slices.Clone(expenses)
	}
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if strings.Contains(strings.ToLower(e.Description), term) ||
			strings.Contains(strings.ToLower(e.OwnerName), term) {
			out = append(out, e)
		}
	}
	return out
}

// FilterByCategory keeps expenses of category c. AllCategories and the empty
// category disable the filter.
func FilterByCategory(expenses []core.Expense, c core.Category) []core.Expense {
	if c == "" || c == core.AllCategories {
		return slices.Clone(expenses)
	}
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}

// SortBy returns a sorted copy. The sort is stable in both directions:
// expenses comparing equal keep their input order.
func SortBy(expenses []core.Expense, key SortKey, dir Direction) []core.Expense {
	out := slices.Clone(expenses)
	by := comparator(key)
	if dir == Desc {
		asc := by
		by = func(a, b core.Expense) int { return asc(b, a) }
	}
	slices.SortStableFunc(out, by)
	return out
}

func comparator(key SortKey) func(a, b core.Expense) int {
	switch key {
	case SortByAmount:
		return func(a, b core.Expense) int { return cmp.Compare(a.Amount.Cents, b.Amount.Cents) }
	case SortByDescription:
		return func(a, b core.Expense) int { return strings.Compare(a.Description, b.Description) }
	case SortByCategory:
		return func(a, b core.Expense) int { return strings.Compare(string(a.Category), string(b.Category)) }
	case SortByOwner:
		return func(a, b core.Expense) int { return strings.Compare(a.OwnerName, b.OwnerName) }
	default:
		return func(a, b core.Expense) int { return a.Date.Compare(b.Date.Time) }
	}
}

// TotalSpent sums the amounts.
func TotalSpent(expenses []core.Expense) core.Money {
	var total int64
	for _, e := range expenses {
		total += e.Amount.Cents
	}
	return core.Money{Cents: total}
}

// BudgetRemaining may be negative.
func BudgetRemaining(budget core.Money, expenses []core.Expense) core.Money {
	return core.Money{Cents: budget.Cents - TotalSpent(expenses).Cents}
}

// SpendingPercentage is 100*total/budget. A valid workspace never has a
// non-positive budget; such a budget yields 0.
func SpendingPercentage(budget core.Money, expenses []core.Expense) float64 {
	if budget.Cents <= 0 {
		return 0
	}
	return 100 * float64(TotalSpent(expenses).Cents) / float64(budget.Cents)
}

// CategoryBreakdown groups by category, largest sum first. Equal sums are
// ordered by category name.
func CategoryBreakdown(expenses []core.Expense) []core.CategoryAmount {
	sums := make(map[core.Category]int64)
	for _, e := range expenses {
		sums[e.Category] += e.Amount.Cents
	}
	out := make([]core.CategoryAmount, 0, len(sums))
	for c, cents := range sums {
		out = append(out, core.CategoryAmount{Category: c, Amount: core.Money{Cents: cents}})
	}
	slices.SortFunc(out, func(a, b core.CategoryAmount) int {
		if c := cmp.Compare(b.Amount.Cents, a.Amount.Cents); c != 0 {
			return c
		}
		return strings.Compare(string(a.Category), string(b.Category))
	})
	return out
}
