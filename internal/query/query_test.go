package query

import (
	"reflect"
	"testing"
	"time"

	"ledgerspace/internal/core"
)

func exp(id string, cents int64, cat core.Category) core.Expense {
	return core.Expense{
		ID:          id,
		Amount:      core.Money{Cents: cents},
		Description: "expense " + id,
		Category:    cat,
		Date:        core.NewDate(2025, 1, 1),
		OwnerName:   "Owner",
		WorkspaceID: "ws",
	}
}

func ids(es []core.Expense) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}

func TestBudgetScenario(t *testing.T) {
	ws := core.Workspace{ID: "ws", CurrencySymbol: "$", Budget: core.Money{Cents: 100000}}
	ledger := []core.Expense{
		exp("a", 20000, core.Food),
		exp("b", 30000, core.Food),
		exp("c", 15000, core.Transportation),
	}

	if got := TotalSpent(ledger); got.Cents != 65000 {
		t.Fatalf("total = %d, want 65000", got.Cents)
	}
	if got := BudgetRemaining(ws.Budget, ledger); got.Cents != 35000 {
		t.Fatalf("remaining = %d, want 35000", got.Cents)
	}
	if got := SpendingPercentage(ws.Budget, ledger); got != 65.0 {
		t.Fatalf("percentage = %v, want 65", got)
	}
	want := []core.CategoryAmount{
		{Category: core.Food, Amount: core.Money{Cents: 50000}},
		{Category: core.Transportation, Amount: core.Money{Cents: 15000}},
	}
	if got := CategoryBreakdown(ledger); !reflect.DeepEqual(got, want) {
		t.Fatalf("breakdown = %+v, want %+v", got, want)
	}

	o := Summary(ws, append(ledger, core.Expense{ID: "x", Amount: core.Money{Cents: 999}, WorkspaceID: "other"}))
	if o.Total.Cents != 65000 || o.Count != 3 || o.OverBudget() {
		t.Fatalf("unexpected overview %+v", o)
	}
}

func TestEmptyLedger(t *testing.T) {
	budget := core.Money{Cents: 200000}
	if got := TotalSpent(nil); got.Cents != 0 {
		t.Fatalf("total = %d", got.Cents)
	}
	if got := BudgetRemaining(budget, nil); got != budget {
		t.Fatalf("remaining = %d, want budget", got.Cents)
	}
	if got := CategoryBreakdown(nil); len(got) != 0 {
		t.Fatalf("breakdown = %+v", got)
	}
}

func TestOverBudgetIsNegative(t *testing.T) {
	budget := core.Money{Cents: 1000}
	ledger := []core.Expense{exp("a", 1500, core.Housing)}
	if got := BudgetRemaining(budget, ledger); got.Cents != -500 {
		t.Fatalf("remaining = %d, want -500", got.Cents)
	}
	if o := Summary(core.Workspace{ID: "ws", Budget: budget}, ledger); !o.OverBudget() || o.Percentage != 150 {
		t.Fatalf("unexpected overview %+v", o)
	}
}

func TestSortByAmountReversesAndIsStable(t *testing.T) {
	ledger := []core.Expense{
		exp("a", 300, core.Food),
		exp("b", 100, core.Food),
		exp("c", 200, core.Food),
	}
	asc := ids(SortBy(ledger, SortByAmount, Asc))
	desc := ids(SortBy(ledger, SortByAmount, Desc))
	if !reflect.DeepEqual(asc, []string{"b", "c", "a"}) {
		t.Fatalf("asc = %v", asc)
	}
	for i := range asc {
		if asc[i] != desc[len(desc)-1-i] {
			t.Fatalf("desc %v is not the reverse of asc %v", desc, asc)
		}
	}

	ties := []core.Expense{
		exp("first", 500, core.Food),
		exp("low", 100, core.Food),
		exp("second", 500, core.Food),
		exp("third", 500, core.Food),
	}
	if got := ids(SortBy(ties, SortByAmount, Asc)); !reflect.DeepEqual(got, []string{"low", "first", "second", "third"}) {
		t.Fatalf("asc ties = %v", got)
	}
	if got := ids(SortBy(ties, SortByAmount, Desc)); !reflect.DeepEqual(got, []string{"first", "second", "third", "low"}) {
		t.Fatalf("desc ties = %v", got)
	}
}

func TestSortByDateAndStrings(t *testing.T) {
	a := exp("a", 1, core.Food)
	a.Date = core.NewDate(2024, 11, 2)
	a.Description = "bread"
	a.OwnerName = "Zoe"
	b := exp("b", 1, core.Utilities)
	b.Date = core.NewDate(2024, 2, 10)
	b.Description = "Apples"
	b.OwnerName = "Adam"
	ledger := []core.Expense{a, b}

	tests := []struct {
		key  SortKey
		dir  Direction
		want []string
	}{
		{SortByDate, Asc, []string{"b", "a"}},
		{SortByDate, Desc, []string{"a", "b"}},
		{SortByDescription, Asc, []string{"b", "a"}},
		{SortByCategory, Asc, []string{"a", "b"}},
		{SortByOwner, Desc, []string{"a", "b"}},
	}
	for _, tt := range tests {
		if got := ids(SortBy(ledger, tt.key, tt.dir)); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SortBy(%s, %s) = %v, want %v", tt.key, tt.dir, got, tt.want)
		}
	}
	if ledger[0].ID != "a" {
		t.Fatalf("input reordered")
	}

	// same second, different fractions
	noon := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	whole := exp("whole", 1, core.Food)
	whole.Date = core.Date{Time: noon}
	half := exp("half", 1, core.Food)
	half.Date = core.Date{Time: noon.Add(500 * time.Millisecond)}
	later := exp("later", 1, core.Food)
	later.Date = core.Date{Time: noon.Add(550 * time.Millisecond)}
	sameSecond := []core.Expense{later, half, whole}
	if got := ids(SortBy(sameSecond, SortByDate, Asc)); !reflect.DeepEqual(got, []string{"whole", "half", "later"}) {
		t.Errorf("sub-second asc = %v", got)
	}
	if got := ids(SortBy(sameSecond, SortByDate, Desc)); !reflect.DeepEqual(got, []string{"later", "half", "whole"}) {
		t.Errorf("sub-second desc = %v", got)
	}
}

func TestSearchAndFilter(t *testing.T) {
	a := exp("a", 1, core.Food)
	a.Description = "Weekly Groceries"
	b := exp("b", 1, core.Transportation)
	b.OwnerName = "Grace"
	c := exp("c", 1, core.Food)
	c.WorkspaceID = "other"
	ledger := []core.Expense{a, b, c}

	if got := ids(Search(ledger, "GRO")); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("search description = %v", got)
	}
	if got := ids(Search(ledger, "grace")); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("search owner = %v", got)
	}
	if got := Search(ledger, "  "); len(got) != 3 {
		t.Fatalf("empty term filtered: %v", ids(got))
	}
	if got := ids(FilterByCategory(ledger, core.Food)); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Fatalf("category = %v", got)
	}
	if got := FilterByCategory(ledger, core.AllCategories); len(got) != 3 {
		t.Fatalf("All filtered: %v", ids(got))
	}
	if got := ids(ScopeToWorkspace(ledger, "ws")); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("scope = %v", got)
	}

	v := View(ledger, Filter{WorkspaceID: "ws", Category: core.Food, Key: SortByAmount, Direction: Asc})
	if got := ids(v); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("view = %v", got)
	}
}

func TestParseSortOptions(t *testing.T) {
	if k, err := ParseSortKey("Amount"); err != nil || k != SortByAmount {
		t.Fatalf("got %q, %v", k, err)
	}
	if _, err := ParseSortKey("weight"); err == nil {
		t.Fatalf("expected error")
	}
	if d, err := ParseDirection(""); err != nil || d != Desc {
		t.Fatalf("got %q, %v", d, err)
	}
	if _, err := ParseDirection("up"); err == nil {
		t.Fatalf("expected error")
	}
}
