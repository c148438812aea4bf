package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ledgerspace/internal/advisor"
	"ledgerspace/internal/cache"
	"ledgerspace/internal/core"
	"ledgerspace/internal/ledger"
	"ledgerspace/internal/log"
)

func init() {
	core.SecretCost = bcrypt.MinCost
}

type scriptedAdvisor struct {
	extraction advisor.Extraction
	advice     string
	err        error
	adviceHits int
}

func (s *scriptedAdvisor) ExtractExpense(context.Context, string) (advisor.Extraction, error) {
	return s.extraction, s.err
}

func (s *scriptedAdvisor) FinancialAdvice(context.Context, []core.Expense, core.Money) (string, error) {
	s.adviceHits++
	return s.advice, s.err
}

func loggedInStore(t *testing.T) *ledger.Store {
	t.Helper()
	state, err := core.DefaultState(nil, "admin-secret", "")
	if err != nil {
		t.Fatalf("default state: %v", err)
	}
	st, err := ledger.NewStore(state, ledger.WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := st.Apply(context.Background(), &ledger.Authenticate{Identifier: core.DefaultAdminEmail, Secret: "admin-secret"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	return st
}

func TestNewExpenseService_NilAdvisorFallsBack(t *testing.T) {
	svc := NewExpenseService(nil, nil, nil)
	draft := svc.Categorize(context.Background(), "coffee beans", advisor.Draft{Amount: core.Money{Cents: 900}})
	if draft.Category != core.Other || draft.Description != "coffee beans" || draft.Amount.Cents != 900 {
		t.Fatalf("draft = %+v", draft)
	}
}

func TestExpenseService_CategorizeFailureKeepsDraft(t *testing.T) {
	adv := &scriptedAdvisor{err: errors.New("service down")}
	svc := NewExpenseService(nil, advisor.NewFallback(adv, time.Second, nil, nil), nil)

	prior := advisor.Draft{Description: "Birthday gift", Amount: core.Money{Cents: 2500}, Category: core.Shopping}
	if got := svc.Categorize(context.Background(), "present for mum", prior); got != prior {
		t.Fatalf("draft = %+v, want %+v", got, prior)
	}
}

func TestExpenseService_CreateFromText(t *testing.T) {
	st := loggedInStore(t)
	adv := &scriptedAdvisor{extraction: advisor.Extraction{
		Category:    core.Transportation,
		Amount:      &core.Money{Cents: 2350},
		Description: "Train ticket",
	}}
	svc := NewExpenseService(st, advisor.NewFallback(adv, time.Second, nil, nil), nil)

	date := core.NewDate(2025, 4, 2)
	e, err := svc.CreateFromText(context.Background(), "train to town 23.50", advisor.Draft{}, &date)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.Category != core.Transportation || e.Amount.Cents != 2350 || e.Description != "Train ticket" {
		t.Fatalf("expense = %+v", e)
	}
	snap := st.Snapshot()
	if len(snap.Expenses) != 1 || snap.Expenses[0].ID != e.ID {
		t.Fatalf("expense not committed: %+v", snap.Expenses)
	}
}

func TestExpenseService_CreateFromTextWithoutAmount(t *testing.T) {
	st := loggedInStore(t)
	adv := &scriptedAdvisor{err: errors.New("service down")}
	svc := NewExpenseService(st, advisor.NewFallback(adv, time.Second, nil, nil), nil)

	_, err := svc.CreateFromText(context.Background(), "groceries", advisor.Draft{}, nil)
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}

	e, err := svc.CreateFromText(context.Background(), "groceries", advisor.Draft{Amount: core.Money{Cents: 4000}}, nil)
	if err != nil {
		t.Fatalf("create with prior amount: %v", err)
	}
	if e.Category != core.Other || e.Amount.Cents != 4000 || e.Description != "groceries" {
		t.Fatalf("expense = %+v", e)
	}
}

func TestExpenseService_Advise(t *testing.T) {
	st := loggedInStore(t)
	adv := &scriptedAdvisor{advice: "Looks fine."}
	svc := NewExpenseService(st, advisor.NewFallback(adv, time.Second, cache.NewLRUCache[string](8, time.Hour), nil), nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		got, err := svc.Advise(ctx, "")
		if err != nil || got != "Looks fine." {
			t.Fatalf("advise = %q, %v", got, err)
		}
	}
	if adv.adviceHits != 1 {
		t.Fatalf("advisor called %d times, want 1 (cached)", adv.adviceHits)
	}

	if _, err := svc.Advise(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}

	if _, err := st.Apply(ctx, &ledger.Logout{}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Advise(ctx, ""); !errors.Is(err, core.ErrPermissionDenied) {
		t.Fatalf("err = %v, want permission denied", err)
	}
}
