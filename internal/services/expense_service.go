package services

import (
	"context"
	"fmt"
	"strings"

	"ledgerspace/internal/advisor"
	"ledgerspace/internal/core"
	"ledgerspace/internal/ledger"
	"ledgerspace/internal/log"
)

// ExpenseService combines the ledger with the text-generation advisor:
// free text becomes a draft, the draft becomes an AddExpense transition.
type ExpenseService struct {
	store   *ledger.Store
	advisor *advisor.Fallback
	logger  *log.Logger
}

func NewExpenseService(store *ledger.Store, adv *advisor.Fallback, logger *log.Logger) *ExpenseService {
	if adv == nil {
		adv = advisor.NewFallback(nil, 0, nil, logger)
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &ExpenseService{store: store, advisor: adv, logger: logger.WithComponent(log.ComponentApp)}
}

// Categorize merges what the advisor extracts from text into draft. The text
// itself becomes the description only when neither the draft nor the
// extraction has one.
func (s *ExpenseService) Categorize(ctx context.Context, text string, draft advisor.Draft) advisor.Draft {
	x, _ := s.advisor.ExtractExpense(ctx, text)
	merged := advisor.MergeDraft(draft, x)
	if strings.TrimSpace(merged.Description) == "" {
		merged.Description = strings.TrimSpace(text)
	}
	return merged
}

// CreateFromText categorizes text and records the result in the current
// workspace. The ledger still validates the merged draft, so text without a
// usable amount and no prior draft amount is rejected as a validation error.
func (s *ExpenseService) CreateFromText(ctx context.Context, text string, draft advisor.Draft, date *core.Date) (core.Expense, error) {
	if s.store == nil {
		return core.Expense{}, fmt.Errorf("ledger not initialized")
	}
	merged := s.Categorize(ctx, text, draft)
	t := &ledger.AddExpense{
		Description: merged.Description,
		Amount:      merged.Amount,
		Category:    merged.Category,
		Date:        date,
	}
	if _, err := s.store.Apply(ctx, t); err != nil {
		return core.Expense{}, err
	}
	s.logger.InfoContext(ctx, "Expense created from text",
		log.FieldExpenseID, t.Created.ID,
		log.FieldCategory, string(t.Created.Category),
		log.FieldAmountCents, t.Created.Amount.Cents)
	return t.Created, nil
}

// Advise returns advice for a workspace of the current snapshot. An empty
// workspaceID means the current workspace. The active user must be a member.
func (s *ExpenseService) Advise(ctx context.Context, workspaceID string) (string, error) {
	if s.store == nil {
		return "", fmt.Errorf("ledger not initialized")
	}
	state := s.store.Snapshot()
	if workspaceID == "" {
		workspaceID = state.CurrentWorkspaceID
	}
	user, ok := state.ActiveUser()
	if !ok {
		return "", fmt.Errorf("%w: not logged in", core.ErrPermissionDenied)
	}
	ws, ok := state.Workspace(workspaceID)
	if !ok {
		return "", fmt.Errorf("%w: workspace %s", core.ErrNotFound, workspaceID)
	}
	if !ledger.IsMember(user, ws) {
		return "", fmt.Errorf("%w: not a member of %s", core.ErrPermissionDenied, ws.Name)
	}
	return s.advisor.AdviseWorkspace(ctx, state, ws.ID)
}
