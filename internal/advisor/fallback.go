package advisor

import (
	"context"
	"fmt"
	"time"

	"ledgerspace/internal/cache"
	"ledgerspace/internal/core"
	"ledgerspace/internal/log"
	"ledgerspace/internal/query"
)

// FallbackAdvice is returned whenever the service cannot produce advice.
const FallbackAdvice = "Advice is unavailable right now. Review your largest categories against the budget and keep logging expenses as they happen."

const defaultTimeout = 15 * time.Second

// Fallback wraps a Client so that it never fails: errors and timeouts are
// logged and replaced by a fixed result.
type Fallback struct {
	inner   Client
	timeout time.Duration
	cache   *cache.LRUCache[string]
	logger  *log.Logger
}

var _ Client = (*Fallback)(nil)

// NewFallback wraps inner. A nil inner behaves as an always-failing service,
// so every call returns the fallback. adviceCache may be nil.
func NewFallback(inner Client, timeout time.Duration, adviceCache *cache.LRUCache[string], logger *log.Logger) *Fallback {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Fallback{
		inner:   inner,
		timeout: timeout,
		cache:   adviceCache,
		logger:  logger.WithComponent(log.ComponentAdvisor),
	}
}

// ExtractExpense returns the service's extraction or, on failure, an empty
// one, so MergeDraft leaves the caller's draft untouched.
func (f *Fallback) ExtractExpense(ctx context.Context, text string) (Extraction, error) {
	if f.inner == nil {
		return Extraction{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	x, err := f.inner.ExtractExpense(ctx, text)
	if err != nil {
		f.logger.WarnContext(ctx, "Expense extraction failed, using fallback",
			log.FieldOperation, log.OpExtract,
			log.FieldError, err)
		return Extraction{}, nil
	}
	if !x.Category.Valid() {
		x.Category = ""
	}
	return x, nil
}

// FinancialAdvice returns the service's advice or FallbackAdvice.
func (f *Fallback) FinancialAdvice(ctx context.Context, expenses []core.Expense, budget core.Money) (string, error) {
	if f.inner == nil {
		return FallbackAdvice, nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	advice, err := f.inner.FinancialAdvice(ctx, expenses, budget)
	if err != nil {
		f.logger.WarnContext(ctx, "Financial advice failed, using fallback",
			log.FieldOperation, log.OpAdvise,
			log.FieldError, err)
		return FallbackAdvice, nil
	}
	return advice, nil
}

// AdviseWorkspace asks for advice on one workspace's ledger. Successful
// answers are cached per workspace and snapshot version; fallbacks are not.
func (f *Fallback) AdviseWorkspace(ctx context.Context, state core.AppState, workspaceID string) (string, error) {
	ws, ok := state.Workspace(workspaceID)
	if !ok {
		return "", fmt.Errorf("%w: workspace %s", core.ErrNotFound, workspaceID)
	}
	key := cache.VersionKey(ws.ID, state.Version)
	if f.cache != nil {
		if advice, hit := f.cache.Get(key); hit {
			f.logger.DebugContext(ctx, "Advice served from cache", log.FieldWorkspaceID, ws.ID)
			return advice, nil
		}
	}

	advice, _ := f.FinancialAdvice(ctx, query.ScopeToWorkspace(state.Expenses, ws.ID), ws.Budget)
	if f.cache != nil && advice != FallbackAdvice {
		f.cache.Set(key, advice)
	}
	return advice, nil
}
