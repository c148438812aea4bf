// Package advisor talks to the external text-generation service that turns
// free text into expense drafts and produces budgeting advice. Nothing here
// touches the ledger state; results only ever feed a draft or a message.
package advisor

import (
	"context"
	"strings"

	"ledgerspace/internal/core"
)

// Extraction is what the service could recover from free text. Amount is
// nil when the text did not mention one.
type Extraction struct {
	Category    core.Category `json:"category"`
	Amount      *core.Money   `json:"amount,omitempty"`
	Description string        `json:"description"`
}

// Client is the request/response contract of the text-generation service.
type Client interface {
	ExtractExpense(ctx context.Context, text string) (Extraction, error)
	FinancialAdvice(ctx context.Context, expenses []core.Expense, budget core.Money) (string, error)
}

// Draft is an expense being composed before it is submitted as AddExpense.
type Draft struct {
	Description string
	Amount      core.Money
	Category    core.Category
}

// MergeDraft overlays an extraction on a draft. Fields the extraction leaves
// empty, or fills with something unusable, keep the draft's value. A draft
// left without a category gets Other.
func MergeDraft(d Draft, x Extraction) Draft {
	if desc := strings.TrimSpace(x.Description); desc != "" {
		d.Description = desc
	}
	if x.Amount != nil && x.Amount.Cents > 0 {
		d.Amount = *x.Amount
	}
	if x.Category.Valid() {
		d.Category = x.Category
	}
	if !d.Category.Valid() {
		d.Category = core.Other
	}
	return d
}
