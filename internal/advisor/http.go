package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ledgerspace/internal/core"
)

// HTTPClient calls the service over JSON:
//
//	POST {base}/extract  {"text": "..."}                      -> {"category", "amount", "description"}
//	POST {base}/advice   {"expenses": [...], "budgetLimit": n} -> {"advice": "..."}
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a client for baseURL. A nil httpClient gets a
// default with a 10s timeout.
func NewHTTPClient(baseURL, apiKey string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		http:    httpClient,
	}
}

type adviceExpense struct {
	Description string        `json:"description"`
	Amount      core.Money    `json:"amount"`
	Category    core.Category `json:"category"`
	Date        string        `json:"date"`
}

func (c *HTTPClient) ExtractExpense(ctx context.Context, text string) (Extraction, error) {
	var payload struct {
		Category    string      `json:"category"`
		Amount      *core.Money `json:"amount"`
		Description string      `json:"description"`
	}
	if err := c.post(ctx, "/extract", map[string]string{"text": text}, &payload); err != nil {
		return Extraction{}, err
	}
	x := Extraction{Amount: payload.Amount, Description: strings.TrimSpace(payload.Description)}
	if cat, err := core.ParseCategory(payload.Category); err == nil && cat != core.AllCategories {
		x.Category = cat
	}
	return x, nil
}

func (c *HTTPClient) FinancialAdvice(ctx context.Context, expenses []core.Expense, budget core.Money) (string, error) {
	items := make([]adviceExpense, 0, len(expenses))
	for _, e := range expenses {
		items = append(items, adviceExpense{
			Description: e.Description,
			Amount:      e.Amount,
			Category:    e.Category,
			Date:        e.Date.Format("2006-01-02"),
		})
	}
	req := struct {
		Expenses    []adviceExpense `json:"expenses"`
		BudgetLimit core.Money      `json:"budgetLimit"`
	}{items, budget}

	var payload struct {
		Advice string `json:"advice"`
	}
	if err := c.post(ctx, "/advice", req, &payload); err != nil {
		return "", err
	}
	advice := strings.TrimSpace(payload.Advice)
	if advice == "" {
		return "", fmt.Errorf("advice response missing text")
	}
	return advice, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("advisor url is required")
	}
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", path, err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("%s request status %d: %s", path, res.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
