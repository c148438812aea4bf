// Package memory is an in-process LedgerExporter used by tests and by the
// worker when no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"ledgerspace/internal/sheets"
)

type Exporter struct {
	mu      sync.Mutex
	prefix  string
	tabs    map[string][][]any
	exports int
}

func New(prefix string) *Exporter {
	return &Exporter{prefix: prefix, tabs: make(map[string][][]any)}
}

var _ sheets.LedgerExporter = (*Exporter)(nil)

// ExportWorkspace replaces the workspace's tab.
func (s *Exporter) ExportWorkspace(_ context.Context, x sheets.WorkspaceExport) (string, error) {
	rows := sheets.Rows(x)
	title := sheets.TabTitle(s.prefix, x.Workspace.Name)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs[title] = rows
	s.exports++
	return fmt.Sprintf("mem:%s!A1:H%d", title, len(rows)), nil
}

// Tab returns a copy of the rows last written to title.
func (s *Exporter) Tab(title string) ([][]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tabs[title]
	if !ok {
		return nil, false
	}
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = append([]any(nil), r...)
	}
	return out, true
}

// Exports counts ExportWorkspace calls.
func (s *Exporter) Exports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exports
}
