// Package memory keeps the invoice sheet in process; used when no
// spreadsheet is configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cardbill/internal/core"
	ports "cardbill/internal/sheets"
)

type Sheet struct {
	mu    sync.Mutex
	rows  []ports.InvoiceRow
	index map[core.InvoiceKey]int
}

var (
	_ ports.InvoiceWriter = (*Sheet)(nil)
	_ ports.InvoiceReader = (*Sheet)(nil)
)

func New() *Sheet {
	return &Sheet{index: make(map[core.InvoiceKey]int)}
}

// UpsertInvoiceRow replaces the row of (month, card) or appends a new one.
func (s *Sheet) UpsertInvoiceRow(_ context.Context, row ports.InvoiceRow) (string, error) {
	if row.Month.IsZero() || row.CardID <= 0 {
		return "", fmt.Errorf("invalid invoice row %s/%d", row.Month, row.CardID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := core.InvoiceKey{Month: row.Month, CardID: row.CardID}
	if i, ok := s.index[key]; ok {
		s.rows[i] = row
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	s.rows = append(s.rows, row)
	s.index[key] = len(s.rows) - 1
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Sheet) ListInvoiceRows(_ context.Context, month core.Month) ([]ports.InvoiceRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ports.InvoiceRow
	for _, r := range s.rows {
		if r.Month == month {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CardID < out[j].CardID })
	return out, nil
}

// Len reports how many rows the sheet holds.
func (s *Sheet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
