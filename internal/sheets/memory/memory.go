// Package memory is an in-process ledger used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"mahal/internal/sheets"
)

type Ledger struct {
	mu   sync.Mutex
	rows []sheets.LedgerRow
}

var _ sheets.Ledger = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{}
}

// UpsertCollection replaces the row with the same receipt or appends.
func (l *Ledger) UpsertCollection(_ context.Context, row sheets.LedgerRow) (string, error) {
	if row.Receipt == "" {
		return "", errors.New("ledger row without receipt")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.rows {
		if l.rows[i].Receipt == row.Receipt {
			l.rows[i] = row
			return fmt.Sprintf("mem:%d", i+1), nil
		}
	}
	l.rows = append(l.rows, row)
	return fmt.Sprintf("mem:%d", len(l.rows)), nil
}

func (l *Ledger) DeleteByReceipt(_ context.Context, receipt string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.rows {
		if l.rows[i].Receipt == receipt {
			l.rows = append(l.rows[:i], l.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (l *Ledger) ListRows(_ context.Context) ([]sheets.LedgerRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]sheets.LedgerRow(nil), l.rows...), nil
}
