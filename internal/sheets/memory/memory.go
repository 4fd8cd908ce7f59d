package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

var _ ports.LedgerWriter = (*Ledger)(nil)

// Ledger keeps appended rows in memory. Used when no spreadsheet is
// configured and in tests.
type Ledger struct {
	mu   sync.Mutex
	rows []core.Instance
}

func New() *Ledger {
	return &Ledger{}
}

// AppendInstance stores the instance and returns a synthetic row reference.
func (l *Ledger) AppendInstance(_ context.Context, inst core.Instance) (string, error) {
	if inst.ID == "" {
		return "", errors.New("instance without id")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, inst)
	return fmt.Sprintf("mem:%d", len(l.rows)), nil
}

// Rows returns a copy of the appended instances in append order.
func (l *Ledger) Rows() []core.Instance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.Instance(nil), l.rows...)
}
