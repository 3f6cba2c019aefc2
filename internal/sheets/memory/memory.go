// Package memory keeps mirrored ledgers in process, for tests and for
// deployments without a spreadsheet.
package memory

import (
	"context"
	"sync"

	"duoaccount/internal/core"
	"duoaccount/internal/sheets"
)

// Snapshot is the last mirrored state of a duo.
type Snapshot struct {
	Records []core.Expense
	Global  core.BalanceSummary
	Writes  int
}

type Mirror struct {
	mu   sync.Mutex
	duos map[string]Snapshot
	err  error
}

var _ sheets.Mirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{duos: make(map[string]Snapshot)}
}

// FailWith makes subsequent writes return err; nil restores normal behaviour.
func (m *Mirror) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Mirror) MirrorLedger(_ context.Context, duoID string, records []core.Expense, global core.BalanceSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	prev := m.duos[duoID]
	m.duos[duoID] = Snapshot{
		Records: append([]core.Expense(nil), records...),
		Global:  global,
		Writes:  prev.Writes + 1,
	}
	return nil
}

// Get returns the last mirrored snapshot of duoID.
func (m *Mirror) Get(duoID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.duos[duoID]
	return s, ok
}
