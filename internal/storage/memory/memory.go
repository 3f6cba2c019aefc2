// Package memory is an in-process implementation of storage.Store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"duoaccount/internal/core"
	"duoaccount/internal/storage"
)

type row struct {
	expense core.Expense
	seq     uint64
}

type Store struct {
	mu   sync.Mutex
	seq  uint64
	duos map[string][]row
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{duos: make(map[string][]row)}
}

// Seed loads records into a duo as if they had been inserted in order.
func (s *Store) Seed(duoID string, es ...core.Expense) []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, 0, len(es))
	for _, e := range es {
		out = append(out, s.insertLocked(duoID, e))
	}
	return out
}

func (s *Store) ListExpenses(_ context.Context, duoID string) ([]core.Expense, error) {
	s.mu.Lock()
	rows := append([]row(nil), s.duos[duoID]...)
	s.mu.Unlock()

	sort.SliceStable(rows, func(i, j int) bool {
		di, dj := rows[i].expense.Date, rows[j].expense.Date
		if !di.Equal(dj.Time) {
			return di.After(dj.Time)
		}
		return rows[i].seq > rows[j].seq
	})
	out := make([]core.Expense, len(rows))
	for i, r := range rows {
		out[i] = r.expense
	}
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, duoID, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(duoID, id); i >= 0 {
		return s.duos[duoID][i].expense, nil
	}
	return core.Expense{}, storage.ErrNotFound
}

func (s *Store) InsertExpense(_ context.Context, duoID string, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(duoID, e), nil
}

func (s *Store) UpdateExpense(_ context.Context, duoID string, e core.Expense) (core.Expense, error) {
	if !e.IsPersisted() {
		return core.Expense{}, storage.ErrNotFound
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(duoID, e.ID)
	if i < 0 {
		return core.Expense{}, storage.ErrNotFound
	}
	s.duos[duoID][i].expense = e
	return e, nil
}

func (s *Store) DeleteExpense(_ context.Context, duoID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(duoID, id)
	if i < 0 {
		return storage.ErrNotFound
	}
	rows := s.duos[duoID]
	s.duos[duoID] = append(rows[:i:i], rows[i+1:]...)
	return nil
}

func (s *Store) InsertBatch(_ context.Context, duoID string, es []core.Expense) ([]core.Expense, error) {
	for i, e := range es {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, 0, len(es))
	for _, e := range es {
		out = append(out, s.insertLocked(duoID, e))
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) insertLocked(duoID string, e core.Expense) core.Expense {
	s.seq++
	e.ID = uuid.NewString()
	s.duos[duoID] = append(s.duos[duoID], row{expense: e, seq: s.seq})
	return e
}

func (s *Store) indexLocked(duoID, id string) int {
	for i, r := range s.duos[duoID] {
		if r.expense.ID == id {
			return i
		}
	}
	return -1
}
