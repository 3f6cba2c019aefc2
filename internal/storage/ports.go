// Package storage persists the duo ledger. Every query is scoped by the
// pair's group identifier so several duos can share one database.
package storage

import (
	"context"
	"errors"

	"duoaccount/internal/core"
)

// ErrNotFound is returned when an expense id does not exist for the duo.
var ErrNotFound = errors.New("expense not found")

// Store is the remote ledger port used by the ledger service and the workers.
type Store interface {
	// ListExpenses returns the duo's records, most recent date first.
	ListExpenses(ctx context.Context, duoID string) ([]core.Expense, error)
	GetExpense(ctx context.Context, duoID, id string) (core.Expense, error)
	// InsertExpense assigns a fresh id and returns the stored record.
	InsertExpense(ctx context.Context, duoID string, e core.Expense) (core.Expense, error)
	// UpdateExpense replaces every field of the record identified by e.ID.
	UpdateExpense(ctx context.Context, duoID string, e core.Expense) (core.Expense, error)
	DeleteExpense(ctx context.Context, duoID, id string) error
	// InsertBatch stores each record under a fresh id, all or nothing.
	InsertBatch(ctx context.Context, duoID string, es []core.Expense) ([]core.Expense, error)
	Ping(ctx context.Context) error
	Close() error
}
