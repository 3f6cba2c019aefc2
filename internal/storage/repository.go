package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"duoaccount/internal/core"

	_ "modernc.org/sqlite"
)

const timestampLayout = time.RFC3339Nano

const selectColumns = `id, label, amount_cents, date, paid_by, category`

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// sqlite serialises writers; one connection avoids SQLITE_BUSY under load
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, duoID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM expenses WHERE duo_id = ? ORDER BY date DESC, created_at DESC, rowid DESC`,
		duoID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, duoID, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM expenses WHERE duo_id = ? AND id = ?`, duoID, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	return e, err
}

func (r *SQLiteRepository) InsertExpense(ctx context.Context, duoID string, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	stored, err := r.insert(ctx, r.db, duoID, e)
	if err != nil {
		return core.Expense{}, err
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", stored.ID,
		"duo_id", duoID,
		"amount_cents", stored.Amount.Cents,
		"paid_by", stored.PaidBy.String(),
		"category", stored.Category.String())

	return stored, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, duoID string, e core.Expense) (core.Expense, error) {
	if !e.IsPersisted() {
		return core.Expense{}, ErrNotFound
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET label = ?, amount_cents = ?, date = ?, paid_by = ?, category = ?, updated_at = ?
		 WHERE duo_id = ? AND id = ?`,
		e.Label, e.Amount.Cents, e.Date.String(), e.PaidBy.String(), e.Category.String(),
		r.now().UTC().Format(timestampLayout), duoID, e.ID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %s: %w", e.ID, err)
	}
	if err := expectOneRow(res); err != nil {
		return core.Expense{}, err
	}

	slog.InfoContext(ctx, "Expense updated in SQLite", "id", e.ID, "duo_id", duoID)
	return e, nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, duoID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE duo_id = ? AND id = ?`, duoID, id)
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Expense deleted from SQLite", "id", id, "duo_id", duoID)
	return nil
}

func (r *SQLiteRepository) InsertBatch(ctx context.Context, duoID string, es []core.Expense) ([]core.Expense, error) {
	for i, e := range es {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stored := make([]core.Expense, 0, len(es))
	for _, e := range es {
		s, err := r.insert(ctx, tx, duoID, e)
		if err != nil {
			return nil, err
		}
		stored = append(stored, s)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}

	slog.InfoContext(ctx, "Expense batch saved to SQLite", "duo_id", duoID, "count", len(stored))
	return stored, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *SQLiteRepository) insert(ctx context.Context, db execer, duoID string, e core.Expense) (core.Expense, error) {
	e.ID = uuid.NewString()
	ts := r.now().UTC().Format(timestampLayout)
	_, err := db.ExecContext(ctx,
		`INSERT INTO expenses (id, duo_id, label, amount_cents, date, paid_by, category, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, duoID, e.Label, e.Amount.Cents, e.Date.String(), e.PaidBy.String(), e.Category.String(), ts, ts)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e                      core.Expense
		date, paidBy, category string
	)
	if err := s.Scan(&e.ID, &e.Label, &e.Amount.Cents, &date, &paidBy, &category); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scan expense: %w", err)
	}
	var err error
	if e.Date, err = core.ParseDate(date); err != nil {
		return e, fmt.Errorf("expense %s: %w", e.ID, err)
	}
	if e.PaidBy, err = core.ParseParticipant(paidBy); err != nil {
		return e, fmt.Errorf("expense %s: %w", e.ID, err)
	}
	if e.Category, err = core.ParseCategory(category); err != nil {
		return e, fmt.Errorf("expense %s: %w", e.ID, err)
	}
	return e, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
