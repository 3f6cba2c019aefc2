package memory

import (
	"context"
	"errors"
	"testing"

	"duoaccount/internal/core"
	"duoaccount/internal/storage"
)

func exp(label string, d core.Date) core.Expense {
	return core.Expense{Label: label, Amount: core.Cents(500), Date: d, PaidBy: core.Martin, Category: core.Food}
}

func TestListOrderAndScope(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Seed("duo",
		exp("old", core.NewDate(2025, 1, 1)),
		exp("new", core.NewDate(2025, 2, 1)),
		exp("new-later-insert", core.NewDate(2025, 2, 1)),
	)
	s.Seed("other", exp("elsewhere", core.NewDate(2025, 3, 1)))

	got, err := s.ListExpenses(ctx, "duo")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"new-later-insert", "new", "old"}
	if len(got) != len(want) {
		t.Fatalf("got %d records", len(got))
	}
	for i, label := range want {
		if got[i].Label != label {
			t.Fatalf("position %d: got %q want %q", i, got[i].Label, label)
		}
	}
}

func TestCRUD(t *testing.T) {
	s := New()
	ctx := context.Background()

	stored, err := s.InsertExpense(ctx, "duo", exp("a", core.NewDate(2025, 1, 1)))
	if err != nil || stored.ID == "" {
		t.Fatalf("insert: %+v %v", stored, err)
	}
	stored.Label = "b"
	if _, err := s.UpdateExpense(ctx, "duo", stored); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := s.GetExpense(ctx, "duo", stored.ID)
	if got.Label != "b" {
		t.Fatalf("update not applied: %+v", got)
	}
	if _, err := s.GetExpense(ctx, "other", stored.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound across duos, got %v", err)
	}
	if err := s.DeleteExpense(ctx, "duo", stored.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteExpense(ctx, "duo", stored.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.InsertExpense(ctx, "duo", core.Expense{}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestInsertBatchAllOrNothing(t *testing.T) {
	s := New()
	ctx := context.Background()
	bad := []core.Expense{exp("ok", core.NewDate(2025, 1, 1)), {Label: "bad"}}
	if _, err := s.InsertBatch(ctx, "duo", bad); err == nil {
		t.Fatal("expected error")
	}
	if got, _ := s.ListExpenses(ctx, "duo"); len(got) != 0 {
		t.Fatalf("expected nothing stored, got %d", len(got))
	}
	out, err := s.InsertBatch(ctx, "duo", bad[:1])
	if err != nil || len(out) != 1 {
		t.Fatalf("batch: %v %v", out, err)
	}
}
