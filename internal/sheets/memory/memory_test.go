package memory

import (
	"context"
	"errors"
	"testing"

	"duoaccount/internal/core"
)

func TestMirrorKeepsLatestSnapshot(t *testing.T) {
	m := New()
	ctx := context.Background()
	records := []core.Expense{{ID: "1", Label: "Courses", Amount: core.Cents(100), Date: core.NewDate(2025, 1, 1), PaidBy: core.Martin, Category: core.Food}}

	if err := m.MirrorLedger(ctx, "duo", records, core.ComputeBalance(records)); err != nil {
		t.Fatal(err)
	}
	records[0].Label = "changed by caller"
	if err := m.MirrorLedger(ctx, "duo", nil, core.BalanceSummary{}); err != nil {
		t.Fatal(err)
	}

	got, ok := m.Get("duo")
	if !ok || got.Writes != 2 || len(got.Records) != 0 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if _, ok := m.Get("other"); ok {
		t.Fatal("unexpected duo")
	}
}

func TestMirrorFailure(t *testing.T) {
	m := New()
	boom := errors.New("quota exceeded")
	m.FailWith(boom)
	if err := m.MirrorLedger(context.Background(), "duo", nil, core.BalanceSummary{}); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	m.FailWith(nil)
	if err := m.MirrorLedger(context.Background(), "duo", nil, core.BalanceSummary{}); err != nil {
		t.Fatal(err)
	}
}
