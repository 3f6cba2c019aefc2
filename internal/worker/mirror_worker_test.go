package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"duoaccount/internal/core"
	sheetsmem "duoaccount/internal/sheets/memory"
	"duoaccount/internal/storage/memory"
)

func seeded() *memory.Store {
	s := memory.New()
	s.Seed("duo-a",
		core.Expense{Label: "Courses", Amount: core.Cents(10000), Date: core.NewDate(2025, 4, 2), PaidBy: core.Martin, Category: core.Food},
		core.Expense{Label: "Pain", Amount: core.Cents(6000), Date: core.NewDate(2025, 4, 3), PaidBy: core.Josephine, Category: core.Food})
	s.Seed("duo-b",
		core.Expense{Label: "Cinéma", Amount: core.Cents(1800), Date: core.NewDate(2025, 4, 4), PaidBy: core.Josephine, Category: core.Leisure})
	return s
}

func TestHandleChangeMirrorsDuo(t *testing.T) {
	mirror := sheetsmem.New()
	w := NewMirrorWorker(seeded(), mirror, nil)

	if err := w.HandleChange(context.Background(), core.NewChangeEvent("duo-a", core.OpInserted, "x")); err != nil {
		t.Fatal(err)
	}
	got, ok := mirror.Get("duo-a")
	if !ok || len(got.Records) != 2 || got.Global.Balance != core.Cents(2000) {
		t.Fatalf("unexpected mirror %+v", got)
	}
	if _, ok := mirror.Get("duo-b"); ok {
		t.Fatal("only the changed duo should be mirrored")
	}
	if d := w.Duos(); len(d) != 1 || d[0] != "duo-a" {
		t.Fatalf("unexpected tracked duos %v", d)
	}
}

func TestMirrorAll(t *testing.T) {
	mirror := sheetsmem.New()
	w := NewMirrorWorker(seeded(), mirror, nil, "duo-a", "duo-b", "")
	if err := w.MirrorAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{"duo-a", "duo-b"} {
		if s, ok := mirror.Get(d); !ok || s.Writes != 1 {
			t.Fatalf("%s not mirrored: %+v", d, s)
		}
	}
}

func TestMirrorFailureIsReturned(t *testing.T) {
	mirror := sheetsmem.New()
	boom := errors.New("quota")
	mirror.FailWith(boom)
	w := NewMirrorWorker(seeded(), mirror, nil, "duo-a")
	if err := w.MirrorAll(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected mirror error, got %v", err)
	}
	if err := w.HandleChange(context.Background(), core.NewChangeEvent("duo-b", core.OpDeleted, "y")); !errors.Is(err, boom) {
		t.Fatalf("expected mirror error so the event is requeued, got %v", err)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	mirror := sheetsmem.New()
	w := NewMirrorWorker(seeded(), mirror, nil, "duo-a")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, 5*time.Millisecond) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if s, ok := mirror.Get("duo-a"); ok && s.Writes > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("periodic mirror never ran")
		}
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
