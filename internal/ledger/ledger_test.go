package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"duoaccount/internal/core"
	"duoaccount/internal/localcache"
	"duoaccount/internal/storage"
	"duoaccount/internal/storage/memory"
)

var fixedNow = time.Date(2025, 4, 15, 9, 30, 0, 0, time.UTC)

type fakePair struct {
	mu     sync.Mutex
	id     string
	synced time.Time
}

func (p *fakePair) DuoID() string { return p.id }

func (p *fakePair) MarkSynced(at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synced = at
	return nil
}

// flakyStore wraps the memory store and fails on demand.
type flakyStore struct {
	*memory.Store
	failList  atomic.Bool
	failWrite atomic.Bool
	listCalls atomic.Int32
	block     chan struct{}
}

var errDown = errors.New("store down")

func (f *flakyStore) ListExpenses(ctx context.Context, duoID string) ([]core.Expense, error) {
	f.listCalls.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.failList.Load() {
		return nil, errDown
	}
	return f.Store.ListExpenses(ctx, duoID)
}

func (f *flakyStore) InsertExpense(ctx context.Context, duoID string, e core.Expense) (core.Expense, error) {
	if f.failWrite.Load() {
		return core.Expense{}, errDown
	}
	return f.Store.InsertExpense(ctx, duoID, e)
}

func (f *flakyStore) InsertBatch(ctx context.Context, duoID string, es []core.Expense) ([]core.Expense, error) {
	if f.failWrite.Load() {
		return nil, errDown
	}
	return f.Store.InsertBatch(ctx, duoID, es)
}

type recorder struct {
	mu          sync.Mutex
	published   []core.ChangeEvent
	broadcasted []core.ChangeEvent
	publishErr  error
}

func (r *recorder) Publish(_ context.Context, ev core.ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, ev)
	return r.publishErr
}

func (r *recorder) Broadcast(ev core.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasted = append(r.broadcasted, ev)
}

type fixture struct {
	svc   *Service
	store *flakyStore
	local *localcache.Cache
	pair  *fakePair
	rec   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	local, err := localcache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		store: &flakyStore{Store: memory.New()},
		local: local,
		pair:  &fakePair{id: "martin-josephine-42"},
		rec:   &recorder{},
	}
	f.svc = New(f.store, f.local, f.pair,
		WithPublisher(f.rec),
		WithBroadcaster(f.rec),
		WithClock(func() time.Time { return fixedNow }))
	return f
}

func rec(label string, cents int64, d core.Date, p core.Participant, c core.Category) core.Expense {
	return core.Expense{Label: label, Amount: core.Cents(cents), Date: d, PaidBy: p, Category: c}
}

func TestRefreshOnline(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(f.pair.id,
		rec("Courses", 10000, core.NewDate(2025, 4, 2), core.Martin, core.Food),
		rec("Loyer", 6000, core.NewDate(2025, 4, 1), core.Josephine, core.Housing))
	f.store.Seed("someone-else", rec("Other duo", 999, core.NewDate(2025, 4, 1), core.Martin, core.Food))

	if err := f.svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	snap := f.svc.Snapshot()
	if len(snap) != 2 || snap[0].Label != "Courses" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	st := f.svc.Status()
	if !st.Online || st.Count != 2 || st.DuoID != f.pair.id || st.Version != 1 {
		t.Fatalf("unexpected status: %+v", st)
	}
	cached, _ := f.local.LoadExpenses(f.pair.id)
	if len(cached) != 2 {
		t.Fatalf("snapshot not cached locally: %d", len(cached))
	}
	if !f.pair.synced.Equal(fixedNow) {
		t.Fatalf("sync time not recorded: %v", f.pair.synced)
	}

	snap[0].Label = "mutated"
	if f.svc.Snapshot()[0].Label != "Courses" {
		t.Fatal("Snapshot must return a copy")
	}
}

func TestRefreshFallsBackToLocalCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.Seed(f.pair.id, rec("Courses", 10000, core.NewDate(2025, 4, 2), core.Martin, core.Food))
	if err := f.svc.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	f.store.failList.Store(true)
	if err := f.svc.Refresh(ctx); err != nil {
		t.Fatalf("fallback refresh should not fail: %v", err)
	}
	st := f.svc.Status()
	if st.Online {
		t.Fatal("expected offline status")
	}
	if len(f.svc.Snapshot()) != 1 {
		t.Fatalf("expected cached record, got %d", len(f.svc.Snapshot()))
	}
}

type brokenLocal struct{ LocalStore }

func (brokenLocal) LoadExpenses(string) ([]core.Expense, error) {
	return nil, errors.New("disk gone")
}

func TestRefreshUnavailable(t *testing.T) {
	store := &flakyStore{Store: memory.New()}
	store.failList.Store(true)
	svc := New(store, brokenLocal{}, &fakePair{id: "duo"})
	if err := svc.Refresh(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSaveInsertsAndNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stored, err := f.svc.Save(ctx, rec("Essence", 6000, core.NewDate(2025, 4, 3), core.Martin, core.Transport))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if stored.ID == "" {
		t.Fatal("expected assigned id")
	}
	if snap := f.svc.Snapshot(); len(snap) != 1 || snap[0].ID != stored.ID {
		t.Fatalf("snapshot not refetched: %+v", snap)
	}
	if len(f.rec.published) != 1 || len(f.rec.broadcasted) != 1 {
		t.Fatalf("expected one event each, got %d/%d", len(f.rec.published), len(f.rec.broadcasted))
	}
	ev := f.rec.published[0]
	if ev.Op != core.OpInserted || ev.ExpenseID != stored.ID || ev.DuoID != f.pair.id {
		t.Fatalf("unexpected event %+v", ev)
	}

	stored.Amount = core.Cents(6500)
	if _, err := f.svc.Save(ctx, stored); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := f.svc.Snapshot()[0].Amount; got != core.Cents(6500) {
		t.Fatalf("update not visible: %v", got)
	}
	if f.rec.published[1].Op != core.OpUpdated {
		t.Fatalf("expected update event, got %s", f.rec.published[1].Op)
	}
}

func TestSaveFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.Seed(f.pair.id, rec("Courses", 100, core.NewDate(2025, 4, 2), core.Martin, core.Food))
	if err := f.svc.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	before := f.svc.Status()

	f.store.failWrite.Store(true)
	_, err := f.svc.Save(ctx, rec("Cinéma", 1800, core.NewDate(2025, 4, 4), core.Josephine, core.Leisure))
	if !errors.Is(err, ErrWriteFailed) || !errors.Is(err, errDown) {
		t.Fatalf("expected ErrWriteFailed wrapping the cause, got %v", err)
	}
	if f.svc.Status() != before || len(f.svc.Snapshot()) != 1 {
		t.Fatal("local state changed after a failed write")
	}
	if len(f.rec.published) != 0 || len(f.rec.broadcasted) != 0 {
		t.Fatal("no event expected after a failed write")
	}
}

func TestSaveValidationAndNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Save(ctx, rec("", 100, core.NewDate(2025, 4, 1), core.Martin, core.Food)); !errors.Is(err, core.ErrEmptyLabel) || errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected plain validation error, got %v", err)
	}

	ghost := rec("Ghost", 100, core.NewDate(2025, 4, 1), core.Martin, core.Food)
	ghost.ID = "does-not-exist"
	_, err := f.svc.Save(ctx, ghost)
	if !errors.Is(err, ErrWriteFailed) || !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found write failure, got %v", err)
	}
	if err := f.svc.Delete(ctx, "does-not-exist"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.store.Seed(f.pair.id, rec("Courses", 100, core.NewDate(2025, 4, 2), core.Martin, core.Food))

	if err := f.svc.Delete(ctx, seeded[0].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(f.svc.Snapshot()) != 0 {
		t.Fatal("expected empty snapshot")
	}
	if f.rec.published[0].Op != core.OpDeleted {
		t.Fatalf("unexpected op %s", f.rec.published[0].Op)
	}
}

func TestPublishFailureIsNotReturned(t *testing.T) {
	f := newFixture(t)
	f.rec.publishErr = errors.New("broker down")
	if _, err := f.svc.Save(context.Background(), rec("Pain", 250, core.NewDate(2025, 4, 5), core.Josephine, core.Food)); err != nil {
		t.Fatalf("publish failure leaked: %v", err)
	}
}

func TestHandleRemoteChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.svc.HandleRemoteChange(ctx, core.NewChangeEvent("other", core.OpInserted, "x")); err != nil {
		t.Fatal(err)
	}
	if f.store.listCalls.Load() != 0 {
		t.Fatal("event for another duo must be ignored")
	}
	if err := f.svc.HandleRemoteChange(ctx, core.NewChangeEvent(f.pair.id, core.OpInserted, "x")); err != nil {
		t.Fatal(err)
	}
	if f.store.listCalls.Load() != 1 {
		t.Fatal("expected a refetch")
	}
}

func TestConcurrentRefreshesShareOneFetch(t *testing.T) {
	f := newFixture(t)
	f.store.block = make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.svc.Refresh(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(f.store.block)
	wg.Wait()

	if n := f.store.listCalls.Load(); n != 1 {
		t.Fatalf("expected one store call, got %d", n)
	}
}
