// Package worker keeps the spreadsheet mirror in step with the store.
package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"duoaccount/internal/core"
	"duoaccount/internal/log"
	"duoaccount/internal/sheets"
	"duoaccount/internal/storage"
)

// maxParallelMirrors bounds concurrent spreadsheet writes during a full pass.
const maxParallelMirrors = 4

// MirrorWorker rewrites a duo's mirror whenever its ledger changes, and
// periodically rewrites every duo it knows about as a backstop for lost events.
type MirrorWorker struct {
	store  storage.Store
	mirror sheets.Mirror
	logger *log.Logger

	mu   sync.Mutex
	duos map[string]struct{}
}

// NewMirrorWorker creates a worker. Duos listed in seed are mirrored on every
// pass even before an event mentions them.
func NewMirrorWorker(store storage.Store, mirror sheets.Mirror, logger *log.Logger, seed ...string) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	w := &MirrorWorker{
		store:  store,
		mirror: mirror,
		logger: logger.WithComponent(log.ComponentWorker),
		duos:   make(map[string]struct{}),
	}
	for _, d := range seed {
		w.track(d)
	}
	return w
}

// HandleChange has the signature of an amqp.Handler.
func (w *MirrorWorker) HandleChange(ctx context.Context, ev core.ChangeEvent) error {
	w.track(ev.DuoID)
	return w.MirrorDuo(ctx, ev.DuoID)
}

// MirrorDuo reloads the duo's snapshot and writes it with its global summary.
func (w *MirrorWorker) MirrorDuo(ctx context.Context, duoID string) error {
	start := time.Now()
	records, err := w.store.ListExpenses(ctx, duoID)
	if err != nil {
		return fmt.Errorf("load ledger %s: %w", duoID, err)
	}
	global := core.ComputeBalance(records)
	if err := w.mirror.MirrorLedger(ctx, duoID, records, global); err != nil {
		return fmt.Errorf("mirror ledger %s: %w", duoID, err)
	}
	w.logger.InfoContext(ctx, "Ledger mirrored",
		log.NewFields().WithDuo(duoID).WithSummary(global).ToSlice()...)
	w.logger.DebugContext(ctx, "Mirror timing", log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// MirrorAll mirrors every known duo. The first error is returned after all
// attempts finished.
func (w *MirrorWorker) MirrorAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelMirrors)
	for _, duoID := range w.Duos() {
		g.Go(func() error {
			return w.MirrorDuo(gctx, duoID)
		})
	}
	return g.Wait()
}

// Run performs a full pass every interval until ctx ends.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "Mirror worker started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Mirror worker stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := w.MirrorAll(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic mirror failed", log.FieldError, err)
			}
		}
	}
}

// Duos returns the known duo ids in sorted order.
func (w *MirrorWorker) Duos() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.duos))
	for d := range w.duos {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (w *MirrorWorker) track(duoID string) {
	if duoID == "" {
		return
	}
	w.mu.Lock()
	w.duos[duoID] = struct{}{}
	w.mu.Unlock()
}
