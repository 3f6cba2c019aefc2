// Package ledger owns the current snapshot of a duo's records and feeds it to
// the balance engine. It talks to the remote store, falls back to the local
// cache when the store is unreachable and tells listeners about every write.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"duoaccount/internal/cache"
	"duoaccount/internal/core"
	"duoaccount/internal/log"
	"duoaccount/internal/storage"
)

var (
	// ErrWriteFailed wraps any store error on insert, update, delete or push.
	// Local state is left untouched when it is returned.
	ErrWriteFailed     = errors.New("write failed")
	ErrUnavailable     = errors.New("ledger unavailable")
	ErrNothingToSettle = errors.New("nothing to settle")
	ErrInvalidBackup   = errors.New("fichier invalide")

	// ErrImportPending refuses writes while imported records wait for
	// PushLocal or DiscardImport.
	ErrImportPending = errors.New("imported records are waiting to be pushed")
)

// DefaultSettlementThreshold is the balance magnitude under which no
// settlement is proposed.
var DefaultSettlementThreshold = core.Cents(1)

// LocalStore keeps the last snapshot on the device.
type LocalStore interface {
	SaveExpenses(duoID string, es []core.Expense) error
	LoadExpenses(duoID string) ([]core.Expense, error)
	SavePending(duoID string, es []core.Expense) error
	LoadPending(duoID string) ([]core.Expense, bool, error)
	ClearPending(duoID string) error
}

// Pair exposes the active duo and records successful fetches.
type Pair interface {
	DuoID() string
	MarkSynced(at time.Time) error
}

// Publisher forwards change events to other processes.
type Publisher interface {
	Publish(ctx context.Context, ev core.ChangeEvent) error
}

// Broadcaster notifies connected clients.
type Broadcaster interface {
	Broadcast(ev core.ChangeEvent)
}

// Status describes the snapshot currently held. Pending reports imported
// records that were not pushed yet. While it is set the snapshot is the
// import and Online is false.
type Status struct {
	DuoID       string    `json:"duoId"`
	Online      bool      `json:"online"`
	Pending     bool      `json:"pending"`
	Version     uint64    `json:"version"`
	Count       int       `json:"count"`
	RefreshedAt time.Time `json:"refreshedAt"`
}

type Service struct {
	store     storage.Store
	local     LocalStore
	pair      Pair
	publisher Publisher
	hub       Broadcaster
	logger    *log.Logger
	now       func() time.Time
	threshold core.Money
	instance  string

	group      singleflight.Group
	summaryTTL time.Duration
	summaries  *cache.LRU[summaryKey, Summaries]

	mu       sync.RWMutex
	snapshot []core.Expense
	status   Status
}

type Option func(*Service)

func WithPublisher(p Publisher) Option     { return func(s *Service) { s.publisher = p } }
func WithBroadcaster(b Broadcaster) Option { return func(s *Service) { s.hub = b } }
func WithLogger(l *log.Logger) Option      { return func(s *Service) { s.logger = l } }
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithInstanceID stamps outgoing events so this process can recognise its own.
func WithInstanceID(id string) Option {
	return func(s *Service) { s.instance = id }
}

// WithSettlementThreshold sets the minimum balance for which Settlement
// proposes a reimbursement.
func WithSettlementThreshold(m core.Money) Option {
	return func(s *Service) { s.threshold = m }
}

// WithSummaryTTL expires memoised summaries after ttl. Zero keeps them until
// evicted.
func WithSummaryTTL(ttl time.Duration) Option {
	return func(s *Service) { s.summaryTTL = ttl }
}

func New(store storage.Store, local LocalStore, pair Pair, opts ...Option) *Service {
	s := &Service{
		store:     store,
		local:     local,
		pair:      pair,
		logger:    log.Discard(),
		now:       time.Now,
		threshold: DefaultSettlementThreshold,
		snapshot:  []core.Expense{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.summaries = cache.NewLRU[summaryKey, Summaries](32, s.summaryTTL)
	s.logger = s.logger.WithComponent(log.ComponentLedger)
	return s
}

// Refresh reloads the snapshot of the active duo. When the store fails the
// local copy is used and the ledger is marked offline; an error is returned
// only when neither source is readable. Concurrent calls share one fetch.
func (s *Service) Refresh(ctx context.Context) error {
	duoID := s.pair.DuoID()
	_, err, _ := s.group.Do(duoID, func() (any, error) {
		return nil, s.refresh(ctx, duoID)
	})
	return err
}

func (s *Service) refresh(ctx context.Context, duoID string) error {
	imported, pending, err := s.local.LoadPending(duoID)
	if err != nil {
		return fmt.Errorf("%w: pending import: %v", ErrUnavailable, err)
	}
	if pending {
		s.replace(duoID, imported, false, true)
		s.logger.DebugContext(ctx, "Showing pending import", log.FieldDuoID, duoID, log.FieldCount, len(imported))
		return nil
	}

	records, err := s.store.ListExpenses(ctx, duoID)
	if err != nil {
		s.logger.WarnContext(ctx, "Store unreachable, using local snapshot",
			log.FieldDuoID, duoID, log.FieldError, err)
		local, lerr := s.local.LoadExpenses(duoID)
		if lerr != nil {
			return fmt.Errorf("%w: store: %v, local cache: %v", ErrUnavailable, err, lerr)
		}
		s.replace(duoID, local, false, false)
		return nil
	}

	s.replace(duoID, records, true, false)
	if err := s.local.SaveExpenses(duoID, records); err != nil {
		s.logger.WarnContext(ctx, "Failed to cache snapshot locally", log.FieldError, err)
	}
	if err := s.pair.MarkSynced(s.now()); err != nil {
		s.logger.WarnContext(ctx, "Failed to record sync time", log.FieldError, err)
	}
	s.logger.DebugContext(ctx, "Snapshot refreshed", log.FieldDuoID, duoID, log.FieldCount, len(records))
	return nil
}

func (s *Service) replace(duoID string, records []core.Expense, online, pending bool) {
	cp := append(make([]core.Expense, 0, len(records)), records...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = cp
	s.status = Status{
		DuoID:       duoID,
		Online:      online,
		Pending:     pending,
		Version:     s.status.Version + 1,
		Count:       len(cp),
		RefreshedAt: s.now(),
	}
}

// Snapshot returns a copy of the current records.
func (s *Service) Snapshot() []core.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(make([]core.Expense, 0, len(s.snapshot)), s.snapshot...)
}

func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Service) versioned() ([]core.Expense, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, s.status.Version
}

// Save inserts e when it has no id and replaces the stored record otherwise.
func (s *Service) Save(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	duoID := s.pair.DuoID()
	if err := s.checkNoPendingImport(duoID); err != nil {
		return core.Expense{}, err
	}

	var (
		stored core.Expense
		op     core.ChangeOp
		err    error
	)
	if e.IsPersisted() {
		op = core.OpUpdated
		stored, err = s.store.UpdateExpense(ctx, duoID, e)
	} else {
		op = core.OpInserted
		stored, err = s.store.InsertExpense(ctx, duoID, e)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to save expense",
			log.NewFields().WithDuo(duoID).WithExpense(e).WithOperation(string(op)).WithError(err).ToSlice()...)
		return core.Expense{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	s.logger.InfoContext(ctx, "Expense saved",
		log.NewFields().WithDuo(duoID).WithExpense(stored).WithOperation(string(op)).ToSlice()...)
	s.afterWrite(ctx, core.NewChangeEvent(duoID, op, stored.ID))
	return stored, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	duoID := s.pair.DuoID()
	if err := s.checkNoPendingImport(duoID); err != nil {
		return err
	}
	if err := s.store.DeleteExpense(ctx, duoID, id); err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete expense",
			log.FieldDuoID, duoID, log.FieldExpenseID, id, log.FieldError, err)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	s.logger.InfoContext(ctx, "Expense deleted", log.FieldDuoID, duoID, log.FieldExpenseID, id)
	s.afterWrite(ctx, core.NewChangeEvent(duoID, core.OpDeleted, id))
	return nil
}

func (s *Service) checkNoPendingImport(duoID string) error {
	_, pending, err := s.local.LoadPending(duoID)
	if err != nil {
		return fmt.Errorf("%w: pending import: %v", ErrUnavailable, err)
	}
	if pending {
		return ErrImportPending
	}
	return nil
}

// afterWrite refetches the snapshot and notifies listeners. Neither step can
// fail the write that already succeeded.
func (s *Service) afterWrite(ctx context.Context, ev core.ChangeEvent) {
	ev.Source = s.instance
	if err := s.Refresh(ctx); err != nil {
		s.logger.WarnContext(ctx, "Refetch after write failed", log.FieldError, err)
	}
	if s.hub != nil {
		s.hub.Broadcast(ev)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish change event",
				log.FieldDuoID, ev.DuoID, log.FieldOperation, string(ev.Op), log.FieldError, err)
		}
	}
}

// HandleRemoteChange reacts to a change made elsewhere. Events for another
// duo are ignored.
func (s *Service) HandleRemoteChange(ctx context.Context, ev core.ChangeEvent) error {
	if ev.DuoID != s.pair.DuoID() {
		return nil
	}
	return s.Refresh(ctx)
}
