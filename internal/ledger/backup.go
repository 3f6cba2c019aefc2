package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"duoaccount/internal/core"
	"duoaccount/internal/log"
)

// Backup is the export document. Settings is opaque to the ledger.
type Backup struct {
	Expenses   []core.Expense `json:"expenses"`
	Settings   any            `json:"settings,omitempty"`
	ExportedAt time.Time      `json:"exportedAt"`
}

// Export returns the current snapshot together with settings.
func (s *Service) Export(settings any) Backup {
	return Backup{Expenses: s.Snapshot(), Settings: settings, ExportedAt: s.now().UTC()}
}

// ParseBackup decodes an export document. Any structural problem is
// reported as ErrInvalidBackup.
func ParseBackup(data []byte) ([]core.Expense, error) {
	var doc struct {
		Expenses []core.Expense `json:"expenses"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if doc.Expenses == nil {
		return nil, fmt.Errorf("%w: missing expenses", ErrInvalidBackup)
	}
	for i, e := range doc.Expenses {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrInvalidBackup, i, err)
		}
	}
	return doc.Expenses, nil
}

// Import keeps records as a pending import and shows them as the snapshot,
// offline, until PushLocal uploads them or DiscardImport drops them. The
// remote store is not touched and refreshes do not replace the import.
func (s *Service) Import(ctx context.Context, records []core.Expense) error {
	for i, e := range records {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("%w: record %d: %v", ErrInvalidBackup, i, err)
		}
	}
	duoID := s.pair.DuoID()
	if err := s.local.SavePending(duoID, records); err != nil {
		return fmt.Errorf("store imported records: %w", err)
	}
	s.replace(duoID, records, false, true)
	s.logger.InfoContext(ctx, "Backup imported", log.FieldDuoID, duoID, log.FieldCount, len(records))
	return nil
}

// PushLocal uploads the pending import to the remote store and returns to the
// remote snapshot. Records already present remotely are duplicated. Without a
// pending import it does nothing.
func (s *Service) PushLocal(ctx context.Context) (int, error) {
	duoID := s.pair.DuoID()
	records, pending, err := s.local.LoadPending(duoID)
	if err != nil {
		return 0, fmt.Errorf("load imported records: %w", err)
	}
	if !pending {
		return 0, nil
	}

	var stored []core.Expense
	if len(records) > 0 {
		stored, err = s.store.InsertBatch(ctx, duoID, records)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to push imported records",
				log.FieldDuoID, duoID, log.FieldCount, len(records), log.FieldError, err)
			return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
	}
	if err := s.local.ClearPending(duoID); err != nil {
		// The records are remote now; a second push would duplicate them.
		s.logger.ErrorContext(ctx, "Failed to clear pushed import",
			log.FieldDuoID, duoID, log.FieldCount, len(stored), log.FieldError, err)
		return len(stored), fmt.Errorf("clear imported records: %w", err)
	}
	s.logger.InfoContext(ctx, "Imported records pushed", log.FieldDuoID, duoID, log.FieldCount, len(stored))
	s.afterWrite(ctx, core.NewChangeEvent(duoID, core.OpReplaced, ""))
	return len(stored), nil
}

// DiscardImport drops the pending import and reloads the remote snapshot.
func (s *Service) DiscardImport(ctx context.Context) error {
	duoID := s.pair.DuoID()
	if err := s.local.ClearPending(duoID); err != nil {
		return fmt.Errorf("clear imported records: %w", err)
	}
	s.logger.InfoContext(ctx, "Pending import discarded", log.FieldDuoID, duoID)
	return s.Refresh(ctx)
}
