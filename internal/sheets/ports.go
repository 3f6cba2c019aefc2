// Package sheets defines the spreadsheet mirror of a duo ledger.
package sheets

import (
	"context"

	"duoaccount/internal/core"
)

// Mirror publishes a read-only copy of a duo's ledger.
type Mirror interface {
	// MirrorLedger replaces the mirrored copy of duoID with records and the
	// global summary computed from them.
	MirrorLedger(ctx context.Context, duoID string, records []core.Expense, global core.BalanceSummary) error
}
