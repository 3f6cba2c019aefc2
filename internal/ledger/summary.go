package ledger

import (
	"context"
	"fmt"
	"time"

	"duoaccount/internal/cache"
	"duoaccount/internal/core"
)

type summaryKey struct {
	version uint64
	window  core.MonthWindow
}

// Summaries is everything the dashboard shows for one month.
type Summaries struct {
	Window    core.MonthWindow      `json:"window"`
	Global    core.BalanceSummary   `json:"global"`
	Monthly   core.BalanceSummary   `json:"monthly"`
	Breakdown []core.CategoryAmount `json:"breakdown"`
	Direction string                `json:"direction"`
	Online    bool                  `json:"online"`
	Pending   bool                  `json:"pending"`
}

// Summaries computes the global and monthly balances of the current snapshot.
// Results are memoised per snapshot version.
func (s *Service) Summaries(w core.MonthWindow) (Summaries, error) {
	if err := w.Validate(); err != nil {
		return Summaries{}, err
	}
	records, version := s.versioned()
	key := summaryKey{version: version, window: w}
	if cached, ok := s.summaries.Get(key); ok {
		return cached, nil
	}

	monthly := core.FilterWindow(records, w)
	global := core.ComputeBalance(records)
	st := s.Status()
	out := Summaries{
		Window:    w,
		Global:    global,
		Monthly:   core.ComputeBalance(monthly),
		Breakdown: core.BreakdownByCategory(monthly),
		Direction: global.Direction(),
		Online:    st.Online,
		Pending:   st.Pending,
	}
	s.summaries.Set(key, out)
	return out, nil
}

// Settlement proposes the reimbursement that clears the global balance, dated
// on the calendar day of now. It returns false below the threshold.
func (s *Service) Settlement(now time.Time) (core.Expense, bool) {
	records, _ := s.versioned()
	summary := core.ComputeBalance(records)
	if !summary.NeedsSettlement(s.threshold) {
		return core.Expense{}, false
	}
	return core.SettlementFor(summary, core.NewDate(now.Year(), int(now.Month()), now.Day()))
}

// Settle records the proposed settlement.
func (s *Service) Settle(ctx context.Context) (core.Expense, error) {
	if err := s.Refresh(ctx); err != nil {
		return core.Expense{}, err
	}
	e, ok := s.Settlement(s.now())
	if !ok {
		return core.Expense{}, ErrNothingToSettle
	}
	stored, err := s.Save(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("settle: %w", err)
	}
	return stored, nil
}

// SummaryCache exposes the memo cache so a janitor can sweep it.
func (s *Service) SummaryCache() cache.Cleaner {
	return s.summaries
}
