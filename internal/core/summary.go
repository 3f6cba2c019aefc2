package core

import (
	"fmt"
	"sort"
	"time"
)

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	Category Category `json:"category"`
	Amount   Money    `json:"amount"`
}

// MonthWindow is a calendar month used to scope the monthly balance.
type MonthWindow struct {
	Year  int `json:"year"`
	Month int `json:"month"` // 1-12
}

// CurrentWindow returns the window containing now.
func CurrentWindow(now time.Time) MonthWindow {
	return MonthWindow{Year: now.Year(), Month: int(now.Month())}
}

func (w MonthWindow) Validate() error {
	if w.Month < 1 || w.Month > 12 {
		return fmt.Errorf("invalid month %d", w.Month)
	}
	if w.Year < 1 {
		return fmt.Errorf("invalid year %d", w.Year)
	}
	return nil
}

// Contains reports whether d falls within the window.
func (w MonthWindow) Contains(d Date) bool {
	return d.Year() == w.Year && int(d.Month()) == w.Month
}

// Shift moves the window by n months, crossing year boundaries.
func (w MonthWindow) Shift(n int) MonthWindow {
	t := time.Date(w.Year, time.Month(w.Month)+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return MonthWindow{Year: t.Year(), Month: int(t.Month())}
}

func (w MonthWindow) String() string {
	return fmt.Sprintf("%04d-%02d", w.Year, w.Month)
}

// FilterWindow returns the records dated inside w, preserving order.
func FilterWindow(records []Expense, w MonthWindow) []Expense {
	out := make([]Expense, 0, len(records))
	for _, e := range records {
		if w.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out
}

// BreakdownByCategory sums shared spending per category, largest first.
// Reimbursements are not spending and are left out.
func BreakdownByCategory(records []Expense) []CategoryAmount {
	totals := make(map[Category]Money)
	for _, e := range records {
		if e.Category.IsSettlementTransfer() {
			continue
		}
		totals[e.Category] = totals[e.Category].Add(e.Amount)
	}
	out := make([]CategoryAmount, 0, len(totals))
	for c, m := range totals {
		out = append(out, CategoryAmount{Category: c, Amount: m})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Category < out[j].Category
	})
	return out
}
