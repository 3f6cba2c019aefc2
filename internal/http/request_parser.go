package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"duoaccount/internal/core"
)

const (
	maxBodyBytes   = 64 << 10
	maxImportBytes = 8 << 20
)

var errMalformedBody = errors.New("malformed request body")

// ParseWindow reads year and month query parameters, defaulting to the month
// containing now. "month=YYYY-MM" is accepted as well.
func ParseWindow(query url.Values, now time.Time) (core.MonthWindow, error) {
	w := core.CurrentWindow(now)

	month := strings.TrimSpace(query.Get("month"))
	if y, m, ok := strings.Cut(month, "-"); ok {
		if y == "" || m == "" {
			return core.MonthWindow{}, fmt.Errorf("invalid month %q", month)
		}
		query = url.Values{"year": {y}, "month": {m}}
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return core.MonthWindow{}, fmt.Errorf("invalid year %q", v)
		}
		w.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return core.MonthWindow{}, fmt.Errorf("invalid month %q", v)
		}
		w.Month = m
	}
	if err := w.Validate(); err != nil {
		return core.MonthWindow{}, err
	}
	return w, nil
}

// hasWindow reports whether the query names a month.
func hasWindow(query url.Values) bool {
	return query.Get("month") != "" || query.Get("year") != ""
}

// decodeJSON reads a single JSON value from the body. Domain decoding errors
// keep their identity so they map to 422; everything else is errMalformedBody.
func decodeJSON(r *http.Request, limit int64, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, limit))
	if err := dec.Decode(v); err != nil {
		if isValidationError(err) {
			return err
		}
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return nil
}

// expenseRequest is the body of create and update calls.
type expenseRequest struct {
	Label    string           `json:"label"`
	Amount   core.Money       `json:"amount"`
	Date     core.Date        `json:"date"`
	PaidBy   core.Participant `json:"paidBy"`
	Category core.Category    `json:"category"`
}

func (req expenseRequest) toExpense(id string) core.Expense {
	return core.Expense{
		ID:       id,
		Label:    sanitizeInput(req.Label),
		Amount:   req.Amount,
		Date:     req.Date,
		PaidBy:   req.PaidBy,
		Category: req.Category,
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		return r
	}, s))
}
