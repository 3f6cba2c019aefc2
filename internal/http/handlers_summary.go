package http

import (
	"net/http"

	"duoaccount/internal/core"
	"duoaccount/internal/log"
)

// amount carries money both as exact cents and as display text.
type amount struct {
	Cents     int64  `json:"cents"`
	Formatted string `json:"formatted"`
}

func newAmount(m core.Money) amount {
	return amount{Cents: m.Cents, Formatted: m.String()}
}

type balanceView struct {
	TotalShared amount `json:"totalShared"`
	PaidByA     amount `json:"paidByA"`
	PaidByB     amount `json:"paidByB"`
	Balance     amount `json:"balance"`
	Direction   string `json:"direction"`
	Debtor      string `json:"debtor,omitempty"`
}

func newBalanceView(s core.BalanceSummary) balanceView {
	v := balanceView{
		TotalShared: newAmount(s.TotalShared),
		PaidByA:     newAmount(s.PaidByA),
		PaidByB:     newAmount(s.PaidByB),
		Balance:     newAmount(s.Balance),
		Direction:   s.Direction(),
	}
	if d, ok := s.Debtor(); ok {
		v.Debtor = d.String()
	}
	return v
}

type categoryView struct {
	Category core.Category `json:"category"`
	Amount   amount        `json:"amount"`
}

func newBreakdown(items []core.CategoryAmount) []categoryView {
	out := make([]categoryView, len(items))
	for i, it := range items {
		out[i] = categoryView{Category: it.Category, Amount: newAmount(it.Amount)}
	}
	return out
}

type summaryResponse struct {
	Window     string         `json:"window"`
	Global     balanceView    `json:"global"`
	Monthly    balanceView    `json:"monthly"`
	Online     bool           `json:"online"`
	Pending    bool           `json:"pending"`
	Settlement *core.Expense  `json:"settlement,omitempty"`
	Breakdown  []categoryView `json:"breakdown"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	win, err := ParseWindow(r.URL.Query(), s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	sum, err := s.ledger.Summaries(win)
	if err != nil {
		FromError(err).Write(w)
		return
	}
	out := summaryResponse{
		Window:    win.String(),
		Global:    newBalanceView(sum.Global),
		Monthly:   newBalanceView(sum.Monthly),
		Online:    sum.Online,
		Pending:   sum.Pending,
		Breakdown: newBreakdown(sum.Breakdown),
	}
	if e, ok := s.ledger.Settlement(s.now()); ok {
		out.Settlement = &e
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	win, err := ParseWindow(r.URL.Query(), s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	sum, err := s.ledger.Summaries(win)
	if err != nil {
		FromError(err).Write(w)
		return
	}
	NewJSONResponse().Body(map[string]any{
		"window":    win.String(),
		"breakdown": newBreakdown(sum.Breakdown),
		"total":     newAmount(sum.Monthly.TotalShared),
	}).Write(w)
}

// handleSettlement returns the suggested reimbursement, or 204 when the duo
// is settled.
func (s *Server) handleSettlement(w http.ResponseWriter, r *http.Request) {
	e, ok := s.ledger.Settlement(s.now())
	if !ok {
		NewJSONResponse().Status(http.StatusNoContent).Write(w)
		return
	}
	NewJSONResponse().Body(e).Write(w)
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stored, err := s.ledger.Settle(ctx)
	if err != nil {
		FromError(err).Write(w)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Debt settled",
		log.FieldPaidBy, stored.PaidBy.String(), log.FieldAmountCents, stored.Amount.Cents)
	NewJSONResponse().Status(http.StatusCreated).Body(stored).Write(w)
}
