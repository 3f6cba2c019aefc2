package core

// BalanceSummary is the output of the balance engine.
//
// Balance > 0 means Josephine owes Martin, Balance < 0 means Martin owes
// Josephine, zero means the duo is settled.
type BalanceSummary struct {
	TotalShared Money `json:"totalShared"`
	PaidByA     Money `json:"paidByA"`
	PaidByB     Money `json:"paidByB"`
	Balance     Money `json:"balance"`
}

// SettlementLabel is the label given to generated reimbursement records.
const SettlementLabel = "Remboursement de la dette"

// ComputeBalance aggregates a snapshot of records. It is pure and total:
// order does not matter, duplicates are counted twice, nothing is mutated.
//
// Shared expenses are split in half; reimbursements move their full amount.
func ComputeBalance(records []Expense) BalanceSummary {
	var (
		s                  BalanceSummary
		reimbByA, reimbByB Money
	)
	for _, e := range records {
		if e.Category.IsSettlementTransfer() {
			switch e.PaidBy {
			case Martin:
				reimbByA = reimbByA.Add(e.Amount)
			case Josephine:
				reimbByB = reimbByB.Add(e.Amount)
			}
			continue
		}
		s.TotalShared = s.TotalShared.Add(e.Amount)
		switch e.PaidBy {
		case Martin:
			s.PaidByA = s.PaidByA.Add(e.Amount)
		case Josephine:
			s.PaidByB = s.PaidByB.Add(e.Amount)
		}
	}
	s.Balance = s.PaidByA.Sub(s.PaidByB).Half().Sub(reimbByB).Add(reimbByA)
	return s
}

// PaidBy returns the shared amount paid by p.
func (s BalanceSummary) PaidBy(p Participant) Money {
	switch p {
	case Martin:
		return s.PaidByA
	case Josephine:
		return s.PaidByB
	}
	return Money{}
}

// Settled reports an exact zero balance.
func (s BalanceSummary) Settled() bool {
	return s.Balance.IsZero()
}

// NeedsSettlement reports whether the balance magnitude exceeds threshold.
// The engine never applies a threshold itself; this is the display heuristic.
func (s BalanceSummary) NeedsSettlement(threshold Money) bool {
	return s.Balance.Abs().Cents > threshold.Cents
}

// Debtor returns who owes money, or false when settled.
func (s BalanceSummary) Debtor() (Participant, bool) {
	switch {
	case s.Balance.Cents > 0:
		return Josephine, true
	case s.Balance.Cents < 0:
		return Martin, true
	}
	return 0, false
}

// Creditor returns who is owed money, or false when settled.
func (s BalanceSummary) Creditor() (Participant, bool) {
	d, ok := s.Debtor()
	if !ok {
		return 0, false
	}
	return d.Other(), true
}

// Direction is the human sentence describing the balance.
func (s BalanceSummary) Direction() string {
	d, ok := s.Debtor()
	if !ok {
		return "Tout est équilibré"
	}
	return d.String() + " doit à " + d.Other().String()
}

// SettlementFor builds the reimbursement record that brings s back to zero
// when appended to the same snapshot. It returns false when already settled.
func SettlementFor(s BalanceSummary, on Date) (Expense, bool) {
	debtor, ok := s.Debtor()
	if !ok {
		return Expense{}, false
	}
	return Expense{
		Label:    SettlementLabel,
		Amount:   s.Balance.Abs(),
		Date:     on,
		PaidBy:   debtor,
		Category: Reimbursement,
	}, true
}
