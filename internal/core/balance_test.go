package core

import (
	"testing"
)

func rec(p Participant, cents int64, c Category) Expense {
	return Expense{Label: "x", Amount: Cents(cents), Date: NewDate(2025, 3, 10), PaidBy: p, Category: c}
}

func TestComputeBalanceEmpty(t *testing.T) {
	for _, records := range [][]Expense{nil, {}} {
		got := ComputeBalance(records)
		if got != (BalanceSummary{}) {
			t.Fatalf("expected zero summary, got %+v", got)
		}
		if !got.Settled() {
			t.Fatalf("empty ledger should be settled")
		}
	}
}

func TestComputeBalanceScenarios(t *testing.T) {
	tests := []struct {
		name    string
		records []Expense
		want    BalanceSummary
	}{
		{
			name:    "unequal shared payments",
			records: []Expense{rec(Martin, 10000, Food), rec(Josephine, 6000, Food)},
			want:    BalanceSummary{TotalShared: Cents(16000), PaidByA: Cents(10000), PaidByB: Cents(6000), Balance: Cents(2000)},
		},
		{
			name: "debt repaid by Josephine",
			records: []Expense{
				rec(Martin, 10000, Food),
				rec(Josephine, 6000, Food),
				rec(Josephine, 2000, Reimbursement),
			},
			want: BalanceSummary{TotalShared: Cents(16000), PaidByA: Cents(10000), PaidByB: Cents(6000), Balance: Cents(0)},
		},
		{
			name:    "reimbursement by A is added",
			records: []Expense{rec(Martin, 5000, Food), rec(Martin, 3000, Reimbursement)},
			want:    BalanceSummary{TotalShared: Cents(5000), PaidByA: Cents(5000), PaidByB: Cents(0), Balance: Cents(5500)},
		},
		{
			name:    "only reimbursements",
			records: []Expense{rec(Martin, 1200, Reimbursement), rec(Josephine, 500, Reimbursement), rec(Martin, 300, Reimbursement)},
			want:    BalanceSummary{Balance: Cents(1000)},
		},
		{
			name:    "Martin owes",
			records: []Expense{rec(Josephine, 4000, Housing), rec(Martin, 1000, Transport)},
			want:    BalanceSummary{TotalShared: Cents(5000), PaidByA: Cents(1000), PaidByB: Cents(4000), Balance: Cents(-1500)},
		},
		{
			name:    "odd cent rounds away from zero",
			records: []Expense{rec(Martin, 1001, Food)},
			want:    BalanceSummary{TotalShared: Cents(1001), PaidByA: Cents(1001), Balance: Cents(501)},
		},
		{
			name:    "duplicates are counted",
			records: []Expense{rec(Martin, 1000, Food), rec(Martin, 1000, Food)},
			want:    BalanceSummary{TotalShared: Cents(2000), PaidByA: Cents(2000), Balance: Cents(1000)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeBalance(tt.records)
			if got != tt.want {
				t.Fatalf("ComputeBalance() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func swap(records []Expense) []Expense {
	out := make([]Expense, len(records))
	for i, e := range records {
		e.PaidBy = e.PaidBy.Other()
		out[i] = e
	}
	return out
}

func TestComputeBalanceSymmetry(t *testing.T) {
	records := []Expense{
		rec(Martin, 12345, Food),
		rec(Josephine, 999, Leisure),
		rec(Josephine, 777, Reimbursement),
		rec(Martin, 40, Reimbursement),
		rec(Martin, 1, Health),
	}
	a := ComputeBalance(records)
	b := ComputeBalance(swap(records))
	if b.Balance != a.Balance.Neg() {
		t.Fatalf("swapped balance = %v, want %v", b.Balance, a.Balance.Neg())
	}
	if a.PaidByA != b.PaidByB || a.PaidByB != b.PaidByA {
		t.Fatalf("paid amounts not swapped: %+v vs %+v", a, b)
	}
	if a.TotalShared != b.TotalShared {
		t.Fatalf("total shared changed: %v vs %v", a.TotalShared, b.TotalShared)
	}
}

func TestComputeBalanceIsPure(t *testing.T) {
	records := []Expense{rec(Josephine, 2500, Shopping), rec(Martin, 700, Reimbursement)}
	before := append([]Expense(nil), records...)
	first := ComputeBalance(records)
	second := ComputeBalance(records)
	if first != second {
		t.Fatalf("results differ: %+v vs %+v", first, second)
	}
	for i := range records {
		if records[i] != before[i] {
			t.Fatalf("record %d mutated", i)
		}
	}
	reversed := []Expense{records[1], records[0]}
	if ComputeBalance(reversed) != first {
		t.Fatalf("result depends on order")
	}
}

func TestSettlementClosesTheLoop(t *testing.T) {
	ledgers := [][]Expense{
		{rec(Martin, 10000, Food), rec(Josephine, 6000, Food)},
		{rec(Josephine, 10001, Housing)},
		{rec(Martin, 333, Food), rec(Josephine, 50, Reimbursement), rec(Martin, 20, Reimbursement)},
		{rec(Martin, 1, Other)},
	}
	for i, records := range ledgers {
		s := ComputeBalance(records)
		settlement, ok := SettlementFor(s, NewDate(2025, 3, 31))
		if !ok {
			t.Fatalf("case %d: expected a settlement for %v", i, s.Balance)
		}
		if !settlement.Category.IsSettlementTransfer() {
			t.Fatalf("case %d: settlement must be a reimbursement", i)
		}
		if err := settlement.Validate(); err != nil {
			t.Fatalf("case %d: settlement invalid: %v", i, err)
		}
		after := ComputeBalance(append(records, settlement))
		if !after.Settled() {
			t.Fatalf("case %d: balance after settlement = %v", i, after.Balance)
		}
	}
}

func TestSettlementForSettledLedger(t *testing.T) {
	if _, ok := SettlementFor(BalanceSummary{}, NewDate(2025, 1, 1)); ok {
		t.Fatalf("no settlement expected for a zero balance")
	}
}

func TestDebtorAndDirection(t *testing.T) {
	cases := []struct {
		balance   int64
		debtor    Participant
		ok        bool
		direction string
	}{
		{2000, Josephine, true, "Joséphine doit à Martin"},
		{-1, Martin, true, "Martin doit à Joséphine"},
		{0, 0, false, "Tout est équilibré"},
	}
	for _, tc := range cases {
		s := BalanceSummary{Balance: Cents(tc.balance)}
		d, ok := s.Debtor()
		if d != tc.debtor || ok != tc.ok {
			t.Errorf("Debtor(%d) = %v,%v want %v,%v", tc.balance, d, ok, tc.debtor, tc.ok)
		}
		if got := s.Direction(); got != tc.direction {
			t.Errorf("Direction(%d) = %q, want %q", tc.balance, got, tc.direction)
		}
		if ok {
			c, _ := s.Creditor()
			if c != tc.debtor.Other() {
				t.Errorf("Creditor(%d) = %v", tc.balance, c)
			}
		}
	}
}

func TestNeedsSettlement(t *testing.T) {
	threshold := Cents(1)
	if (BalanceSummary{Balance: Cents(1)}).NeedsSettlement(threshold) {
		t.Errorf("one cent should be within threshold")
	}
	if !(BalanceSummary{Balance: Cents(-2)}).NeedsSettlement(threshold) {
		t.Errorf("two cents owed should need settlement")
	}
}
