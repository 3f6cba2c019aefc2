package google

import (
	"strings"
	"testing"

	"duoaccount/internal/core"
)

func TestLedgerRows(t *testing.T) {
	records := []core.Expense{
		{ID: "b", Label: "Loyer", Amount: core.Cents(85050), Date: core.NewDate(2025, 4, 1), PaidBy: core.Josephine, Category: core.Housing},
		{ID: "a", Label: "Courses", Amount: core.Cents(4210), Date: core.NewDate(2025, 3, 28), PaidBy: core.Martin, Category: core.Food},
	}
	global := core.ComputeBalance(records)
	rows := ledgerRows(records, global)

	if len(rows) != 1+len(records)+6 {
		t.Fatalf("unexpected row count %d", len(rows))
	}
	if rows[0][1] != "Libellé" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	first := rows[1]
	if first[0] != "2025-04-01" || first[1] != "Loyer" || first[2] != 850.5 || first[3] != "Joséphine" || first[4] != "Logement" || first[5] != "b" {
		t.Fatalf("unexpected record row %v", first)
	}
	if len(rows[3]) != 0 {
		t.Fatalf("expected blank separator, got %v", rows[3])
	}
	balance := rows[len(rows)-2]
	if balance[0] != "Solde" || balance[2] != global.Balance.Euros() {
		t.Fatalf("unexpected balance row %v", balance)
	}
	if rows[len(rows)-1][0] != "Martin doit à Joséphine" {
		t.Fatalf("unexpected direction row %v", rows[len(rows)-1])
	}
}

func TestLedgerRowsEmpty(t *testing.T) {
	rows := ledgerRows(nil, core.BalanceSummary{})
	if len(rows) != 7 {
		t.Fatalf("expected header plus totals, got %d rows", len(rows))
	}
	if rows[len(rows)-1][0] != "Tout est équilibré" {
		t.Fatalf("unexpected direction %v", rows[len(rows)-1])
	}
}

func TestTabName(t *testing.T) {
	tests := []struct {
		base, duo, want string
	}{
		{"Duo", "", "Duo"},
		{" Duo ", "martin-josephine-42", "Duo martin-josephine-42"},
	}
	for _, tt := range tests {
		if got := tabName(tt.base, tt.duo); got != tt.want {
			t.Errorf("tabName(%q, %q) = %q, want %q", tt.base, tt.duo, got, tt.want)
		}
	}
	long := tabName("Duo", strings.Repeat("é", 150))
	if n := len([]rune(long)); n != maxTabName {
		t.Fatalf("expected truncation to %d runes, got %d", maxTabName, n)
	}
}

func TestQuoteSheet(t *testing.T) {
	if got := quoteSheet("Duo d'été"); got != "'Duo d''été'" {
		t.Fatalf("quoteSheet = %s", got)
	}
}
