package google

import (
	"strings"

	"duoaccount/internal/core"
)

// maxTabName is the Sheets limit on tab titles.
const maxTabName = 100

var header = []any{"Date", "Libellé", "Montant", "Payé par", "Catégorie", "ID"}

// ledgerRows lays out the mirror: header, records in the given order, a blank
// separator row and the totals block.
func ledgerRows(records []core.Expense, global core.BalanceSummary) [][]any {
	rows := make([][]any, 0, len(records)+7)
	rows = append(rows, header)
	for _, e := range records {
		rows = append(rows, []any{
			e.Date.String(),
			e.Label,
			e.Amount.Euros(),
			e.PaidBy.String(),
			e.Category.String(),
			e.ID,
		})
	}
	rows = append(rows,
		[]any{},
		[]any{"Total partagé", "", global.TotalShared.Euros()},
		[]any{"Payé par " + core.Martin.String(), "", global.PaidByA.Euros()},
		[]any{"Payé par " + core.Josephine.String(), "", global.PaidByB.Euros()},
		[]any{"Solde", "", global.Balance.Euros()},
		[]any{global.Direction()},
	)
	return rows
}

// tabName is the per-duo tab title, truncated to the Sheets limit.
func tabName(base, duoID string) string {
	name := strings.TrimSpace(base)
	if duoID != "" {
		name += " " + duoID
	}
	if r := []rune(name); len(r) > maxTabName {
		name = string(r[:maxTabName])
	}
	return name
}

// quoteSheet quotes a tab title for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
