// Package export writes the currently held dashboard view out as rows: an
// xlsx workbook or a Google Sheet. It never fetches anything itself.
package export

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"balances/internal/core"
	"balances/internal/view"
)

var accountHeader = []any{
	"Person", "Account", "Currency", "Total", "Free", "Portfolio", "Error",
	"Person total (GBP)", "Share of grand total (%)",
}

var grandHeader = []any{"Currency", "Grand total", "Note"}

// Rows flattens v into one row per account, grouped by person in display
// order. A person without accounts still gets a row. Money cells are numbers;
// absent optional figures are empty.
func Rows(v view.View) [][]any {
	out := make([][]any, 0, v.AccountCount()+len(v.Groups)+1)
	out = append(out, accountHeader)

	for _, g := range v.Groups {
		share, _ := decimal.NewFromString(g.SharePercent)
		personCells := []any{toFloat(g.Total), toFloat(share)}

		if len(g.Accounts) == 0 {
			out = append(out, append([]any{g.Person, "", "", "", "", "", ""}, personCells...))
			continue
		}
		for _, a := range g.Accounts {
			row := []any{
				g.Person,
				a.Name,
				a.Currency.String(),
				toFloat(a.Total),
				nullFloat(a.Free),
				nullFloat(a.Portfolio),
				lo.Ternary(a.HasError(), a.Error, ""),
			}
			out = append(out, append(row, personCells...))
		}
	}
	return out
}

// GrandTotalRows lists the server-converted grand total per recognized
// currency. Unavailable conversions have an empty value and a note.
func GrandTotalRows(v view.View) [][]any {
	out := [][]any{grandHeader}
	for _, c := range core.Recognized {
		val, ok := v.GrandTotals.Lookup(c)
		if !ok {
			out = append(out, []any{c.String(), "", view.NoteUnavailable})
			continue
		}
		out = append(out, []any{c.String(), toFloat(val), lo.Ternary(c.IsBase(), "", view.NoteConverted)})
	}
	return out
}

func toFloat(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func nullFloat(d decimal.NullDecimal) any {
	if !d.Valid {
		return ""
	}
	return toFloat(d.Decimal)
}
