// Package view turns a snapshot into the grouped dashboard and owns the
// single piece of mutable dashboard state, the ViewModel.
package view

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"balances/internal/core"
)

// AsOfLayout is how the snapshot timestamp is shown.
const AsOfLayout = "02/01/2006, 15:04:05"

var hundred = decimal.NewFromInt(100)

// View is the aggregated, not yet formatted, dashboard.
type View struct {
	AsOf           string
	AsOfLabel      string
	GrandTotalBase decimal.Decimal
	GrandTotals    core.GrandTotals
	Groups         []PersonGroup
}

// PersonGroup is one person with their accounts in snapshot order.
type PersonGroup struct {
	Person       string
	Total        decimal.Decimal
	SharePercent string
	Accounts     []core.Account
}

// BuildView groups accounts under the people listed in summary.byPerson.
// Group order is byPerson order. Accounts whose person is not listed are
// left out of every group.
func BuildView(s core.Snapshot, loc *time.Location) View {
	grand := s.Summary.Grand.TotalGBP

	groups := make([]PersonGroup, 0, len(s.Summary.ByPerson))
	for _, p := range s.Summary.ByPerson {
		name := p.Name
		groups = append(groups, PersonGroup{
			Person:       name,
			Total:        p.Totals.TotalGBP,
			SharePercent: SharePercent(p.Totals.TotalGBP, grand),
			Accounts: lo.Filter(s.Accounts, func(a core.Account, _ int) bool {
				return a.Person == name
			}),
		})
	}

	return View{
		AsOf:           s.AsOfRaw,
		AsOfLabel:      AsOfLabel(s, loc),
		GrandTotalBase: grand,
		GrandTotals:    s.GrandTotals,
		Groups:         groups,
	}
}

// SharePercent is part/grand*100 with one decimal. A zero grand total gives
// "0.0" whatever the part is.
func SharePercent(part, grand decimal.Decimal) string {
	if grand.IsZero() {
		return "0.0"
	}
	return part.Div(grand).Mul(hundred).StringFixed(1)
}

// AsOfLabel renders the snapshot timestamp in loc. A missing timestamp gives
// an empty label; one that could not be parsed is shown as sent.
func AsOfLabel(s core.Snapshot, loc *time.Location) string {
	if s.AsOfRaw == "" {
		return ""
	}
	if s.AsOf.IsZero() {
		return "As of " + s.AsOfRaw
	}
	if loc == nil {
		loc = time.Local
	}
	return "As of " + s.AsOf.In(loc).Format(AsOfLayout)
}

// AccountCount is the number of accounts placed in some group.
func (v View) AccountCount() int {
	return lo.SumBy(v.Groups, func(g PersonGroup) int { return len(g.Accounts) })
}

// FailedAccounts counts grouped accounts that carry an upstream error.
func (v View) FailedAccounts() int {
	return lo.SumBy(v.Groups, func(g PersonGroup) int {
		return lo.CountBy(g.Accounts, func(a core.Account) bool { return a.HasError() })
	})
}
