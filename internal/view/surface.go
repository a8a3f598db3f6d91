package view

import (
	"balances/internal/core"
)

const (
	Placeholder     = "—"
	NoteUnavailable = "FX unavailable for this currency (server snapshot)"
	NoteConverted   = "Converted server-side from GBP (snapshot)"
	ShareSuffix     = "% of grand total"
	FailurePrefix   = "Failed to load: "
)

// Surface is everything the dashboard shows, already formatted. The web and
// terminal front ends only copy these strings out.
type Surface struct {
	AsOf       string
	People     []PersonSection
	Failure    string
	GrandTotal string
	GrandNote  string
	Currencies []CurrencyPill
}

// PersonSection backs the person-section fragment.
type PersonSection struct {
	Name     string
	Total    string
	Share    string
	Accounts []AccountCard
}

// AccountCard backs the account-card fragment. Empty Error means the error
// slot stays hidden; empty Free/Portfolio are not shown.
type AccountCard struct {
	Title      string
	Badge      string
	BadgeClass string
	Total      string
	Free       string
	Portfolio  string
	Error      string
}

type CurrencyPill struct {
	Code     core.Currency
	Selected bool
}

// GrandDisplay is the outcome of one toggle selection.
type GrandDisplay struct {
	Currency  core.Currency
	Value     string
	Note      string
	Available bool
}

// Failed reports whether the surface shows a load failure.
func (s Surface) Failed() bool { return s.Failure != "" }

// Clear empties the content areas. The currency selector is left alone.
func Clear(s *Surface) {
	s.AsOf = ""
	s.People = nil
	s.Failure = ""
	s.GrandTotal = ""
	s.GrandNote = ""
}

// Render replaces the person list and the as-of label with v.
func Render(s *Surface, v View) {
	Clear(s)
	s.AsOf = v.AsOfLabel
	s.People = make([]PersonSection, 0, len(v.Groups))
	for _, g := range v.Groups {
		s.People = append(s.People, personSection(g))
	}
}

// RenderFailure leaves a single failure message and nothing else.
func RenderFailure(s *Surface, err error) {
	Clear(s)
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	s.Failure = FailurePrefix + msg
}

// SetGrandDisplay shows grand total c from totals and marks c as the only
// selected currency.
func SetGrandDisplay(s *Surface, totals core.GrandTotals, c core.Currency) GrandDisplay {
	d := GrandDisplay{Currency: c}
	if v, ok := totals.Lookup(c); ok {
		d.Available = true
		d.Value = core.FormatMoney(c, v)
		if !c.IsBase() {
			d.Note = NoteConverted
		}
	} else {
		d.Value = Placeholder
		d.Note = NoteUnavailable
	}

	s.GrandTotal = d.Value
	s.GrandNote = d.Note
	s.Currencies = Pills(c)
	return d
}

// Pills returns the selector with exactly one entry selected.
func Pills(selected core.Currency) []CurrencyPill {
	out := make([]CurrencyPill, len(core.Recognized))
	for i, c := range core.Recognized {
		out[i] = CurrencyPill{Code: c, Selected: c == selected}
	}
	return out
}

func personSection(g PersonGroup) PersonSection {
	cards := make([]AccountCard, 0, len(g.Accounts))
	for _, a := range g.Accounts {
		cards = append(cards, accountCard(a))
	}
	return PersonSection{
		Name:     g.Person,
		Total:    core.FormatMoney(core.BaseCurrency, g.Total),
		Share:    g.SharePercent + ShareSuffix,
		Accounts: cards,
	}
}

func accountCard(a core.Account) AccountCard {
	card := AccountCard{
		Title:      a.Name,
		Badge:      a.Currency.String(),
		BadgeClass: a.Currency.Class(),
		Total:      core.FormatMoney(a.Currency, a.Total),
	}
	if a.Free.Valid {
		card.Free = core.FormatMoney(a.Currency, a.Free.Decimal)
	}
	if a.Portfolio.Valid {
		card.Portfolio = core.FormatMoney(a.Currency, a.Portfolio.Decimal)
	}
	if a.HasError() {
		card.Error = a.Error
	}
	return card
}
