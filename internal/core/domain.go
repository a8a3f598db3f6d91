package core

import (
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	GBP Currency = "GBP"
	USD Currency = "USD"
	HKD Currency = "HKD"

	// BaseCurrency is the currency every person and grand total is expressed in.
	BaseCurrency = GBP
)

// Recognized lists the currency codes with a dedicated formatter, in toggle order.
var Recognized = []Currency{GBP, USD, HKD}

type (
	// Currency is an ISO-like currency code as sent by the balances endpoint.
	Currency string

	// Snapshot is one complete point-in-time balances payload. It is replaced
	// wholesale on every load and never mutated after decoding.
	Snapshot struct {
		AsOf        time.Time // zero when the payload carried no timestamp
		AsOfRaw     string    // timestamp exactly as received
		Accounts    []Account
		Summary     Summary
		GrandTotals GrandTotals
	}

	// Account is a single brokerage account. Figures are in Currency.
	Account struct {
		Person    string
		Name      string
		Currency  Currency
		Total     decimal.Decimal
		Free      decimal.NullDecimal
		Portfolio decimal.NullDecimal
		Error     string // non-empty when the figures are partial or unreliable
	}

	// Totals holds base-currency figures for a person or for the whole snapshot.
	Totals struct {
		TotalGBP     decimal.Decimal
		FreeGBP      decimal.NullDecimal
		PortfolioGBP decimal.NullDecimal
	}

	// PersonEntry is one byPerson member, kept in payload order.
	PersonEntry struct {
		Name   string
		Totals Totals
	}

	Summary struct {
		Grand    Totals
		ByPerson []PersonEntry
	}

	// GrandTotals maps a currency to its server-converted grand total.
	// An invalid NullDecimal means conversion data is unavailable.
	GrandTotals map[Currency]decimal.NullDecimal
)

// ParseCurrency resolves a raw code to a recognized currency, falling back to GBP.
func ParseCurrency(s string) Currency {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if lo.Contains(Recognized, c) {
		return c
	}
	return BaseCurrency
}

// IsRecognized reports whether a raw code names a recognized currency.
func IsRecognized(s string) bool {
	return lo.Contains(Recognized, Currency(strings.ToUpper(strings.TrimSpace(s))))
}

func (c Currency) String() string {
	return string(c)
}

// Class is the lowercased code, used as a style class on badges.
func (c Currency) Class() string {
	return strings.ToLower(string(c))
}

func (c Currency) IsBase() bool {
	return c == BaseCurrency
}

// HasError reports whether the server flagged this account's figures.
func (a Account) HasError() bool {
	return strings.TrimSpace(a.Error) != ""
}

// People returns person names in byPerson order.
func (s Summary) People() []string {
	return lo.Map(s.ByPerson, func(p PersonEntry, _ int) string { return p.Name })
}

// Person looks up a person's totals by exact name.
func (s Summary) Person(name string) (Totals, bool) {
	p, ok := lo.Find(s.ByPerson, func(p PersonEntry) bool { return p.Name == name })
	return p.Totals, ok
}

// Lookup returns the converted grand total for c, or false when unavailable.
func (g GrandTotals) Lookup(c Currency) (decimal.Decimal, bool) {
	v, ok := g[c]
	if !ok || !v.Valid {
		return decimal.Zero, false
	}
	return v.Decimal, true
}
