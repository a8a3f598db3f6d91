package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseCurrency(t *testing.T) {
	cases := []struct {
		in   string
		want Currency
	}{
		{"GBP", GBP},
		{"USD", USD},
		{"HKD", HKD},
		{" usd ", USD},
		{"", GBP},
		{"EUR", GBP},
		{"JPY", GBP},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseCurrency(tc.in), "input %q", tc.in)
	}
}

func TestCurrencyClass(t *testing.T) {
	assert.Equal(t, "usd", USD.Class())
	assert.Equal(t, "gbp", GBP.Class())
	assert.True(t, GBP.IsBase())
	assert.False(t, HKD.IsBase())
}

func TestGrandTotalsLookup(t *testing.T) {
	g := GrandTotals{
		GBP: decimal.NewNullDecimal(decimal.NewFromInt(1000)),
		USD: decimal.NullDecimal{},
	}

	v, ok := g.Lookup(GBP)
	assert.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromInt(1000)))

	_, ok = g.Lookup(USD)
	assert.False(t, ok, "null entry is unavailable")

	_, ok = g.Lookup(HKD)
	assert.False(t, ok, "absent entry is unavailable")
}

func TestSummaryPeopleAndLookup(t *testing.T) {
	s := Summary{ByPerson: []PersonEntry{
		{Name: "Louis", Totals: Totals{TotalGBP: decimal.NewFromInt(10)}},
		{Name: "Rebecca", Totals: Totals{TotalGBP: decimal.NewFromInt(20)}},
	}}

	assert.Equal(t, []string{"Louis", "Rebecca"}, s.People())

	p, ok := s.Person("Rebecca")
	assert.True(t, ok)
	assert.True(t, p.TotalGBP.Equal(decimal.NewFromInt(20)))

	_, ok = s.Person("rebecca")
	assert.False(t, ok, "lookup is an exact match")
}

func TestAccountHasError(t *testing.T) {
	assert.True(t, Account{Error: "stale price"}.HasError())
	assert.False(t, Account{Error: "  "}.HasError())
	assert.False(t, Account{}.HasError())
}
