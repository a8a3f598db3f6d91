package core

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Minor units per currency are always two decimal places here.
const fractionDigits = 2

var formatters = map[Currency]*money.Formatter{
	GBP: money.NewFormatter(fractionDigits, ".", ",", "£", "$1"),
	USD: money.NewFormatter(fractionDigits, ".", ",", "$", "$1"),
	HKD: money.NewFormatter(fractionDigits, ".", ",", "HK$", "$1"),
}

// FormatMoney renders amount with the currency symbol, thousands grouping and
// exactly two decimals, e.g. £12,345.67. Unrecognized codes use the GBP formatter.
func FormatMoney(c Currency, amount decimal.Decimal) string {
	f, ok := formatters[c]
	if !ok {
		f = formatters[BaseCurrency]
	}
	return f.Format(ToMinorUnits(amount))
}

// ToMinorUnits rounds half away from zero to two decimals and returns pence/cents.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(fractionDigits).Shift(fractionDigits).IntPart()
}
