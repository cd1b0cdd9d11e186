package cli

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatMoney renders amount in currency, e.g. "₹1,026.50".
// Unknown currency codes still format, with the code as the symbol.
func FormatMoney(amount decimal.Decimal, currency string) string {
	// the constructor is the only way to get a never nil currency
	cur := money.New(0, currency).Currency()
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}
