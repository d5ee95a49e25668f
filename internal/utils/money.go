// internal/utils/money.go
package utils

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ToCents converts an amount in major units to minor units, rounding half
// away from zero.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// ApplyPercentage returns amount reduced by pct percent, rounded to cents.
func ApplyPercentage(amount, pct decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Mul(hundred.Sub(pct)).Div(hundred))
}
