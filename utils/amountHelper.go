package utils

import (
	"github.com/shopspring/decimal"
)

// MoneyEpsilon is the tolerance under which a balance counts as settled.
var MoneyEpsilon = decimal.NewFromFloat(0.01)

var decimalOneHundred = decimal.NewFromInt(100)

// IsZeroMoney reports |amount| < MoneyEpsilon.
func IsZeroMoney(amount decimal.Decimal) bool {
	return amount.Abs().LessThan(MoneyEpsilon)
}

// ExceedsMoney reports amount > limit beyond the epsilon.
func ExceedsMoney(amount, limit decimal.Decimal) bool {
	return amount.Sub(limit).GreaterThanOrEqual(MoneyEpsilon)
}

func LineAmount(quantity int, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// CalculateDiscountAmount takes a percentage rate (10 = 10% off).
func CalculateDiscountAmount(subTotal decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	if !rate.GreaterThan(decimal.Zero) {
		return decimal.Zero
	}
	if rate.GreaterThan(decimalOneHundred) {
		rate = decimalOneHundred
	}
	return subTotal.Mul(rate).DivRound(decimalOneHundred, 4)
}
