package models

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Repayment is the flat monthly instalment for a loan. DegenerateTerm is set
// when the term spans zero or fewer whole months; Amount is then zero.
type Repayment struct {
	Amount         decimal.Decimal
	DegenerateTerm bool
}

// TermMonths counts calendar-month boundaries between start and end, ignoring days.
func TermMonths(start, end time.Time) int {
	return (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
}

// MonthlyRepayment spreads principal plus simple interest (rate in percent)
// evenly across the term.
func MonthlyRepayment(principal, rate decimal.Decimal, start, end time.Time) Repayment {
	months := TermMonths(start, end)
	if months <= 0 {
		return Repayment{Amount: decimal.Zero, DegenerateTerm: true}
	}

	total := TotalRepayable(principal, rate)
	return Repayment{Amount: total.Div(decimal.NewFromInt(int64(months)))}
}

// TotalRepayable is principal plus simple interest; a new loan starts with this outstanding.
func TotalRepayable(principal, rate decimal.Decimal) decimal.Decimal {
	return principal.Add(principal.Mul(rate).Div(hundred))
}

// InvestmentReturn may be negative.
func InvestmentReturn(amount, currentValue decimal.Decimal) decimal.Decimal {
	return currentValue.Sub(amount)
}
