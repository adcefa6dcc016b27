package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMonthlyRepayment(t *testing.T) {
	t.Run("twelve month term", func(t *testing.T) {
		r := MonthlyRepayment(decimal.NewFromInt(1200), decimal.NewFromInt(10), date(2024, 1, 15), date(2025, 1, 15))

		assert.False(t, r.DegenerateTerm)
		assert.True(t, decimal.NewFromInt(110).Equal(r.Amount), "got %s", r.Amount)
	})

	t.Run("days are ignored", func(t *testing.T) {
		r := MonthlyRepayment(decimal.NewFromInt(1000), decimal.Zero, date(2024, 1, 31), date(2024, 3, 1))

		assert.False(t, r.DegenerateTerm)
		assert.True(t, decimal.NewFromInt(500).Equal(r.Amount), "got %s", r.Amount)
	})

	t.Run("same month is degenerate", func(t *testing.T) {
		r := MonthlyRepayment(decimal.NewFromInt(1000), decimal.NewFromInt(5), date(2024, 6, 1), date(2024, 6, 30))

		assert.True(t, r.DegenerateTerm)
		assert.True(t, r.Amount.IsZero())
	})

	t.Run("end before start is degenerate", func(t *testing.T) {
		r := MonthlyRepayment(decimal.NewFromInt(1000), decimal.NewFromInt(5), date(2025, 6, 1), date(2024, 6, 1))

		assert.True(t, r.DegenerateTerm)
		assert.True(t, r.Amount.IsZero())
	})
}

func TestTermMonths(t *testing.T) {
	assert.Equal(t, 12, TermMonths(date(2024, 1, 1), date(2025, 1, 1)))
	assert.Equal(t, 1, TermMonths(date(2024, 12, 31), date(2025, 1, 1)))
	assert.Equal(t, -11, TermMonths(date(2024, 12, 1), date(2024, 1, 1)))
}

func TestTotalRepayable(t *testing.T) {
	total := TotalRepayable(decimal.NewFromInt(5000), decimal.RequireFromString("7.5"))
	assert.True(t, decimal.NewFromInt(5375).Equal(total), "got %s", total)
}

func TestInvestmentReturn(t *testing.T) {
	assert.True(t, decimal.NewFromInt(150).Equal(InvestmentReturn(decimal.NewFromInt(1000), decimal.NewFromInt(1150))))
	assert.True(t, decimal.NewFromInt(-200).Equal(InvestmentReturn(decimal.NewFromInt(1000), decimal.NewFromInt(800))))
}

func TestCreditCard_CanCharge(t *testing.T) {
	card := CreditCard{CreditLimit: decimal.NewFromInt(500), CurrentBalance: decimal.NewFromInt(480)}

	assert.True(t, card.CanCharge(decimal.NewFromInt(20)))
	assert.False(t, card.CanCharge(decimal.NewFromInt(30)))
	assert.True(t, decimal.NewFromInt(20).Equal(card.AvailableCredit()))
}

func TestNewLoanView(t *testing.T) {
	v := NewLoanView(Loan{
		LoanAmount:   decimal.NewFromInt(600),
		InterestRate: decimal.Zero,
		StartDate:    date(2024, 1, 1),
		EndDate:      date(2024, 7, 1),
	})

	assert.False(t, v.DegenerateTerm)
	assert.True(t, decimal.NewFromInt(100).Equal(v.MonthlyRepayment))
}
