package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the balance-carrying row every ledger entry hangs off.
type Account struct {
	ID            int64           `json:"id" db:"id"`
	AccountNumber string          `json:"account_number" db:"account_number"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	AccountType   string          `json:"account_type" db:"account_type"`
	UserID        int64           `json:"user_id" db:"user_id"`
	Version       int             `json:"-" db:"version"` // for optimistic locking
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

type BillPayment struct {
	ID              int64           `json:"id" db:"id"`
	AccountID       int64           `json:"account_id" db:"account_id"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	PaymentDate     time.Time       `json:"payment_date" db:"payment_date"`
	Biller          string          `json:"biller" db:"biller"`
	ReferenceNumber string          `json:"reference_number" db:"reference_number"`
}

// CreditCard tracks a revolving balance against a limit. Charges never touch
// the linked account; payments move money from the card debt into it.
type CreditCard struct {
	ID             int64           `json:"id" db:"id"`
	CardNumber     string          `json:"card_number" db:"card_number"`
	CreditLimit    decimal.Decimal `json:"credit_limit" db:"credit_limit"`
	CurrentBalance decimal.Decimal `json:"current_balance" db:"current_balance"`
	AccountID      int64           `json:"account_id" db:"account_id"`
	ExpiryDate     time.Time       `json:"expiry_date" db:"expiry_date"`
	CardType       string          `json:"card_type" db:"card_type"`
	Version        int             `json:"-" db:"version"`
}

// CanCharge reports whether amount fits under the remaining credit.
func (c *CreditCard) CanCharge(amount decimal.Decimal) bool {
	return c.CurrentBalance.Add(amount).LessThanOrEqual(c.CreditLimit)
}

// AvailableCredit is the headroom left before the limit is reached.
func (c *CreditCard) AvailableCredit() decimal.Decimal {
	return c.CreditLimit.Sub(c.CurrentBalance)
}

const (
	CardEventCharge  = "CHARGE"
	CardEventPayment = "PAYMENT"
)

type CardEvent struct {
	ID           int64           `json:"id" db:"id"`
	CardID       int64           `json:"card_id" db:"card_id"`
	AccountID    int64           `json:"account_id" db:"account_id"`
	EventType    string          `json:"event_type" db:"event_type"` // CHARGE or PAYMENT
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after" db:"balance_after"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

type Loan struct {
	ID              int64           `json:"id" db:"id"`
	AccountID       int64           `json:"account_id" db:"account_id"`
	LoanAmount      decimal.Decimal `json:"loan_amount" db:"loan_amount"`
	InterestRate    decimal.Decimal `json:"interest_rate" db:"interest_rate"`
	StartDate       time.Time       `json:"start_date" db:"start_date"`
	EndDate         time.Time       `json:"end_date" db:"end_date"`
	RemainingAmount decimal.Decimal `json:"remaining_amount" db:"remaining_amount"`
	IsPaidOff       bool            `json:"is_paid_off" db:"is_paid_off"`
}

type Investment struct {
	ID               int64           `json:"id" db:"id"`
	AccountID        int64           `json:"account_id" db:"account_id"`
	InvestmentAmount decimal.Decimal `json:"investment_amount" db:"investment_amount"`
	InvestmentType   string          `json:"investment_type" db:"investment_type"`
	CurrentValue     decimal.Decimal `json:"current_value" db:"current_value"`
	InvestmentDate   time.Time       `json:"investment_date" db:"investment_date"`
}

// Transfer is stored against the sender account.
type Transfer struct {
	ID                int64           `json:"id" db:"id"`
	AccountID         int64           `json:"account_id" db:"account_id"`
	Name              string          `json:"name" db:"name"`
	FromAccountNumber string          `json:"from_account_number" db:"from_account_number"`
	ToAccountNumber   string          `json:"to_account_number" db:"to_account_number"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	TransferDate      time.Time       `json:"transfer_date" db:"transfer_date"`
	Reference         string          `json:"reference" db:"reference"`
}

// TransferRecord is a Transfer joined with the sender's current account number.
type TransferRecord struct {
	Transfer
	AccountNumber string `json:"account_number"`
}

// LoanView adds the derived repayment figures to a stored loan.
type LoanView struct {
	Loan
	MonthlyRepayment decimal.Decimal `json:"monthly_repayment"`
	DegenerateTerm   bool            `json:"degenerate_term"`
}

func NewLoanView(l Loan) LoanView {
	r := MonthlyRepayment(l.LoanAmount, l.InterestRate, l.StartDate, l.EndDate)
	return LoanView{Loan: l, MonthlyRepayment: r.Amount, DegenerateTerm: r.DegenerateTerm}
}

type InvestmentView struct {
	Investment
	Returns decimal.Decimal `json:"returns"`
}

func NewInvestmentView(i Investment) InvestmentView {
	return InvestmentView{Investment: i, Returns: InvestmentReturn(i.InvestmentAmount, i.CurrentValue)}
}
