package services

import (
	"context"
	"log"
	"time"

	"github.com/securebank/ledger/internal/models"
	"github.com/shopspring/decimal"
)

// PaymentService covers the single-account movements: bills, loans and investments.
type PaymentService struct {
	store  *LedgerStore
	guard  *AuthorizationGuard
	audit  *AuditLogger
	events EventPublisher
	now    func() time.Time
}

func NewPaymentService(store *LedgerStore, guard *AuthorizationGuard, audit *AuditLogger, events EventPublisher) *PaymentService {
	return &PaymentService{store: store, guard: guard, audit: audit, events: events, now: time.Now}
}

// BillPaymentRequest represents a bill payment debiting one account
type BillPaymentRequest struct {
	AccountID       int64           `json:"account_id" validate:"required,gt=0" example:"1"`
	Amount          decimal.Decimal `json:"amount" validate:"required,gt=0" example:"120.50"`
	Biller          string          `json:"biller" validate:"required,max=128" example:"City Water"`
	ReferenceNumber string          `json:"reference_number" validate:"required,max=64" example:"INV-2291"`
	PaymentDate     time.Time       `json:"payment_date"`
}

type LoanRequest struct {
	AccountID    int64           `json:"account_id" validate:"required,gt=0" example:"1"`
	LoanAmount   decimal.Decimal `json:"loan_amount" validate:"required,gt=0" example:"5000"`
	InterestRate decimal.Decimal `json:"interest_rate" validate:"gte=0" example:"7.5"`
	StartDate    time.Time       `json:"start_date" validate:"required"`
	EndDate      time.Time       `json:"end_date" validate:"required"`
}

type InvestmentRequest struct {
	AccountID        int64           `json:"account_id" validate:"required,gt=0" example:"1"`
	InvestmentAmount decimal.Decimal `json:"investment_amount" validate:"required,gt=0" example:"1000"`
	InvestmentType   string          `json:"investment_type" validate:"required,max=64" example:"Bonds"`
	CurrentValue     decimal.Decimal `json:"current_value" validate:"gte=0" example:"1000"`
	InvestmentDate   time.Time       `json:"investment_date"`
}

// Scales of the NUMERIC money and rate columns.
const (
	moneyScale = 2
	rateScale  = 4
)

var maxInterestRate = decimal.NewFromInt(1000)

// requireScale rejects values the database would round on write.
func requireScale(value decimal.Decimal, places int32, field string) error {
	if !value.Equal(value.Truncate(places)) {
		return newError(KindInvalidRequest, "%s cannot have more than %d decimal places", field, places)
	}
	return nil
}

func requirePositive(amount decimal.Decimal, field string) error {
	if !amount.IsPositive() {
		return newError(KindInvalidRequest, "%s must be greater than zero", field)
	}
	return requireScale(amount, moneyScale, field)
}

// PayBill debits the account and records the payment.
func (s *PaymentService) PayBill(ctx context.Context, caller Caller, req BillPaymentRequest) (*models.BillPayment, error) {
	if err := requirePositive(req.Amount, "Amount"); err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, caller, req.AccountID); err != nil {
		return nil, err
	}

	paidAt := req.PaymentDate
	if paidAt.IsZero() {
		paidAt = s.now()
	}

	acct, bill, err := AdjustBalance(ctx, s.store, BalanceChange[*models.BillPayment]{
		AccountID: req.AccountID,
		Delta:     req.Amount.Neg(),
		Check:     RequireFunds(req.Amount),
		Record: func(ctx context.Context, tx Querier, acct *models.Account) (*models.BillPayment, error) {
			b := &models.BillPayment{
				AccountID:       acct.ID,
				Amount:          req.Amount,
				PaymentDate:     paidAt,
				Biller:          req.Biller,
				ReferenceNumber: req.ReferenceNumber,
			}
			return b, s.store.InsertBillPayment(ctx, tx, b)
		},
	})
	if err != nil {
		log.Printf("[LEDGER] Bill payment failed for account %d: %v", req.AccountID, err)
		s.audit.LogError("BILL_PAYMENT", req.AccountID, req.Amount, err)
		return nil, err
	}

	log.Printf("[LEDGER] Bill payment %d of %s from account %d to %s", bill.ID, req.Amount, acct.ID, req.Biller)
	s.audit.LogMovement("BILL_PAYMENT", acct.ID, req.Amount, map[string]any{"bill_id": bill.ID, "biller": req.Biller})
	publish(ctx, s.events, newLedgerEvent(models.EventBillPaid, acct, req.Amount, bill.ID))
	return bill, nil
}

func (s *PaymentService) GetBillPayment(ctx context.Context, caller Caller, id int64) (*models.BillPayment, error) {
	bill, ownerID, err := s.store.GetBillPayment(ctx, s.store.DB(), id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.AuthorizeOwner(caller, ownerID); err != nil {
		return nil, err
	}
	return bill, nil
}

func (s *PaymentService) ListBillPayments(ctx context.Context, caller Caller) ([]models.BillPayment, error) {
	return s.store.ListBillPayments(ctx, s.store.DB(), caller)
}

// OriginateLoan credits the principal to the account. The loan starts with
// principal plus simple interest outstanding.
func (s *PaymentService) OriginateLoan(ctx context.Context, caller Caller, req LoanRequest) (*models.LoanView, error) {
	if err := requirePositive(req.LoanAmount, "Loan amount"); err != nil {
		return nil, err
	}
	if req.InterestRate.IsNegative() {
		return nil, newError(KindInvalidRequest, "Interest rate cannot be negative")
	}
	if !req.InterestRate.LessThan(maxInterestRate) {
		return nil, newError(KindInvalidRequest, "Interest rate must be below %s", maxInterestRate)
	}
	if err := requireScale(req.InterestRate, rateScale, "Interest rate"); err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, caller, req.AccountID); err != nil {
		return nil, err
	}

	acct, loan, err := AdjustBalance(ctx, s.store, BalanceChange[*models.Loan]{
		AccountID: req.AccountID,
		Delta:     req.LoanAmount,
		Record: func(ctx context.Context, tx Querier, acct *models.Account) (*models.Loan, error) {
			l := &models.Loan{
				AccountID:       acct.ID,
				LoanAmount:      req.LoanAmount,
				InterestRate:    req.InterestRate,
				StartDate:       req.StartDate,
				EndDate:         req.EndDate,
				RemainingAmount: models.TotalRepayable(req.LoanAmount, req.InterestRate),
				IsPaidOff:       false,
			}
			return l, s.store.InsertLoan(ctx, tx, l)
		},
	})
	if err != nil {
		log.Printf("[LEDGER] Loan origination failed for account %d: %v", req.AccountID, err)
		s.audit.LogError("LOAN_ORIGINATION", req.AccountID, req.LoanAmount, err)
		return nil, err
	}

	view := models.NewLoanView(*loan)
	if view.DegenerateTerm {
		log.Printf("[LEDGER] Loan %d has a term under one month; monthly repayment reported as zero", loan.ID)
	}
	log.Printf("[LEDGER] Loan %d of %s originated for account %d", loan.ID, req.LoanAmount, acct.ID)
	s.audit.LogMovement("LOAN_ORIGINATION", acct.ID, req.LoanAmount, map[string]any{"loan_id": loan.ID})
	publish(ctx, s.events, newLedgerEvent(models.EventLoanOriginated, acct, req.LoanAmount, loan.ID))
	return &view, nil
}

func (s *PaymentService) GetLoan(ctx context.Context, caller Caller, id int64) (*models.LoanView, error) {
	loan, ownerID, err := s.store.GetLoan(ctx, s.store.DB(), id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.AuthorizeOwner(caller, ownerID); err != nil {
		return nil, err
	}
	view := models.NewLoanView(*loan)
	return &view, nil
}

func (s *PaymentService) ListLoans(ctx context.Context, caller Caller) ([]models.LoanView, error) {
	loans, err := s.store.ListLoans(ctx, s.store.DB(), caller)
	if err != nil {
		return nil, err
	}
	views := make([]models.LoanView, 0, len(loans))
	for _, l := range loans {
		views = append(views, models.NewLoanView(l))
	}
	return views, nil
}

// PurchaseInvestment debits the account. A zero current value means the
// position is worth what was paid for it.
func (s *PaymentService) PurchaseInvestment(ctx context.Context, caller Caller, req InvestmentRequest) (*models.InvestmentView, error) {
	if err := requirePositive(req.InvestmentAmount, "Investment amount"); err != nil {
		return nil, err
	}
	if req.CurrentValue.IsNegative() {
		return nil, newError(KindInvalidRequest, "Current value cannot be negative")
	}
	if err := requireScale(req.CurrentValue, moneyScale, "Current value"); err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, caller, req.AccountID); err != nil {
		return nil, err
	}

	currentValue := req.CurrentValue
	if currentValue.IsZero() {
		currentValue = req.InvestmentAmount
	}
	investedAt := req.InvestmentDate
	if investedAt.IsZero() {
		investedAt = s.now()
	}

	acct, inv, err := AdjustBalance(ctx, s.store, BalanceChange[*models.Investment]{
		AccountID: req.AccountID,
		Delta:     req.InvestmentAmount.Neg(),
		Check:     RequireFunds(req.InvestmentAmount),
		Record: func(ctx context.Context, tx Querier, acct *models.Account) (*models.Investment, error) {
			i := &models.Investment{
				AccountID:        acct.ID,
				InvestmentAmount: req.InvestmentAmount,
				InvestmentType:   req.InvestmentType,
				CurrentValue:     currentValue,
				InvestmentDate:   investedAt,
			}
			return i, s.store.InsertInvestment(ctx, tx, i)
		},
	})
	if err != nil {
		log.Printf("[LEDGER] Investment purchase failed for account %d: %v", req.AccountID, err)
		s.audit.LogError("INVESTMENT_PURCHASE", req.AccountID, req.InvestmentAmount, err)
		return nil, err
	}

	log.Printf("[LEDGER] Investment %d of %s purchased from account %d", inv.ID, req.InvestmentAmount, acct.ID)
	s.audit.LogMovement("INVESTMENT_PURCHASE", acct.ID, req.InvestmentAmount, map[string]any{"investment_id": inv.ID, "type": req.InvestmentType})
	publish(ctx, s.events, newLedgerEvent(models.EventInvestmentPurchase, acct, req.InvestmentAmount, inv.ID))
	view := models.NewInvestmentView(*inv)
	return &view, nil
}

func (s *PaymentService) GetInvestment(ctx context.Context, caller Caller, id int64) (*models.InvestmentView, error) {
	inv, ownerID, err := s.store.GetInvestment(ctx, s.store.DB(), id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.AuthorizeOwner(caller, ownerID); err != nil {
		return nil, err
	}
	view := models.NewInvestmentView(*inv)
	return &view, nil
}

func (s *PaymentService) ListInvestments(ctx context.Context, caller Caller) ([]models.InvestmentView, error) {
	investments, err := s.store.ListInvestments(ctx, s.store.DB(), caller)
	if err != nil {
		return nil, err
	}
	views := make([]models.InvestmentView, 0, len(investments))
	for _, i := range investments {
		views = append(views, models.NewInvestmentView(i))
	}
	return views, nil
}
