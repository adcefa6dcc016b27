package services

import (
	"context"
	"log"
	"math/rand"

	"github.com/securebank/ledger/internal/models"
	"github.com/shopspring/decimal"
)

type AccountService struct {
	store *LedgerStore
	guard *AuthorizationGuard
	audit *AuditLogger
}

func NewAccountService(store *LedgerStore, guard *AuthorizationGuard, audit *AuditLogger) *AccountService {
	return &AccountService{store: store, guard: guard, audit: audit}
}

// OpenAccountRequest represents a new account. UserID is honoured for admins only.
type OpenAccountRequest struct {
	AccountNumber  string          `json:"account_number" validate:"omitempty,alphanum,max=34" example:"1234567890"`
	AccountType    string          `json:"account_type" validate:"required,max=32" example:"Savings"`
	InitialBalance decimal.Decimal `json:"initial_balance" validate:"gte=0" example:"100"`
	UserID         int64           `json:"user_id" validate:"gte=0"`
}

// UpdateAccountRequest carries the only mutable account details; balance is
// changed exclusively by ledger operations.
type UpdateAccountRequest struct {
	AccountNumber string `json:"account_number" validate:"required,alphanum,max=34" example:"1234567890"`
	AccountType   string `json:"account_type" validate:"required,max=32" example:"Checking"`
}

// GetAccount checks access before loading, so a regular user cannot discover
// for account ids they do not own.
func (s *AccountService) GetAccount(ctx context.Context, caller Caller, id int64) (*models.Account, error) {
	if err := s.guard.Authorize(ctx, caller, id); err != nil {
		return nil, err
	}
	return s.store.GetAccount(ctx, s.store.DB(), id)
}

func (s *AccountService) ListAccounts(ctx context.Context, caller Caller) ([]models.Account, error) {
	return s.store.ListAccounts(ctx, s.store.DB(), caller)
}

func (s *AccountService) OpenAccount(ctx context.Context, caller Caller, req OpenAccountRequest) (*models.Account, error) {
	if req.InitialBalance.IsNegative() {
		return nil, newError(KindInvalidRequest, "Initial balance cannot be negative")
	}
	if err := requireScale(req.InitialBalance, moneyScale, "Initial balance"); err != nil {
		return nil, err
	}

	ownerID := caller.UserID()
	if req.UserID != 0 && req.UserID != ownerID {
		if !caller.IsAdmin() {
			return nil, newError(KindForbidden, "Only administrators can open accounts for other users")
		}
		ownerID = req.UserID
	}
	if ownerID == 0 {
		return nil, newError(KindInvalidRequest, "Account owner is required")
	}

	number := req.AccountNumber
	if number == "" {
		number = generateAccountNumber()
	}

	acct := &models.Account{
		AccountNumber: number,
		Balance:       req.InitialBalance,
		AccountType:   req.AccountType,
		UserID:        ownerID,
	}
	if err := s.store.InsertAccount(ctx, s.store.DB(), acct); err != nil {
		log.Printf("[ACCOUNT] Open failed for user %d: %v", ownerID, err)
		return nil, err
	}

	log.Printf("[ACCOUNT] Account %d (%s) opened for user %d", acct.ID, acct.AccountNumber, ownerID)
	s.audit.LogMovement("ACCOUNT_OPENED", acct.ID, acct.Balance, map[string]any{"user_id": ownerID})
	return acct, nil
}

func (s *AccountService) UpdateAccountDetails(ctx context.Context, caller Caller, id int64, req UpdateAccountRequest) (*models.Account, error) {
	if err := s.guard.Authorize(ctx, caller, id); err != nil {
		return nil, err
	}

	var acct *models.Account
	err := s.store.RunInTx(ctx, func(tx Querier) error {
		a, err := s.store.LockAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.store.UpdateAccountDetails(ctx, tx, a, req.AccountNumber, req.AccountType); err != nil {
			return err
		}
		acct = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[ACCOUNT] Account %d details updated", acct.ID)
	return acct, nil
}

// CloseAccount refuses while any ledger row references the account.
func (s *AccountService) CloseAccount(ctx context.Context, caller Caller, id int64) error {
	if err := s.guard.Authorize(ctx, caller, id); err != nil {
		return err
	}

	err := s.store.RunInTx(ctx, func(tx Querier) error {
		a, err := s.store.LockAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		n, err := s.store.CountDependents(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return newError(KindConflict, "Account %d has %d ledger entries and cannot be closed", id, n)
		}
		return s.store.DeleteAccount(ctx, tx, a)
	})
	if err != nil {
		log.Printf("[ACCOUNT] Close of account %d refused: %v", id, err)
		return err
	}

	log.Printf("[ACCOUNT] Account %d closed", id)
	s.audit.LogMovement("ACCOUNT_CLOSED", id, decimal.Zero, nil)
	return nil
}

func generateAccountNumber() string {
	const digits = "0123456789"
	b := make([]byte, 10)
	for i := range b {
		b[i] = digits[rand.Intn(len(digits))]
	}
	return string(b)
}
