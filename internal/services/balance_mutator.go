package services

import (
	"context"

	"github.com/securebank/ledger/internal/models"
	"github.com/shopspring/decimal"
)

// BalanceChange describes one account mutation and the ledger row recording it.
type BalanceChange[R any] struct {
	AccountID int64
	Delta     decimal.Decimal
	// Check runs against the locked row before anything is written.
	Check func(acct *models.Account) error
	// Record writes the ledger row after the balance update, in the same transaction.
	Record func(ctx context.Context, tx Querier, acct *models.Account) (R, error)
}

// AdjustBalance locks the account, applies Delta and writes the ledger row as
// one unit. It imposes no floor of its own; debits pass RequireFunds as Check.
// A lost version race restarts the whole unit.
func AdjustBalance[R any](ctx context.Context, store *LedgerStore, change BalanceChange[R]) (*models.Account, R, error) {
	var (
		account *models.Account
		record  R
	)

	err := store.RunInTx(ctx, func(tx Querier) error {
		acct, err := store.LockAccount(ctx, tx, change.AccountID)
		if err != nil {
			return err
		}

		if change.Check != nil {
			if err := change.Check(acct); err != nil {
				return err
			}
		}

		if err := store.UpdateAccountBalance(ctx, tx, acct, acct.Balance.Add(change.Delta)); err != nil {
			return err
		}

		rec, err := change.Record(ctx, tx, acct)
		if err != nil {
			return err
		}

		account, record = acct, rec
		return nil
	})
	if err != nil {
		var zero R
		return nil, zero, err
	}
	return account, record, nil
}

// RequireFunds rejects a debit of amount larger than the available balance.
func RequireFunds(amount decimal.Decimal) func(acct *models.Account) error {
	return func(acct *models.Account) error {
		if acct.Balance.LessThan(amount) {
			return insufficientFunds(acct.Balance)
		}
		return nil
	}
}

func insufficientFunds(available decimal.Decimal) error {
	return newError(KindInsufficientFunds, "Insufficient funds. Available balance: %s", available.StringFixed(2))
}
