package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/securebank/ledger/internal/config"
	"github.com/securebank/ledger/internal/models"
	"github.com/shopspring/decimal"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so the same statements run
// inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// LedgerStore owns every statement against the ledger tables.
type LedgerStore struct {
	db         *sql.DB
	txTimeout  time.Duration
	maxRetries int
	now        func() time.Time
}

func NewLedgerStore(db *sql.DB, cfg *config.LedgerConfig) *LedgerStore {
	return &LedgerStore{
		db:         db,
		txTimeout:  cfg.TxTimeout,
		maxRetries: cfg.MaxRetries,
		now:        time.Now,
	}
}

func (s *LedgerStore) DB() Querier {
	return s.db
}

// InTx runs fn in one read-committed transaction bounded by the configured
// timeout. It commits when fn returns nil and rolls back otherwise.
func (s *LedgerStore) InTx(ctx context.Context, fn func(tx Querier) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Retry re-runs op from the top while it fails with ErrConcurrentModification.
func (s *LedgerStore) Retry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err = op(); !errors.Is(err, ErrConcurrentModification) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[LEDGER] Concurrent modification, retrying (attempt %d/%d)", attempt+1, s.maxRetries)
	}
	return err
}

func (s *LedgerStore) RunInTx(ctx context.Context, fn func(tx Querier) error) error {
	return s.Retry(ctx, func() error {
		return s.InTx(ctx, fn)
	})
}

const accountColumns = "id, account_number, balance, account_type, user_id, version, created_at, updated_at"

func scanAccount(row scanner) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.AccountNumber, &a.Balance, &a.AccountType, &a.UserID, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return newError(KindNotFound, format, args...)
	}
	return err
}

func (s *LedgerStore) GetAccount(ctx context.Context, q Querier, id int64) (*models.Account, error) {
	row := q.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1", id)
	a, err := scanAccount(row)
	if err != nil {
		return nil, notFound(err, "Account %d not found", id)
	}
	return a, nil
}

func (s *LedgerStore) GetAccountByNumber(ctx context.Context, q Querier, number string) (*models.Account, error) {
	row := q.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE account_number = $1", number)
	a, err := scanAccount(row)
	if err != nil {
		return nil, notFound(err, "Account %s not found", number)
	}
	return a, nil
}

// LockAccount takes a row lock held until the surrounding transaction ends.
func (s *LedgerStore) LockAccount(ctx context.Context, tx Querier, id int64) (*models.Account, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1 FOR UPDATE", id)
	a, err := scanAccount(row)
	if err != nil {
		return nil, notFound(err, "Account %d not found", id)
	}
	return a, nil
}

// UpdateAccountBalance writes newBalance if nobody bumped the version since
// acct was read, and refreshes acct in place.
func (s *LedgerStore) UpdateAccountBalance(ctx context.Context, tx Querier, acct *models.Account, newBalance decimal.Decimal) error {
	now := s.now()
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, now, acct.ID, acct.Version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account %d: %w", acct.ID, ErrConcurrentModification)
	}

	acct.Balance = newBalance
	acct.Version++
	acct.UpdatedAt = now
	return nil
}

func (s *LedgerStore) UpdateAccountDetails(ctx context.Context, tx Querier, acct *models.Account, number, accountType string) error {
	now := s.now()
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET account_number = $1, account_type = $2, version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5`,
		number, accountType, now, acct.ID, acct.Version)
	if err != nil {
		return conflict(err, "Account number %s already exists", number)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account %d: %w", acct.ID, ErrConcurrentModification)
	}

	acct.AccountNumber = number
	acct.AccountType = accountType
	acct.Version++
	acct.UpdatedAt = now
	return nil
}

func (s *LedgerStore) InsertAccount(ctx context.Context, q Querier, acct *models.Account) error {
	now := s.now()
	err := q.QueryRowContext(ctx, `
		INSERT INTO accounts (account_number, balance, account_type, user_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, $5)
		RETURNING id`,
		acct.AccountNumber, acct.Balance, acct.AccountType, acct.UserID, now).Scan(&acct.ID)
	if err != nil {
		return conflict(err, "Account number %s already exists", acct.AccountNumber)
	}
	acct.Version = 1
	acct.CreatedAt = now
	acct.UpdatedAt = now
	return nil
}

// ListAccounts returns every account for admins and the caller's own otherwise.
func (s *LedgerStore) ListAccounts(ctx context.Context, q Querier, caller Caller) ([]models.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts"
	var args []any
	if !caller.IsAdmin() {
		query += " WHERE user_id = $1"
		args = append(args, caller.UserID())
	}
	query += " ORDER BY id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// CountDependents counts ledger rows that still reference the account.
func (s *LedgerStore) CountDependents(ctx context.Context, q Querier, accountID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM bill_payments WHERE account_id = $1) +
			(SELECT COUNT(*) FROM credit_cards WHERE account_id = $1) +
			(SELECT COUNT(*) FROM loans WHERE account_id = $1) +
			(SELECT COUNT(*) FROM investments WHERE account_id = $1) +
			(SELECT COUNT(*) FROM transfers WHERE account_id = $1)`,
		accountID).Scan(&n)
	return n, err
}

func (s *LedgerStore) DeleteAccount(ctx context.Context, tx Querier, acct *models.Account) error {
	result, err := tx.ExecContext(ctx, "DELETE FROM accounts WHERE id = $1 AND version = $2", acct.ID, acct.Version)
	if err != nil {
		return conflict(err, "Account %d still has ledger history", acct.ID)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account %d: %w", acct.ID, ErrConcurrentModification)
	}
	return nil
}

// conflict maps unique and foreign-key violations to a Conflict error.
func conflict(err error, format string, args ...any) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505", "23503":
			return wrapError(KindConflict, err, format, args...)
		}
	}
	return err
}
