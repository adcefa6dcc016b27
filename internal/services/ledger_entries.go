package services

import (
	"context"

	"github.com/securebank/ledger/internal/models"
	"github.com/shopspring/decimal"
)

// listOwned runs base (which must alias the owning account as "a" and the
// entry table as "e") filtered to the caller's accounts unless they are an admin.
func listOwned[T any](ctx context.Context, q Querier, caller Caller, base string, scan func(scanner) (T, error)) ([]T, error) {
	query := base
	var args []any
	if !caller.IsAdmin() {
		query += " WHERE a.user_id = $1"
		args = append(args, caller.UserID())
	}
	query += " ORDER BY e.id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// Bill payments

const billColumns = "e.id, e.account_id, e.amount, e.payment_date, e.biller, e.reference_number"

func scanBill(row scanner) (models.BillPayment, error) {
	var b models.BillPayment
	err := row.Scan(&b.ID, &b.AccountID, &b.Amount, &b.PaymentDate, &b.Biller, &b.ReferenceNumber)
	return b, err
}

func (s *LedgerStore) InsertBillPayment(ctx context.Context, tx Querier, b *models.BillPayment) error {
	return tx.QueryRowContext(ctx, `
		INSERT INTO bill_payments (account_id, amount, payment_date, biller, reference_number)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		b.AccountID, b.Amount, b.PaymentDate, b.Biller, b.ReferenceNumber).Scan(&b.ID)
}

// GetBillPayment also returns the user id owning the paying account.
func (s *LedgerStore) GetBillPayment(ctx context.Context, q Querier, id int64) (*models.BillPayment, int64, error) {
	var ownerID int64
	row := q.QueryRowContext(ctx, "SELECT "+billColumns+", a.user_id FROM bill_payments e JOIN accounts a ON a.id = e.account_id WHERE e.id = $1", id)
	var b models.BillPayment
	if err := row.Scan(&b.ID, &b.AccountID, &b.Amount, &b.PaymentDate, &b.Biller, &b.ReferenceNumber, &ownerID); err != nil {
		return nil, 0, notFound(err, "Bill payment %d not found", id)
	}
	return &b, ownerID, nil
}

func (s *LedgerStore) ListBillPayments(ctx context.Context, q Querier, caller Caller) ([]models.BillPayment, error) {
	return listOwned(ctx, q, caller, "SELECT "+billColumns+" FROM bill_payments e JOIN accounts a ON a.id = e.account_id", scanBill)
}

// Credit cards

const cardColumns = "e.id, e.card_number, e.credit_limit, e.current_balance, e.account_id, e.expiry_date, e.card_type, e.version"

func scanCard(row scanner) (models.CreditCard, error) {
	var c models.CreditCard
	err := row.Scan(&c.ID, &c.CardNumber, &c.CreditLimit, &c.CurrentBalance, &c.AccountID, &c.ExpiryDate, &c.CardType, &c.Version)
	return c, err
}

func (s *LedgerStore) InsertCreditCard(ctx context.Context, q Querier, c *models.CreditCard) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO credit_cards (card_number, credit_limit, current_balance, account_id, expiry_date, card_type, version)
		VALUES ($1, $2, $3, $4, $5, $6, 1)
		RETURNING id`,
		c.CardNumber, c.CreditLimit, c.CurrentBalance, c.AccountID, c.ExpiryDate, c.CardType).Scan(&c.ID)
	if err != nil {
		return conflict(err, "Card number already exists")
	}
	c.Version = 1
	return nil
}

func (s *LedgerStore) GetCreditCard(ctx context.Context, q Querier, id int64) (*models.CreditCard, error) {
	c, err := scanCard(q.QueryRowContext(ctx, "SELECT "+cardColumns+" FROM credit_cards e WHERE e.id = $1", id))
	if err != nil {
		return nil, notFound(err, "Credit card %d not found", id)
	}
	return &c, nil
}

func (s *LedgerStore) LockCreditCard(ctx context.Context, tx Querier, id int64) (*models.CreditCard, error) {
	c, err := scanCard(tx.QueryRowContext(ctx, "SELECT "+cardColumns+" FROM credit_cards e WHERE e.id = $1 FOR UPDATE", id))
	if err != nil {
		return nil, notFound(err, "Credit card %d not found", id)
	}
	return &c, nil
}

func (s *LedgerStore) ListCreditCards(ctx context.Context, q Querier, caller Caller) ([]models.CreditCard, error) {
	return listOwned(ctx, q, caller, "SELECT "+cardColumns+" FROM credit_cards e JOIN accounts a ON a.id = e.account_id", scanCard)
}

func (s *LedgerStore) UpdateCardBalance(ctx context.Context, tx Querier, c *models.CreditCard, newBalance decimal.Decimal) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE credit_cards
		SET current_balance = $1, version = version + 1
		WHERE id = $2 AND version = $3`,
		newBalance, c.ID, c.Version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrConcurrentModification
	}

	c.CurrentBalance = newBalance
	c.Version++
	return nil
}

func (s *LedgerStore) InsertCardEvent(ctx context.Context, tx Querier, e *models.CardEvent) error {
	return tx.QueryRowContext(ctx, `
		INSERT INTO card_events (card_id, account_id, event_type, amount, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		e.CardID, e.AccountID, e.EventType, e.Amount, e.BalanceAfter, e.CreatedAt).Scan(&e.ID)
}

// Loans

const loanColumns = "e.id, e.account_id, e.loan_amount, e.interest_rate, e.start_date, e.end_date, e.remaining_amount, e.is_paid_off"

func scanLoan(row scanner) (models.Loan, error) {
	var l models.Loan
	err := row.Scan(&l.ID, &l.AccountID, &l.LoanAmount, &l.InterestRate, &l.StartDate, &l.EndDate, &l.RemainingAmount, &l.IsPaidOff)
	return l, err
}

func (s *LedgerStore) InsertLoan(ctx context.Context, tx Querier, l *models.Loan) error {
	return tx.QueryRowContext(ctx, `
		INSERT INTO loans (account_id, loan_amount, interest_rate, start_date, end_date, remaining_amount, is_paid_off)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		l.AccountID, l.LoanAmount, l.InterestRate, l.StartDate, l.EndDate, l.RemainingAmount, l.IsPaidOff).Scan(&l.ID)
}

func (s *LedgerStore) GetLoan(ctx context.Context, q Querier, id int64) (*models.Loan, int64, error) {
	var l models.Loan
	var ownerID int64
	err := q.QueryRowContext(ctx, "SELECT "+loanColumns+", a.user_id FROM loans e JOIN accounts a ON a.id = e.account_id WHERE e.id = $1", id).
		Scan(&l.ID, &l.AccountID, &l.LoanAmount, &l.InterestRate, &l.StartDate, &l.EndDate, &l.RemainingAmount, &l.IsPaidOff, &ownerID)
	if err != nil {
		return nil, 0, notFound(err, "Loan %d not found", id)
	}
	return &l, ownerID, nil
}

func (s *LedgerStore) ListLoans(ctx context.Context, q Querier, caller Caller) ([]models.Loan, error) {
	return listOwned(ctx, q, caller, "SELECT "+loanColumns+" FROM loans e JOIN accounts a ON a.id = e.account_id", scanLoan)
}

// Investments

const investmentColumns = "e.id, e.account_id, e.investment_amount, e.investment_type, e.current_value, e.investment_date"

func scanInvestment(row scanner) (models.Investment, error) {
	var i models.Investment
	err := row.Scan(&i.ID, &i.AccountID, &i.InvestmentAmount, &i.InvestmentType, &i.CurrentValue, &i.InvestmentDate)
	return i, err
}

func (s *LedgerStore) InsertInvestment(ctx context.Context, tx Querier, i *models.Investment) error {
	return tx.QueryRowContext(ctx, `
		INSERT INTO investments (account_id, investment_amount, investment_type, current_value, investment_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		i.AccountID, i.InvestmentAmount, i.InvestmentType, i.CurrentValue, i.InvestmentDate).Scan(&i.ID)
}

func (s *LedgerStore) GetInvestment(ctx context.Context, q Querier, id int64) (*models.Investment, int64, error) {
	var i models.Investment
	var ownerID int64
	err := q.QueryRowContext(ctx, "SELECT "+investmentColumns+", a.user_id FROM investments e JOIN accounts a ON a.id = e.account_id WHERE e.id = $1", id).
		Scan(&i.ID, &i.AccountID, &i.InvestmentAmount, &i.InvestmentType, &i.CurrentValue, &i.InvestmentDate, &ownerID)
	if err != nil {
		return nil, 0, notFound(err, "Investment %d not found", id)
	}
	return &i, ownerID, nil
}

func (s *LedgerStore) ListInvestments(ctx context.Context, q Querier, caller Caller) ([]models.Investment, error) {
	return listOwned(ctx, q, caller, "SELECT "+investmentColumns+" FROM investments e JOIN accounts a ON a.id = e.account_id", scanInvestment)
}

// Transfers

const transferColumns = "e.id, e.account_id, e.name, e.from_account_number, e.to_account_number, e.amount, e.transfer_date, e.reference, a.account_number"

func scanTransfer(row scanner) (models.TransferRecord, error) {
	var t models.TransferRecord
	err := row.Scan(&t.ID, &t.AccountID, &t.Name, &t.FromAccountNumber, &t.ToAccountNumber, &t.Amount, &t.TransferDate, &t.Reference, &t.AccountNumber)
	return t, err
}

func (s *LedgerStore) InsertTransfer(ctx context.Context, tx Querier, t *models.Transfer) error {
	return tx.QueryRowContext(ctx, `
		INSERT INTO transfers (account_id, name, from_account_number, to_account_number, amount, transfer_date, reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		t.AccountID, t.Name, t.FromAccountNumber, t.ToAccountNumber, t.Amount, t.TransferDate, t.Reference).Scan(&t.ID)
}

func (s *LedgerStore) GetTransfer(ctx context.Context, q Querier, id int64) (*models.TransferRecord, int64, error) {
	var t models.TransferRecord
	var ownerID int64
	err := q.QueryRowContext(ctx, "SELECT "+transferColumns+", a.user_id FROM transfers e JOIN accounts a ON a.id = e.account_id WHERE e.id = $1", id).
		Scan(&t.ID, &t.AccountID, &t.Name, &t.FromAccountNumber, &t.ToAccountNumber, &t.Amount, &t.TransferDate, &t.Reference, &t.AccountNumber, &ownerID)
	if err != nil {
		return nil, 0, notFound(err, "Transfer %d not found", id)
	}
	return &t, ownerID, nil
}

func (s *LedgerStore) ListTransfers(ctx context.Context, q Querier, caller Caller) ([]models.TransferRecord, error) {
	return listOwned(ctx, q, caller, "SELECT "+transferColumns+" FROM transfers e JOIN accounts a ON a.id = e.account_id", scanTransfer)
}
