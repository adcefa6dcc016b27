package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/securebank/ledger/internal/config"
	"github.com/securebank/ledger/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransferService(t *testing.T, rdb *redis.Client) (*TransferService, sqlmock.Sqlmock, *[]models.LedgerEvent, *[]string) {
	store, mock := newTestStore(t)
	publisher, events := capturePublisher()
	audit, lines := recordingAudit()
	svc := NewTransferService(store, NewAuthorizationGuard(store), audit, publisher, rdb, &config.LedgerConfig{TxTimeout: 5 * time.Second, MaxRetries: 2, IdempotencyTTL: time.Hour})
	svc.now = func() time.Time { return fixedNow }
	return svc, mock, events, lines
}

func rentRequest() TransferRequest {
	return TransferRequest{
		FromAccountID:     10,
		FromAccountNumber: "S10",
		ToAccountNumber:   "R20",
		Amount:            decimal.NewFromInt(150),
		Name:              "Rent",
		Reference:         "March",
	}
}

// expectRentTransfer queues the statements of a successful 150 transfer from
// S10 (1000) to R20 (200).
func expectRentTransfer(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(qReadAccount).WithArgs(10).WillReturnRows(accountRow(10, "S10", "1000", 1, 1))
	mock.ExpectQuery(qAccountByNumber).WithArgs("R20").WillReturnRows(accountRow(20, "R20", "200", 2, 1))
	mock.ExpectBegin()
	mock.ExpectQuery(qLockAccount).WithArgs(10).WillReturnRows(accountRow(10, "S10", "1000", 1, 1))
	mock.ExpectQuery(qLockAccount).WithArgs(20).WillReturnRows(accountRow(20, "R20", "200", 2, 1))
	mock.ExpectExec(qUpdateBalance).
		WithArgs(decimalArg("850"), sqlmock.AnyArg(), 10, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(qUpdateBalance).
		WithArgs(decimalArg("350"), sqlmock.AnyArg(), 20, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO transfers").
		WithArgs(10, "Rent", "S10", "R20", decimalArg("150"), fixedNow, "March").
		WillReturnRows(idRow(77))
	mock.ExpectCommit()
}

func TestTransferService_Transfer(t *testing.T) {
	ctx := context.Background()

	t.Run("moves funds and records one transfer", func(t *testing.T) {
		svc, mock, events, lines := newTestTransferService(t, nil)
		expectRentTransfer(mock)

		rec, err := svc.Transfer(ctx, OwnerCaller(1), rentRequest())

		require.NoError(t, err)
		assert.Equal(t, int64(77), rec.ID)
		assert.Equal(t, "S10", rec.AccountNumber)
		assert.Equal(t, fixedNow, rec.TransferDate)
		require.Len(t, *events, 1)
		event := (*events)[0]
		assert.Equal(t, models.EventTransferCompleted, event.Kind)
		assert.Equal(t, "S10", event.FromAccount)
		assert.Equal(t, "R20", event.ToAccount)
		assert.True(t, decimal.NewFromInt(850).Equal(event.BalanceAfter))
		require.Len(t, *lines, 1)
		assert.Contains(t, (*lines)[0], "SUCCESS")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("locks the lower id first", func(t *testing.T) {
		svc, mock, _, _ := newTestTransferService(t, nil)

		mock.ExpectQuery(qReadAccount).WithArgs(30).WillReturnRows(accountRow(30, "S30", "500", 1, 4))
		mock.ExpectQuery(qAccountByNumber).WithArgs("R5").WillReturnRows(accountRow(5, "R5", "0", 2, 9))
		mock.ExpectBegin()
		mock.ExpectQuery(qLockAccount).WithArgs(5).WillReturnRows(accountRow(5, "R5", "0", 2, 9))
		mock.ExpectQuery(qLockAccount).WithArgs(30).WillReturnRows(accountRow(30, "S30", "500", 1, 4))
		mock.ExpectExec(qUpdateBalance).
			WithArgs(decimalArg("400"), sqlmock.AnyArg(), 30, 4).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(qUpdateBalance).
			WithArgs(decimalArg("100"), sqlmock.AnyArg(), 5, 9).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("INSERT INTO transfers").
			WithArgs(30, "Gift", "S30", "R5", decimalArg("100"), fixedNow, "").
			WillReturnRows(idRow(1))
		mock.ExpectCommit()

		rec, err := svc.Transfer(ctx, OwnerCaller(1), TransferRequest{
			FromAccountID:     30,
			FromAccountNumber: "S30",
			ToAccountNumber:   "R5",
			Amount:            decimal.NewFromInt(100),
			Name:              "Gift",
		})

		require.NoError(t, err)
		assert.Equal(t, int64(30), rec.AccountID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("shape errors touch nothing", func(t *testing.T) {
		svc, mock, _, _ := newTestTransferService(t, nil)

		same := rentRequest()
		same.ToAccountNumber = "S10"
		_, err := svc.Transfer(ctx, OwnerCaller(1), same)
		assert.ErrorIs(t, err, ErrInvalidRequest)
		assert.EqualError(t, err, "Cannot transfer to the same account")

		zero := rentRequest()
		zero.Amount = decimal.Zero
		_, err = svc.Transfer(ctx, OwnerCaller(1), zero)
		assert.EqualError(t, err, "Transfer amount must be greater than zero")

		missing := rentRequest()
		missing.ToAccountNumber = ""
		_, err = svc.Transfer(ctx, OwnerCaller(1), missing)
		assert.ErrorIs(t, err, ErrInvalidRequest)

		fractional := rentRequest()
		fractional.Amount = decimal.RequireFromString("1.005")
		_, err = svc.Transfer(ctx, OwnerCaller(1), fractional)
		assert.ErrorIs(t, err, ErrInvalidRequest)
		assert.EqualError(t, err, "Transfer amount cannot have more than 2 decimal places")

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("trailing zeros beyond cents are accepted", func(t *testing.T) {
		svc, mock, _, _ := newTestTransferService(t, nil)
		expectRentTransfer(mock)

		req := rentRequest()
		req.Amount = decimal.RequireFromString("150.000")
		_, err := svc.Transfer(ctx, OwnerCaller(1), req)

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown sender", func(t *testing.T) {
		svc, mock, _, _ := newTestTransferService(t, nil)
		mock.ExpectQuery(qReadAccount).WithArgs(10).WillReturnRows(noAccount())

		_, err := svc.Transfer(ctx, OwnerCaller(1), rentRequest())

		assert.ErrorIs(t, err, ErrSenderNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sender number does not match id", func(t *testing.T) {
		svc, mock, _, _ := newTestTransferService(t, nil)
		mock.ExpectQuery(qReadAccount).WithArgs(10).WillReturnRows(accountRow(10, "OTHER", "1000", 1, 1))

		_, err := svc.Transfer(ctx, OwnerCaller(1), rentRequest())

		assert.ErrorIs(t, err, ErrAccountMismatch)
	})

	t.Run("sender owned by someone else", func(t *testing.T) {
		svc, mock, _, _ := newTestTransferService(t, nil)
		mock.ExpectQuery(qReadAccount).WithArgs(10).WillReturnRows(accountRow(10, "S10", "1000", 2, 1))

		_, err := svc.Transfer(ctx, OwnerCaller(1), rentRequest())

		assert.ErrorIs(t, err, ErrForbidden)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient funds before any lock", func(t *testing.T) {
		svc, mock, events, lines := newTestTransferService(t, nil)
		mock.ExpectQuery(qReadAccount).WithArgs(10).WillReturnRows(accountRow(10, "S10", "100", 1, 1))

		_, err := svc.Transfer(ctx, OwnerCaller(1), rentRequest())

		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.EqualError(t, err, "Insufficient funds. Available balance: 100.00")
		assert.Empty(t, *events)
		assert.Len(t, *lines, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("balance drained while waiting for the lock", func(t *testing.T) {
		svc, mock, _, _ := newTestTransferService(t, nil)
		mock.ExpectQuery(qReadAccount).WithArgs(10).WillReturnRows(accountRow(10, "S10", "1000", 1, 1))
		mock.ExpectQuery(qAccountByNumber).WithArgs("R20").WillReturnRows(accountRow(20, "R20", "200", 2, 1))
		mock.ExpectBegin()
		mock.ExpectQuery(qLockAccount).WithArgs(10).WillReturnRows(accountRow(10, "S10", "20", 1, 2))
		mock.ExpectQuery(qLockAccount).WithArgs(20).WillReturnRows(accountRow(20, "R20", "200", 2, 1))
		mock.ExpectRollback()

		_, err := svc.Transfer(ctx, OwnerCaller(1), rentRequest())

		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown recipient", func(t *testing.T) {
		svc, mock, _, _ := newTestTransferService(t, nil)
		mock.ExpectQuery(qReadAccount).WithArgs(10).WillReturnRows(accountRow(10, "S10", "1000", 1, 1))
		mock.ExpectQuery(qAccountByNumber).WithArgs("R20").WillReturnRows(noAccount())

		_, err := svc.Transfer(ctx, OwnerCaller(1), rentRequest())

		assert.ErrorIs(t, err, ErrRecipientNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ledger write failure rolls everything back", func(t *testing.T) {
		svc, mock, events, _ := newTestTransferService(t, nil)
		mock.ExpectQuery(qReadAccount).WithArgs(10).WillReturnRows(accountRow(10, "S10", "1000", 1, 1))
		mock.ExpectQuery(qAccountByNumber).WithArgs("R20").WillReturnRows(accountRow(20, "R20", "200", 2, 1))
		mock.ExpectBegin()
		mock.ExpectQuery(qLockAccount).WithArgs(10).WillReturnRows(accountRow(10, "S10", "1000", 1, 1))
		mock.ExpectQuery(qLockAccount).WithArgs(20).WillReturnRows(accountRow(20, "R20", "200", 2, 1))
		mock.ExpectExec(qUpdateBalance).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(qUpdateBalance).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("INSERT INTO transfers").WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		_, err := svc.Transfer(ctx, OwnerCaller(1), rentRequest())

		assert.ErrorIs(t, err, ErrTransferFailed)
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, "Transfer failed", e.Message)
		assert.Empty(t, *events)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lost version race restarts from validation", func(t *testing.T) {
		svc, mock, _, _ := newTestTransferService(t, nil)
		mock.ExpectQuery(qReadAccount).WithArgs(10).WillReturnRows(accountRow(10, "S10", "1000", 1, 1))
		mock.ExpectQuery(qAccountByNumber).WithArgs("R20").WillReturnRows(accountRow(20, "R20", "200", 2, 1))
		mock.ExpectBegin()
		mock.ExpectQuery(qLockAccount).WithArgs(10).WillReturnRows(accountRow(10, "S10", "1000", 1, 1))
		mock.ExpectQuery(qLockAccount).WithArgs(20).WillReturnRows(accountRow(20, "R20", "200", 2, 1))
		mock.ExpectExec(qUpdateBalance).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()
		expectRentTransfer(mock)

		rec, err := svc.Transfer(ctx, OwnerCaller(1), rentRequest())

		require.NoError(t, err)
		assert.Equal(t, int64(77), rec.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exhausted retries are a transfer failure", func(t *testing.T) {
		svc, mock, _, _ := newTestTransferService(t, nil)
		for i := 0; i < 3; i++ {
			mock.ExpectQuery(qReadAccount).WithArgs(10).WillReturnRows(accountRow(10, "S10", "1000", 1, 1))
			mock.ExpectQuery(qAccountByNumber).WithArgs("R20").WillReturnRows(accountRow(20, "R20", "200", 2, 1))
			mock.ExpectBegin()
			mock.ExpectQuery(qLockAccount).WithArgs(10).WillReturnRows(accountRow(10, "S10", "1000", 1, 1))
			mock.ExpectQuery(qLockAccount).WithArgs(20).WillReturnRows(accountRow(20, "R20", "200", 2, 1))
			mock.ExpectExec(qUpdateBalance).WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectRollback()
		}

		_, err := svc.Transfer(ctx, OwnerCaller(1), rentRequest())

		assert.ErrorIs(t, err, ErrTransferFailed)
		assert.ErrorIs(t, err, ErrConcurrentModification)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func rentRecord() models.TransferRecord {
	return models.TransferRecord{
		Transfer: models.Transfer{
			ID:                77,
			AccountID:         10,
			Name:              "Rent",
			FromAccountNumber: "S10",
			ToAccountNumber:   "R20",
			Amount:            decimal.NewFromInt(150),
			TransferDate:      fixedNow,
			Reference:         "March",
		},
		AccountNumber: "S10",
	}
}

func storedEntry(t *testing.T, req TransferRequest) string {
	t.Helper()
	data, err := json.Marshal(idempotencyEntry{Fingerprint: req.Fingerprint(), Transfer: rentRecord()})
	require.NoError(t, err)
	return string(data)
}

func TestTransferService_TransferOnce(t *testing.T) {
	ctx := context.Background()
	const key = "idempotency:transfer:1:abc"
	const pending = 15 * time.Second

	t.Run("first call stores the result", func(t *testing.T) {
		rdb, rmock := redismock.NewClientMock()
		svc, mock, _, _ := newTestTransferService(t, rdb)

		rmock.ExpectSetNX(key, "pending", pending).SetVal(true)
		expectRentTransfer(mock)
		rmock.ExpectSet(key, storedEntry(t, rentRequest()), time.Hour).SetVal("OK")

		rec, replayed, err := svc.TransferOnce(ctx, OwnerCaller(1), "abc", rentRequest())

		require.NoError(t, err)
		assert.False(t, replayed)
		assert.Equal(t, int64(77), rec.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, rmock.ExpectationsWereMet())
	})

	t.Run("repeat call replays without touching the ledger", func(t *testing.T) {
		rdb, rmock := redismock.NewClientMock()
		svc, mock, _, _ := newTestTransferService(t, rdb)

		rmock.ExpectSetNX(key, "pending", pending).SetVal(false)
		rmock.ExpectGet(key).SetVal(storedEntry(t, rentRequest()))

		rec, replayed, err := svc.TransferOnce(ctx, OwnerCaller(1), "abc", rentRequest())

		require.NoError(t, err)
		assert.True(t, replayed)
		assert.Equal(t, int64(77), rec.ID)
		assert.True(t, decimal.NewFromInt(150).Equal(rec.Amount))
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, rmock.ExpectationsWereMet())
	})

	t.Run("same key with a different body is a conflict", func(t *testing.T) {
		rdb, rmock := redismock.NewClientMock()
		svc, mock, _, _ := newTestTransferService(t, rdb)

		rmock.ExpectSetNX(key, "pending", pending).SetVal(false)
		rmock.ExpectGet(key).SetVal(storedEntry(t, rentRequest()))

		changed := rentRequest()
		changed.Amount = decimal.NewFromInt(1500)
		_, replayed, err := svc.TransferOnce(ctx, OwnerCaller(1), "abc", changed)

		assert.ErrorIs(t, err, ErrConflict)
		assert.EqualError(t, err, "Idempotency key was already used for a different transfer")
		assert.False(t, replayed)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, rmock.ExpectationsWereMet())
	})

	t.Run("in flight duplicate is a conflict", func(t *testing.T) {
		rdb, rmock := redismock.NewClientMock()
		svc, _, _, _ := newTestTransferService(t, rdb)

		rmock.ExpectSetNX(key, "pending", pending).SetVal(false)
		rmock.ExpectGet(key).SetVal("pending")

		_, _, err := svc.TransferOnce(ctx, OwnerCaller(1), "abc", rentRequest())

		assert.ErrorIs(t, err, ErrConflict)
		assert.NoError(t, rmock.ExpectationsWereMet())
	})

	t.Run("failure releases the key", func(t *testing.T) {
		rdb, rmock := redismock.NewClientMock()
		svc, mock, _, _ := newTestTransferService(t, rdb)

		rmock.ExpectSetNX(key, "pending", pending).SetVal(true)
		mock.ExpectQuery(qReadAccount).WithArgs(10).WillReturnRows(noAccount())
		rmock.ExpectDel(key).SetVal(1)

		_, _, err := svc.TransferOnce(ctx, OwnerCaller(1), "abc", rentRequest())

		assert.ErrorIs(t, err, ErrSenderNotFound)
		assert.NoError(t, rmock.ExpectationsWereMet())
	})

	t.Run("committed transfer survives a failed result write", func(t *testing.T) {
		rdb, rmock := redismock.NewClientMock()
		svc, mock, events, _ := newTestTransferService(t, rdb)

		rmock.ExpectSetNX(key, "pending", pending).SetVal(true)
		expectRentTransfer(mock)
		rmock.ExpectSet(key, storedEntry(t, rentRequest()), time.Hour).SetErr(context.Canceled)

		rec, replayed, err := svc.TransferOnce(ctx, OwnerCaller(1), "abc", rentRequest())

		require.NoError(t, err)
		assert.False(t, replayed)
		assert.Equal(t, int64(77), rec.ID)
		assert.Len(t, *events, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, rmock.ExpectationsWereMet())
	})

	t.Run("unencodable result releases the key", func(t *testing.T) {
		rdb, rmock := redismock.NewClientMock()
		svc, mock, _, _ := newTestTransferService(t, rdb)
		marshalEntry = func(any) ([]byte, error) { return nil, errors.New("encode failed") }
		t.Cleanup(func() { marshalEntry = json.Marshal })

		rmock.ExpectSetNX(key, "pending", pending).SetVal(true)
		expectRentTransfer(mock)
		rmock.ExpectDel(key).SetVal(1)

		rec, _, err := svc.TransferOnce(ctx, OwnerCaller(1), "abc", rentRequest())

		require.NoError(t, err)
		assert.Equal(t, int64(77), rec.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, rmock.ExpectationsWereMet())
	})

	t.Run("no key runs a plain transfer", func(t *testing.T) {
		rdb, rmock := redismock.NewClientMock()
		svc, mock, _, _ := newTestTransferService(t, rdb)
		expectRentTransfer(mock)

		_, replayed, err := svc.TransferOnce(ctx, OwnerCaller(1), "", rentRequest())

		require.NoError(t, err)
		assert.False(t, replayed)
		assert.NoError(t, rmock.ExpectationsWereMet())
	})
}

func TestTransferRequest_Fingerprint(t *testing.T) {
	a := rentRequest()
	b := rentRequest()
	b.Amount = decimal.RequireFromString("150.00")
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Reference = "April"
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestPendingTTL(t *testing.T) {
	assert.Equal(t, 30*time.Second, pendingTTL(&config.LedgerConfig{TxTimeout: 10 * time.Second, MaxRetries: 2, IdempotencyTTL: time.Hour}))
	assert.Equal(t, time.Minute, pendingTTL(&config.LedgerConfig{TxTimeout: time.Hour, MaxRetries: 3, IdempotencyTTL: time.Minute}))
	assert.Equal(t, time.Hour, pendingTTL(&config.LedgerConfig{IdempotencyTTL: time.Hour}))
}

func TestTransferService_GetTransfer(t *testing.T) {
	cols := []string{"id", "account_id", "name", "from_account_number", "to_account_number", "amount", "transfer_date", "reference", "account_number", "user_id"}
	row := func() *sqlmock.Rows {
		return sqlmock.NewRows(cols).AddRow(77, 10, "Rent", "S10", "R20", "150", fixedNow, "March", "S10", 1)
	}

	t.Run("sender's owner may read it", func(t *testing.T) {
		svc, mock, _, _ := newTestTransferService(t, nil)
		mock.ExpectQuery(`FROM transfers e JOIN accounts a ON a.id = e.account_id WHERE e.id = \$1`).WithArgs(77).WillReturnRows(row())

		rec, err := svc.GetTransfer(context.Background(), OwnerCaller(1), 77)

		require.NoError(t, err)
		assert.Equal(t, "S10", rec.AccountNumber)
	})

	t.Run("anyone else may not", func(t *testing.T) {
		svc, mock, _, _ := newTestTransferService(t, nil)
		mock.ExpectQuery(`FROM transfers e`).WithArgs(77).WillReturnRows(row())

		_, err := svc.GetTransfer(context.Background(), OwnerCaller(2), 77)

		assert.ErrorIs(t, err, ErrForbidden)
	})
}
