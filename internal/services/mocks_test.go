package services

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/securebank/ledger/internal/config"
	"github.com/securebank/ledger/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

const (
	qReadAccount     = `SELECT (.+) FROM accounts WHERE id = \$1$`
	qLockAccount     = `SELECT (.+) FROM accounts WHERE id = \$1 FOR UPDATE`
	qAccountByNumber = `SELECT (.+) FROM accounts WHERE account_number = \$1`
	qUpdateBalance   = `UPDATE accounts SET balance = \$1, version = version \+ 1, updated_at = \$2 WHERE id = \$3 AND version = \$4`
	qReadCard        = `SELECT (.+) FROM credit_cards e WHERE e.id = \$1$`
	qLockCard        = `SELECT (.+) FROM credit_cards e WHERE e.id = \$1 FOR UPDATE`
	qUpdateCard      = `UPDATE credit_cards SET current_balance = \$1, version = version \+ 1 WHERE id = \$2 AND version = \$3`
)

var accountCols = []string{"id", "account_number", "balance", "account_type", "user_id", "version", "created_at", "updated_at"}

var cardCols = []string{"id", "card_number", "credit_limit", "current_balance", "account_id", "expiry_date", "card_type", "version"}

func accountRow(id int64, number, balance string, userID int64, version int) *sqlmock.Rows {
	return sqlmock.NewRows(accountCols).AddRow(id, number, balance, "Checking", userID, version, fixedNow, fixedNow)
}

func noAccount() *sqlmock.Rows {
	return sqlmock.NewRows(accountCols)
}

func cardRow(id int64, limit, balance string, accountID int64, version int) *sqlmock.Rows {
	return sqlmock.NewRows(cardCols).AddRow(id, "4111111111111111", limit, balance, accountID, fixedNow.AddDate(3, 0, 0), "Visa", version)
}

func idRow(id int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id"}).AddRow(id)
}

// decimalArg matches a driver value that parses to the same decimal.
type decimalArg string

func (d decimalArg) Match(v driver.Value) bool {
	want := decimal.RequireFromString(string(d))
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return false
	}
	got, err := decimal.NewFromString(s)
	return err == nil && got.Equal(want)
}

func newTestStore(t *testing.T) (*LedgerStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewLedgerStore(db, &config.LedgerConfig{TxTimeout: 5 * time.Second, MaxRetries: 2, IdempotencyTTL: time.Hour})
	store.now = func() time.Time { return fixedNow }
	return store, mock
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event models.LedgerEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// capture returns a publisher that accepts any event and the slice it appends to.
func capturePublisher() (*MockPublisher, *[]models.LedgerEvent) {
	var events []models.LedgerEvent
	p := &MockPublisher{}
	p.On("Publish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		events = append(events, args.Get(1).(models.LedgerEvent))
	}).Return(nil)
	return p, &events
}

func silentAudit() *AuditLogger {
	return &AuditLogger{sink: func(string) {}}
}

// recordingAudit keeps every emitted line.
func recordingAudit() (*AuditLogger, *[]string) {
	var lines []string
	return &AuditLogger{sink: func(line string) { lines = append(lines, line) }}, &lines
}
