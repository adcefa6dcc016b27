package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventBillPaid           = "bill_paid"
	EventCardCharged        = "card_charged"
	EventCardPaid           = "card_paid"
	EventLoanOriginated     = "loan_originated"
	EventInvestmentPurchase = "investment_purchased"
	EventTransferCompleted  = "transfer_completed"
)

// LedgerEvent is emitted after a money movement has committed.
type LedgerEvent struct {
	EventID      string          `json:"event_id"`
	Kind         string          `json:"kind"`
	AccountID    int64           `json:"account_id"`
	Amount       decimal.Decimal `json:"amount"`
	FromAccount  string          `json:"from_account,omitempty"`
	ToAccount    string          `json:"to_account,omitempty"`
	ReferenceID  int64           `json:"reference_id"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	OccurredAt   time.Time       `json:"occurred_at"`
}
