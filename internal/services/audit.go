package services

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AuditEvent struct {
	EventID   string          `json:"event_id"`
	Timestamp time.Time       `json:"timestamp"`
	EventType string          `json:"event_type"`
	AccountID int64           `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Details   any             `json:"details"`
}

// AuditLogger writes one JSON line per money movement.
type AuditLogger struct {
	sink func(line string)
}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{sink: func(line string) { log.Printf("AUDIT: %s", line) }}
}

func (a *AuditLogger) LogTransfer(transferID int64, fromAccount, toAccount string, senderID int64, amount decimal.Decimal, status string) {
	a.log(AuditEvent{
		EventType: "TRANSFER",
		AccountID: senderID,
		Amount:    amount,
		Status:    status,
		Details: map[string]any{
			"transfer_id":  transferID,
			"from_account": fromAccount,
			"to_account":   toAccount,
		},
	})
}

func (a *AuditLogger) LogMovement(eventType string, accountID int64, amount decimal.Decimal, details map[string]any) {
	a.log(AuditEvent{
		EventType: eventType,
		AccountID: accountID,
		Amount:    amount,
		Status:    "SUCCESS",
		Details:   details,
	})
}

func (a *AuditLogger) LogError(eventType string, accountID int64, amount decimal.Decimal, err error) {
	a.log(AuditEvent{
		EventType: eventType,
		AccountID: accountID,
		Amount:    amount,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error(), "kind": string(KindOf(err))},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	event.EventID = uuid.NewString()
	event.Timestamp = time.Now().UTC()
	data, _ := json.Marshal(event)
	a.sink(string(data))
}
