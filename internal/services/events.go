package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/securebank/ledger/internal/models"
	"github.com/shopspring/decimal"
)

// EventPublisher receives ledger events after their transaction committed.
type EventPublisher interface {
	Publish(ctx context.Context, event models.LedgerEvent) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, models.LedgerEvent) error { return nil }

func newLedgerEvent(kind string, acct *models.Account, amount decimal.Decimal, referenceID int64) models.LedgerEvent {
	return models.LedgerEvent{
		EventID:      uuid.NewString(),
		Kind:         kind,
		AccountID:    acct.ID,
		Amount:       amount,
		ReferenceID:  referenceID,
		BalanceAfter: acct.Balance,
		OccurredAt:   time.Now().UTC(),
	}
}

// newCardLedgerEvent reports the card balance; charges leave the account as it was.
func newCardLedgerEvent(kind string, card *models.CreditCard, amount decimal.Decimal) models.LedgerEvent {
	return models.LedgerEvent{
		EventID:      uuid.NewString(),
		Kind:         kind,
		AccountID:    card.AccountID,
		Amount:       amount,
		ReferenceID:  card.ID,
		BalanceAfter: card.CurrentBalance,
		OccurredAt:   time.Now().UTC(),
	}
}

// publish never fails the caller; the movement is already durable.
func publish(ctx context.Context, p EventPublisher, event models.LedgerEvent) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		log.Printf("[EVENTS] Failed to publish %s for account %d: %v", event.Kind, event.AccountID, err)
	}
}
