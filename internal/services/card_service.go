package services

import (
	"context"
	"log"
	"time"

	"github.com/securebank/ledger/internal/models"
	"github.com/shopspring/decimal"
)

// CardService manages credit cards. Lock order is account before card.
type CardService struct {
	store  *LedgerStore
	guard  *AuthorizationGuard
	audit  *AuditLogger
	events EventPublisher
	now    func() time.Time
}

func NewCardService(store *LedgerStore, guard *AuthorizationGuard, audit *AuditLogger, events EventPublisher) *CardService {
	return &CardService{store: store, guard: guard, audit: audit, events: events, now: time.Now}
}

type IssueCardRequest struct {
	AccountID   int64           `json:"account_id" validate:"required,gt=0" example:"1"`
	CardNumber  string          `json:"card_number" validate:"required,numeric,min=12,max=19" example:"4111111111111111"`
	CreditLimit decimal.Decimal `json:"credit_limit" validate:"required,gt=0" example:"500"`
	ExpiryDate  time.Time       `json:"expiry_date" validate:"required"`
	CardType    string          `json:"card_type" validate:"required,max=32" example:"Visa"`
}

// CardAmountRequest is the body of charge and payment calls
type CardAmountRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0" example:"30"`
}

// IssueCard links a new card with no outstanding balance to an account.
func (s *CardService) IssueCard(ctx context.Context, caller Caller, req IssueCardRequest) (*models.CreditCard, error) {
	if err := requirePositive(req.CreditLimit, "Credit limit"); err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, caller, req.AccountID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetAccount(ctx, s.store.DB(), req.AccountID); err != nil {
		return nil, err
	}

	card := &models.CreditCard{
		CardNumber:     req.CardNumber,
		CreditLimit:    req.CreditLimit,
		CurrentBalance: decimal.Zero,
		AccountID:      req.AccountID,
		ExpiryDate:     req.ExpiryDate,
		CardType:       req.CardType,
	}
	if err := s.store.InsertCreditCard(ctx, s.store.DB(), card); err != nil {
		log.Printf("[CARD] Issue failed for account %d: %v", req.AccountID, err)
		return nil, err
	}

	log.Printf("[CARD] Card %d issued for account %d with limit %s", card.ID, card.AccountID, card.CreditLimit)
	return card, nil
}

func (s *CardService) GetCard(ctx context.Context, caller Caller, id int64) (*models.CreditCard, error) {
	card, err := s.store.GetCreditCard(ctx, s.store.DB(), id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, caller, card.AccountID); err != nil {
		return nil, err
	}
	return card, nil
}

func (s *CardService) ListCards(ctx context.Context, caller Caller) ([]models.CreditCard, error) {
	return s.store.ListCreditCards(ctx, s.store.DB(), caller)
}

// ChargeCard raises the card balance. The linked account is untouched.
func (s *CardService) ChargeCard(ctx context.Context, caller Caller, cardID int64, amount decimal.Decimal) (*models.CreditCard, error) {
	if err := requirePositive(amount, "Amount"); err != nil {
		return nil, err
	}
	existing, err := s.GetCard(ctx, caller, cardID)
	if err != nil {
		return nil, err
	}

	var card *models.CreditCard
	err = s.store.RunInTx(ctx, func(tx Querier) error {
		c, err := s.store.LockCreditCard(ctx, tx, cardID)
		if err != nil {
			return err
		}
		if !c.CanCharge(amount) {
			return newError(KindCreditLimitExceeded, "Credit limit exceeded. Available credit: %s", c.AvailableCredit().StringFixed(2))
		}
		if err := s.store.UpdateCardBalance(ctx, tx, c, c.CurrentBalance.Add(amount)); err != nil {
			return err
		}
		if err := s.recordEvent(ctx, tx, c, models.CardEventCharge, amount); err != nil {
			return err
		}
		card = c
		return nil
	})
	if err != nil {
		log.Printf("[CARD] Charge of %s on card %d failed: %v", amount, cardID, err)
		s.audit.LogError("CARD_CHARGE", existing.AccountID, amount, err)
		return nil, err
	}

	log.Printf("[CARD] Card %d charged %s, balance now %s", card.ID, amount, card.CurrentBalance)
	s.audit.LogMovement("CARD_CHARGE", card.AccountID, amount, map[string]any{"card_id": card.ID})
	publish(ctx, s.events, newCardLedgerEvent(models.EventCardCharged, card, amount))
	return card, nil
}

// PayCardFromAccount lowers the card balance and credits the linked account
// in one transaction.
func (s *CardService) PayCardFromAccount(ctx context.Context, caller Caller, cardID int64, amount decimal.Decimal) (*models.CreditCard, error) {
	if err := requirePositive(amount, "Amount"); err != nil {
		return nil, err
	}
	existing, err := s.GetCard(ctx, caller, cardID)
	if err != nil {
		return nil, err
	}

	var (
		card *models.CreditCard
		acct *models.Account
	)
	err = s.store.RunInTx(ctx, func(tx Querier) error {
		a, err := s.store.LockAccount(ctx, tx, existing.AccountID)
		if err != nil {
			if KindOf(err) == KindNotFound {
				return wrapError(KindLinkedAccountMissing, err, "Linked account not found")
			}
			return err
		}
		c, err := s.store.LockCreditCard(ctx, tx, cardID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(c.CurrentBalance) {
			return newError(KindInvalidRequest, "Payment exceeds outstanding balance of %s", c.CurrentBalance.StringFixed(2))
		}

		if err := s.store.UpdateCardBalance(ctx, tx, c, c.CurrentBalance.Sub(amount)); err != nil {
			return err
		}
		if err := s.store.UpdateAccountBalance(ctx, tx, a, a.Balance.Add(amount)); err != nil {
			return err
		}
		if err := s.recordEvent(ctx, tx, c, models.CardEventPayment, amount); err != nil {
			return err
		}
		card, acct = c, a
		return nil
	})
	if err != nil {
		log.Printf("[CARD] Payment of %s on card %d failed: %v", amount, cardID, err)
		s.audit.LogError("CARD_PAYMENT", existing.AccountID, amount, err)
		return nil, err
	}

	log.Printf("[CARD] Card %d paid %s, balance now %s", card.ID, amount, card.CurrentBalance)
	s.audit.LogMovement("CARD_PAYMENT", acct.ID, amount, map[string]any{"card_id": card.ID})
	publish(ctx, s.events, newLedgerEvent(models.EventCardPaid, acct, amount, card.ID))
	return card, nil
}

func (s *CardService) recordEvent(ctx context.Context, tx Querier, c *models.CreditCard, eventType string, amount decimal.Decimal) error {
	return s.store.InsertCardEvent(ctx, tx, &models.CardEvent{
		CardID:       c.ID,
		AccountID:    c.AccountID,
		EventType:    eventType,
		Amount:       amount,
		BalanceAfter: c.CurrentBalance,
		CreatedAt:    s.now(),
	})
}
