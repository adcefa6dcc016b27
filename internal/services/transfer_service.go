package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/securebank/ledger/internal/config"
	"github.com/securebank/ledger/internal/models"
	"github.com/shopspring/decimal"
)

const idempotencyPending = "pending"

// TransferService moves money between two accounts. Both rows are locked in
// ascending id order so concurrent opposite transfers cannot deadlock.
type TransferService struct {
	store          *LedgerStore
	guard          *AuthorizationGuard
	audit          *AuditLogger
	events         EventPublisher
	redis          *redis.Client
	idempotencyTTL time.Duration
	pendingTTL     time.Duration
	now            func() time.Time
}

func NewTransferService(store *LedgerStore, guard *AuthorizationGuard, audit *AuditLogger, events EventPublisher, redisClient *redis.Client, cfg *config.LedgerConfig) *TransferService {
	return &TransferService{
		store:          store,
		guard:          guard,
		audit:          audit,
		events:         events,
		redis:          redisClient,
		idempotencyTTL: cfg.IdempotencyTTL,
		pendingTTL:     pendingTTL(cfg),
		now:            time.Now,
	}
}

// pendingTTL bounds how long an in-flight claim blocks retries: every attempt
// Transfer may make, each capped by the transaction timeout.
func pendingTTL(cfg *config.LedgerConfig) time.Duration {
	ttl := cfg.TxTimeout * time.Duration(cfg.MaxRetries+1)
	if ttl <= 0 || ttl > cfg.IdempotencyTTL {
		return cfg.IdempotencyTTL
	}
	return ttl
}

// TransferRequest represents a transfer between two accounts
// @Description Transfer request structure
type TransferRequest struct {
	FromAccountID     int64           `json:"from_account_id" validate:"required,gt=0" example:"10"`
	FromAccountNumber string          `json:"from_account_number" validate:"required,max=34" example:"S10"`
	ToAccountNumber   string          `json:"to_account_number" validate:"required,max=34" example:"R20"`
	Amount            decimal.Decimal `json:"amount" validate:"required,gt=0" example:"150"`
	Name              string          `json:"name" validate:"required,max=128" example:"Rent"`
	Reference         string          `json:"reference" validate:"max=140" example:"March"`
}

func validateTransferShape(req TransferRequest) error {
	if !req.Amount.IsPositive() {
		return newError(KindInvalidRequest, "Transfer amount must be greater than zero")
	}
	if err := requireScale(req.Amount, moneyScale, "Transfer amount"); err != nil {
		return err
	}
	if req.FromAccountNumber == "" || req.ToAccountNumber == "" {
		return newError(KindInvalidRequest, "Both account numbers are required")
	}
	if req.FromAccountNumber == req.ToAccountNumber {
		return newError(KindInvalidRequest, "Cannot transfer to the same account")
	}
	return nil
}

// Transfer validates, authorizes and applies a transfer. A lost version race
// restarts from validation; any failure while applying surfaces as TransferFailed.
func (s *TransferService) Transfer(ctx context.Context, caller Caller, req TransferRequest) (*models.TransferRecord, error) {
	if err := validateTransferShape(req); err != nil {
		return nil, err
	}

	var record *models.TransferRecord
	err := s.store.Retry(ctx, func() error {
		var err error
		record, err = s.transfer(ctx, caller, req)
		return err
	})
	if errors.Is(err, ErrConcurrentModification) {
		err = wrapError(KindTransferFailed, err, "Transfer failed")
	}
	if err != nil {
		log.Printf("[TRANSFER] %s -> %s for %s failed: %v", req.FromAccountNumber, req.ToAccountNumber, req.Amount, err)
		if kind := KindOf(err); kind == KindTransferFailed || kind == KindInsufficientFunds {
			s.audit.LogError("TRANSFER", req.FromAccountID, req.Amount, err)
		}
		return nil, err
	}

	log.Printf("[TRANSFER] Transfer %d: %s -> %s, amount %s", record.ID, record.FromAccountNumber, record.ToAccountNumber, record.Amount)
	s.audit.LogTransfer(record.ID, record.FromAccountNumber, record.ToAccountNumber, record.AccountID, record.Amount, "SUCCESS")
	return record, nil
}

func (s *TransferService) transfer(ctx context.Context, caller Caller, req TransferRequest) (*models.TransferRecord, error) {
	sender, err := s.store.GetAccount(ctx, s.store.DB(), req.FromAccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, wrapError(KindSenderNotFound, err, "Sender account not found")
		}
		return nil, err
	}
	if sender.AccountNumber != req.FromAccountNumber {
		return nil, newError(KindAccountMismatch, "Account number does not match the sender account")
	}
	if !s.guard.CanAccessAccount(caller, sender) {
		return nil, newError(KindForbidden, "You do not have access to account %d", sender.ID)
	}
	if sender.Balance.LessThan(req.Amount) {
		return nil, insufficientFunds(sender.Balance)
	}

	recipient, err := s.store.GetAccountByNumber(ctx, s.store.DB(), req.ToAccountNumber)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, wrapError(KindRecipientNotFound, err, "Recipient account not found")
		}
		return nil, err
	}

	var (
		transfer models.Transfer
		from, to *models.Account
	)
	err = s.store.InTx(ctx, func(tx Querier) error {
		var err error
		from, to, err = s.lockPair(ctx, tx, sender.ID, recipient.ID)
		if err != nil {
			return err
		}
		if from.Balance.LessThan(req.Amount) {
			return insufficientFunds(from.Balance)
		}

		if err := s.store.UpdateAccountBalance(ctx, tx, from, from.Balance.Sub(req.Amount)); err != nil {
			return err
		}
		if err := s.store.UpdateAccountBalance(ctx, tx, to, to.Balance.Add(req.Amount)); err != nil {
			return err
		}

		transfer = models.Transfer{
			AccountID:         from.ID,
			Name:              req.Name,
			FromAccountNumber: from.AccountNumber,
			ToAccountNumber:   to.AccountNumber,
			Amount:            req.Amount,
			TransferDate:      s.now(),
			Reference:         req.Reference,
		}
		return s.store.InsertTransfer(ctx, tx, &transfer)
	})
	if err != nil {
		if errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrInsufficientFunds) {
			return nil, err
		}
		return nil, wrapError(KindTransferFailed, err, "Transfer failed")
	}

	event := newLedgerEvent(models.EventTransferCompleted, from, req.Amount, transfer.ID)
	event.FromAccount = from.AccountNumber
	event.ToAccount = to.AccountNumber
	publish(ctx, s.events, event)

	return &models.TransferRecord{Transfer: transfer, AccountNumber: from.AccountNumber}, nil
}

// lockPair locks both accounts lowest id first and returns them as (sender, recipient).
func (s *TransferService) lockPair(ctx context.Context, tx Querier, senderID, recipientID int64) (*models.Account, *models.Account, error) {
	first, second := senderID, recipientID
	if first > second {
		first, second = second, first
	}

	a, err := s.store.LockAccount(ctx, tx, first)
	if err != nil {
		return nil, nil, err
	}
	b, err := s.store.LockAccount(ctx, tx, second)
	if err != nil {
		return nil, nil, err
	}

	if first != senderID {
		a, b = b, a
	}
	return a, b, nil
}

func (s *TransferService) GetTransfer(ctx context.Context, caller Caller, id int64) (*models.TransferRecord, error) {
	t, ownerID, err := s.store.GetTransfer(ctx, s.store.DB(), id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.AuthorizeOwner(caller, ownerID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TransferService) ListTransfers(ctx context.Context, caller Caller) ([]models.TransferRecord, error) {
	return s.store.ListTransfers(ctx, s.store.DB(), caller)
}

// idempotencyEntry is what a completed keyed transfer leaves in redis.
type idempotencyEntry struct {
	Fingerprint string                `json:"fingerprint"`
	Transfer    models.TransferRecord `json:"transfer"`
}

var marshalEntry = json.Marshal

// Fingerprint identifies the request body stored with an idempotency key.
func (r TransferRequest) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%d %q %q %q %q %q", r.FromAccountID, r.FromAccountNumber, r.ToAccountNumber, r.Amount.String(), r.Name, r.Reference)
	return hex.EncodeToString(h.Sum(nil))
}

// TransferOnce runs Transfer at most once per caller and idempotency key.
// The boolean is true when the result is a replay of an earlier request.
// Without redis or a key it behaves exactly like Transfer.
func (s *TransferService) TransferOnce(ctx context.Context, caller Caller, key string, req TransferRequest) (*models.TransferRecord, bool, error) {
	if key == "" || s.redis == nil {
		rec, err := s.Transfer(ctx, caller, req)
		return rec, false, err
	}

	redisKey := fmt.Sprintf("idempotency:transfer:%d:%s", caller.UserID(), key)
	fingerprint := req.Fingerprint()
	claimed, err := s.redis.SetNX(ctx, redisKey, idempotencyPending, s.pendingTTL).Result()
	if err != nil {
		log.Printf("[TRANSFER] Idempotency store unavailable, executing without it: %v", err)
		rec, err := s.Transfer(ctx, caller, req)
		return rec, false, err
	}

	if !claimed {
		val, err := s.redis.Get(ctx, redisKey).Result()
		if err != nil || val == idempotencyPending {
			return nil, false, newError(KindConflict, "A transfer with this idempotency key is already in progress")
		}
		var entry idempotencyEntry
		if err := json.Unmarshal([]byte(val), &entry); err != nil {
			return nil, false, wrapError(KindInternal, err, "Stored transfer result is unreadable")
		}
		if entry.Fingerprint != fingerprint {
			return nil, false, newError(KindConflict, "Idempotency key was already used for a different transfer")
		}
		log.Printf("[TRANSFER] Replaying transfer %d for idempotency key %s", entry.Transfer.ID, key)
		return &entry.Transfer, true, nil
	}

	// The outcome is recorded even if the client has gone away.
	storeCtx := context.WithoutCancel(ctx)

	rec, err := s.Transfer(ctx, caller, req)
	if err != nil {
		s.releaseKey(storeCtx, redisKey, key)
		return nil, false, err
	}

	data, err := marshalEntry(idempotencyEntry{Fingerprint: fingerprint, Transfer: *rec})
	if err != nil {
		log.Printf("[TRANSFER] Failed to encode result for idempotency key %s: %v", key, err)
		s.releaseKey(storeCtx, redisKey, key)
		return rec, false, nil
	}
	if err := s.redis.Set(storeCtx, redisKey, string(data), s.idempotencyTTL).Err(); err != nil {
		log.Printf("[TRANSFER] Failed to store result for idempotency key %s: %v", key, err)
	}
	return rec, false, nil
}

func (s *TransferService) releaseKey(ctx context.Context, redisKey, key string) {
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil {
		log.Printf("[TRANSFER] Failed to release idempotency key %s: %v", key, err)
	}
}
