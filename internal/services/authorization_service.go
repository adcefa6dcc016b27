package services

import (
	"context"
	"errors"

	"github.com/securebank/ledger/internal/models"
)

// AuthorizationGuard decides whether a caller may act on an account.
type AuthorizationGuard struct {
	store *LedgerStore
}

func NewAuthorizationGuard(store *LedgerStore) *AuthorizationGuard {
	return &AuthorizationGuard{store: store}
}

// CanAccess is false, not an error, when the account is missing or belongs to
// someone else. Admins are admitted without touching the store.
func (g *AuthorizationGuard) CanAccess(ctx context.Context, caller Caller, accountID int64) (bool, error) {
	if caller.IsAdmin() {
		return true, nil
	}

	acct, err := g.store.GetAccount(ctx, g.store.DB(), accountID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return caller.Owns(acct.UserID), nil
}

// CanAccessAccount is CanAccess for an account the caller already loaded.
func (g *AuthorizationGuard) CanAccessAccount(caller Caller, acct *models.Account) bool {
	return acct != nil && caller.Owns(acct.UserID)
}

// Authorize turns a denied CanAccess into Forbidden.
func (g *AuthorizationGuard) Authorize(ctx context.Context, caller Caller, accountID int64) error {
	ok, err := g.CanAccess(ctx, caller, accountID)
	if err != nil {
		return err
	}
	if !ok {
		return newError(KindForbidden, "You do not have access to account %d", accountID)
	}
	return nil
}

// AuthorizeOwner checks a row whose owning user id is already known.
func (g *AuthorizationGuard) AuthorizeOwner(caller Caller, ownerID int64) error {
	if !caller.Owns(ownerID) {
		return newError(KindForbidden, "You do not have access to this resource")
	}
	return nil
}
