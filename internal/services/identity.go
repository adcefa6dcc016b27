package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/securebank/ledger/internal/models"
)

// Identity is the verified claim set of a bearer token.
type Identity struct {
	Subject string // nameid claim
	Role    string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// CurrentUserID parses the subject claim. A missing or non-numeric subject is Unauthenticated.
func CurrentUserID(id Identity) (int64, error) {
	if id.Subject == "" {
		return 0, newError(KindUnauthenticated, "User ID not found in token")
	}
	userID, err := strconv.ParseInt(id.Subject, 10, 64)
	if err != nil {
		return 0, newError(KindUnauthenticated, "User ID in token is not numeric")
	}
	return userID, nil
}

func CurrentRole(id Identity) string {
	if id.Role == "" {
		return models.RoleUser
	}
	return id.Role
}

func IsAdmin(id Identity) bool {
	return strings.EqualFold(CurrentRole(id), models.RoleAdmin)
}

// Caller is either an administrator or the owner of a user id. Operations ask
// Owns instead of comparing role strings.
type Caller struct {
	admin  bool
	userID int64
}

func AdminCaller(userID int64) Caller {
	return Caller{admin: true, userID: userID}
}

func OwnerCaller(userID int64) Caller {
	return Caller{userID: userID}
}

func (c Caller) IsAdmin() bool { return c.admin }

func (c Caller) UserID() int64 { return c.userID }

// Owns reports whether the caller may act on resources of ownerID.
func (c Caller) Owns(ownerID int64) bool {
	return c.admin || c.userID == ownerID
}

// CallerFromIdentity requires a numeric subject for every role. The user id
// scopes per-caller state such as idempotency keys, admins included.
func CallerFromIdentity(id Identity) (Caller, error) {
	userID, err := CurrentUserID(id)
	if err != nil {
		return Caller{}, err
	}
	if IsAdmin(id) {
		return AdminCaller(userID), nil
	}
	return OwnerCaller(userID), nil
}

func CallerFromContext(ctx context.Context) (Caller, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return Caller{}, newError(KindUnauthenticated, "Authentication required")
	}
	return CallerFromIdentity(id)
}
