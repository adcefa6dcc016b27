package services

import (
	"errors"
	"fmt"
)

// Kind classifies an Error so handlers can choose a status code and tests
// can match with errors.Is against the sentinels below.
type Kind string

const (
	KindNotFound             Kind = "NotFound"
	KindForbidden            Kind = "Forbidden"
	KindUnauthenticated      Kind = "Unauthenticated"
	KindInvalidRequest       Kind = "InvalidRequest"
	KindInsufficientFunds    Kind = "InsufficientFunds"
	KindCreditLimitExceeded  Kind = "CreditLimitExceeded"
	KindAccountMismatch      Kind = "AccountMismatch"
	KindSenderNotFound       Kind = "SenderNotFound"
	KindRecipientNotFound    Kind = "RecipientNotFound"
	KindTransferFailed       Kind = "TransferFailed"
	KindLinkedAccountMissing Kind = "LinkedAccountMissing"
	KindConflict             Kind = "Conflict"
	KindInternal             Kind = "Internal"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

var (
	ErrNotFound             = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden            = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrUnauthenticated      = &Error{Kind: KindUnauthenticated, Message: "unauthenticated"}
	ErrInvalidRequest       = &Error{Kind: KindInvalidRequest, Message: "invalid request"}
	ErrInsufficientFunds    = &Error{Kind: KindInsufficientFunds, Message: "insufficient funds"}
	ErrCreditLimitExceeded  = &Error{Kind: KindCreditLimitExceeded, Message: "credit limit exceeded"}
	ErrAccountMismatch      = &Error{Kind: KindAccountMismatch, Message: "account number mismatch"}
	ErrSenderNotFound       = &Error{Kind: KindSenderNotFound, Message: "sender account not found"}
	ErrRecipientNotFound    = &Error{Kind: KindRecipientNotFound, Message: "recipient account not found"}
	ErrTransferFailed       = &Error{Kind: KindTransferFailed, Message: "transfer failed"}
	ErrLinkedAccountMissing = &Error{Kind: KindLinkedAccountMissing, Message: "linked account not found"}
	ErrConflict             = &Error{Kind: KindConflict, Message: "conflict"}
	ErrInternal             = &Error{Kind: KindInternal, Message: "internal error"}
)

// ErrConcurrentModification means an optimistic version check lost a race.
// RunInTx retries the whole unit when it sees it.
var ErrConcurrentModification = errors.New("concurrent modification")

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
