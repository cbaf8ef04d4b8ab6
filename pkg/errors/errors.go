package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error. Each kind carries the HTTP-style code the
// transport layer answers with.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindUnavailable
	KindInvalidInput
)

func (k Kind) Code() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindUnavailable:
		return http.StatusConflict
	case KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is the single domain error raised by the gate, the purchase protocol
// and the CRUD services. The message is safe to show to clients.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	rule    *Error
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches kind sentinels (ErrNotFound matches every not-found error) and
// rule sentinels (ErrInsufficientFunds matches only that rule).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t == e || (e.rule != nil && e.rule == t) {
		return true
	}
	return t.rule == nil && t.isKindSentinel() && t.Kind == e.Kind
}

func (e *Error) isKindSentinel() bool {
	for _, s := range kindSentinels {
		if s == e {
			return true
		}
	}
	return false
}

// WithMessage returns a copy of a rule error carrying a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	rule := e
	if e.rule != nil {
		rule = e.rule
	}
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...), rule: rule}
}

func newKind(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Code: kind.Code(), Message: msg}
}

var (
	ErrInternal        = newKind(KindInternal, "internal error")
	ErrUnauthenticated = newKind(KindUnauthenticated, "not authenticated")
	ErrForbidden       = newKind(KindForbidden, "forbidden")
	ErrNotFound        = newKind(KindNotFound, "not found")
	ErrConflict        = newKind(KindConflict, "conflict")
	ErrUnavailable     = newKind(KindUnavailable, "unavailable")
	ErrInvalidInput    = newKind(KindInvalidInput, "invalid input")

	kindSentinels = []*Error{
		ErrInternal, ErrUnauthenticated, ErrForbidden, ErrNotFound,
		ErrConflict, ErrUnavailable, ErrInvalidInput,
	}
)

// Business rules.
var (
	ErrInvalidCredentials         = newKind(KindUnauthenticated, "invalid username or password")
	ErrTreasureBoxClosed          = newKind(KindForbidden, "the treasure box is not open")
	ErrPrizeUnavailable           = newKind(KindUnavailable, "this prize is not available anymore")
	ErrInsufficientFunds          = newKind(KindConflict, "insufficient kudos balance")
	ErrUsernameExists             = newKind(KindConflict, "this username already exists")
	ErrEmailExists                = newKind(KindConflict, "this email already exists")
	ErrTransactionAlreadyApproved = newKind(KindConflict, "this transaction has already been approved")
)

// NotFound reports a missing entity by type and id.
func NotFound(entity string, id int32) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    KindNotFound.Code(),
		Message: fmt.Sprintf("no %s with id %d can be found", entity, id),
	}
}

// Forbidden reports a role mismatch or an ownership violation.
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Code: KindForbidden.Code(), Message: fmt.Sprintf(format, args...)}
}

// InvalidInput reports a malformed request.
func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Code: KindInvalidInput.Code(), Message: fmt.Sprintf(format, args...)}
}

// As extracts the domain error from err. Errors that are not domain errors
// are reported as internal.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal
}
