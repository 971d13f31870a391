package escrow

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeIllegalTransition      = "ILLEGAL_STATUS_TRANSITION"
	TextCodeEscrowNotFound         = "ESCROW_NOT_FOUND"
	TextCodeUnauthorized           = "UNAUTHORIZED"
	TextCodeForbidden              = "FORBIDDEN"
	TextCodeConcurrentModification = "CONCURRENT_MODIFICATION"
	TextCodeInvalidStatus          = "INVALID_STATUS"
	TextCodeInvalidAction          = "INVALID_ACTION"
	TextCodeInvalidJoinCode        = "INVALID_JOIN_CODE"
	TextCodeJoinRateLimited        = "JOIN_RATE_LIMITED"
	TextCodeTokenExpired           = "TOKEN_EXPIRED"
	TextCodeTokenMalformed         = "TOKEN_MALFORMED"
)

// ErrIllegalTransition is returned when the graph does not allow the move.
// It is not retryable with the same inputs.
var ErrIllegalTransition = goerrors.New("cannot transition in current status", goerrors.CategoryValidation).
	WithTextCode(TextCodeIllegalTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrEscrowNotFound is returned when the referenced escrow does not exist.
var ErrEscrowNotFound = goerrors.New("escrow not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeEscrowNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUnauthorized is returned when no acting principal is present.
var ErrUnauthorized = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned when the actor lacks the role or relationship
// required by the action.
var ErrForbidden = goerrors.New("not allowed to perform this action", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrConcurrentModification is returned when the escrow changed between the
// read and the conditional write. Callers may re-fetch and retry.
var ErrConcurrentModification = goerrors.New("escrow is no longer in the expected status", goerrors.CategoryConflict).
	WithTextCode(TextCodeConcurrentModification).
	WithCode(goerrors.CodeConflict)

// ErrInvalidStatus is returned for values outside the status vocabulary.
var ErrInvalidStatus = goerrors.New("invalid escrow status", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidStatus).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidAction is returned for unknown or misused actions.
var ErrInvalidAction = goerrors.New("invalid escrow action", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidAction).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidJoinCode is returned when no escrow matches a join code.
var ErrInvalidJoinCode = goerrors.New("invalid join code", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidJoinCode).
	WithCode(goerrors.CodeBadRequest)

// ErrJoinRateLimited is returned when an actor tries too many join codes.
var ErrJoinRateLimited = goerrors.New("too many join attempts", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeJoinRateLimited).
	WithCode(http.StatusTooManyRequests)

// ErrTokenExpired is returned for bearer tokens past their expiration.
var ErrTokenExpired = goerrors.New("token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for bearer tokens that fail to parse or verify.
var ErrTokenMalformed = goerrors.New("token malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// withMeta returns a copy of sentinel carrying metadata. Sentinels are
// shared, so they are never mutated in place.
func withMeta(sentinel *goerrors.Error, meta map[string]any) *goerrors.Error {
	return sentinel.Clone().WithMetadata(meta)
}

// IsError reports whether err is, or wraps, a copy of target. Matching is
// by category and text code.
func IsError(err error, target *goerrors.Error) bool {
	if err == nil || target == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == target.TextCode && richErr.Category == target.Category
}

// IsRetryable reports whether err is a lost optimistic write that can be
// retried after re-reading the escrow.
func IsRetryable(err error) bool {
	return IsError(err, ErrConcurrentModification)
}
