// Package apperr defines the error taxonomy shared by the service and
// transport layers. Every failure the service returns carries a Kind
// the transport maps to its own status vocabulary, plus a stable
// machine-readable reason token.
package apperr

import "errors"

// Kind classifies a failure.
type Kind int

const (
	// NotFound means the requested entity does not exist.
	NotFound Kind = iota + 1
	// Conflict means a uniqueness constraint was violated.
	Conflict
	// BadRequest means the request is malformed or violates policy.
	BadRequest
	// InsufficientFunds means a withdrawal or transfer exceeds the
	// available balance.
	InsufficientFunds
	// Unauthorized means the caller could not be authenticated.
	Unauthorized
	// Unavailable means the backing store could not complete the
	// operation; the caller may retry.
	Unavailable
)

// Reason tokens. These are part of the API surface and must stay stable.
const (
	ReasonUserNotFound      = "user_not_found"
	ReasonCardNotFound      = "card_not_found"
	ReasonNoCard            = "no_card"
	ReasonDuplicateNumber   = "duplicate_number"
	ReasonDuplicateOwner    = "duplicate_owner"
	ReasonDuplicateEmail    = "duplicate_email"
	ReasonInvalidAmount     = "invalid_amount"
	ReasonSelfTransfer      = "self_transfer"
	ReasonInsufficientFunds = "insufficient_funds"
	ReasonUnknownNetwork    = "unknown_network"
	ReasonBadCredentials    = "bad_credentials"
	ReasonStoreUnavailable  = "store_unavailable"
)

// Error is a typed failure. Message is safe to show to callers; Err
// holds the underlying cause and never crosses the transport boundary.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a typed error without an underlying cause.
func New(kind Kind, reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

// Wrap creates a typed error around an underlying cause.
func Wrap(kind Kind, reason, message string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message, Err: err}
}

// KindOf extracts the Kind from an error chain, or 0 if none is present.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return 0
}

// ReasonOf extracts the reason token from an error chain.
func ReasonOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Reason
	}
	return ""
}
