package domain

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrMalformedToken   = errors.New("malformed invitation token")
	ErrLinkNotFound     = errors.New("invitation link not found")
	ErrLinkExpired      = errors.New("invitation link expired")
	ErrInvalidSelection = errors.New("invalid ticket selection")
	ErrCheckoutNotFound = errors.New("checkout not found")
	ErrCancelNotAllowed = errors.New("checkout can no longer be cancelled")
	ErrTransport        = errors.New("transport failure")
)

// PaymentInitiationError carries the provider message verbatim when one
// was supplied, with a generic fallback otherwise.
type PaymentInitiationError struct {
	Message string
}

func (e *PaymentInitiationError) Error() string {
	if e.Message == "" {
		return "payment could not be initiated"
	}
	return e.Message
}

// ConfirmationError means the payment was captured but ticket issuance
// failed. It must be escalated, never retried with a second charge.
type ConfirmationError struct {
	PaymentID string
	Err       error
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("payment %s captured but ticket issuance failed: %v", e.PaymentID, e.Err)
}

func (e *ConfirmationError) Unwrap() error { return e.Err }
