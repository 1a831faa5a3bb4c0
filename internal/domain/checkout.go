package domain

import (
	"time"

	"github.com/cockroachdb/errors"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSuccess   PaymentStatus = "success"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentTimedOut  PaymentStatus = "timedout"
)

// TicketLine is one entry of a ticket selection.
type TicketLine struct {
	TicketTypeID int     `json:"ticket_type_id"`
	Quantity     int     `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
}

// TicketSelection is an ordered list of ticket lines. Order is preserved
// as submitted; duplicates are rejected at validation time.
type TicketSelection []TicketLine

// Validate enforces the selection invariants: at least one line, positive
// quantities, no duplicate ticket type.
func (s TicketSelection) Validate() error {
	if len(s) == 0 {
		return errors.WithDetail(ErrInvalidSelection, "selection is empty")
	}
	seen := make(map[int]struct{}, len(s))
	for _, line := range s {
		if line.TicketTypeID <= 0 {
			return errors.WithDetail(ErrInvalidSelection, "ticket type id must be positive")
		}
		if line.Quantity <= 0 {
			return errors.WithDetail(ErrInvalidSelection, "quantity must be positive")
		}
		if _, dup := seen[line.TicketTypeID]; dup {
			return errors.WithDetail(ErrInvalidSelection, "duplicate ticket type in selection")
		}
		seen[line.TicketTypeID] = struct{}{}
	}
	return nil
}

// Total is the amount sent to payment initiation.
func (s TicketSelection) Total() float64 {
	var total float64
	for _, line := range s {
		total += float64(line.Quantity) * line.UnitPrice
	}
	return total
}

// PaymentAttempt is owned by one checkout session for the lifetime of a
// single payment and discarded once a terminal state is reported.
type PaymentAttempt struct {
	PaymentID    string
	Status       PaymentStatus
	AttemptCount int
	StartedAt    time.Time
}

func NewPaymentAttempt(paymentID string) *PaymentAttempt {
	return &PaymentAttempt{
		PaymentID: paymentID,
		Status:    PaymentPending,
		StartedAt: time.Now(),
	}
}

// AttendeeDetails is the contact block forwarded to payment initiation.
type AttendeeDetails struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// IssuedTicket is one ticket record returned by payment confirmation.
type IssuedTicket struct {
	TicketID     string `json:"ticket_id"`
	TicketTypeID int    `json:"ticket_type_id"`
	Code         string `json:"code"`
}
