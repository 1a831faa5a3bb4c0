package checkout

import (
	"context"

	"github.com/google/uuid"
)

// TerminalEvent is published once per checkout that reaches a terminal
// state.
type TerminalEvent struct {
	CheckoutID uuid.UUID `json:"checkout_id"`
	EventRef   string    `json:"event_ref"`
	PaymentID  string    `json:"payment_id,omitempty"`
	State      State     `json:"state"`
	Total      float64   `json:"total"`
}

// EventSink receives checkout lifecycle events. A nil sink disables
// publishing.
type EventSink interface {
	CheckoutFinished(ctx context.Context, evt TerminalEvent) error
}
