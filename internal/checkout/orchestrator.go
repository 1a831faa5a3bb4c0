// Package checkout drives a ticket purchase from selection through
// asynchronous payment confirmation to ticket issuance.
package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/usherhq/invitation-core/internal/domain"
	"github.com/usherhq/invitation-core/internal/observability"
)

// Gateway is the external payment collaborator.
type Gateway interface {
	InitiatePayment(ctx context.Context, req InitiateRequest) (string, error)
	PaymentStatus(ctx context.Context, paymentID string) (domain.PaymentStatus, error)
	ConfirmPayment(ctx context.Context, paymentID string) ([]domain.IssuedTicket, error)
}

type InitiateRequest struct {
	EventRef string                 `json:"event_ref"`
	Tickets  domain.TicketSelection `json:"tickets"`
	Total    float64                `json:"total"`
	Attendee domain.AttendeeDetails `json:"attendee"`
	Method   string                 `json:"method"`
}

type State string

const (
	StateSelectingTickets      State = "selecting_tickets"
	StateAwaitingPaymentMethod State = "awaiting_payment_method"
	StateInitiating            State = "initiating"
	StatePolling               State = "polling"
	StateSucceeded             State = "succeeded"
	StateFailed                State = "failed"
	StateTimedOut              State = "timed_out"
)

func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateTimedOut
}

const timedOutMessage = "We have not received payment confirmation yet. Check your email or contact support before paying again."

// Policy fixes the polling cadence: wait InitialDelay before the first
// status check, then poll every Interval up to MaxAttempts times.
type Policy struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxAttempts  int
}

func DefaultPolicy() Policy {
	return Policy{InitialDelay: 2 * time.Second, Interval: 2 * time.Second, MaxAttempts: 10}
}

// Checkout is one purchase session. It exclusively owns its PaymentAttempt
// from initiation until a terminal state is reached.
type Checkout struct {
	ID       uuid.UUID
	EventRef string

	gateway Gateway
	sink    EventSink
	policy  Policy
	logger  observability.Logger
	sleep   func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	state      State
	selection  domain.TicketSelection
	attempt    *domain.PaymentAttempt
	tickets    []domain.IssuedTicket
	message    string
	cancelled  bool
	captured   bool
	confirmErr error
	finishedAt time.Time
}

func New(eventRef string, gateway Gateway, sink EventSink, policy Policy, logger observability.Logger) *Checkout {
	return &Checkout{
		ID:       uuid.New(),
		EventRef: eventRef,
		gateway:  gateway,
		sink:     sink,
		policy:   policy,
		logger:   logger,
		sleep:    sleepCtx,
		state:    StateSelectingTickets,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// SelectTickets validates the selection and enables progression to payment.
func (c *Checkout) SelectTickets(selection domain.TicketSelection) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateSelectingTickets && c.state != StateAwaitingPaymentMethod {
		return errors.WithDetailf(domain.ErrInvalidSelection, "cannot change selection in state %s", c.state)
	}
	if err := selection.Validate(); err != nil {
		return err
	}
	c.selection = selection
	c.state = StateAwaitingPaymentMethod
	return nil
}

// InitiatePayment sends the selection, its computed total, the attendee
// contact details and the chosen method to the payment collaborator. On
// success the session enters Polling with a fresh PaymentAttempt.
func (c *Checkout) InitiatePayment(ctx context.Context, method string, attendee domain.AttendeeDetails) (string, error) {
	c.mu.Lock()
	if c.state != StateAwaitingPaymentMethod || len(c.selection) == 0 {
		c.mu.Unlock()
		return "", errors.WithDetail(domain.ErrInvalidSelection, "select tickets before initiating payment")
	}
	req := InitiateRequest{
		EventRef: c.EventRef,
		Tickets:  c.selection,
		Total:    c.selection.Total(),
		Attendee: attendee,
		Method:   method,
	}
	c.state = StateInitiating
	c.mu.Unlock()

	paymentID, err := c.gateway.InitiatePayment(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		var initErr *domain.PaymentInitiationError
		if !errors.As(err, &initErr) {
			// No provider message to surface; fall back to the generic one.
			initErr = &domain.PaymentInitiationError{}
		}
		c.finishLocked(ctx, StateFailed, initErr.Error())
		return "", initErr
	}

	c.attempt = domain.NewPaymentAttempt(paymentID)
	c.cancelled = false
	c.captured = false
	c.state = StatePolling
	return paymentID, nil
}

// Await drives the payment to a terminal state: an initial settle delay,
// then one status poll per interval, strictly sequential, up to the
// attempt limit.
func (c *Checkout) Await(ctx context.Context) error {
	if err := c.sleep(ctx, c.policy.InitialDelay); err != nil {
		return err
	}

	for {
		proceed, paymentID := c.beginPoll()
		if !proceed {
			return nil
		}

		observability.PaymentPolls.Inc()
		status, err := c.gateway.PaymentStatus(ctx, paymentID)
		if done := c.applyPoll(ctx, status, err); done {
			return nil
		}

		if err := c.sleep(ctx, c.policy.Interval); err != nil {
			return err
		}
	}
}

// beginPoll counts the next attempt, honoring cancellation before the
// status request is dispatched.
func (c *Checkout) beginPoll() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePolling || c.cancelled || c.attempt == nil {
		return false, ""
	}
	c.attempt.AttemptCount++
	return true, c.attempt.PaymentID
}

// applyPoll folds one poll response into the state machine. It reports
// whether the loop is finished. A response landing after Cancel is
// discarded.
func (c *Checkout) applyPoll(ctx context.Context, status domain.PaymentStatus, err error) bool {
	c.mu.Lock()

	if c.state != StatePolling || c.cancelled || c.attempt == nil {
		c.mu.Unlock()
		return true
	}

	if err != nil {
		// Transport failures are terminal; only the status check itself
		// is retried, never a failed HTTP call.
		c.finishLocked(ctx, StateFailed, "payment status check failed, please restart checkout")
		c.mu.Unlock()
		return true
	}

	switch status {
	case domain.PaymentSuccess:
		c.captured = true
		c.attempt.Status = domain.PaymentSuccess
		c.finishLocked(ctx, StateSucceeded, "")
		paymentID := c.attempt.PaymentID
		c.mu.Unlock()
		c.confirmAndIssue(ctx, paymentID)
		return true
	case domain.PaymentFailed, domain.PaymentCancelled:
		c.attempt.Status = status
		c.finishLocked(ctx, StateFailed, "payment was not completed")
		c.mu.Unlock()
		return true
	default:
		if c.attempt.AttemptCount >= c.policy.MaxAttempts {
			c.attempt.Status = domain.PaymentTimedOut
			c.finishLocked(ctx, StateTimedOut, timedOutMessage)
			c.mu.Unlock()
			return true
		}
		c.mu.Unlock()
		return false
	}
}

// confirmAndIssue requests ticket issuance exactly once per captured
// payment. On failure the payment stays Succeeded: money was taken, so
// issuance is escalated rather than re-charged.
func (c *Checkout) confirmAndIssue(ctx context.Context, paymentID string) {
	tickets, err := c.gateway.ConfirmPayment(ctx, paymentID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.confirmErr = &domain.ConfirmationError{PaymentID: paymentID, Err: err}
		c.message = "payment received, ticket issuance pending; support has been notified"
		c.logger.WithField("payment_id", paymentID).WithError(err).Error("ticket issuance failed after capture")
		return
	}
	c.tickets = tickets
}

// Cancel is cooperative: it is permitted before initiation and during
// Polling until a poll observes capture. The in-flight PaymentAttempt is
// discarded and the session returns to ticket selection.
func (c *Checkout) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateSelectingTickets, StateAwaitingPaymentMethod:
	case StatePolling:
		if c.captured {
			return domain.ErrCancelNotAllowed
		}
	default:
		return domain.ErrCancelNotAllowed
	}

	c.cancelled = true
	c.attempt = nil
	c.message = ""
	c.state = StateSelectingTickets
	return nil
}

// finishedSince reports when the session reached a terminal state.
func (c *Checkout) finishedSince() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Terminal() {
		return time.Time{}, false
	}
	return c.finishedAt, true
}

func (c *Checkout) finishLocked(ctx context.Context, state State, message string) {
	c.state = state
	c.message = message
	c.finishedAt = time.Now()
	observability.CheckoutsFinished.WithLabelValues(string(state)).Inc()
	if c.sink != nil {
		evt := TerminalEvent{
			CheckoutID: c.ID,
			EventRef:   c.EventRef,
			State:      state,
			Total:      c.selection.Total(),
		}
		if c.attempt != nil {
			evt.PaymentID = c.attempt.PaymentID
		}
		if err := c.sink.CheckoutFinished(ctx, evt); err != nil {
			c.logger.WithError(err).Warn("checkout lifecycle event publish failed")
		}
	}
}

// Snapshot is the externally visible view of a session.
type Snapshot struct {
	ID           uuid.UUID             `json:"checkout_id"`
	State        State                 `json:"state"`
	PaymentID    string                `json:"payment_id,omitempty"`
	AttemptCount int                   `json:"attempt_count"`
	Tickets      []domain.IssuedTicket `json:"tickets,omitempty"`
	Message      string                `json:"message,omitempty"`
	Total        float64               `json:"total"`
}

func (c *Checkout) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		ID:      c.ID,
		State:   c.state,
		Tickets: c.tickets,
		Message: c.message,
		Total:   c.selection.Total(),
	}
	if c.attempt != nil {
		snap.PaymentID = c.attempt.PaymentID
		snap.AttemptCount = c.attempt.AttemptCount
	}
	if c.confirmErr != nil && snap.Message == "" {
		snap.Message = c.confirmErr.Error()
	}
	return snap
}

// ConfirmationFailure exposes a pending issuance escalation, if any.
func (c *Checkout) ConfirmationFailure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmErr
}
