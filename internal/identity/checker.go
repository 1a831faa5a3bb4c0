// Package identity classifies inbound registrants as new, already
// registered, or in conflict with an existing guest record.
package identity

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/usherhq/invitation-core/internal/domain"
	"github.com/usherhq/invitation-core/internal/observability"
)

// GuestDirectory is the external "does this contact already have a guest
// record for this event" query.
type GuestDirectory interface {
	CheckExistingGuest(ctx context.Context, eventRef, email, phone string) (domain.IdentityCheckResult, error)
}

type Status string

const (
	StatusIdle     Status = "idle"
	StatusChecking Status = "checking"
	StatusClear    Status = "clear"
	StatusBlocked  Status = "blocked"
	StatusError    Status = "error"
)

// Snapshot is the latest applied check outcome. Seq identifies the request
// that produced it.
type Snapshot struct {
	Seq    uint64
	Status Status
	Result domain.IdentityCheckResult
	Err    error
}

// Checker debounces identity checks and guards against out-of-order
// responses: every scheduled check carries a sequence number, and a
// response is applied only if no newer check has been issued since.
type Checker struct {
	dir    GuestDirectory
	settle time.Duration
	logger observability.Logger

	mu    sync.Mutex
	seq   uint64
	timer *time.Timer
	state Snapshot
}

func NewChecker(dir GuestDirectory, settle time.Duration, logger observability.Logger) *Checker {
	return &Checker{
		dir:    dir,
		settle: settle,
		logger: logger,
		state:  Snapshot{Status: StatusIdle},
	}
}

// CheckNow issues the directory query synchronously. With both identifiers
// empty it is a no-op returning the idle result, not an error.
func (c *Checker) CheckNow(ctx context.Context, eventRef, email, phone string) (domain.IdentityCheckResult, error) {
	if email == "" && phone == "" {
		return domain.IdentityCheckResult{}, nil
	}

	res, err := c.dir.CheckExistingGuest(ctx, eventRef, email, phone)
	if err != nil {
		observability.IdentityChecks.WithLabelValues("error").Inc()
		return domain.IdentityCheckResult{}, errors.Wrap(err, "check existing guest")
	}

	switch {
	case res.AlreadyRegistered:
		observability.IdentityChecks.WithLabelValues("already_registered").Inc()
	case res.HasConflict:
		observability.IdentityChecks.WithLabelValues("conflict").Inc()
	default:
		observability.IdentityChecks.WithLabelValues("clear").Inc()
	}
	return res, nil
}

// Schedule arms the settle timer for a check. A newer Schedule call cancels
// any pending timer; only the timer that fires uninterrupted issues the
// directory query.
func (c *Checker) Schedule(ctx context.Context, eventRef, email, phone string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	seq := c.seq
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	if email == "" && phone == "" {
		c.state = Snapshot{Seq: seq, Status: StatusIdle}
		return seq
	}

	c.state = Snapshot{Seq: seq, Status: StatusChecking}
	c.timer = time.AfterFunc(c.settle, func() {
		c.run(ctx, seq, eventRef, email, phone)
	})
	return seq
}

func (c *Checker) run(ctx context.Context, seq uint64, eventRef, email, phone string) {
	res, err := c.CheckNow(ctx, eventRef, email, phone)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		// A newer check was issued while this one was in flight.
		c.logger.WithField("seq", seq).Debug("discarding stale identity check result")
		return
	}

	switch {
	case err != nil:
		c.state = Snapshot{Seq: seq, Status: StatusError, Err: err}
	case res.Blocking():
		c.state = Snapshot{Seq: seq, Status: StatusBlocked, Result: res}
	default:
		c.state = Snapshot{Seq: seq, Status: StatusClear, Result: res}
	}
}

// State returns the latest applied snapshot.
func (c *Checker) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// BlockMessage is the user-facing message for a blocking result.
func BlockMessage(res domain.IdentityCheckResult) string {
	switch {
	case res.AlreadyRegistered:
		return "This contact is already registered for this event."
	case res.HasConflict && res.ConflictMessage != "":
		return res.ConflictMessage
	case res.HasConflict:
		return "This contact matches a different guest record."
	}
	return ""
}
