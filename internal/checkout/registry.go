package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/usherhq/invitation-core/internal/domain"
	"github.com/usherhq/invitation-core/internal/observability"
)

// Registry holds the live checkout sessions of this process. Sessions are
// per-checkout, never shared, and dropped once the caller is done with
// their terminal state.
type Registry struct {
	gateway Gateway
	sink    EventSink
	policy  Policy
	logger  observability.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Checkout
}

func NewRegistry(gateway Gateway, sink EventSink, policy Policy, logger observability.Logger) *Registry {
	return &Registry{
		gateway:  gateway,
		sink:     sink,
		policy:   policy,
		logger:   logger,
		sessions: make(map[uuid.UUID]*Checkout),
	}
}

func (r *Registry) Create(eventRef string) *Checkout {
	c := New(eventRef, r.gateway, r.sink, r.policy, r.logger)
	r.mu.Lock()
	r.sessions[c.ID] = c
	r.mu.Unlock()
	return c
}

func (r *Registry) Get(id uuid.UUID) (*Checkout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrCheckoutNotFound
	}
	return c, nil
}

func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// EvictFinished drops sessions that have been terminal for at least
// retention and returns how many were removed.
func (r *Registry) EvictFinished(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted int
	for id, c := range r.sessions {
		if finished, ok := c.finishedSince(); ok && finished.Before(cutoff) {
			delete(r.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Sweep periodically evicts terminal sessions that were never collected by
// their caller, so an abandoned checkout cannot pin memory.
func (r *Registry) Sweep(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.EvictFinished(retention); n > 0 {
				r.logger.WithField("evicted", n).Debug("swept finished checkout sessions")
			}
		}
	}
}
