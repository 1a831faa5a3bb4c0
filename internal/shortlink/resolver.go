// Package shortlink expands opaque short codes into full invitation links.
package shortlink

import (
	"context"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/usherhq/invitation-core/internal/domain"
	"github.com/usherhq/invitation-core/internal/observability"
	"github.com/usherhq/invitation-core/internal/token"
)

// Lookup is the external short-link service. Implementations map a missing
// code to domain.ErrLinkNotFound and an expired one to domain.ErrLinkExpired.
type Lookup interface {
	Find(ctx context.Context, code string) (domain.InvitationPayload, error)
}

// Cache is an optional read-through cache for lookup responses.
type Cache interface {
	GetLink(ctx context.Context, code string) (*domain.InvitationPayload, error)
	SetLink(ctx context.Context, code string, payload domain.InvitationPayload, ttl time.Duration) error
}

// Audit optionally records every resolution attempt.
type Audit interface {
	RecordResolution(ctx context.Context, code, outcome string, eventID int) error
}

// Resolution is one recorded resolution attempt.
type Resolution struct {
	Code       string    `json:"code"`
	Outcome    string    `json:"outcome"`
	EventID    int       `json:"event_id"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// RedirectTarget is the computed destination for a resolved short link.
// The resolver never redirects; the caller owns navigation and messaging.
type RedirectTarget struct {
	URL     string
	Token   string
	EventID int
}

type Resolver struct {
	lookup   Lookup
	cache    Cache
	audit    Audit
	entryURL string
	cacheTTL time.Duration
	logger   observability.Logger
}

func NewResolver(lookup Lookup, entryURL string, logger observability.Logger) *Resolver {
	return &Resolver{lookup: lookup, entryURL: entryURL, logger: logger}
}

// WithCache attaches a lookup cache.
func (r *Resolver) WithCache(cache Cache, ttl time.Duration) *Resolver {
	r.cache = cache
	r.cacheTTL = ttl
	return r
}

// WithAudit attaches a resolution audit trail.
func (r *Resolver) WithAudit(audit Audit) *Resolver {
	r.audit = audit
	return r
}

// Resolve expands a short code into a redirect target carrying a freshly
// encoded invitation token as a query parameter.
func (r *Resolver) Resolve(ctx context.Context, code string) (RedirectTarget, error) {
	payload, err := r.find(ctx, code)
	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, domain.ErrLinkNotFound):
			outcome = "not_found"
		case errors.Is(err, domain.ErrLinkExpired):
			outcome = "expired"
		}
		observability.LinkResolutions.WithLabelValues(outcome).Inc()
		r.record(ctx, code, outcome, 0)
		return RedirectTarget{}, err
	}

	tok, err := token.Encode(payload)
	if err != nil {
		observability.LinkResolutions.WithLabelValues("error").Inc()
		r.record(ctx, code, "error", payload.EventID)
		return RedirectTarget{}, errors.Wrap(err, "encode resolved invitation")
	}

	dest, err := appendToken(r.entryURL, tok)
	if err != nil {
		observability.LinkResolutions.WithLabelValues("error").Inc()
		return RedirectTarget{}, err
	}

	observability.LinkResolutions.WithLabelValues("ok").Inc()
	r.record(ctx, code, "ok", payload.EventID)
	return RedirectTarget{URL: dest, Token: tok, EventID: payload.EventID}, nil
}

func (r *Resolver) find(ctx context.Context, code string) (domain.InvitationPayload, error) {
	if r.cache != nil {
		cached, err := r.cache.GetLink(ctx, code)
		if err != nil {
			r.logger.WithError(err).Warn("link cache read failed")
		} else if cached != nil {
			return *cached, nil
		}
	}

	payload, err := r.lookup.Find(ctx, code)
	if err != nil {
		return domain.InvitationPayload{}, err
	}

	if r.cache != nil {
		if err := r.cache.SetLink(ctx, code, payload, r.cacheTTL); err != nil {
			r.logger.WithError(err).Warn("link cache write failed")
		}
	}
	return payload, nil
}

func (r *Resolver) record(ctx context.Context, code, outcome string, eventID int) {
	if r.audit == nil {
		return
	}
	if err := r.audit.RecordResolution(ctx, code, outcome, eventID); err != nil {
		r.logger.WithError(err).Warn("resolution audit write failed")
	}
}

func appendToken(entryURL, tok string) (string, error) {
	u, err := url.Parse(entryURL)
	if err != nil {
		return "", errors.Wrap(err, "parse registration entry url")
	}
	q := u.Query()
	q.Set("token", tok)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
