package shortlink_test

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/usherhq/invitation-core/internal/domain"
	"github.com/usherhq/invitation-core/internal/observability"
	"github.com/usherhq/invitation-core/internal/shortlink"
	"github.com/usherhq/invitation-core/internal/token"
)

type fakeLookup struct {
	calls int
	links map[string]domain.InvitationPayload
}

func (f *fakeLookup) Find(ctx context.Context, code string) (domain.InvitationPayload, error) {
	f.calls++
	switch code {
	case "expiredcode":
		return domain.InvitationPayload{}, domain.ErrLinkExpired
	case "brokencode":
		return domain.InvitationPayload{}, domain.ErrTransport
	}
	p, ok := f.links[code]
	if !ok {
		return domain.InvitationPayload{}, domain.ErrLinkNotFound
	}
	return p, nil
}

type memCache struct {
	m map[string]domain.InvitationPayload
}

func (c *memCache) GetLink(ctx context.Context, code string) (*domain.InvitationPayload, error) {
	if p, ok := c.m[code]; ok {
		return &p, nil
	}
	return nil, nil
}

func (c *memCache) SetLink(ctx context.Context, code string, p domain.InvitationPayload, ttl time.Duration) error {
	c.m[code] = p
	return nil
}

func newResolver(lookup *fakeLookup) *shortlink.Resolver {
	return shortlink.NewResolver(lookup, "https://register.example.com/invite", observability.NewLogger())
}

func TestResolveValidCode(t *testing.T) {
	lookup := &fakeLookup{links: map[string]domain.InvitationPayload{
		"validcode": {EventID: 42, EventName: "Spring Gala"},
	}}

	target, err := newResolver(lookup).Resolve(context.Background(), "validcode")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	u, err := url.Parse(target.URL)
	if err != nil {
		t.Fatal(err)
	}
	tok := u.Query().Get("token")
	if tok == "" {
		t.Fatal("redirect target carries no token query parameter")
	}
	payload, err := token.Decode(tok)
	if err != nil {
		t.Fatalf("redirect token does not decode: %v", err)
	}
	if payload.EventID != 42 {
		t.Errorf("expected eventId 42 in redirect token, got %d", payload.EventID)
	}
	if target.EventID != 42 {
		t.Errorf("expected target eventId 42, got %d", target.EventID)
	}
}

func TestResolveNotFound(t *testing.T) {
	lookup := &fakeLookup{}
	_, err := newResolver(lookup).Resolve(context.Background(), "unknown")
	if !errors.Is(err, domain.ErrLinkNotFound) {
		t.Errorf("expected ErrLinkNotFound, got %v", err)
	}
}

func TestResolveExpired(t *testing.T) {
	lookup := &fakeLookup{}
	_, err := newResolver(lookup).Resolve(context.Background(), "expiredcode")
	if !errors.Is(err, domain.ErrLinkExpired) {
		t.Errorf("expected ErrLinkExpired, got %v", err)
	}
}

func TestResolveTransportFailure(t *testing.T) {
	lookup := &fakeLookup{}
	_, err := newResolver(lookup).Resolve(context.Background(), "brokencode")
	if !errors.Is(err, domain.ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}

func TestResolveUsesCache(t *testing.T) {
	lookup := &fakeLookup{links: map[string]domain.InvitationPayload{
		"validcode": {EventID: 7},
	}}
	cache := &memCache{m: map[string]domain.InvitationPayload{}}
	r := newResolver(lookup).WithCache(cache, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), "validcode"); err != nil {
			t.Fatal(err)
		}
	}
	if lookup.calls != 1 {
		t.Errorf("expected a single lookup call behind the cache, got %d", lookup.calls)
	}
}
