package checkout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/usherhq/invitation-core/internal/checkout"
	"github.com/usherhq/invitation-core/internal/domain"
	"github.com/usherhq/invitation-core/internal/observability"
)

func TestRegistryEvictsFinishedSessions(t *testing.T) {
	g := &fakeGateway{statuses: []domain.PaymentStatus{domain.PaymentFailed}}
	r := checkout.NewRegistry(g, nil, fastPolicy(), observability.NewLogger())

	finished := r.Create("ev-1")
	if err := finished.SelectTickets(selection()); err != nil {
		t.Fatal(err)
	}
	if _, err := finished.InitiatePayment(context.Background(), "card", domain.AttendeeDetails{Email: "a@b.c"}); err != nil {
		t.Fatal(err)
	}
	if err := finished.Await(context.Background()); err != nil {
		t.Fatal(err)
	}

	open := r.Create("ev-2")

	if n := r.EvictFinished(time.Hour); n != 0 {
		t.Fatalf("sessions inside the retention window must be kept, evicted %d", n)
	}
	if n := r.EvictFinished(0); n != 1 {
		t.Fatalf("expected one finished session evicted, got %d", n)
	}

	if _, err := r.Get(finished.ID); !errors.Is(err, domain.ErrCheckoutNotFound) {
		t.Errorf("finished session must be dropped, got %v", err)
	}
	if _, err := r.Get(open.ID); err != nil {
		t.Errorf("open session must survive the sweep: %v", err)
	}
}
