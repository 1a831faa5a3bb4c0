package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/usherhq/invitation-core/internal/adapters/linkapi"
	redisadapter "github.com/usherhq/invitation-core/internal/adapters/redis"
	"github.com/usherhq/invitation-core/internal/checkout"
	"github.com/usherhq/invitation-core/internal/config"
	"github.com/usherhq/invitation-core/internal/domain"
	ifchttp "github.com/usherhq/invitation-core/internal/http"
	"github.com/usherhq/invitation-core/internal/idempotency"
	"github.com/usherhq/invitation-core/internal/identity"
	"github.com/usherhq/invitation-core/internal/observability"
	"github.com/usherhq/invitation-core/internal/rateLimit"
	"github.com/usherhq/invitation-core/internal/shortlink"
)

func startRedis(t *testing.T) *redisclient.Client {
	t.Helper()
	ctx := context.Background()

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	return redisclient.NewClient(&redisclient.Options{Addr: endpoint})
}

type stubGateway struct{}

func (stubGateway) InitiatePayment(ctx context.Context, req checkout.InitiateRequest) (string, error) {
	return "pay-int-1", nil
}

func (stubGateway) PaymentStatus(ctx context.Context, paymentID string) (domain.PaymentStatus, error) {
	return domain.PaymentSuccess, nil
}

func (stubGateway) ConfirmPayment(ctx context.Context, paymentID string) ([]domain.IssuedTicket, error) {
	return []domain.IssuedTicket{{TicketID: "t-1", TicketTypeID: 1, Code: "QR1"}}, nil
}

type stubDirectory struct{}

func (stubDirectory) CheckExistingGuest(ctx context.Context, eventRef, email, phone string) (domain.IdentityCheckResult, error) {
	return domain.IdentityCheckResult{}, nil
}

func startService(t *testing.T, redisClient *redisclient.Client, lookupURL string) *httptest.Server {
	t.Helper()
	logger := observability.NewLogger()
	cfg := &config.Config{RegistrationBaseURL: "https://register.example.com/invite"}

	cache := redisadapter.NewCache(redisClient)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), time.Hour)
	rl := rateLimit.NewRateLimiter(cache)

	lookup := linkapi.NewClient(lookupURL, nil)
	resolver := shortlink.NewResolver(lookup, cfg.RegistrationBaseURL, logger).WithCache(cache, time.Minute)
	checker := identity.NewChecker(stubDirectory{}, time.Millisecond, logger)
	registry := checkout.NewRegistry(stubGateway{}, nil, checkout.Policy{MaxAttempts: 10}, logger)

	h := ifchttp.NewHandlers(cfg, resolver, checker, registry, idemp, logger)
	srv := httptest.NewServer(ifchttp.SetupRouter(cfg, h, logger, rl, idemp))
	t.Cleanup(srv.Close)
	return srv
}

func TestIdempotentCheckoutCreation(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	redisClient := startRedis(t)
	srv := startService(t, redisClient, "http://unused.invalid")

	body := []byte(`{"event_ref":"ev-1","tickets":[{"ticket_type_id":1,"quantity":1,"unit_price":20}]}`)
	key := "int-key-0123456789abcdef"

	var first, second []byte
	for i := 0; i < 2; i++ {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/checkouts", bytes.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", key)
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201, got %d: %s", i, resp.StatusCode, data)
		}
		if i == 0 {
			first = data
		} else {
			second = data
		}
	}

	if !bytes.Equal(first, second) {
		t.Errorf("idempotent replay returned a different body:\n%s\nvs\n%s", first, second)
	}

	var snap checkout.Snapshot
	if err := json.Unmarshal(first, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.State != checkout.StateAwaitingPaymentMethod {
		t.Errorf("unexpected state %s", snap.State)
	}
}

func TestLinkResolutionCachedInRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	redisClient := startRedis(t)

	lookupCalls := 0
	lookupSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lookupCalls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"eventId": 42, "registrationData": {"eventName": "Gala"}}`))
	}))
	defer lookupSrv.Close()

	srv := startService(t, redisClient, lookupSrv.URL)
	client := &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	for i := 0; i < 3; i++ {
		resp, err := client.Get(srv.URL + "/r/validcode")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusFound {
			t.Fatalf("expected 302, got %d", resp.StatusCode)
		}
	}

	if lookupCalls != 1 {
		t.Errorf("expected one lookup call behind the redis cache, got %d", lookupCalls)
	}
}

func TestRateLimitEnforced(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	redisClient := startRedis(t)
	srv := startService(t, redisClient, "http://unused.invalid")

	// Anonymous traffic is limited per ip at 100/min; the first excess
	// request is the one that must be refused.
	for i := 1; i <= 101; i++ {
		resp, err := srv.Client().Get(srv.URL + "/v1/healthz")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		switch {
		case i <= 100 && resp.StatusCode != http.StatusOK:
			t.Fatalf("request %d: expected 200 inside the window, got %d", i, resp.StatusCode)
		case i == 101 && resp.StatusCode != http.StatusTooManyRequests:
			t.Fatalf("request %d: expected 429 past the window, got %d", i, resp.StatusCode)
		}
	}
}
