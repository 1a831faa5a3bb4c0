package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/usherhq/invitation-core/internal/checkout"
	"github.com/usherhq/invitation-core/internal/config"
	"github.com/usherhq/invitation-core/internal/domain"
	"github.com/usherhq/invitation-core/internal/idempotency"
	"github.com/usherhq/invitation-core/internal/identity"
	"github.com/usherhq/invitation-core/internal/observability"
	"github.com/usherhq/invitation-core/internal/shortlink"
	"github.com/usherhq/invitation-core/internal/token"
)

// ResolutionLog reads back the short-link resolution audit trail.
type ResolutionLog interface {
	RecentResolutions(ctx context.Context, code string, limit int64) ([]shortlink.Resolution, error)
}

type Handlers struct {
	cfg      *config.Config
	resolver *shortlink.Resolver
	checker  *identity.Checker
	registry *checkout.Registry
	idemp    *idempotency.Idempotency
	auditLog ResolutionLog
	logger   observability.Logger
	validate *validator.Validate
}

func NewHandlers(cfg *config.Config, resolver *shortlink.Resolver, checker *identity.Checker, registry *checkout.Registry, idemp *idempotency.Idempotency, logger observability.Logger) *Handlers {
	return &Handlers{
		cfg:      cfg,
		resolver: resolver,
		checker:  checker,
		registry: registry,
		idemp:    idemp,
		logger:   logger,
		validate: validator.New(),
	}
}

// WithAuditLog attaches the resolution audit trail reader.
func (h *Handlers) WithAuditLog(log ResolutionLog) *Handlers {
	h.auditLog = log
	return h
}

func (h *Handlers) ResolveLink(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	target, err := h.resolver.Resolve(r.Context(), code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	http.Redirect(w, r, target.URL, http.StatusFound)
}

type decodeTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

func (h *Handlers) DecodeToken(w http.ResponseWriter, r *http.Request) {
	var req decodeTokenRequest
	if !h.bind(w, r, &req) {
		return
	}

	payload, err := token.Decode(req.Token)
	if err != nil {
		observability.TokenDecodes.WithLabelValues("malformed").Inc()
		h.writeError(w, err)
		return
	}
	observability.TokenDecodes.WithLabelValues("ok").Inc()
	h.writeJSON(w, http.StatusOK, payload)
}

type encodeTokenRequest struct {
	Payload domain.InvitationPayload `json:"payload"`
}

func (h *Handlers) EncodeToken(w http.ResponseWriter, r *http.Request) {
	var req encodeTokenRequest
	if !h.bind(w, r, &req) {
		return
	}

	tok, err := token.Encode(req.Payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"token": tok})
}

type guestCheckRequest struct {
	EventRef string `json:"event_ref" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
}

func (h *Handlers) CheckGuest(w http.ResponseWriter, r *http.Request) {
	var req guestCheckRequest
	if !h.bind(w, r, &req) {
		return
	}

	res, err := h.checker.CheckNow(r.Context(), req.EventRef, req.Email, req.Phone)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := map[string]interface{}{
		"result": res,
	}
	if res.Blocking() {
		resp["block_message"] = identity.BlockMessage(res)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type createCheckoutRequest struct {
	EventRef string              `json:"event_ref" validate:"required"`
	Tickets  []domain.TicketLine `json:"tickets" validate:"required,min=1,dive"`
}

func (h *Handlers) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if h.replay(w, r, key) {
		return
	}

	var req createCheckoutRequest
	if !h.bind(w, r, &req) {
		return
	}

	c := h.registry.Create(req.EventRef)
	if err := c.SelectTickets(domain.TicketSelection(req.Tickets)); err != nil {
		h.registry.Remove(c.ID)
		h.writeError(w, err)
		return
	}

	snap := c.Snapshot()
	data, _ := json.Marshal(snap)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(data)

	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
}

type initiatePaymentRequest struct {
	Method   string                 `json:"method" validate:"required"`
	Attendee domain.AttendeeDetails `json:"attendee" validate:"required"`
}

func (h *Handlers) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if h.replay(w, r, key) {
		return
	}

	c, ok := h.checkoutFromPath(w, r)
	if !ok {
		return
	}

	var req initiatePaymentRequest
	if !h.bind(w, r, &req) {
		return
	}

	paymentID, err := c.InitiatePayment(r.Context(), req.Method, req.Attendee)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Polling outlives the request; the client follows up via GET.
	go func() {
		if err := c.Await(context.Background()); err != nil {
			h.logger.WithField("checkout_id", c.ID).WithError(err).Error("payment polling aborted")
		}
	}()

	data, _ := json.Marshal(map[string]string{"payment_id": paymentID})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	w.Write(data)

	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusAccepted, Result: data})
}

func (h *Handlers) GetCheckout(w http.ResponseWriter, r *http.Request) {
	c, ok := h.checkoutFromPath(w, r)
	if !ok {
		return
	}
	snap := c.Snapshot()
	if snap.State.Terminal() {
		// Serving the terminal snapshot ends the session.
		h.registry.Remove(c.ID)
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handlers) CancelCheckout(w http.ResponseWriter, r *http.Request) {
	c, ok := h.checkoutFromPath(w, r)
	if !ok {
		return
	}
	if err := c.Cancel(); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c.Snapshot())
}

func (h *Handlers) ListResolutions(w http.ResponseWriter, r *http.Request) {
	if h.auditLog == nil {
		http.Error(w, "resolution audit trail is not enabled", http.StatusNotFound)
		return
	}

	code := chi.URLParam(r, "code")
	entries, err := h.auditLog.RecentResolutions(r.Context(), code, 50)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"resolutions": entries})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

func (h *Handlers) checkoutFromPath(w http.ResponseWriter, r *http.Request) (*checkout.Checkout, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid checkout id", http.StatusBadRequest)
		return nil, false
	}
	c, err := h.registry.Get(id)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return c, true
}

// replay serves a recorded response for a repeated Idempotency-Key and
// reports whether the request is already handled.
func (h *Handlers) replay(w http.ResponseWriter, r *http.Request, key string) bool {
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		h.logger.WithError(err).Warn("idempotency lookup failed")
		return false
	}
	if existing == nil {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(existing.Status)
	w.Write(existing.Result)
	return true
}

func (h *Handlers) bind(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	var initErr *domain.PaymentInitiationError
	var confErr *domain.ConfirmationError

	switch {
	case errors.Is(err, domain.ErrMalformedToken):
		http.Error(w, "invitation link is not valid, request a new one", http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrLinkNotFound):
		http.Error(w, "invitation link not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrLinkExpired):
		http.Error(w, "invitation link has expired", http.StatusGone)
	case errors.Is(err, domain.ErrInvalidSelection):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrCheckoutNotFound):
		http.Error(w, "checkout not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrCancelNotAllowed):
		http.Error(w, "checkout can no longer be cancelled", http.StatusConflict)
	case errors.As(err, &initErr):
		http.Error(w, initErr.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &confErr):
		http.Error(w, confErr.Error(), http.StatusBadGateway)
	case errors.Is(err, domain.ErrTransport):
		http.Error(w, "upstream service unavailable", http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
