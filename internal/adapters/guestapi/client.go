// Package guestapi is the HTTP adapter for the external guest directory.
package guestapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/usherhq/invitation-core/internal/domain"
)

type Client struct {
	base string
	http *http.Client
}

func NewClient(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: base, http: httpClient}
}

type checkRequest struct {
	EventRef string `json:"event_ref"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type checkResponse struct {
	Exists            bool                 `json:"exists"`
	AlreadyRegistered bool                 `json:"alreadyRegistered"`
	HasConflict       bool                 `json:"hasConflict"`
	ConflictMessage   string               `json:"conflictMessage"`
	GuestInfo         *domain.GuestSummary `json:"guestInfo"`
}

func (c *Client) CheckExistingGuest(ctx context.Context, eventRef, email, phone string) (domain.IdentityCheckResult, error) {
	body, err := json.Marshal(checkRequest{EventRef: eventRef, Email: email, Phone: phone})
	if err != nil {
		return domain.IdentityCheckResult{}, errors.Wrap(err, "marshal guest check request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/guests/check", bytes.NewReader(body))
	if err != nil {
		return domain.IdentityCheckResult{}, errors.Wrap(err, "build guest check request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.IdentityCheckResult{}, errors.Mark(errors.Wrap(err, "guest check"), domain.ErrTransport)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.IdentityCheckResult{}, errors.Mark(
			errors.Newf("guest check returned %d", resp.StatusCode), domain.ErrTransport)
	}

	var decoded checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.IdentityCheckResult{}, errors.Mark(errors.Wrap(err, "decode guest check response"), domain.ErrTransport)
	}

	return domain.IdentityCheckResult{
		Exists:            decoded.Exists,
		AlreadyRegistered: decoded.AlreadyRegistered,
		HasConflict:       decoded.HasConflict,
		ConflictMessage:   decoded.ConflictMessage,
		MatchedGuest:      decoded.GuestInfo,
	}, nil
}
