// Package linkapi is the HTTP adapter for the external short-link lookup
// service.
package linkapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

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

// lookupResponse mirrors the lookup service wire format: the event id plus
// the registration data block the invitation was created with.
type lookupResponse struct {
	EventID      int             `json:"eventId"`
	Registration json.RawMessage `json:"registrationData"`
}

// Find resolves a short code. A 404 maps to ErrLinkNotFound, a 410 to
// ErrLinkExpired; anything else non-2xx is a transport failure.
func (c *Client) Find(ctx context.Context, code string) (domain.InvitationPayload, error) {
	endpoint := fmt.Sprintf("%s/links/%s", c.base, url.PathEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.InvitationPayload{}, errors.Wrap(err, "build lookup request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.InvitationPayload{}, errors.Mark(errors.Wrap(err, "short-link lookup"), domain.ErrTransport)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return domain.InvitationPayload{}, domain.ErrLinkNotFound
	case http.StatusGone:
		return domain.InvitationPayload{}, domain.ErrLinkExpired
	default:
		return domain.InvitationPayload{}, errors.Mark(
			errors.Newf("short-link lookup returned %d", resp.StatusCode), domain.ErrTransport)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.InvitationPayload{}, errors.Mark(errors.Wrap(err, "decode lookup response"), domain.ErrTransport)
	}

	payload := domain.InvitationPayload{EventID: body.EventID}
	if len(body.Registration) > 0 {
		// Registration data reuses the canonical field names; unknown
		// keys are dropped by the decoder.
		if err := json.Unmarshal(body.Registration, &payload); err != nil {
			return domain.InvitationPayload{}, errors.Mark(errors.Wrap(err, "decode registration data"), domain.ErrTransport)
		}
		if payload.EventID == 0 {
			payload.EventID = body.EventID
		}
	}
	return payload, nil
}
