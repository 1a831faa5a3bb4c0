// Package paymentapi is the HTTP adapter for the external payment
// collaborator: initiation, status polling, and confirmation.
package paymentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"
	"github.com/usherhq/invitation-core/internal/checkout"
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

func (c *Client) InitiatePayment(ctx context.Context, req checkout.InitiateRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", errors.Wrap(err, "marshal initiation request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/payments", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build initiation request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "initiate payment"), domain.ErrTransport)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		// The provider message, when present, is surfaced verbatim.
		var errBody struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return "", &domain.PaymentInitiationError{Message: errBody.Message}
	}

	var ok struct {
		PaymentID string `json:"paymentId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ok); err != nil || ok.PaymentID == "" {
		return "", &domain.PaymentInitiationError{}
	}
	return ok.PaymentID, nil
}

func (c *Client) PaymentStatus(ctx context.Context, paymentID string) (domain.PaymentStatus, error) {
	endpoint := fmt.Sprintf("%s/payments/%s/status", c.base, url.PathEscape(paymentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", errors.Wrap(err, "build status request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "payment status"), domain.ErrTransport)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Mark(errors.Newf("payment status returned %d", resp.StatusCode), domain.ErrTransport)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.Mark(errors.Wrap(err, "decode status response"), domain.ErrTransport)
	}

	switch body.Status {
	case "pending", "processing":
		return domain.PaymentPending, nil
	case "success", "succeeded", "completed":
		return domain.PaymentSuccess, nil
	case "failed":
		return domain.PaymentFailed, nil
	case "cancelled", "canceled":
		return domain.PaymentCancelled, nil
	}
	return "", errors.Mark(errors.Newf("unknown payment status %q", body.Status), domain.ErrTransport)
}

// ConfirmPayment requests ticket issuance. The downstream API tolerates a
// duplicate call; the orchestrator still calls it only once.
func (c *Client) ConfirmPayment(ctx context.Context, paymentID string) ([]domain.IssuedTicket, error) {
	endpoint := fmt.Sprintf("%s/payments/%s/confirm", c.base, url.PathEscape(paymentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build confirm request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "confirm payment"), domain.ErrTransport)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Mark(errors.Newf("payment confirm returned %d", resp.StatusCode), domain.ErrTransport)
	}

	var body struct {
		Tickets []domain.IssuedTicket `json:"tickets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode confirm response"), domain.ErrTransport)
	}
	return body.Tickets, nil
}
