// Package token encodes and decodes invitation payloads to and from the
// compact, URL-safe token strings embedded in registration links.
package token

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/usherhq/invitation-core/internal/domain"
)

// Encode serializes the canonical payload with the compact key set and
// renders it in the URL-safe base64 alphabet without padding, so the token
// can sit unescaped in a URL path segment.
func Encode(p domain.InvitationPayload) (string, error) {
	if !p.Valid() {
		return "", errors.WithDetail(domain.ErrMalformedToken, "payload has no usable eventId")
	}

	doc := map[string]interface{}{"e": p.EventID}
	putString(doc, "eventUuid", p.EventUUID)
	putString(doc, "eventName", p.EventName)
	putString(doc, "eventStartDate", p.EventStartDate)
	putString(doc, "eventEndDate", p.EventEndDate)
	putString(doc, "r", p.Payment.DailyRate)
	putString(doc, "m", p.Payment.Method)
	putString(doc, "t", p.Payment.Terms)
	putString(doc, "n", p.Requirements.Notes)
	putString(doc, "d", p.Requirements.DressCode)
	putString(doc, "a", p.Requirements.ArrivalTime)
	if p.Limits.MaxUshers > 0 {
		doc["u"] = p.Limits.MaxUshers
	}
	putString(doc, "f", p.Limits.ValidFrom)
	putString(doc, "v", p.Limits.ValidUntil)
	putString(doc, "msg", p.Message)

	raw, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "marshal invitation payload")
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode inverts Encode and normalizes any of the historical token shapes
// into the canonical payload. It fails with ErrMalformedToken when the
// token is not parseable or carries no usable eventId.
func Decode(tok string) (domain.InvitationPayload, error) {
	if tok == "" {
		return domain.InvitationPayload{}, errors.WithDetail(domain.ErrMalformedToken, "empty token")
	}

	raw, err := base64.RawURLEncoding.DecodeString(urlSafe(tok))
	if err != nil {
		return domain.InvitationPayload{}, errors.Mark(errors.Wrap(err, "decode token"), domain.ErrMalformedToken)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.InvitationPayload{}, errors.Mark(errors.Wrap(err, "parse token payload"), domain.ErrMalformedToken)
	}

	return Normalize(doc)
}

// urlSafe folds tokens from older encoders, which used the standard base64
// alphabet and kept padding, into the alphabet Decode expects.
func urlSafe(tok string) string {
	return strings.NewReplacer("+", "-", "/", "_", "=", "").Replace(tok)
}

func putString(doc map[string]interface{}, key, val string) {
	if val != "" {
		doc[key] = val
	}
}
