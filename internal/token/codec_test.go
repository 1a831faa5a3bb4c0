package token_test

import (
	"encoding/base64"
	"regexp"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/usherhq/invitation-core/internal/domain"
	"github.com/usherhq/invitation-core/internal/token"
)

func fullPayload() domain.InvitationPayload {
	return domain.InvitationPayload{
		EventID:        42,
		EventUUID:      "3f7c1e9a-9f2b-4a8e-b111-0c9a33d90210",
		EventName:      "Gala Söirée 2026",
		EventStartDate: "2026-09-12",
		EventEndDate:   "2026-09-13",
		Payment: domain.InvitationPayment{
			DailyRate: "150.00",
			Method:    "bank_transfer",
			Terms:     "paid within 7 days after the event",
		},
		Requirements: domain.InvitationRequirements{
			Notes:       "bring valid ID",
			DressCode:   "black tie",
			ArrivalTime: "17:30",
		},
		Limits: domain.InvitationLimits{
			MaxUshers:  8,
			ValidFrom:  "2026-08-01",
			ValidUntil: "2026-09-10",
		},
		Message: "Välkommen! 🎟️",
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := fullPayload()

	tok, err := token.Encode(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := token.Decode(tok)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestEncodeMinimalPayload(t *testing.T) {
	want := domain.InvitationPayload{EventID: 7}

	tok, err := token.Encode(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := token.Decode(tok)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Errorf("optional fields must stay absent: got %+v", got)
	}
}

func TestEncodeRejectsMissingEventID(t *testing.T) {
	_, err := token.Encode(domain.InvitationPayload{Message: "hi"})
	if !errors.Is(err, domain.ErrMalformedToken) {
		t.Errorf("expected ErrMalformedToken, got %v", err)
	}
}

func TestTokenIsURLSafe(t *testing.T) {
	tok, err := token.Encode(fullPayload())
	if err != nil {
		t.Fatal(err)
	}
	if !regexp.MustCompile(`^[A-Za-z0-9_-]+$`).MatchString(tok) {
		t.Errorf("token contains characters outside the URL-safe alphabet: %q", tok)
	}
}

func encodeStd(t *testing.T, doc string) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString([]byte(doc))
}

func encodeRawURL(t *testing.T, doc string) string {
	t.Helper()
	return base64.RawURLEncoding.EncodeToString([]byte(doc))
}

func TestDecodeHistoricalFormats(t *testing.T) {
	compact := `{"e":42,"r":"150.00","m":"cash","t":"net7","n":"id required","d":"casual","a":"09:00","u":3,"f":"2026-01-01","v":"2026-02-01","msg":"hello"}`
	nested := `{"eventId":42,"payment":{"dailyRate":"150.00","method":"cash","terms":"net7"},"requirements":{"notes":"id required","dressCode":"casual","arrivalTime":"09:00"},"limits":{"maxUshers":3,"validFrom":"2026-01-01","validUntil":"2026-02-01"},"message":"hello"}`
	flat := `{"eventId":42,"dailyRate":"150.00","paymentMethod":"cash","paymentTerms":"net7","notes":"id required","dressCode":"casual","arrivalTime":"09:00","maxUshers":3,"validFrom":"2026-01-01","validUntil":"2026-02-01","message":"hello"}`

	// The oldest encoder emitted the standard alphabet with padding.
	tokens := map[string]string{
		"compact":       encodeRawURL(t, compact),
		"legacy_nested": encodeStd(t, nested),
		"legacy_flat":   encodeStd(t, flat),
	}

	var decoded []domain.InvitationPayload
	for name, tok := range tokens {
		p, err := token.Decode(tok)
		if err != nil {
			t.Fatalf("%s: decode: %v", name, err)
		}
		decoded = append(decoded, p)
	}
	for i := 1; i < len(decoded); i++ {
		if decoded[i] != decoded[0] {
			t.Errorf("formats disagree:\n%+v\nvs\n%+v", decoded[i], decoded[0])
		}
	}
	if decoded[0].EventID != 42 || decoded[0].Payment.Method != "cash" || decoded[0].Limits.MaxUshers != 3 {
		t.Errorf("unexpected canonical payload: %+v", decoded[0])
	}
}

func TestDecodeReencodeLegacyToken(t *testing.T) {
	legacy := encodeStd(t, `{"eventId":9,"payment":{"method":"card"}}`)

	p, err := token.Decode(legacy)
	if err != nil {
		t.Fatal(err)
	}
	tok, err := token.Encode(p)
	if err != nil {
		t.Fatal(err)
	}
	again, err := token.Decode(tok)
	if err != nil {
		t.Fatal(err)
	}
	if again != p {
		t.Errorf("re-encoded legacy token changed meaning: %+v vs %+v", again, p)
	}
}

func TestDecodeStringEventID(t *testing.T) {
	p, err := token.Decode(encodeRawURL(t, `{"e":"17"}`))
	if err != nil {
		t.Fatal(err)
	}
	if p.EventID != 17 {
		t.Errorf("expected eventId 17, got %d", p.EventID)
	}
}

func TestDecodeIgnoresUnknownKeys(t *testing.T) {
	p, err := token.Decode(encodeRawURL(t, `{"e":5,"theme":"dark","legacyFlags":[1,2,3]}`))
	if err != nil {
		t.Fatal(err)
	}
	if p.EventID != 5 {
		t.Errorf("expected eventId 5, got %d", p.EventID)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"not_base64":     "%%%%",
		"not_json":       encodeRawURL(t, "not json"),
		"json_array":     encodeRawURL(t, `[1,2,3]`),
		"no_event_id":    encodeRawURL(t, `{"msg":"hi"}`),
		"zero_event_id":  encodeRawURL(t, `{"e":0}`),
		"negative_event": encodeRawURL(t, `{"e":-4}`),
	}
	for name, tok := range cases {
		if _, err := token.Decode(tok); !errors.Is(err, domain.ErrMalformedToken) {
			t.Errorf("%s: expected ErrMalformedToken, got %v", name, err)
		}
	}
}

func TestDecodeMultiByteMessage(t *testing.T) {
	p, err := token.Decode(encodeStd(t, `{"eventId":3,"message":"ありがとう ご来場"}`))
	if err != nil {
		t.Fatal(err)
	}
	if p.Message != "ありがとう ご来場" {
		t.Errorf("multi-byte message corrupted: %q", p.Message)
	}
}
