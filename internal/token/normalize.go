package token

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/usherhq/invitation-core/internal/domain"
)

// Probe order per canonical field: compact key, then the legacy nested
// path, then the legacy flat key. Adding a fourth historical format is one
// more entry per affected field. Unknown keys are ignored, never rejected.
var (
	probeEventID        = []string{"e", "eventId", "event_id"}
	probeEventUUID      = []string{"eventUuid", "event.uuid", "event_uuid"}
	probeEventName      = []string{"eventName", "event.name", "event_name"}
	probeEventStartDate = []string{"eventStartDate", "event.startDate", "event_start_date"}
	probeEventEndDate   = []string{"eventEndDate", "event.endDate", "event_end_date"}
	probeDailyRate      = []string{"r", "payment.dailyRate", "dailyRate"}
	probeMethod         = []string{"m", "payment.method", "paymentMethod"}
	probeTerms          = []string{"t", "payment.terms", "paymentTerms"}
	probeNotes          = []string{"n", "requirements.notes", "notes"}
	probeDressCode      = []string{"d", "requirements.dressCode", "dressCode"}
	probeArrivalTime    = []string{"a", "requirements.arrivalTime", "arrivalTime"}
	probeMaxUshers      = []string{"u", "limits.maxUshers", "maxUshers"}
	probeValidFrom      = []string{"f", "limits.validFrom", "validFrom"}
	probeValidUntil     = []string{"v", "limits.validUntil", "validUntil"}
	probeMessage        = []string{"msg", "message"}
)

// Normalize maps any of the serialized token shapes onto the canonical
// payload. Optional fields default to absent; only a missing or
// non-positive eventId is an error.
func Normalize(doc map[string]interface{}) (domain.InvitationPayload, error) {
	p := domain.InvitationPayload{
		EventID:        intAt(doc, probeEventID),
		EventUUID:      stringAt(doc, probeEventUUID),
		EventName:      stringAt(doc, probeEventName),
		EventStartDate: stringAt(doc, probeEventStartDate),
		EventEndDate:   stringAt(doc, probeEventEndDate),
		Payment: domain.InvitationPayment{
			DailyRate: stringAt(doc, probeDailyRate),
			Method:    stringAt(doc, probeMethod),
			Terms:     stringAt(doc, probeTerms),
		},
		Requirements: domain.InvitationRequirements{
			Notes:       stringAt(doc, probeNotes),
			DressCode:   stringAt(doc, probeDressCode),
			ArrivalTime: stringAt(doc, probeArrivalTime),
		},
		Limits: domain.InvitationLimits{
			MaxUshers:  intAt(doc, probeMaxUshers),
			ValidFrom:  stringAt(doc, probeValidFrom),
			ValidUntil: stringAt(doc, probeValidUntil),
		},
		Message: stringAt(doc, probeMessage),
	}

	if !p.Valid() {
		return domain.InvitationPayload{}, errors.WithDetail(domain.ErrMalformedToken, "no usable eventId in any known key")
	}
	return p, nil
}

// lookup walks a dotted path through nested JSON objects.
func lookup(doc map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = doc
	for _, part := range parts {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func stringAt(doc map[string]interface{}, paths []string) string {
	for _, path := range paths {
		v, ok := lookup(doc, path)
		if !ok {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		}
	}
	return ""
}

func intAt(doc map[string]interface{}, paths []string) int {
	for _, path := range paths {
		v, ok := lookup(doc, path)
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			if n == float64(int(n)) && int(n) > 0 {
				return int(n)
			}
		case string:
			if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil && parsed > 0 {
				return parsed
			}
		}
	}
	return 0
}
