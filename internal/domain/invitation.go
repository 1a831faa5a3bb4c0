package domain

// InvitationPayload is the canonical decoded form of an invitation token.
// All fields except EventID are optional; absent strings stay empty and
// absent integers stay zero so re-encoding never materializes them.
type InvitationPayload struct {
	EventID        int                    `json:"eventId"`
	EventUUID      string                 `json:"eventUuid,omitempty"`
	EventName      string                 `json:"eventName,omitempty"`
	EventStartDate string                 `json:"eventStartDate,omitempty"`
	EventEndDate   string                 `json:"eventEndDate,omitempty"`
	Payment        InvitationPayment      `json:"payment,omitempty"`
	Requirements   InvitationRequirements `json:"requirements,omitempty"`
	Limits         InvitationLimits       `json:"limits,omitempty"`
	Message        string                 `json:"message,omitempty"`
}

type InvitationPayment struct {
	DailyRate string `json:"dailyRate,omitempty"`
	Method    string `json:"method,omitempty"`
	Terms     string `json:"terms,omitempty"`
}

type InvitationRequirements struct {
	Notes       string `json:"notes,omitempty"`
	DressCode   string `json:"dressCode,omitempty"`
	ArrivalTime string `json:"arrivalTime,omitempty"`
}

type InvitationLimits struct {
	MaxUshers  int    `json:"maxUshers,omitempty"`
	ValidFrom  string `json:"validFrom,omitempty"`
	ValidUntil string `json:"validUntil,omitempty"`
}

// Valid reports whether the payload carries the one required field.
func (p InvitationPayload) Valid() bool {
	return p.EventID > 0
}
