package domain

// GuestSummary is the contact identity returned by the guest directory,
// used to pre-fill registration forms.
type GuestSummary struct {
	ID    int    `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// IdentityCheckResult classifies an inbound registrant for one event.
// Exactly one of AlreadyRegistered / HasConflict is set when the contact
// cannot proceed; both false means the contact is novel or pre-fillable.
type IdentityCheckResult struct {
	Exists            bool          `json:"exists"`
	AlreadyRegistered bool          `json:"alreadyRegistered"`
	HasConflict       bool          `json:"hasConflict"`
	ConflictMessage   string        `json:"conflictMessage,omitempty"`
	MatchedGuest      *GuestSummary `json:"matchedGuest,omitempty"`
}

// Blocking reports whether submission must be blocked for this result.
func (r IdentityCheckResult) Blocking() bool {
	return r.AlreadyRegistered || r.HasConflict
}
