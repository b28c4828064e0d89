package domain

// Preferences holds a principal's soft scheduling preferences. None of
// these are hard constraints; they bias slot ranking and recommendation
// text.
type Preferences struct {
	Cuisine             []string `json:"cuisine,omitempty"`
	DiningTimes         []string `json:"dining_times,omitempty"`
	WeekendAvailability string   `json:"weekend_availability,omitempty"`
	DietaryRestrictions []string `json:"dietary_restrictions,omitempty"`
	Allergies           []string `json:"allergies,omitempty"`
	SchedulePatterns    []string `json:"schedule_patterns,omitempty"`
	Interests           []string `json:"interests,omitempty"`
	Hobbies             []string `json:"hobbies,omitempty"`
}

// Schedule holds a principal's private busy calendar as wire-format
// intervals. Raw busy slots are never disclosed across the trust boundary;
// only derived free slots leave the process.
type Schedule struct {
	BusySlots []string `json:"busy_slots"`
}

// PrincipalContext is the per-principal private state: who they are, what
// they prefer, when they are busy, whom they trust, and what each trusted
// contact may see.
//
// Invariant: sharing rule keys are a subset of trusted contacts; an id
// absent from TrustedContacts must never receive any data. Mutated only by
// the principal's own administrative action, never by a remote call.
type PrincipalContext struct {
	ID              string                       `json:"user_id"`
	DisplayName     string                       `json:"name"`
	Preferences     Preferences                  `json:"preferences"`
	Schedule        Schedule                     `json:"schedule"`
	TrustedContacts []string                     `json:"trusted_contacts"`
	SharingRules    map[string][]SharingCategory `json:"sharing_rules"`
}

// Trusts reports whether the contact is on the principal's trust list.
func (p PrincipalContext) Trusts(contactID string) bool {
	for _, id := range p.TrustedContacts {
		if id == contactID {
			return true
		}
	}
	return false
}

// Permits reports whether the sharing rules literally contain the category
// for the contact. A missing or empty rule entry permits nothing.
func (p PrincipalContext) Permits(contactID string, category SharingCategory) bool {
	for _, c := range p.SharingRules[contactID] {
		if c == category {
			return true
		}
	}
	return false
}

// BusyIntervals parses the schedule's wire intervals, skipping malformed
// entries.
func (p PrincipalContext) BusyIntervals() []Interval {
	return ParseIntervals(p.Schedule.BusySlots)
}
