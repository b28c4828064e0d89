package domain

import (
	dErrors "github.com/justQrius/companion-network-sub000/pkg/domain-errors"
)

// SharingCategory labels a class of personal data a contact may be allowed
// to receive. Invariant: the value must be one of the supported categories.
//
// Construct via ParseSharingCategory at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type SharingCategory string

// Supported sharing categories.
const (
	// CategoryAvailability also gates disclosure of preferences through
	// check_availability and marks the caller auto-accept eligible.
	CategoryAvailability SharingCategory = "availability"
	CategoryCuisine      SharingCategory = "cuisine_preferences"
	CategoryPreferences  SharingCategory = "preferences"
	CategoryDietary      SharingCategory = "dietary"
	// CategorySchedule discloses schedule patterns only, never busy slots.
	CategorySchedule  SharingCategory = "schedule"
	CategoryInterests SharingCategory = "interests"
	// CategoryScheduling is the implied category of propose_event and
	// relay_message: any trusted contact may initiate scheduling.
	CategoryScheduling SharingCategory = "scheduling"
)

// validSharingCategories is the single source of truth for valid categories.
var validSharingCategories = map[SharingCategory]bool{
	CategoryAvailability: true,
	CategoryCuisine:      true,
	CategoryPreferences:  true,
	CategoryDietary:      true,
	CategorySchedule:     true,
	CategoryInterests:    true,
	CategoryScheduling:   true,
}

// ParseSharingCategory constructs a SharingCategory from external input.
func ParseSharingCategory(s string) (SharingCategory, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "category cannot be empty")
	}
	c := SharingCategory(s)
	if !c.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid category %q", s)
	}
	return c, nil
}

// IsValid checks if the category is one of the supported enum values.
func (c SharingCategory) IsValid() bool {
	return validSharingCategories[c]
}

func (c SharingCategory) String() string {
	return string(c)
}

// Urgency ranks a relayed message for display priority.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

// ParseUrgency validates external urgency input. Empty defaults to normal.
func ParseUrgency(s string) (Urgency, error) {
	switch Urgency(s) {
	case UrgencyLow, UrgencyNormal, UrgencyHigh:
		return Urgency(s), nil
	case "":
		return UrgencyNormal, nil
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid urgency %q", s)
	}
}

func (u Urgency) String() string {
	return string(u)
}
