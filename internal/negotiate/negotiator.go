// Package negotiate intersects two principals' candidate slot sets and
// synthesizes a joint recommendation, or a structured no-overlap fallback.
// Everything here is pure computation on already-computed slot lists; no
// state, no side effects.
package negotiate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/justQrius/companion-network-sub000/internal/availability"
	"github.com/justQrius/companion-network-sub000/internal/domain"
)

// preferenceScore is added per principal whose preferred start times align
// with an intersected slot, so a slot matching both sides outranks one
// matching a single side.
const preferenceScore = 2

// maxAlternatives caps the per-side alternative lists in the no-overlap
// fallback.
const maxAlternatives = 3

// Party bundles one principal's inputs to a negotiation round.
type Party struct {
	Name string
	// Slots are wire-format candidate intervals, already computed and
	// already filtered by that principal's own trust gate.
	Slots []string
	// PreferredStarts are the principal's "HH:MM" preferences, when shared.
	PreferredStarts []string
	// Cuisine carries shared cuisine metadata for recommendation text.
	Cuisine []string
}

// Outcome is the result of a negotiation round. Exactly one of
// Recommendation (HasOverlaps true) or the fallback fields (HasOverlaps
// false) is meaningful. A round never errors; no overlap is a normal
// business outcome.
type Outcome struct {
	HasOverlaps    bool     `json:"has_overlaps"`
	Slots          []string `json:"slots,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`

	Message          string   `json:"message,omitempty"`
	LocalAlternates  []string `json:"local_alternatives,omitempty"`
	RemoteAlternates []string `json:"remote_alternatives,omitempty"`
	Suggestion       string   `json:"suggestion,omitempty"`
}

// Intersect computes the pairwise overlap of two wire-format slot lists.
// This is an O(n*m) scan; both lists are capped small by construction so
// it stays trivially cheap.
func Intersect(a, b []string) []string {
	left := domain.ParseIntervals(a)
	right := domain.ParseIntervals(b)
	if len(left) == 0 || len(right) == 0 {
		return nil
	}
	var out []string
	for _, la := range left {
		for _, rb := range right {
			if overlap, ok := la.Intersect(rb); ok {
				out = append(out, overlap.String())
			}
		}
	}
	return out
}

// Rank orders intersected slots by additive preference score, descending;
// ties keep chronological order by earliest start.
func Rank(slots []string, a, b Party) []string {
	if len(slots) == 0 {
		return nil
	}
	type scored struct {
		slot  string
		score int
	}
	ranked := make([]scored, 0, len(slots))
	for _, s := range slots {
		score := 0
		if iv, err := domain.ParseInterval(s); err == nil {
			if availability.MatchesPreferredStart(iv.Start, a.PreferredStarts) {
				score += preferenceScore
			}
			if availability.MatchesPreferredStart(iv.Start, b.PreferredStarts) {
				score += preferenceScore
			}
		}
		ranked = append(ranked, scored{slot: s, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].slot < ranked[j].slot
	})
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.slot
	}
	return out
}

// Negotiate runs intersect, rank, and synthesis in one step. The local
// party comes first; the remote party's name and cuisine feed the
// recommendation text.
func Negotiate(local, remote Party) Outcome {
	ranked := Rank(Intersect(local.Slots, remote.Slots), local, remote)
	if len(ranked) == 0 {
		return noOverlaps(local, remote)
	}
	return Outcome{
		HasOverlaps:    true,
		Slots:          ranked,
		Recommendation: recommend(ranked[0], local, remote),
	}
}

// recommend renders the top slot as a human-readable summary: date, time,
// any shared cuisine interest, and whether the time suits both sides'
// stated preferences. Pure formatting, no side effects.
func recommend(slot string, local, remote Party) string {
	iv, err := domain.ParseInterval(slot)
	if err != nil {
		return "Found an available time slot, but unable to parse details."
	}

	parts := []string{formatInstant(iv.Start)}

	if len(remote.Cuisine) > 0 {
		cuisines := remote.Cuisine
		if len(cuisines) > 2 {
			cuisines = cuisines[:2]
		}
		parts = append(parts, fmt.Sprintf("%s prefers %s cuisine", remote.Name, strings.Join(cuisines, ", ")))
	}

	if len(local.PreferredStarts) > 0 && len(remote.PreferredStarts) > 0 &&
		availability.MatchesPreferredStart(iv.Start, local.PreferredStarts) {
		parts = append(parts, "This time aligns with both users' preferred dining times")
	}

	return strings.Join(parts, ". ") + "."
}

// noOverlaps builds the structured fallback: a neutral message, up to
// three formatted alternatives per side, and a flexibility suggestion.
func noOverlaps(local, remote Party) Outcome {
	localAlts := formatAlternatives(local.Slots)
	remoteAlts := formatAlternatives(remote.Slots)

	msg := []string{fmt.Sprintf(
		"No overlapping times found where both %s and %s are available.",
		local.Name, remote.Name,
	)}
	if len(localAlts) > 0 {
		msg = append(msg, fmt.Sprintf("%s is available: %s", local.Name, strings.Join(localAlts, ", ")))
	}
	if len(remoteAlts) > 0 {
		msg = append(msg, fmt.Sprintf("%s is available: %s", remote.Name, strings.Join(remoteAlts, ", ")))
	}

	return Outcome{
		HasOverlaps:      false,
		Message:          strings.Join(msg, " "),
		LocalAlternates:  localAlts,
		RemoteAlternates: remoteAlts,
		Suggestion: fmt.Sprintf(
			"Would either %s or %s be flexible to adjust their schedule? "+
				"Alternatively, we could look for times further in the future.",
			local.Name, remote.Name,
		),
	}
}

func formatAlternatives(slots []string) []string {
	if len(slots) > maxAlternatives {
		slots = slots[:maxAlternatives]
	}
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		iv, err := domain.ParseInterval(s)
		if err != nil {
			out = append(out, s)
			continue
		}
		out = append(out, formatInstant(iv.Start))
	}
	return out
}

// formatInstant renders "Saturday, December 7 at 19:00".
func formatInstant(t time.Time) string {
	return fmt.Sprintf("%s, %s %d at %d:%02d",
		t.Weekday(), t.Month(), t.Day(), t.Hour(), t.Minute())
}
