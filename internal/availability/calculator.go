// Package availability computes ranked candidate free slots from a private
// busy schedule. Slots are value objects recomputed per request; raw busy
// intervals never leave the owning principal.
package availability

import (
	"fmt"
	"sort"
	"time"

	"github.com/justQrius/companion-network-sub000/internal/domain"
)

const (
	// candidateStride spaces candidate starts inside a free period. The
	// resulting candidates overlap on purpose: overlapping windows maximize
	// the chance one of them aligns with a preferred start time.
	candidateStride = 30 * time.Minute

	// preferenceWindow is how close a slot start must be to a preferred
	// start time to count as a match.
	preferenceWindow = 30 * time.Minute

	// DefaultMaxSlots bounds the returned candidate list.
	DefaultMaxSlots = 5
)

// Slot is a duration-length candidate interval with its derived preference
// flag.
type Slot struct {
	Interval          domain.Interval
	MatchesPreference bool
}

// Request carries everything one free-slot computation needs.
type Request struct {
	Timeframe domain.Interval
	Busy      []domain.Interval
	Duration  time.Duration
	// PreferredStarts are ordered "HH:MM" wall-clock strings.
	PreferredStarts []string
	MaxSlots        int
}

// FreeSlots walks the timeframe, carves out busy intervals, generates
// candidate slots inside every remaining free period, and ranks them with
// preference-matching slots first (chronological within each class).
//
// A timeframe fully consumed by busy intervals yields an empty list; that
// is a valid outcome, not an error.
func FreeSlots(req Request) []Slot {
	maxSlots := req.MaxSlots
	if maxSlots <= 0 {
		maxSlots = DefaultMaxSlots
	}
	if req.Duration <= 0 || !req.Timeframe.IsValid() {
		return nil
	}

	busy := append([]domain.Interval(nil), req.Busy...)
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })

	prefs := parsePreferredStarts(req.PreferredStarts)

	var slots []Slot
	cursor := req.Timeframe.Start
	for _, b := range busy {
		if cursor.Before(b.Start) {
			periodEnd := b.Start
			if req.Timeframe.End.Before(periodEnd) {
				periodEnd = req.Timeframe.End
			}
			slots = appendCandidates(slots, cursor, periodEnd, req.Duration, prefs)
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if cursor.Before(req.Timeframe.End) {
		slots = appendCandidates(slots, cursor, req.Timeframe.End, req.Duration, prefs)
	}

	rank(slots, len(prefs) > 0)

	if len(slots) > maxSlots {
		slots = slots[:maxSlots]
	}
	return slots
}

// appendCandidates generates duration-length slots starting every stride
// inside [periodStart, periodEnd), discarding the period once the remaining
// length dips below the duration.
func appendCandidates(slots []Slot, periodStart, periodEnd time.Time, duration time.Duration, prefs []int) []Slot {
	for start := periodStart; start.Before(periodEnd); start = start.Add(candidateStride) {
		end := start.Add(duration)
		if end.After(periodEnd) {
			break
		}
		slots = append(slots, Slot{
			Interval:          domain.NewInterval(start, end),
			MatchesPreference: matchesAny(start, prefs),
		})
	}
	return slots
}

// rank stable-partitions preference-matching slots to the front. With no
// preferences supplied, ranking is a no-op and chronological order is
// preserved.
func rank(slots []Slot, havePrefs bool) {
	if !havePrefs {
		return
	}
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].MatchesPreference && !slots[j].MatchesPreference
	})
}

// parsePreferredStarts converts "HH:MM" strings into minutes-of-day,
// skipping malformed entries.
func parsePreferredStarts(raw []string) []int {
	out := make([]int, 0, len(raw))
	for _, s := range raw {
		var h, m int
		if n, err := parseHHMM(s, &h, &m); err != nil || n != 2 {
			continue
		}
		out = append(out, h*60+m)
	}
	return out
}

func parseHHMM(s string, h, m *int) (int, error) {
	return fmt.Sscanf(s, "%d:%d", h, m)
}

func matchesAny(start time.Time, prefs []int) bool {
	slotMinutes := start.Hour()*60 + start.Minute()
	window := int(preferenceWindow / time.Minute)
	for _, p := range prefs {
		diff := slotMinutes - p
		if diff < 0 {
			diff = -diff
		}
		if diff <= window {
			return true
		}
	}
	return false
}

// MatchesPreferredStart exposes the preference window check for ranking
// done by other components with the same semantics.
func MatchesPreferredStart(start time.Time, preferredStarts []string) bool {
	return matchesAny(start, parsePreferredStarts(preferredStarts))
}
