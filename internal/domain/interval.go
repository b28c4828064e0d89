package domain

import (
	"fmt"
	"strings"
	"time"

	dErrors "github.com/justQrius/companion-network-sub000/pkg/domain-errors"
)

// instantLayout is the wire format for instants. Instants are local,
// timezone-naive wall-clock values; multi-timezone arithmetic is out of
// scope.
const instantLayout = "2006-01-02T15:04:05"

// Interval is a half-open time range [Start, End). The wire format
// "start/end" does not encode the open bound; the convention is preserved
// for compatibility with existing consumers.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds an interval without validation; use IsValid to check
// ordering.
func NewInterval(start, end time.Time) Interval {
	return Interval{Start: start, End: end}
}

// IsValid reports strict ordering, i.e. a non-empty interval.
func (iv Interval) IsValid() bool {
	return iv.Start.Before(iv.End)
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether two half-open intervals share any instant.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Intersect returns the overlap of two intervals. The second return value
// is false when the overlap is empty.
func (iv Interval) Intersect(other Interval) (Interval, bool) {
	start := iv.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := iv.End
	if other.End.Before(end) {
		end = other.End
	}
	if !start.Before(end) {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// String renders the wire format, e.g.
// "2024-12-07T19:00:00/2024-12-07T21:00:00".
func (iv Interval) String() string {
	return fmt.Sprintf("%s/%s", iv.Start.Format(instantLayout), iv.End.Format(instantLayout))
}

// ParseInstant parses a single wire instant. RFC 3339 values are accepted
// and flattened to wall-clock time.
func ParseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(instantLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, dErrors.Newf(dErrors.CodeValidation, "invalid instant %q", s)
}

// FormatInstant renders t in the wire instant layout.
func FormatInstant(t time.Time) string {
	return t.Format(instantLayout)
}

// ParseInterval parses the "start/end" wire format.
func ParseInterval(s string) (Interval, error) {
	startRaw, endRaw, ok := strings.Cut(s, "/")
	if !ok {
		return Interval{}, dErrors.Newf(dErrors.CodeValidation, "invalid interval %q: missing separator", s)
	}
	start, err := ParseInstant(startRaw)
	if err != nil {
		return Interval{}, dErrors.Newf(dErrors.CodeValidation, "invalid interval start %q", startRaw)
	}
	end, err := ParseInstant(endRaw)
	if err != nil {
		return Interval{}, dErrors.Newf(dErrors.CodeValidation, "invalid interval end %q", endRaw)
	}
	return Interval{Start: start, End: end}, nil
}

// ParseIntervals parses a list of wire intervals, skipping malformed
// entries the way the wire consumers expect: a bad busy slot must not take
// scheduling down.
func ParseIntervals(raw []string) []Interval {
	out := make([]Interval, 0, len(raw))
	for _, s := range raw {
		iv, err := ParseInterval(s)
		if err != nil {
			continue
		}
		out = append(out, iv)
	}
	return out
}

// FormatIntervals renders intervals in wire format.
func FormatIntervals(ivs []Interval) []string {
	out := make([]string, 0, len(ivs))
	for _, iv := range ivs {
		out = append(out, iv.String())
	}
	return out
}
