// Package timeframe turns loose timeframe expressions ("this weekend",
// "tomorrow", a bare date, or an explicit start/end range) into concrete
// half-open instant ranges.
package timeframe

import (
	"errors"
	"strings"
	"time"

	"github.com/justQrius/companion-network-sub000/internal/domain"
	dErrors "github.com/justQrius/companion-network-sub000/pkg/domain-errors"
)

// ErrUnparseable is the sentinel under every resolution failure. Callers
// at the RPC boundary treat it as "no availability", never as a propagated
// exception.
var ErrUnparseable = errors.New("unparseable timeframe")

// IsUnparseable reports whether err came from a failed resolution.
func IsUnparseable(err error) bool {
	return errors.Is(err, ErrUnparseable)
}

// Resolve parses a timeframe expression relative to a reference instant.
// A zero reference defaults to the current instant truncated to day start.
func Resolve(expr string, reference time.Time) (domain.Interval, error) {
	if reference.IsZero() {
		reference = time.Now()
	}
	ref := dayStart(reference)

	// Explicit instant ranges parse verbatim.
	if strings.Contains(expr, "/") && strings.Contains(expr, "T") {
		if iv, err := domain.ParseInterval(expr); err == nil {
			return iv, nil
		}
	}

	switch strings.ToLower(strings.TrimSpace(expr)) {
	case "this weekend":
		return thisWeekend(ref), nil
	case "next week":
		return nextWeek(ref), nil
	case "tomorrow":
		return fullDay(ref.AddDate(0, 0, 1)), nil
	}

	// A bare calendar date covers that full day.
	if t, err := time.Parse("2006-01-02", strings.TrimSpace(expr)); err == nil {
		return fullDay(t), nil
	}

	return domain.Interval{}, dErrors.Wrap(ErrUnparseable, dErrors.CodeValidation, "unable to parse timeframe: "+expr)
}

// thisWeekend resolves to Saturday 00:00 through Sunday 23:59:59. A
// reference that is already Saturday advances a full week to the next
// occurrence, never zero days.
func thisWeekend(ref time.Time) domain.Interval {
	daysUntilSaturday := (int(time.Saturday) - int(ref.Weekday()) + 7) % 7
	if daysUntilSaturday == 0 {
		daysUntilSaturday = 7
	}
	saturday := dayStart(ref.AddDate(0, 0, daysUntilSaturday))
	sunday := saturday.AddDate(0, 0, 1)
	return domain.NewInterval(saturday, dayEnd(sunday))
}

// nextWeek resolves to the following Monday 00:00 through the Sunday after,
// inclusive.
func nextWeek(ref time.Time) domain.Interval {
	daysUntilMonday := (int(time.Monday) - int(ref.Weekday()) + 7) % 7
	if daysUntilMonday == 0 {
		daysUntilMonday = 7
	}
	monday := dayStart(ref.AddDate(0, 0, daysUntilMonday))
	sunday := monday.AddDate(0, 0, 6)
	return domain.NewInterval(monday, dayEnd(sunday))
}

func fullDay(t time.Time) domain.Interval {
	return domain.NewInterval(dayStart(t), dayEnd(t))
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dayEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
