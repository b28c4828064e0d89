package companion

import (
	"context"
	"errors"
	"log/slog"

	"github.com/justQrius/companion-network-sub000/internal/domain"
	"github.com/justQrius/companion-network-sub000/internal/session"
	"github.com/justQrius/companion-network-sub000/pkg/platform/sentinel"
)

// DemoContext returns the demo principal context for the given id, or
// false when no demo data exists for it. Alice and Bob carry complementary
// busy calendars so the overlap flow has something to find.
func DemoContext(principalID string) (domain.PrincipalContext, bool) {
	switch principalID {
	case "alice":
		return domain.PrincipalContext{
			ID:          "alice",
			DisplayName: "Alice",
			Preferences: domain.Preferences{
				Cuisine:             []string{"Italian", "Thai", "Sushi"},
				DiningTimes:         []string{"19:00", "19:30", "20:00"},
				WeekendAvailability: "high",
				DietaryRestrictions: []string{"vegetarian"},
				SchedulePatterns:    []string{"busy weekday mornings", "free most evenings"},
				Interests:           []string{"cooking", "hiking"},
				Hobbies:             []string{"photography"},
			},
			Schedule: domain.Schedule{
				BusySlots: []string{"2024-12-07T14:00:00/2024-12-07T16:00:00"},
			},
			TrustedContacts: []string{"bob"},
			SharingRules: map[string][]domain.SharingCategory{
				"bob": {domain.CategoryAvailability, domain.CategoryCuisine},
			},
		}, true
	case "bob":
		return domain.PrincipalContext{
			ID:          "bob",
			DisplayName: "Bob",
			Preferences: domain.Preferences{
				Cuisine:             []string{"Italian", "Mexican"},
				DiningTimes:         []string{"18:30", "19:00"},
				WeekendAvailability: "high",
				Allergies:           []string{"peanuts"},
				SchedulePatterns:    []string{"gym before work", "free weekends"},
				Interests:           []string{"cycling"},
				Hobbies:             []string{"board games"},
			},
			Schedule: domain.Schedule{
				BusySlots: []string{"2024-12-07T10:00:00/2024-12-07T12:00:00"},
			},
			TrustedContacts: []string{"alice"},
			SharingRules: map[string][]domain.SharingCategory{
				"alice": {domain.CategoryAvailability, domain.CategoryCuisine},
			},
		}, true
	default:
		return domain.PrincipalContext{}, false
	}
}

// Seed writes the principal's demo context into the store unless a state
// record already exists. Existing state always wins; seeding never
// overwrites.
func Seed(ctx context.Context, store session.Store, principalID string, logger *slog.Logger) error {
	demo, ok := DemoContext(principalID)
	if !ok {
		return nil
	}

	key := SessionKey(principalID)
	if _, err := store.Get(ctx, key); err == nil {
		return nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return err
	}

	if err := store.Put(ctx, key, session.NewState(demo)); err != nil {
		return err
	}
	if logger != nil {
		logger.Info("seeded demo context", "principal", principalID)
	}
	return nil
}
