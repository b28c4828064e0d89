package companion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/justQrius/companion-network-sub000/internal/domain"
	"github.com/justQrius/companion-network-sub000/internal/proposal"
	"github.com/justQrius/companion-network-sub000/internal/session"
	"github.com/justQrius/companion-network-sub000/internal/trust"
	dErrors "github.com/justQrius/companion-network-sub000/pkg/domain-errors"
	"github.com/justQrius/companion-network-sub000/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite
	ctx   context.Context
	store *session.InMemoryStore
	svc   *Service
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = session.NewInMemoryStore()

	demo, ok := DemoContext("alice")
	s.Require().True(ok)
	s.Require().NoError(s.store.Put(s.ctx, SessionKey("alice"), session.NewState(demo)))

	// Thursday before the demo calendar's busy Saturday.
	clock := func() time.Time {
		return time.Date(2024, time.December, 5, 9, 0, 0, 0, time.UTC)
	}
	gate := trust.New(nil)
	ledger := proposal.New(s.store, gate, nil, proposal.WithClock(clock))
	s.svc = New("alice", s.store, gate, ledger, nil, WithClock(clock))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) TestCheckAvailabilityValidation() {
	cases := []struct {
		name      string
		timeframe string
		eventType string
		duration  int
		requester string
	}{
		{"empty timeframe", "", "dinner", 120, "bob"},
		{"empty event type", "this weekend", "  ", 120, "bob"},
		{"zero duration", "this weekend", "dinner", 0, "bob"},
		{"negative duration", "this weekend", "dinner", -30, "bob"},
		{"empty requester", "this weekend", "dinner", 120, ""},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.svc.CheckAvailability(s.ctx, tc.timeframe, tc.eventType, tc.duration, tc.requester)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func (s *ServiceSuite) TestCheckAvailabilityUntrustedDenied() {
	_, err := s.svc.CheckAvailability(s.ctx, "this weekend", "dinner", 120, "mallory")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeAccessDenied))
	s.Equal("requester not in trusted contacts", dErrors.MessageOf(err))
}

func (s *ServiceSuite) TestCheckAvailabilityDisclosesPreferencesToBob() {
	result, err := s.svc.CheckAvailability(s.ctx, "this weekend", "dinner", 120, "bob")
	s.Require().NoError(err)

	s.True(result.Available)
	s.NotEmpty(result.Slots)
	s.True(result.AutoAcceptEligible)
	s.Equal([]string{"Italian", "Thai", "Sushi"}, result.Preferences["cuisine"])
	s.Equal([]string{"19:00", "19:30", "20:00"}, result.Preferences["dining_times"])
}

func (s *ServiceSuite) TestCheckAvailabilityCarvesOutBusySlots() {
	// Alice is busy 2024-12-07 14:00-16:00; a dinner-length slot never
	// lands inside that interval.
	result, err := s.svc.CheckAvailability(s.ctx, "2024-12-07", "dinner", 120, "bob")
	s.Require().NoError(err)
	s.Require().True(result.Available)

	busy, err := domain.ParseInterval("2024-12-07T14:00:00/2024-12-07T16:00:00")
	s.Require().NoError(err)
	for _, slot := range result.Slots {
		candidate, err := domain.ParseInterval(slot)
		s.Require().NoError(err)
		s.False(candidate.Overlaps(busy), "slot %s overlaps busy window", slot)
	}
}

func (s *ServiceSuite) TestCheckAvailabilityUnparseableTimeframe() {
	result, err := s.svc.CheckAvailability(s.ctx, "whenever works", "dinner", 120, "bob")
	s.Require().NoError(err)
	s.False(result.Available)
	s.Equal([]string{}, result.Slots)
}

// grantBob widens bob's sharing rules beyond the demo defaults so the
// disclosure paths can be exercised.
func (s *ServiceSuite) grantBob(categories ...domain.SharingCategory) {
	_, err := s.store.Update(s.ctx, SessionKey("alice"), func(state session.State) (session.State, error) {
		rules := make(map[string][]domain.SharingCategory, len(state.Context.SharingRules))
		for contact, cats := range state.Context.SharingRules {
			rules[contact] = cats
		}
		rules["bob"] = categories
		state.Context.SharingRules = rules
		return state, nil
	})
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestShareContextPayloads() {
	s.grantBob(domain.CategoryPreferences, domain.CategoryDietary, domain.CategorySchedule, domain.CategoryInterests)

	cases := []struct {
		category string
		keys     []string
	}{
		{"preferences", []string{"cuisine", "dining_times", "weekend_availability"}},
		{"dietary", []string{"dietary_restrictions", "allergies"}},
		{"schedule", []string{"schedule_patterns"}},
		{"interests", []string{"interests", "hobbies"}},
	}
	for _, tc := range cases {
		s.Run(tc.category, func() {
			result, err := s.svc.ShareContext(s.ctx, tc.category, "planning dinner", "bob")
			s.Require().NoError(err)
			s.Empty(result.AccessDenied)
			s.Require().NotNil(result.ContextData)
			s.Len(result.ContextData, len(tc.keys))
			for _, key := range tc.keys {
				s.Contains(result.ContextData, key)
			}
		})
	}
}

// The demo rules grant bob availability and cuisine only; every
// share_context category comes back as a structured denial, not an error.
func (s *ServiceSuite) TestShareContextCategoryNotGranted() {
	for _, category := range []string{"preferences", "dietary", "schedule", "interests"} {
		s.Run(category, func() {
			result, err := s.svc.ShareContext(s.ctx, category, "planning dinner", "bob")
			s.Require().NoError(err)
			s.Nil(result.ContextData)
			s.Equal("Category '"+category+"' not permitted for sharing with bob", result.AccessDenied)
		})
	}
}

func (s *ServiceSuite) TestShareContextScheduleNeverDisclosesBusySlots() {
	s.grantBob(domain.CategorySchedule)

	result, err := s.svc.ShareContext(s.ctx, "schedule", "planning", "bob")
	s.Require().NoError(err)

	s.Equal([]string{"busy weekday mornings", "free most evenings"}, result.ContextData["schedule_patterns"])
	for _, v := range result.ContextData {
		if slots, ok := v.([]string); ok {
			s.NotContains(slots, "2024-12-07T14:00:00/2024-12-07T16:00:00")
		}
	}
}

func (s *ServiceSuite) TestShareContextUntrustedRequester() {
	_, err := s.svc.ShareContext(s.ctx, "preferences", "curious", "mallory")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeAccessDenied))
}

func (s *ServiceSuite) TestShareContextInvalidCategory() {
	_, err := s.svc.ShareContext(s.ctx, "passwords", "curious", "bob")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestRelayMessageQueuesNotification() {
	result, err := s.svc.RelayMessage(s.ctx, "Running 10 minutes late", "normal", "bob")
	s.Require().NoError(err)
	s.True(result.Delivered)

	messages, err := s.svc.DrainNotifications(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"[normal] bob: Running 10 minutes late"}, messages)
}

func (s *ServiceSuite) TestRelayMessageUntrustedSender() {
	_, err := s.svc.RelayMessage(s.ctx, "hello", "normal", "mallory")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeAccessDenied))

	messages, err := s.svc.DrainNotifications(s.ctx)
	s.Require().NoError(err)
	s.Empty(messages)
}

func (s *ServiceSuite) TestRelayMessageInvalidUrgency() {
	_, err := s.svc.RelayMessage(s.ctx, "hello", "critical", "bob")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestDrainNotificationsClearsQueue() {
	for _, msg := range []string{"first", "second"} {
		_, err := s.svc.RelayMessage(s.ctx, msg, "high", "bob")
		s.Require().NoError(err)
	}

	messages, err := s.svc.DrainNotifications(s.ctx)
	s.Require().NoError(err)
	s.Len(messages, 2)

	messages, err = s.svc.DrainNotifications(s.ctx)
	s.Require().NoError(err)
	s.Empty(messages)
}

func (s *ServiceSuite) TestProposeAndConfirmRoundTrip() {
	result, err := s.svc.ProposeEvent(s.ctx, proposal.Input{
		Title:        "Dinner at Luigi's",
		Time:         "2024-12-08T19:00:00",
		Location:     "Luigi's",
		Participants: []string{"alice", "bob"},
		Proposer:     "bob",
	})
	s.Require().NoError(err)
	s.Equal("pending", result.Status)
	s.NotEmpty(result.EventID)

	confirmed, err := s.svc.ConfirmProposal(s.ctx, result.EventID, "accepted")
	s.Require().NoError(err)
	s.Equal("accepted", confirmed.Status)

	proposals, err := s.svc.Proposals(s.ctx)
	s.Require().NoError(err)
	s.Equal(domain.StatusAccepted, proposals[result.EventID].Status)
}

func TestSeedNeverOverwritesExistingState(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()
	key := SessionKey("alice")

	testutil.Given(t, "a principal with existing state", func(t *testing.T) {
		demo, _ := DemoContext("alice")
		demo.TrustedContacts = []string{"carol"}
		require.NoError(t, store.Put(ctx, key, session.NewState(demo)))
	})

	testutil.When(t, "the demo seed runs", func(t *testing.T) {
		require.NoError(t, Seed(ctx, store, "alice", nil))
	})

	testutil.Then(t, "the existing state is untouched", func(t *testing.T) {
		state, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.Equal(t, []string{"carol"}, state.Context.TrustedContacts)
	})
}

func TestSeedPopulatesEmptyStore(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()

	testutil.When(t, "the demo seed runs against an empty store", func(t *testing.T) {
		require.NoError(t, Seed(ctx, store, "bob", nil))
	})

	testutil.Then(t, "the demo context is persisted", func(t *testing.T) {
		state, err := store.Get(ctx, SessionKey("bob"))
		require.NoError(t, err)
		require.Equal(t, "Bob", state.Context.DisplayName)
	})
}
