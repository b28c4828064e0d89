// Package companion is the principal-facing service layer: one parameterized
// service per process, serving the four remote-facing operations plus the
// owner-side actions (confirm, drain notifications). Which principal the
// process represents is configuration, never code.
package companion

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/justQrius/companion-network-sub000/internal/availability"
	"github.com/justQrius/companion-network-sub000/internal/domain"
	"github.com/justQrius/companion-network-sub000/internal/platform/metrics"
	"github.com/justQrius/companion-network-sub000/internal/proposal"
	"github.com/justQrius/companion-network-sub000/internal/session"
	"github.com/justQrius/companion-network-sub000/internal/timeframe"
	"github.com/justQrius/companion-network-sub000/internal/trust"
	dErrors "github.com/justQrius/companion-network-sub000/pkg/domain-errors"
)

// AppName scopes all session records written by companion processes.
const AppName = "companion_network"

// SessionKey is the canonical state key for a principal.
func SessionKey(principalID string) session.Key {
	return session.Key{
		App:       AppName,
		Principal: principalID,
		Session:   principalID + "_session",
	}
}

// AvailabilityResult is the wire shape of a check_availability response.
type AvailabilityResult struct {
	Available          bool           `json:"available"`
	Slots              []string       `json:"slots"`
	Preferences        map[string]any `json:"preferences"`
	AutoAcceptEligible bool           `json:"auto_accept_eligible"`
}

// ContextResult is the wire shape of a share_context response. Exactly one
// of ContextData and AccessDenied is set.
type ContextResult struct {
	ContextData  map[string]any `json:"context_data,omitempty"`
	AccessDenied string         `json:"access_denied,omitempty"`
}

// RelayResult is the wire shape of a relay_message response.
type RelayResult struct {
	Delivered bool `json:"delivered"`
}

// Service serves one principal's remote-facing operations. Every
// cross-party entry point runs the trust gate before anything else.
type Service struct {
	key     session.Key
	store   session.Store
	gate    *trust.Gate
	ledger  *proposal.Ledger
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs the service for one principal.
func New(principalID string, store session.Store, gate *trust.Gate, ledger *proposal.Ledger, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{
		key:     SessionKey(principalID),
		store:   store,
		gate:    gate,
		ledger:  ledger,
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the principal's session key.
func (s *Service) Key() session.Key {
	return s.key
}

// CheckAvailability computes the principal's free slots for the timeframe
// and, when the caller's sharing rules allow, discloses scheduling
// preferences alongside. An unparseable timeframe is answered as "not
// available", never as an error, so it can cross the RPC boundary.
func (s *Service) CheckAvailability(ctx context.Context, timeframeExpr, eventType string, durationMinutes int, requester string) (AvailabilityResult, error) {
	if strings.TrimSpace(timeframeExpr) == "" {
		return AvailabilityResult{}, dErrors.New(dErrors.CodeValidation, "timeframe must be a non-empty string")
	}
	if strings.TrimSpace(eventType) == "" {
		return AvailabilityResult{}, dErrors.New(dErrors.CodeValidation, "event_type must be a non-empty string")
	}
	if durationMinutes <= 0 {
		return AvailabilityResult{}, dErrors.New(dErrors.CodeValidation, "duration_minutes must be a positive integer")
	}
	if strings.TrimSpace(requester) == "" {
		return AvailabilityResult{}, dErrors.New(dErrors.CodeValidation, "requester must be a non-empty string")
	}

	state, err := s.store.Get(ctx, s.key)
	if err != nil {
		return AvailabilityResult{}, dErrors.Wrap(err, dErrors.CodeStorage, "load principal state")
	}
	owner := state.Context

	if d := s.gate.AuthorizeContact(owner, requester); !d.Allowed {
		s.countDecision(false)
		return AvailabilityResult{}, dErrors.New(dErrors.CodeAccessDenied, "requester not in trusted contacts")
	}
	s.countDecision(true)

	slots := s.freeSlots(owner, timeframeExpr, durationMinutes)

	allowed := owner.SharingRules[requester]
	result := AvailabilityResult{
		Available:          len(slots) > 0,
		Slots:              slots,
		Preferences:        map[string]any{},
		AutoAcceptEligible: containsCategory(allowed, domain.CategoryAvailability),
	}
	if containsCategory(allowed, domain.CategoryAvailability) || containsCategory(allowed, domain.CategoryCuisine) {
		if len(owner.Preferences.Cuisine) > 0 {
			result.Preferences["cuisine"] = owner.Preferences.Cuisine
		}
		if len(owner.Preferences.DiningTimes) > 0 {
			result.Preferences["dining_times"] = owner.Preferences.DiningTimes
		}
	}
	return result, nil
}

// freeSlots resolves the timeframe against the current clock and computes
// candidate slots from the owner's busy calendar and dining-time
// preferences.
func (s *Service) freeSlots(owner domain.PrincipalContext, timeframeExpr string, durationMinutes int) []string {
	window, err := timeframe.Resolve(timeframeExpr, s.now())
	if err != nil {
		if s.logger != nil {
			s.logger.Info("timeframe not resolvable", "timeframe", timeframeExpr)
		}
		return []string{}
	}

	slots := availability.FreeSlots(availability.Request{
		Timeframe:       window,
		Busy:            owner.BusyIntervals(),
		Duration:        time.Duration(durationMinutes) * time.Minute,
		PreferredStarts: owner.Preferences.DiningTimes,
		MaxSlots:        availability.DefaultMaxSlots,
	})

	out := make([]string, 0, len(slots))
	for _, slot := range slots {
		out = append(out, slot.Interval.String())
	}
	return out
}

// LocalAvailability is the owner-side variant used by the coordinator: the
// principal consulting its own calendar, so no trust gate applies.
func (s *Service) LocalAvailability(ctx context.Context, timeframeExpr string, durationMinutes int) ([]string, domain.Preferences, error) {
	state, err := s.store.Get(ctx, s.key)
	if err != nil {
		return nil, domain.Preferences{}, dErrors.Wrap(err, dErrors.CodeStorage, "load principal state")
	}
	return s.freeSlots(state.Context, timeframeExpr, durationMinutes), state.Context.Preferences, nil
}

// ProposeEvent records a formal event proposal against this principal.
func (s *Service) ProposeEvent(ctx context.Context, in proposal.Input) (proposal.Result, error) {
	return s.ledger.Propose(ctx, s.key, in)
}

// ConfirmProposal applies the owner's decision to a pending proposal.
func (s *Service) ConfirmProposal(ctx context.Context, eventID, status string) (proposal.Result, error) {
	return s.ledger.Confirm(ctx, s.key, eventID, domain.ProposalStatus(status))
}

// ShareContext discloses one category of the principal's context to a
// trusted caller. A trusted caller without the category gets a structured
// access_denied payload, not an error; an untrusted caller gets a hard
// denial that reveals nothing about what data exists. The purpose string
// is logged, never evaluated.
func (s *Service) ShareContext(ctx context.Context, category, purpose, requester string) (ContextResult, error) {
	if strings.TrimSpace(requester) == "" {
		return ContextResult{}, dErrors.New(dErrors.CodeValidation, "requester must be a non-empty string")
	}
	cat, err := domain.ParseSharingCategory(category)
	if err != nil {
		return ContextResult{}, err
	}
	switch cat {
	case domain.CategoryPreferences, domain.CategoryDietary, domain.CategorySchedule, domain.CategoryInterests:
	default:
		return ContextResult{}, dErrors.Newf(dErrors.CodeValidation, "category %q cannot be shared", category)
	}

	state, err := s.store.Get(ctx, s.key)
	if err != nil {
		return ContextResult{}, dErrors.Wrap(err, dErrors.CodeStorage, "load principal state")
	}
	owner := state.Context

	decision := s.gate.Authorize(owner, requester, cat)
	s.countDecision(decision.Allowed)
	if !decision.Allowed {
		if decision.Reason == trust.ReasonNotTrusted {
			return ContextResult{}, dErrors.New(dErrors.CodeAccessDenied, "requester not in trusted contacts")
		}
		return ContextResult{
			AccessDenied: "Category '" + category + "' not permitted for sharing with " + requester,
		}, nil
	}

	if s.logger != nil {
		s.logger.Info("context shared",
			"category", category,
			"requester", requester,
			"purpose", purpose,
		)
	}
	return ContextResult{ContextData: contextPayload(owner.Preferences, cat)}, nil
}

// contextPayload builds the per-category disclosure. The schedule category
// discloses recurring patterns only; raw busy slots never leave the
// process.
func contextPayload(prefs domain.Preferences, cat domain.SharingCategory) map[string]any {
	data := map[string]any{}
	switch cat {
	case domain.CategoryPreferences:
		data["cuisine"] = prefs.Cuisine
		data["dining_times"] = prefs.DiningTimes
		data["weekend_availability"] = prefs.WeekendAvailability
	case domain.CategoryDietary:
		data["dietary_restrictions"] = prefs.DietaryRestrictions
		data["allergies"] = prefs.Allergies
	case domain.CategorySchedule:
		data["schedule_patterns"] = prefs.SchedulePatterns
	case domain.CategoryInterests:
		data["interests"] = prefs.Interests
		data["hobbies"] = prefs.Hobbies
	}
	return data
}

// RelayMessage queues "[urgency] sender: message" on the principal's
// pending notifications. A storage failure is a delivery failure, not an
// error: the caller gets delivered: false.
func (s *Service) RelayMessage(ctx context.Context, message, urgency, sender string) (RelayResult, error) {
	if strings.TrimSpace(sender) == "" {
		return RelayResult{}, dErrors.New(dErrors.CodeValidation, "sender must be a non-empty string")
	}
	if strings.TrimSpace(message) == "" {
		return RelayResult{}, dErrors.New(dErrors.CodeValidation, "message must be a non-empty string")
	}
	u, err := domain.ParseUrgency(urgency)
	if err != nil {
		return RelayResult{}, err
	}

	_, err = s.store.Update(ctx, s.key, func(state session.State) (session.State, error) {
		if d := s.gate.AuthorizeContact(state.Context, sender); !d.Allowed {
			return state, dErrors.New(dErrors.CodeAccessDenied, "sender not in trusted contacts")
		}
		state.PendingMessages = append(state.PendingMessages, "["+u.String()+"] "+sender+": "+message)
		return state, nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeAccessDenied) {
			s.countDecision(false)
			return RelayResult{}, err
		}
		if s.logger != nil {
			s.logger.Warn("relay delivery failed", "sender", sender, "error", err)
		}
		return RelayResult{Delivered: false}, nil
	}

	s.countDecision(true)
	if s.metrics != nil {
		s.metrics.MessagesRelayed.Inc()
	}
	return RelayResult{Delivered: true}, nil
}

// DrainNotifications returns and clears the pending notification queue.
// The conversational layer calls this at the start of each owner
// interaction.
func (s *Service) DrainNotifications(ctx context.Context) ([]string, error) {
	var drained []string
	_, err := s.store.Update(ctx, s.key, func(state session.State) (session.State, error) {
		drained = state.PendingMessages
		state.PendingMessages = nil
		return state, nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "drain notifications")
	}
	return drained, nil
}

// Proposals lists the principal's proposals, most useful to the owner UI.
func (s *Service) Proposals(ctx context.Context) (map[string]domain.EventProposal, error) {
	state, err := s.store.Get(ctx, s.key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "load principal state")
	}
	return state.Proposals, nil
}

func (s *Service) countDecision(allowed bool) {
	if s.metrics == nil {
		return
	}
	label := "denied"
	if allowed {
		label = "allowed"
	}
	s.metrics.AuthorizeDecided.WithLabelValues(label).Inc()
}

func containsCategory(categories []domain.SharingCategory, want domain.SharingCategory) bool {
	for _, c := range categories {
		if c == want {
			return true
		}
	}
	return false
}
