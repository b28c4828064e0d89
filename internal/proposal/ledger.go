// Package proposal keeps the per-principal proposal ledger: creation with
// conflict detection, and owner-side status transitions. All writes run
// inside one session.Store.Update so two proposals racing for the same
// evening cannot both land.
package proposal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/justQrius/companion-network-sub000/internal/domain"
	"github.com/justQrius/companion-network-sub000/internal/platform/metrics"
	"github.com/justQrius/companion-network-sub000/internal/session"
	"github.com/justQrius/companion-network-sub000/internal/trust"
	dErrors "github.com/justQrius/companion-network-sub000/pkg/domain-errors"
)

// conflictWindow is how close two proposal starts may be before they are
// treated as the same timeslot. Two hours covers a dinner either side.
const conflictWindow = 2 * time.Hour

// Input is a propose request after transport decoding. Counters, when
// set, is the event ID of the proposal this one counters; the countered
// proposal lives on the proposer's side, so the ID is recorded as an
// opaque link rather than resolved locally.
type Input struct {
	Title        string
	Time         string
	Location     string
	Participants []string
	Proposer     string
	Counters     string
}

// Result is the wire outcome of a propose or confirm call.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	EventID string `json:"event_id,omitempty"`
}

// Ledger owns proposal creation and confirmation for one principal's
// state.
type Ledger struct {
	store   session.Store
	gate    *trust.Gate
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger used for decision logging.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New constructs a ledger over the given store and trust gate.
func New(store session.Store, gate *trust.Gate, m *metrics.Metrics, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		gate:    gate,
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Propose validates the input, checks trust, scans the owner's blocking
// proposals for a start within the conflict window, and on a clear slot
// records a pending proposal and queues a notification for the owner.
// A conflict yields a declined Result with no record written; it is not an
// error.
func (l *Ledger) Propose(ctx context.Context, key session.Key, in Input) (Result, error) {
	if strings.TrimSpace(in.Title) == "" {
		return Result{}, dErrors.New(dErrors.CodeValidation, "event_name must be a non-empty string")
	}
	if strings.TrimSpace(in.Proposer) == "" {
		return Result{}, dErrors.New(dErrors.CodeValidation, "requester must be a non-empty string")
	}
	if len(in.Participants) == 0 {
		return Result{}, dErrors.New(dErrors.CodeValidation, "participants must be a non-empty list of user IDs")
	}
	start, err := domain.ParseInstant(in.Time)
	if err != nil {
		return Result{}, dErrors.New(dErrors.CodeValidation, "datetime must be a valid ISO 8601 formatted string")
	}

	var result Result
	_, err = l.store.Update(ctx, key, func(state session.State) (session.State, error) {
		owner := state.Context
		if d := l.gate.AuthorizeContact(owner, in.Proposer); !d.Allowed {
			return state, dErrors.New(dErrors.CodeAccessDenied, "requester not in trusted contacts")
		}

		if clash, ok := findConflict(state.Proposals, start); ok {
			result = Result{
				Status: string(domain.StatusDeclined),
				Message: fmt.Sprintf("%s already has an event scheduled at %s. Please propose a different time.",
					owner.DisplayName, clash.Details.Time),
			}
			return state, nil
		}

		now := l.now()
		eventID := fmt.Sprintf("evt_%s_%s_%s", now.Format("20060102150405"), in.Proposer, owner.ID)
		p := domain.EventProposal{
			EventID:   eventID,
			Proposer:  in.Proposer,
			Recipient: owner.ID,
			Status:    domain.StatusPending,
			CreatedAt: domain.FormatInstant(now),
			Details: domain.ProposalDetails{
				Title:        in.Title,
				Time:         domain.FormatInstant(start),
				Location:     in.Location,
				Participants: in.Participants,
			},
			CountersEventID: in.Counters,
		}
		state.Proposals[eventID] = p

		location := in.Location
		if location == "" {
			location = "TBD"
		}
		notice := fmt.Sprintf("%s has proposed %s on %s at %s",
			in.Proposer, in.Title, start.Format("2006-01-02 at 15:04"), location)
		state.PendingMessages = append(state.PendingMessages, notice)

		result = Result{
			Status:  string(domain.StatusPending),
			Message: fmt.Sprintf("Event '%s' has been proposed and is awaiting %s's review.", in.Title, owner.DisplayName),
			EventID: eventID,
		}
		return state, nil
	})
	if err != nil {
		return Result{}, err
	}

	if l.metrics != nil {
		l.metrics.ProposalsDecided.WithLabelValues(result.Status).Inc()
	}
	if l.logger != nil {
		l.logger.Info("proposal decided",
			"proposer", in.Proposer,
			"status", result.Status,
			"event_id", result.EventID,
		)
	}
	return result, nil
}

// Confirm applies the owner's decision to a pending proposal. Only
// pending proposals move, and only to accepted, declined, or counter.
// A counter closes the proposal; the follow-up the owner sends back is a
// fresh proposal on the peer's side referencing this one.
func (l *Ledger) Confirm(ctx context.Context, key session.Key, eventID string, next domain.ProposalStatus) (Result, error) {
	switch next {
	case domain.StatusAccepted, domain.StatusDeclined, domain.StatusCounter:
	default:
		return Result{}, dErrors.Newf(dErrors.CodeValidation, "invalid target status %q", next)
	}

	var result Result
	_, err := l.store.Update(ctx, key, func(state session.State) (session.State, error) {
		p, ok := state.Proposals[eventID]
		if !ok {
			return state, dErrors.Newf(dErrors.CodeNotFound, "no proposal %s", eventID)
		}
		if !p.Status.CanTransitionTo(next) {
			return state, dErrors.Newf(dErrors.CodeConflict, "proposal %s is %s and cannot move to %s", eventID, p.Status, next)
		}
		p.Status = next
		state.Proposals[eventID] = p
		result = Result{
			Status:  string(next),
			Message: fmt.Sprintf("Event '%s' is now %s.", p.Details.Title, next),
			EventID: eventID,
		}
		return state, nil
	})
	if err != nil {
		return Result{}, err
	}

	if l.metrics != nil {
		l.metrics.ProposalsDecided.WithLabelValues(result.Status).Inc()
	}
	return result, nil
}

// findConflict returns the first blocking proposal whose start is within
// the conflict window of the candidate start. Proposals with unparseable
// times are skipped rather than treated as conflicts.
func findConflict(proposals map[string]domain.EventProposal, start time.Time) (domain.EventProposal, bool) {
	for _, p := range proposals {
		if !p.Blocks() {
			continue
		}
		existing, err := p.StartTime()
		if err != nil {
			continue
		}
		diff := start.Sub(existing)
		if diff < 0 {
			diff = -diff
		}
		if diff < conflictWindow {
			return p, true
		}
	}
	return domain.EventProposal{}, false
}
