package domain

import (
	"time"

	dErrors "github.com/justQrius/companion-network-sub000/pkg/domain-errors"
)

// ProposalStatus tracks an event proposal through its lifecycle.
type ProposalStatus string

const (
	StatusPending  ProposalStatus = "pending"
	StatusAccepted ProposalStatus = "accepted"
	StatusDeclined ProposalStatus = "declined"
	// StatusCounter closes the proposal and starts a new negotiation round;
	// the successor proposal references the countered one.
	StatusCounter ProposalStatus = "counter"
)

// CanTransitionTo enforces the proposal state machine: only pending moves,
// and only to a terminal or counter state.
func (s ProposalStatus) CanTransitionTo(next ProposalStatus) bool {
	if s != StatusPending {
		return false
	}
	switch next {
	case StatusAccepted, StatusDeclined, StatusCounter:
		return true
	default:
		return false
	}
}

// ProposalDetails is the immutable payload of a proposal.
type ProposalDetails struct {
	Title        string   `json:"title"`
	Time         string   `json:"time"`
	Location     string   `json:"location"`
	Participants []string `json:"participants"`
}

// EventProposal is a formal request to book a specific time and location.
// Immutable once created except for Status, which only the recipient's own
// confirmation action may change.
type EventProposal struct {
	EventID   string          `json:"event_id"`
	Proposer  string          `json:"proposer"`
	Recipient string          `json:"recipient"`
	Status    ProposalStatus  `json:"status"`
	CreatedAt string          `json:"timestamp"`
	Details   ProposalDetails `json:"details"`
	// CountersEventID links a follow-up proposal to the one it counters.
	CountersEventID string `json:"counters_event_id,omitempty"`
}

// StartTime parses the proposal's instant window start.
func (p EventProposal) StartTime() (time.Time, error) {
	t, err := ParseInstant(p.Details.Time)
	if err != nil {
		return time.Time{}, dErrors.Wrap(err, dErrors.CodeValidation, "proposal time is not a valid instant")
	}
	return t, nil
}

// Blocks reports whether the proposal participates in conflict scans:
// declined and countered proposals never clash with new ones.
func (p EventProposal) Blocks() bool {
	return p.Status == StatusPending || p.Status == StatusAccepted
}
