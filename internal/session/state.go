// Package session owns per-principal persistent state: one record per
// (app, principal, session) holding a serialized state blob. All mutation
// goes through Store.Update so "read state, check, write state" is atomic
// per principal.
package session

import (
	"encoding/json"
	"strings"

	"github.com/justQrius/companion-network-sub000/internal/domain"
)

// Persisted blob keys. The layout matches what existing consumers of the
// state rows expect: proposals are individually keyed, audit events live
// under an app-scoped key.
const (
	keyUserContext     = "user_context"
	keyPendingMessages = "pending_messages"
	keyAuditEvents     = "app:a2a_events"
	proposalKeyPrefix  = "event_proposal:"
)

// Key identifies one principal's state record.
type Key struct {
	App       string
	Principal string
	Session   string
}

// State is the typed view of a principal's state blob.
type State struct {
	Context         domain.PrincipalContext
	Proposals       map[string]domain.EventProposal
	PendingMessages []string
	AuditEvents     []domain.AuditEvent
}

// NewState builds a state blob around a principal context.
func NewState(ctx domain.PrincipalContext) State {
	return State{
		Context:   ctx,
		Proposals: make(map[string]domain.EventProposal),
	}
}

// Clone deep-copies the mutable collections so Update mutators never alias
// store-held memory.
func (s State) Clone() State {
	out := s
	out.Proposals = make(map[string]domain.EventProposal, len(s.Proposals))
	for k, v := range s.Proposals {
		out.Proposals[k] = v
	}
	out.PendingMessages = append([]string(nil), s.PendingMessages...)
	out.AuditEvents = append([]domain.AuditEvent(nil), s.AuditEvents...)
	return out
}

// MarshalJSON renders the persisted layout: a flat object with the
// user context, individually keyed proposals, the pending message queue,
// and the audit event list.
func (s State) MarshalJSON() ([]byte, error) {
	blob := make(map[string]any, len(s.Proposals)+3)
	blob[keyUserContext] = s.Context
	for id, p := range s.Proposals {
		blob[proposalKeyPrefix+id] = p
	}
	if s.PendingMessages != nil {
		blob[keyPendingMessages] = s.PendingMessages
	}
	if s.AuditEvents != nil {
		blob[keyAuditEvents] = s.AuditEvents
	}
	return json.Marshal(blob)
}

// UnmarshalJSON reverses MarshalJSON, collecting prefixed proposal keys.
func (s *State) UnmarshalJSON(data []byte) error {
	var blob map[string]json.RawMessage
	if err := json.Unmarshal(data, &blob); err != nil {
		return err
	}
	out := State{Proposals: make(map[string]domain.EventProposal)}
	for key, raw := range blob {
		switch {
		case key == keyUserContext:
			if err := json.Unmarshal(raw, &out.Context); err != nil {
				return err
			}
		case key == keyPendingMessages:
			if err := json.Unmarshal(raw, &out.PendingMessages); err != nil {
				return err
			}
		case key == keyAuditEvents:
			if err := json.Unmarshal(raw, &out.AuditEvents); err != nil {
				return err
			}
		case strings.HasPrefix(key, proposalKeyPrefix):
			var p domain.EventProposal
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
			out.Proposals[strings.TrimPrefix(key, proposalKeyPrefix)] = p
		}
	}
	*s = out
	return nil
}
