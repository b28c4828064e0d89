package audit

import (
	"context"
	"sync"

	"github.com/justQrius/companion-network-sub000/internal/domain"
	"github.com/justQrius/companion-network-sub000/internal/session"
)

// MemoryStore keeps audit events in process memory. Used in tests and
// when the process runs without a session store.
type MemoryStore struct {
	mu     sync.RWMutex
	events []domain.AuditEvent
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, event domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AuditEvent(nil), s.events...), nil
}

// SessionStore persists audit events inside the owning principal's state
// blob, alongside the proposals the events describe.
type SessionStore struct {
	store session.Store
	key   session.Key
}

// NewSessionStore constructs a session-state-backed audit store for one
// principal.
func NewSessionStore(store session.Store, key session.Key) *SessionStore {
	return &SessionStore{store: store, key: key}
}

func (s *SessionStore) Append(ctx context.Context, event domain.AuditEvent) error {
	_, err := s.store.Update(ctx, s.key, func(state session.State) (session.State, error) {
		state.AuditEvents = append(state.AuditEvents, event)
		return state, nil
	})
	return err
}

func (s *SessionStore) List(ctx context.Context) ([]domain.AuditEvent, error) {
	state, err := s.store.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	return state.AuditEvents, nil
}
