package session

import (
	"context"
	"sync"

	"github.com/justQrius/companion-network-sub000/pkg/platform/sentinel"
)

// InMemoryStore keeps the dev/demo implementation lightweight and
// testable. It intentionally favors clarity over performance.
type InMemoryStore struct {
	mu     sync.RWMutex
	states map[Key]State

	// keyMu serializes Update per key so read-mutate-write cycles against
	// the same principal never interleave.
	keyMuMu sync.Mutex
	keyMu   map[Key]*sync.Mutex
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		states: make(map[Key]State),
		keyMu:  make(map[Key]*sync.Mutex),
	}
}

func (s *InMemoryStore) Get(_ context.Context, key Key) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.states[key]; ok {
		return state.Clone(), nil
	}
	return State{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) Put(_ context.Context, key Key, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[key] = state.Clone()
	return nil
}

func (s *InMemoryStore) Update(ctx context.Context, key Key, fn Mutator) (State, error) {
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.Get(ctx, key)
	if err != nil {
		return State{}, err
	}
	next, err := fn(current)
	if err != nil {
		return State{}, err
	}
	if err := s.Put(ctx, key, next); err != nil {
		return State{}, err
	}
	return next, nil
}

func (s *InMemoryStore) lockFor(key Key) *sync.Mutex {
	s.keyMuMu.Lock()
	defer s.keyMuMu.Unlock()
	if lock, ok := s.keyMu[key]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.keyMu[key] = lock
	return lock
}
