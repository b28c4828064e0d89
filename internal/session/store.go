package session

import "context"

// Mutator transforms a state snapshot inside Store.Update. Returning an
// error aborts the update without writing.
type Mutator func(State) (State, error)

// Store is interface-driven to keep the domain logic testable and to allow
// swapping in-memory, Postgres, or Redis persistence without rewiring
// business code.
//
// Update must execute the read-mutate-write cycle atomically per key:
// concurrent updates against the same principal serialize, so conflict
// scans never race under read-modify-write. Cross-principal updates need
// no shared lock since each principal only mutates its own state.
type Store interface {
	Get(ctx context.Context, key Key) (State, error)
	Put(ctx context.Context, key Key, state State) error
	Update(ctx context.Context, key Key, fn Mutator) (State, error)
}
