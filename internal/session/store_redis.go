package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/justQrius/companion-network-sub000/pkg/platform/sentinel"
)

const updateRetries = 100

// RedisStore keeps state blobs in Redis, one key per session. Update
// runs under WATCH so concurrent mutations of the same principal retry
// instead of clobbering each other.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(key Key) string {
	return fmt.Sprintf("companion:session:%s:%s:%s", key.App, key.Principal, key.Session)
}

func (s *RedisStore) Get(ctx context.Context, key Key) (State, error) {
	raw, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, sentinel.ErrNotFound
	}
	if err != nil {
		return State{}, fmt.Errorf("get session state: %w", err)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, fmt.Errorf("decode session state: %w", err)
	}
	return state, nil
}

func (s *RedisStore) Put(ctx context.Context, key Key, state State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(key), raw, 0).Err(); err != nil {
		return fmt.Errorf("put session state: %w", err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, key Key, fn Mutator) (State, error) {
	k := redisKey(key)

	var result State
	apply := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get session state: %w", err)
		}

		var current State
		if err := json.Unmarshal(raw, &current); err != nil {
			return fmt.Errorf("decode session state: %w", err)
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode session state: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, encoded, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = next
		return nil
	}

	for i := 0; i < updateRetries; i++ {
		err := s.client.Watch(ctx, apply, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return State{}, err
		}
		return result, nil
	}
	return State{}, fmt.Errorf("update session state: too much contention on %s", k)
}
