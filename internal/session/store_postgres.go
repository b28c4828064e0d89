package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/justQrius/companion-network-sub000/pkg/platform/sentinel"
)

// PostgresStore persists state blobs in PostgreSQL, one row per
// (app, principal, session). Update uses SELECT ... FOR UPDATE so the
// read-mutate-write cycle is atomic per principal even across processes.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed store from an open handle
// (pgx stdlib driver).
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens a pgx stdlib connection and verifies it.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// EnsureSchema creates the sessions table if needed. Idempotent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS companion_sessions (
			app_name     TEXT NOT NULL,
			principal_id TEXT NOT NULL,
			session_id   TEXT NOT NULL,
			state        JSONB NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (app_name, principal_id, session_id)
		)`)
	if err != nil {
		return fmt.Errorf("ensure sessions schema: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Get(ctx context.Context, key Key) (State, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT state FROM companion_sessions
		WHERE app_name = $1 AND principal_id = $2 AND session_id = $3`,
		key.App, key.Principal, key.Session,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
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

func (s *PostgresStore) Put(ctx context.Context, key Key, state State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO companion_sessions (app_name, principal_id, session_id, state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (app_name, principal_id, session_id)
		DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		key.App, key.Principal, key.Session, raw,
	)
	if err != nil {
		return fmt.Errorf("put session state: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, key Key, fn Mutator) (State, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return State{}, fmt.Errorf("begin session update: %w", err)
	}
	defer tx.Rollback()

	var raw []byte
	err = tx.QueryRowContext(ctx, `
		SELECT state FROM companion_sessions
		WHERE app_name = $1 AND principal_id = $2 AND session_id = $3
		FOR UPDATE`,
		key.App, key.Principal, key.Session,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, sentinel.ErrNotFound
	}
	if err != nil {
		return State{}, fmt.Errorf("lock session state: %w", err)
	}

	var current State
	if err := json.Unmarshal(raw, &current); err != nil {
		return State{}, fmt.Errorf("decode session state: %w", err)
	}

	next, err := fn(current)
	if err != nil {
		return State{}, err
	}

	encoded, err := json.Marshal(next)
	if err != nil {
		return State{}, fmt.Errorf("encode session state: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE companion_sessions
		SET state = $4, updated_at = now()
		WHERE app_name = $1 AND principal_id = $2 AND session_id = $3`,
		key.App, key.Principal, key.Session, encoded,
	); err != nil {
		return State{}, fmt.Errorf("write session state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return State{}, fmt.Errorf("commit session update: %w", err)
	}
	return next, nil
}
