package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Store is an append-only audit sink.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// MemoryStore keeps events in memory for tests and local runs.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory constructs an empty in-memory audit store.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of the stored events.
func (s *MemoryStore) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// PostgresStore persists audit events in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the audit table; an operator/startup action.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS verification_audit (
			id BIGSERIAL PRIMARY KEY,
			occurred_at TIMESTAMP NOT NULL,
			request_id VARCHAR(64) NOT NULL,
			account_id VARCHAR(255) NOT NULL,
			action VARCHAR(64) NOT NULL,
			outcome VARCHAR(32) NOT NULL,
			reason TEXT,
			client_ip VARCHAR(64)
		)`)
	if err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verification_audit (occurred_at, request_id, account_id, action, outcome, reason, client_ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.Timestamp, event.RequestID, event.AccountID, event.Action,
		event.Outcome, event.Reason, event.ClientIP)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}
