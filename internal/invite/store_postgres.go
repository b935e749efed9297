package invite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zavodil/near-social-auth/pkg/platform/sentinel"
)

var redemptions = promauto.NewCounter(prometheus.CounterOpts{
	Name: "near_auth_invite_redemptions_total",
	Help: "Invite attempts spent on successful new-account flows",
})

// undefinedTable is the PostgreSQL error code raised when the invites table
// has not been provisioned yet.
const undefinedTable = "42P01"

// PostgresStore persists invites in PostgreSQL. It is pure I/O; redemption
// policy lives in the verification service.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed invite store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the invites table. This is an operator/startup action,
// never part of the per-request path. The CHECK keeps attempts non-negative
// even if some future writer skips the conditional update.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS invites (
			id BIGSERIAL PRIMARY KEY,
			code VARCHAR(255) NOT NULL,
			account_id VARCHAR(255),
			attempts NUMERIC NOT NULL CHECK (attempts >= 0),
			creator VARCHAR(255) NOT NULL,
			created_at TIMESTAMP DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("ensure invites schema: %w", err)
	}
	return nil
}

// CheckInvite matches on code, binding (NULL account_id means unbound), and a
// positive attempt budget. Duplicate codes resolve to the lowest id.
func (s *PostgresStore) CheckInvite(ctx context.Context, code, accountID string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM invites
		WHERE code = $1
		  AND (account_id = $2 OR account_id IS NULL)
		  AND attempts > 0
		ORDER BY id
		LIMIT 1`, code, accountID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("check invite: %w", translate(err))
	}
	return id, nil
}

// Spend decrements attempts with a single conditional update so the counter
// can never go negative under concurrent redemption.
func (s *PostgresStore) Spend(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE invites
		SET attempts = attempts - 1
		WHERE id = $1 AND attempts > 0`, id)
	if err != nil {
		return fmt.Errorf("spend invite: %w", translate(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("spend invite rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("spend invite %d: %w", id, sentinel.ErrExhausted)
	}
	redemptions.Inc()
	return nil
}

// translate tags infrastructure conditions. A missing table is a provisioning
// precondition, so it surfaces as unavailability rather than a query bug.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == undefinedTable {
		return fmt.Errorf("invites table not provisioned (run schema init): %w", sentinel.ErrUnavailable)
	}
	return err
}
