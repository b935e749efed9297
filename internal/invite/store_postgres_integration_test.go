//go:build integration

package invite_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/zavodil/near-social-auth/internal/invite"
	"github.com/zavodil/near-social-auth/pkg/platform/sentinel"
	"github.com/zavodil/near-social-auth/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *invite.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = invite.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "invites"))
}

func (s *PostgresStoreSuite) seed(code string, accountID *string, attempts int) int64 {
	var id int64
	err := s.postgres.DB.QueryRowContext(context.Background(), `
		INSERT INTO invites (code, account_id, attempts, creator)
		VALUES ($1, $2, $3, 'test')
		RETURNING id`, code, accountID, attempts).Scan(&id)
	s.Require().NoError(err)
	return id
}

func (s *PostgresStoreSuite) TestCheckInviteBindingModes() {
	ctx := context.Background()
	alice := "alice.near"
	unbound := s.seed("welcome", nil, 3)
	bound := s.seed("vip", &alice, 1)
	s.seed("spent", nil, 0)

	id, err := s.store.CheckInvite(ctx, "welcome", "bob.near")
	s.Require().NoError(err)
	s.Equal(unbound, id)

	id, err = s.store.CheckInvite(ctx, "vip", "alice.near")
	s.Require().NoError(err)
	s.Equal(bound, id)

	id, err = s.store.CheckInvite(ctx, "vip", "mallory.near")
	s.Require().NoError(err)
	s.Zero(id)

	id, err = s.store.CheckInvite(ctx, "spent", "bob.near")
	s.Require().NoError(err)
	s.Zero(id)
}

// TestConcurrentLastAttempt verifies the conditional UPDATE cannot let two
// redeemers both consume a final attempt.
func (s *PostgresStoreSuite) TestConcurrentLastAttempt() {
	ctx := context.Background()
	id := s.seed("last", nil, 1)

	const goroutines = 16
	var wg sync.WaitGroup
	var succeeded atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.store.Spend(ctx, id); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	s.EqualValues(1, succeeded.Load())

	var attempts int
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx,
		`SELECT attempts FROM invites WHERE id = $1`, id).Scan(&attempts))
	s.Zero(attempts)

	s.ErrorIs(s.store.Spend(ctx, id), sentinel.ErrExhausted)
}
