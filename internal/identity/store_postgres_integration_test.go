//go:build integration

package identity_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"juicyid/internal/identity"
	"juicyid/pkg/platform/sentinel"
	"juicyid/pkg/testutil/containers"
)

const (
	addrAlice = "0x1111111111111111111111111111111111111111"
	addrBob   = "0x2222222222222222222222222222222222222222"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *identity.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = identity.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "identities", "identity_history"))
}

func newIdentity(addr, emoji, username string) identity.Identity {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return identity.Identity{
		Address:   addr,
		Emoji:     emoji,
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TestConcurrentPairClaim verifies that concurrent claims of the same pair
// by different addresses produce exactly one winner, with the unique index
// as the resolver.
func (s *PostgresStoreSuite) TestConcurrentPairClaim() {
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			addr := addrAlice
			if n%2 == 1 {
				addr = addrBob
			}
			err := s.store.Upsert(ctx, newIdentity(addr, "🍊", "contested"))
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrConflict) {
				conflictCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	// The winner's own re-upserts also succeed, so at least one of each.
	s.Positive(successCount.Load())
	s.Positive(conflictCount.Load())

	ident, err := s.store.FindByPair(ctx, "🍊", "contested")
	s.Require().NoError(err)
	s.Contains([]string{addrAlice, addrBob}, ident.Address)
}

func (s *PostgresStoreSuite) TestCaseInsensitivePairUniqueness() {
	ctx := context.Background()

	s.Require().NoError(s.store.Upsert(ctx, newIdentity(addrAlice, "🍊", "Alice")))

	err := s.store.Upsert(ctx, newIdentity(addrBob, "🍊", "alice"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	err = s.store.Upsert(ctx, newIdentity(addrBob, "🍊", "ALICE"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	s.Run("different emoji is a different pair", func() {
		s.Require().NoError(s.store.Upsert(ctx, newIdentity(addrBob, "🍋", "alice")))
	})

	s.Run("stored casing is preserved", func() {
		ident, err := s.store.FindByPair(ctx, "🍊", "alice")
		s.Require().NoError(err)
		s.Equal("Alice", ident.Username)
	})
}

func (s *PostgresStoreSuite) TestUpsertReplacesRow() {
	ctx := context.Background()

	s.Require().NoError(s.store.Upsert(ctx, newIdentity(addrAlice, "🍊", "alice")))
	s.Require().NoError(s.store.Upsert(ctx, newIdentity(addrAlice, "🍇", "wanderer")))

	_, err := s.store.FindByPair(ctx, "🍊", "alice")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	ident, err := s.store.FindByAddress(ctx, addrAlice)
	s.Require().NoError(err)
	s.Equal("🍇", ident.Emoji)
}

func (s *PostgresStoreSuite) TestExistsPairExcludesOwner() {
	ctx := context.Background()

	s.Require().NoError(s.store.Upsert(ctx, newIdentity(addrAlice, "🍊", "alice")))

	taken, err := s.store.ExistsPair(ctx, "🍊", "alice", "")
	s.Require().NoError(err)
	s.True(taken)

	taken, err = s.store.ExistsPair(ctx, "🍊", "ALICE", addrAlice)
	s.Require().NoError(err)
	s.False(taken)
}

func (s *PostgresStoreSuite) TestHistoryRoundtrip() {
	ctx := context.Background()
	started := time.Now().UTC().Truncate(time.Microsecond)
	ended := started.Add(time.Hour)

	s.Require().NoError(s.store.AppendHistory(ctx, identity.HistoryEntry{
		Address: addrAlice, Emoji: "🍊", Username: "alice",
		StartedAt: started, Change: identity.ChangeCreated,
	}))
	s.Require().NoError(s.store.AppendHistory(ctx, identity.HistoryEntry{
		Address: addrAlice, Emoji: "🍊", Username: "alice",
		StartedAt: started, EndedAt: &ended, Change: identity.ChangeDeleted,
	}))

	entries, err := s.store.HistoryByAddress(ctx, addrAlice)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(identity.ChangeDeleted, entries[0].Change)
	s.Require().NotNil(entries[0].EndedAt)
	s.WithinDuration(ended, *entries[0].EndedAt, time.Millisecond)
	s.Nil(entries[1].EndedAt)
}

func (s *PostgresStoreSuite) TestSearchByUsernamePrefix() {
	ctx := context.Background()

	s.Require().NoError(s.store.Upsert(ctx, newIdentity(addrAlice, "🍊", "alice")))
	s.Require().NoError(s.store.Upsert(ctx, newIdentity(addrBob, "🍋", "Albert")))

	idents, err := s.store.SearchByUsernamePrefix(ctx, "al", 10)
	s.Require().NoError(err)
	s.Require().Len(idents, 2)
	s.Equal("Albert", idents[0].Username)

	s.Run("percent and underscore are literals", func() {
		idents, err := s.store.SearchByUsernamePrefix(ctx, "al%", 10)
		s.Require().NoError(err)
		s.Empty(idents)
	})
}
