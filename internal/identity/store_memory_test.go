package identity

import (
	"context"
	"testing"
	"time"

	"juicyid/pkg/platform/sentinel"

	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_UpsertConflict(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	now := time.Now().UTC()

	require.NoError(t, store.Upsert(ctx, Identity{
		Address: addrAlice, Emoji: "🍊", Username: "alice", CreatedAt: now, UpdatedAt: now,
	}))

	err := store.Upsert(ctx, Identity{
		Address: addrBob, Emoji: "🍊", Username: "Alice", CreatedAt: now, UpdatedAt: now,
	})
	require.ErrorIs(t, err, sentinel.ErrConflict)

	// Re-upserting the owner's row is not a conflict.
	require.NoError(t, store.Upsert(ctx, Identity{
		Address: addrAlice, Emoji: "🍊", Username: "alice", CreatedAt: now, UpdatedAt: now.Add(time.Second),
	}))
}

func TestInMemoryStore_UpsertReleasesOldPair(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	now := time.Now().UTC()

	require.NoError(t, store.Upsert(ctx, Identity{
		Address: addrAlice, Emoji: "🍊", Username: "alice", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.Upsert(ctx, Identity{
		Address: addrAlice, Emoji: "🍇", Username: "wanderer", CreatedAt: now, UpdatedAt: now,
	}))

	_, err := store.FindByPair(ctx, "🍊", "alice")
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	ident, err := store.FindByPair(ctx, "🍇", "WANDERER")
	require.NoError(t, err)
	require.Equal(t, addrAlice, ident.Address)
}

func TestInMemoryStore_DeleteAndNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	now := time.Now().UTC()

	_, err := store.FindByAddress(ctx, addrAlice)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, store.Upsert(ctx, Identity{
		Address: addrAlice, Emoji: "🍊", Username: "alice", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.Delete(ctx, addrAlice))

	_, err = store.FindByAddress(ctx, addrAlice)
	require.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = store.FindByPair(ctx, "🍊", "alice")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}
