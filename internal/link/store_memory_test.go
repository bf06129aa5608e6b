package link

import (
	"context"
	"testing"
	"time"

	"juicyid/pkg/platform/sentinel"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_CreateConflict(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	link := LinkedAddress{
		ID:             uuid.New(),
		PrimaryAddress: addrPrimary,
		LinkedAddress:  addrLinked,
		LinkType:       LinkTypeManual,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, store.Create(ctx, link))

	dup := link
	dup.ID = uuid.New()
	dup.PrimaryAddress = addrOther
	require.ErrorIs(t, store.Create(ctx, dup), sentinel.ErrConflict)
}

func TestInMemoryStore_ListByPrimaryOrder(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	base := time.Now().UTC()

	for i, linked := range []string{addrLinked, addrOther, addrFourth} {
		require.NoError(t, store.Create(ctx, LinkedAddress{
			ID:             uuid.New(),
			PrimaryAddress: addrPrimary,
			LinkedAddress:  linked,
			LinkType:       LinkTypeWallet,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}))
	}

	links, err := store.ListByPrimary(ctx, addrPrimary)
	require.NoError(t, err)
	require.Len(t, links, 3)
	require.Equal(t, addrLinked, links[0].LinkedAddress)
	require.Equal(t, addrFourth, links[2].LinkedAddress)
}

func TestInMemoryStore_DeleteAndExists(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	require.NoError(t, store.Create(ctx, LinkedAddress{
		ID:             uuid.New(),
		PrimaryAddress: addrPrimary,
		LinkedAddress:  addrLinked,
		LinkType:       LinkTypeManual,
		CreatedAt:      time.Now().UTC(),
	}))

	isPrimary, err := store.ExistsAsPrimary(ctx, addrPrimary)
	require.NoError(t, err)
	require.True(t, isPrimary)

	require.NoError(t, store.Delete(ctx, addrLinked))
	_, err = store.FindByLinked(ctx, addrLinked)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	isPrimary, err = store.ExistsAsPrimary(ctx, addrPrimary)
	require.NoError(t, err)
	require.False(t, isPrimary)
}
