package mention

import (
	"context"
	"sync/atomic"
	"testing"

	"juicyid/internal/events"
	"juicyid/internal/identity"

	"github.com/stretchr/testify/require"
)

const addrAlice = "0x1111111111111111111111111111111111111111"

type countingResolver struct {
	inner PairResolver
	calls atomic.Int64
}

func (c *countingResolver) ResolveIdentity(ctx context.Context, emoji, username string) (string, error) {
	c.calls.Add(1)
	return c.inner.ResolveIdentity(ctx, emoji, username)
}

func newParser(t *testing.T) (*Parser, *identity.Registry, *countingResolver) {
	t.Helper()
	registry := identity.NewRegistry(identity.NewInMemoryStore(), events.NewPublisher(events.NewMemorySink()), nil)
	counting := &countingResolver{inner: registry}
	return NewParser(registry.Format(), counting), registry, counting
}

func TestFindMentions(t *testing.T) {
	parser, _, _ := newParser(t)

	t.Run("finds multiple mentions with offsets", func(t *testing.T) {
		text := "hey @🍊alice and @🍇bob, lunch?"
		mentions := parser.FindMentions(text)
		require.Len(t, mentions, 2)

		require.Equal(t, "@🍊alice", mentions[0].MatchedText)
		require.Equal(t, "🍊", mentions[0].Emoji)
		require.Equal(t, "alice", mentions[0].Username)
		require.Equal(t, "@🍊alice", text[mentions[0].Start:mentions[0].End])

		require.Equal(t, "@🍇bob", mentions[1].MatchedText)
		require.Equal(t, "@🍇bob", text[mentions[1].Start:mentions[1].End])
	})

	t.Run("ignores unknown emoji and bare at-signs", func(t *testing.T) {
		require.Empty(t, parser.FindMentions("mail me @ home or @🚀rocket"))
	})

	t.Run("ignores usernames that break the format rules", func(t *testing.T) {
		require.Empty(t, parser.FindMentions("@🍊ab @🍊1digit"))
	})

	t.Run("matches greedily up to the username length limit", func(t *testing.T) {
		mentions := parser.FindMentions("@🍊alice_underscore9")
		require.Len(t, mentions, 1)
		require.Equal(t, "alice_underscore9", mentions[0].Username)
	})

	t.Run("no mentions yields nil", func(t *testing.T) {
		require.Nil(t, parser.FindMentions("nothing to see"))
	})
}

func TestResolveAllMentions(t *testing.T) {
	ctx := context.Background()
	parser, registry, counting := newParser(t)

	_, err := registry.SetIdentity(ctx, addrAlice, "🍊", "alice")
	require.NoError(t, err)

	t.Run("claimed pairs resolve, unclaimed map to empty", func(t *testing.T) {
		resolved, err := parser.ResolveAllMentions(ctx, "ping @🍊alice and @🍇ghost")
		require.NoError(t, err)
		require.Equal(t, map[string]string{
			"@🍊alice": addrAlice,
			"@🍇ghost": "",
		}, resolved)
	})

	t.Run("repeated token is looked up once", func(t *testing.T) {
		counting.calls.Store(0)
		resolved, err := parser.ResolveAllMentions(ctx, "@🍊alice @🍊alice @🍊alice")
		require.NoError(t, err)
		require.Len(t, resolved, 1)
		require.EqualValues(t, 1, counting.calls.Load())
	})

	t.Run("empty text resolves to empty map", func(t *testing.T) {
		resolved, err := parser.ResolveAllMentions(ctx, "")
		require.NoError(t, err)
		require.Empty(t, resolved)
	})
}
