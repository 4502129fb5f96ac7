package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_BlocksAfterMaxFails(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemory(Policy{Window: time.Minute, MaxFails: 3, BlockFor: 5 * time.Minute})
	l.now = func() time.Time { return now }
	k := Key{Username: "user1", Client: HashClient("127.0.0.1:1")}

	for range 2 {
		blocked, _, err := l.Failure(ctx, k)
		require.NoError(t, err)
		require.False(t, blocked)
	}
	blocked, dur, err := l.Failure(ctx, k)
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 5*time.Minute, dur)

	ok, retry, err := l.Allow(ctx, k)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 5*time.Minute, retry)

	other := Key{Username: "user2", Client: k.Client}
	ok, _, _ = l.Allow(ctx, other)
	require.True(t, ok, "other usernames are not affected")

	now = now.Add(6 * time.Minute)
	ok, _, _ = l.Allow(ctx, k)
	require.True(t, ok)
}

func TestMemory_WindowResetsAndSuccessClears(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemory(Policy{Window: time.Minute, MaxFails: 2, BlockFor: time.Minute})
	l.now = func() time.Time { return now }
	k := Key{Username: "u"}

	_, _, _ = l.Failure(ctx, k)
	now = now.Add(2 * time.Minute)
	blocked, _, _ := l.Failure(ctx, k)
	require.False(t, blocked, "stale failure fell out of the window")

	require.NoError(t, l.Success(ctx, k))
	blocked, _, _ = l.Failure(ctx, k)
	require.False(t, blocked)
}
