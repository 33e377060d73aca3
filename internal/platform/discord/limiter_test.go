package discord_test

import (
	"context"
	"testing"
	"time"

	"github.com/robalyx/chatguard/internal/platform/discord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterSpacesCalls(t *testing.T) {
	t.Parallel()

	limiter := discord.NewLimiter(30*time.Millisecond, 0)

	start := time.Now()
	for range 3 {
		require.NoError(t, limiter.Wait(t.Context()))
	}

	// First call passes immediately, the next two wait one interval each
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestLimiterHonorsContext(t *testing.T) {
	t.Parallel()

	limiter := discord.NewLimiter(time.Hour, 0)
	require.NoError(t, limiter.Wait(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, limiter.Wait(ctx), context.DeadlineExceeded)
}

func TestDisabledLimiterNeverWaits(t *testing.T) {
	t.Parallel()

	var nilLimiter *discord.Limiter
	require.NoError(t, nilLimiter.Wait(t.Context()))
	require.NoError(t, discord.NewLimiter(0, 0).Wait(t.Context()))
}
