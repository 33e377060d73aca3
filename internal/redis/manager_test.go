package redis_test

import (
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/robalyx/chatguard/internal/redis"
	"github.com/robalyx/chatguard/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestManagerGetClient(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	manager := redis.NewManager(&config.Redis{
		Host: mr.Host(),
		Port: mustPort(t, mr),
	}, zaptest.NewLogger(t))
	t.Cleanup(manager.Close)

	warnings, err := manager.GetClient(redis.WarningsDBIndex)
	require.NoError(t, err)

	again, err := manager.GetClient(redis.WarningsDBIndex)
	require.NoError(t, err)
	assert.Same(t, warnings, again)

	trust, err := manager.GetClient(redis.TrustProgressDBIndex)
	require.NoError(t, err)
	assert.NotSame(t, warnings, trust)

	ctx := t.Context()
	require.NoError(t, trust.Do(ctx, trust.B().Set().Key("k").Value("v").Build()).Error())

	mr.Select(redis.TrustProgressDBIndex)
	assert.True(t, mr.Exists("k"))
}

func mustPort(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()

	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	return port
}
