package warning_test

import (
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/robalyx/chatguard/internal/warning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newClient(t *testing.T) rueidis.Client {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client
}

func TestStore(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := warning.NewStore(newClient(t), zaptest.NewLogger(t))

	count, err := store.GetWarnings(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	for want := int64(1); want <= 3; want++ {
		count, err = store.IncrementWarnings(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}

	// Other users are independent
	count, err = store.IncrementWarnings(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, store.ResetWarnings(ctx, 1))

	count, err = store.GetWarnings(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	count, err = store.GetWarnings(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStoreConcurrentIncrements(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := warning.NewStore(newClient(t), zaptest.NewLogger(t))

	const workers = 20

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			count, err := store.IncrementWarnings(ctx, 42)
			assert.NoError(t, err)

			mu.Lock()
			seen[count] = true
			mu.Unlock()
		}()
	}

	wg.Wait()

	// Every increment observed a distinct value
	assert.Len(t, seen, workers)

	count, err := store.GetWarnings(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), count)
}
