package warning

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"
)

// Counter is a per-user counter kept in Redis. Increments are atomic on the
// server so concurrent workflows never lose updates.
type Counter struct {
	client rueidis.Client
	prefix string
}

// NewCounter creates a counter whose keys start with prefix.
func NewCounter(client rueidis.Client, prefix string) *Counter {
	return &Counter{
		client: client,
		prefix: prefix,
	}
}

// Increment adds one to the user's counter and returns the new value.
func (c *Counter) Increment(ctx context.Context, userID int64) (int64, error) {
	count, err := c.client.Do(ctx, c.client.B().Incr().Key(c.key(userID)).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s counter: %w", c.prefix, err)
	}

	return count, nil
}

// Get returns the user's counter, or zero if it was never incremented.
func (c *Counter) Get(ctx context.Context, userID int64) (int64, error) {
	count, err := c.client.Do(ctx, c.client.B().Get().Key(c.key(userID)).Build()).AsInt64()
	if err != nil {
		if errors.Is(err, rueidis.Nil) {
			return 0, nil
		}

		return 0, fmt.Errorf("failed to get %s counter: %w", c.prefix, err)
	}

	return count, nil
}

// Reset deletes the user's counter.
func (c *Counter) Reset(ctx context.Context, userID int64) error {
	if err := c.client.Do(ctx, c.client.B().Del().Key(c.key(userID)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to reset %s counter: %w", c.prefix, err)
	}

	return nil
}

func (c *Counter) key(userID int64) string {
	return c.prefix + ":" + strconv.FormatInt(userID, 10)
}
