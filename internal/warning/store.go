// Package warning keeps per-user moderation counters in Redis.
package warning

import (
	"context"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// Store tracks how many warnings each user has received.
// Counts only grow until explicitly reset.
type Store struct {
	counter *Counter
	logger  *zap.Logger
}

// NewStore creates a warning store backed by the given Redis client.
func NewStore(client rueidis.Client, logger *zap.Logger) *Store {
	return &Store{
		counter: NewCounter(client, "warnings"),
		logger:  logger.Named("warning_store"),
	}
}

// IncrementWarnings records a new warning and returns the user's total.
func (s *Store) IncrementWarnings(ctx context.Context, userID int64) (int64, error) {
	count, err := s.counter.Increment(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.logger.Debug("Incremented warnings",
		zap.Int64("userID", userID),
		zap.Int64("count", count))

	return count, nil
}

// GetWarnings returns the user's current warning total.
func (s *Store) GetWarnings(ctx context.Context, userID int64) (int64, error) {
	return s.counter.Get(ctx, userID)
}

// ResetWarnings clears the user's warnings.
func (s *Store) ResetWarnings(ctx context.Context, userID int64) error {
	if err := s.counter.Reset(ctx, userID); err != nil {
		return err
	}

	s.logger.Info("Reset warnings", zap.Int64("userID", userID))

	return nil
}
