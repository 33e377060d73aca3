package dedup

import (
	"context"
	"fmt"

	"github.com/robalyx/chatguard/internal/database/types/enum"
	"go.uber.org/zap"
)

// FingerprintStore provides the fingerprints of recent training samples.
type FingerprintStore interface {
	GetRecentTrainingFingerprints(ctx context.Context, verdict enum.Verdict, limit int) ([]uint64, error)
}

// Checker compares new training candidates against recent samples of the same verdict.
type Checker struct {
	store  FingerprintStore
	logger *zap.Logger
}

// NewChecker creates a near-duplicate checker.
func NewChecker(store FingerprintStore, logger *zap.Logger) *Checker {
	return &Checker{
		store:  store,
		logger: logger.Named("dedup"),
	}
}

// IsDuplicate reports whether fp is within maxDistance of one of the last
// window training samples labeled with verdict.
func (c *Checker) IsDuplicate(
	ctx context.Context, fp Fingerprint, verdict enum.Verdict, maxDistance, window int,
) (bool, error) {
	if fp == 0 || window <= 0 {
		return false, nil
	}

	candidates, err := c.store.GetRecentTrainingFingerprints(ctx, verdict, window)
	if err != nil {
		return false, fmt.Errorf("failed to load training fingerprints: %w", err)
	}

	duplicate := IsNearDuplicate(fp, candidates, maxDistance)
	if duplicate {
		c.logger.Debug("Training sample is a near duplicate",
			zap.Uint64("fingerprint", uint64(fp)),
			zap.String("verdict", verdict.String()),
			zap.Int("candidates", len(candidates)))
	}

	return duplicate, nil
}
