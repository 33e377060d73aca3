package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/robalyx/chatguard/internal/database/types"
	"go.uber.org/zap"
)

// ProgressCounter counts clean messages per user.
type ProgressCounter interface {
	Increment(ctx context.Context, userID int64) (int64, error)
	Reset(ctx context.Context, userID int64) error
}

// AutoTrust grants trust to users after a run of clean messages.
type AutoTrust struct {
	progress ProgressCounter
	trust    TrustStore
	logger   *zap.Logger
}

// NewAutoTrust creates the auto-trust workflow.
func NewAutoTrust(progress ProgressCounter, trust TrustStore, logger *zap.Logger) *AutoTrust {
	return &AutoTrust{
		progress: progress,
		trust:    trust,
		logger:   logger.Named("auto_trust"),
	}
}

// RecordClean counts a clean original message and grants trust once the user
// reaches the required count. Edits do not count.
func (a *AutoTrust) RecordClean(ctx context.Context, msg *types.Message, required int) error {
	if msg.EditVersion > 0 || required <= 0 {
		return nil
	}

	count, err := a.progress.Increment(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("failed to count clean message: %w", err)
	}

	if count < int64(required) {
		return nil
	}

	err = a.trust.GrantTrust(ctx, &types.TrustedUser{
		UserID:    msg.UserID,
		Actor:     types.SystemActor("auto_trust"),
		Reason:    fmt.Sprintf("%d clean messages", count),
		GrantedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to grant trust: %w", err)
	}

	if err := a.progress.Reset(ctx, msg.UserID); err != nil {
		a.logger.Warn("Failed to reset trust progress",
			zap.Int64("userID", msg.UserID),
			zap.Error(err))
	}

	a.logger.Info("Granted trust after clean messages",
		zap.Int64("userID", msg.UserID),
		zap.Int64("cleanMessages", count))

	return nil
}
