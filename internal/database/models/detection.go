package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/robalyx/chatguard/internal/database/dbretry"
	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ErrDetectionNotFound is returned when no detection result exists for a message.
var ErrDetectionNotFound = errors.New("detection result not found")

// DetectionModel handles database operations for detection results.
type DetectionModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewDetection creates a new detection model instance.
func NewDetection(db *bun.DB, logger *zap.Logger) *DetectionModel {
	return &DetectionModel{
		db:     db,
		logger: logger.Named("db_detection"),
	}
}

// SaveDetection inserts a detection result. Records are never updated.
func (m *DetectionModel) SaveDetection(ctx context.Context, result *types.DetectionResult) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().Model(result).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert detection result: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Saved detection result",
		zap.String("id", result.ID.String()),
		zap.Int64("messageID", result.MessageID),
		zap.Float64("netConfidence", result.NetConfidence),
		zap.Bool("usedForTraining", result.UsedForTraining))

	return nil
}

// GetRecentTrainingFingerprints returns the fingerprints of the newest training
// samples with the given verdict, newest first.
func (m *DetectionModel) GetRecentTrainingFingerprints(
	ctx context.Context, verdict enum.Verdict, limit int,
) ([]uint64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]uint64, error) {
		var fingerprints []int64

		err := m.db.NewSelect().
			Model((*types.DetectionResult)(nil)).
			Column("fingerprint").
			Where("used_for_training = true").
			Where("verdict = ?", verdict).
			Where("fingerprint != 0").
			Order("detected_at DESC").
			Limit(limit).
			Scan(ctx, &fingerprints)
		if err != nil {
			return nil, fmt.Errorf("failed to get training fingerprints: %w", err)
		}

		result := make([]uint64, len(fingerprints))
		for i, fp := range fingerprints {
			result[i] = uint64(fp)
		}

		return result, nil
	})
}

// GetLatestForMessage returns the newest detection result for a message.
func (m *DetectionModel) GetLatestForMessage(
	ctx context.Context, chatID, messageID int64,
) (*types.DetectionResult, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.DetectionResult, error) {
		var result types.DetectionResult

		err := m.db.NewSelect().
			Model(&result).
			Where("chat_id = ?", chatID).
			Where("message_id = ?", messageID).
			Order("edit_version DESC", "detected_at DESC").
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrDetectionNotFound
			}

			return nil, fmt.Errorf("failed to get detection result: %w", err)
		}

		return &result, nil
	})
}

// GetUserDetections returns the newest detection results for a user.
func (m *DetectionModel) GetUserDetections(
	ctx context.Context, userID int64, limit int,
) ([]*types.DetectionResult, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.DetectionResult, error) {
		var results []*types.DetectionResult

		err := m.db.NewSelect().
			Model(&results).
			Where("user_id = ?", userID).
			Order("detected_at DESC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get user detections: %w", err)
		}

		return results, nil
	})
}
