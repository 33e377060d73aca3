package models

import (
	"context"
	"fmt"

	"github.com/robalyx/chatguard/internal/database/dbretry"
	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// TrainingModel handles database operations for image training samples.
type TrainingModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewTraining creates a new training model instance.
func NewTraining(db *bun.DB, logger *zap.Logger) *TrainingModel {
	return &TrainingModel{
		db:     db,
		logger: logger.Named("db_training"),
	}
}

// SaveImageSample inserts a labeled image sample.
func (m *TrainingModel) SaveImageSample(ctx context.Context, sample *types.ImageTrainingSample) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().Model(sample).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert image training sample: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Saved image training sample",
		zap.Int64("messageID", sample.MessageID),
		zap.String("verdict", sample.Verdict.String()))

	return nil
}
