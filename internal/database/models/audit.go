package models

import (
	"context"
	"fmt"

	"github.com/robalyx/chatguard/internal/database/dbretry"
	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// AuditModel handles database operations for the moderation audit trail.
type AuditModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewAudit creates a new audit model instance.
func NewAudit(db *bun.DB, logger *zap.Logger) *AuditModel {
	return &AuditModel{
		db:     db,
		logger: logger.Named("db_audit"),
	}
}

// LogAction appends an audit record.
func (m *AuditModel) LogAction(ctx context.Context, record *types.AuditRecord) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().Model(record).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert audit record: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Logged moderation action",
		zap.String("action", record.Action.String()),
		zap.Int64("userID", record.UserID),
		zap.String("actor", record.Actor.String()))

	return nil
}

// GetUserAudit returns the newest audit records for a user.
func (m *AuditModel) GetUserAudit(ctx context.Context, userID int64, limit int) ([]*types.AuditRecord, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.AuditRecord, error) {
		var records []*types.AuditRecord

		err := m.db.NewSelect().
			Model(&records).
			Where("user_id = ?", userID).
			Order("created_at DESC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get audit records: %w", err)
		}

		return records, nil
	})
}
