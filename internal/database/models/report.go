package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/chatguard/internal/database/dbretry"
	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ReportModel handles database operations for review reports.
type ReportModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewReport creates a new report model instance.
func NewReport(db *bun.DB, logger *zap.Logger) *ReportModel {
	return &ReportModel{
		db:     db,
		logger: logger.Named("db_report"),
	}
}

// CreateReport inserts a pending report.
func (m *ReportModel) CreateReport(ctx context.Context, report *types.Report) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().Model(report).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create report: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("Created review report",
		zap.String("id", report.ID.String()),
		zap.Int64("userID", report.UserID),
		zap.Float64("netConfidence", report.NetConfidence))

	return nil
}

// GetPendingReports returns the oldest pending reports.
func (m *ReportModel) GetPendingReports(ctx context.Context, limit int) ([]*types.Report, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Report, error) {
		var reports []*types.Report

		err := m.db.NewSelect().
			Model(&reports).
			Where("status = ?", enum.ReportStatusPending).
			Order("created_at ASC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get pending reports: %w", err)
		}

		return reports, nil
	})
}

// ResolveReport records a moderator's decision on a pending report.
func (m *ReportModel) ResolveReport(
	ctx context.Context, id uuid.UUID, status enum.ReportStatus, reviewer types.Actor,
) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewUpdate().
			Model((*types.Report)(nil)).
			Set("status = ?", status).
			Set("reviewed_by = ?", reviewer.String()).
			Set("reviewed_at = ?", time.Now()).
			Where("id = ?", id).
			Where("status = ?", enum.ReportStatusPending).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to resolve report: %w", err)
		}

		return nil
	})
}
