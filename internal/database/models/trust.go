package models

import (
	"context"
	"fmt"

	"github.com/robalyx/chatguard/internal/database/dbretry"
	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// TrustModel handles database operations for trusted users.
type TrustModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewTrust creates a new trust model instance.
func NewTrust(db *bun.DB, logger *zap.Logger) *TrustModel {
	return &TrustModel{
		db:     db,
		logger: logger.Named("db_trust"),
	}
}

// IsTrusted checks whether a user is trusted.
func (m *TrustModel) IsTrusted(ctx context.Context, userID int64) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		exists, err := m.db.NewSelect().
			Model((*types.TrustedUser)(nil)).
			Where("user_id = ?", userID).
			Exists(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to check trusted user: %w", err)
		}

		return exists, nil
	})
}

// GrantTrust marks a user as trusted. Granting an already trusted user is a no-op.
func (m *TrustModel) GrantTrust(ctx context.Context, trusted *types.TrustedUser) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(trusted).
			On("CONFLICT (user_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to grant trust: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("Granted trust",
		zap.Int64("userID", trusted.UserID),
		zap.String("actor", trusted.Actor.String()))

	return nil
}

// RevokeTrust removes a user's trusted flag. Returns true if the user was trusted.
func (m *TrustModel) RevokeTrust(ctx context.Context, userID int64) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		res, err := m.db.NewDelete().
			Model((*types.TrustedUser)(nil)).
			Where("user_id = ?", userID).
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to revoke trust: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to read affected rows: %w", err)
		}

		return affected > 0, nil
	})
}
