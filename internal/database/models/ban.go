package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/robalyx/chatguard/internal/database/dbretry"
	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ErrBanNotFound is returned when a user is not banned from a chat.
var ErrBanNotFound = errors.New("chat ban not found")

// ChatBanModel handles database operations for per-chat ban state.
type ChatBanModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewChatBan creates a new chat ban model instance.
func NewChatBan(db *bun.DB, logger *zap.Logger) *ChatBanModel {
	return &ChatBanModel{
		db:     db,
		logger: logger.Named("db_chat_ban"),
	}
}

// GetBan retrieves the ban of a user in a chat.
func (m *ChatBanModel) GetBan(ctx context.Context, userID, chatID int64) (*types.ChatBan, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.ChatBan, error) {
		var ban types.ChatBan

		err := m.db.NewSelect().
			Model(&ban).
			Where("user_id = ?", userID).
			Where("chat_id = ?", chatID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrBanNotFound
			}

			return nil, fmt.Errorf("failed to get chat ban: %w", err)
		}

		return &ban, nil
	})
}

// RecordBan stores a ban. An existing active ban is only replaced when it has
// expired or when a permanent ban supersedes a temporary one. Returns true if
// a row was written.
func (m *ChatBanModel) RecordBan(ctx context.Context, ban *types.ChatBan) (bool, error) {
	written, err := dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		res, err := m.db.NewInsert().
			Model(ban).
			On("CONFLICT (user_id, chat_id) DO UPDATE").
			Set("actor_kind = EXCLUDED.actor_kind").
			Set("actor_id = EXCLUDED.actor_id").
			Set("reason = EXCLUDED.reason").
			Set("banned_at = EXCLUDED.banned_at").
			Set("expires_at = EXCLUDED.expires_at").
			Where("chat_ban.expires_at IS NOT NULL").
			Where("(chat_ban.expires_at < NOW() OR EXCLUDED.expires_at IS NULL)").
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to record chat ban: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to read affected rows: %w", err)
		}

		return affected > 0, nil
	})
	if err != nil {
		return false, err
	}

	if written {
		m.logger.Debug("Recorded chat ban",
			zap.Int64("userID", ban.UserID),
			zap.Int64("chatID", ban.ChatID),
			zap.Bool("permanent", ban.IsPermanent()))
	}

	return written, nil
}

// GetUserBans returns every chat ban of a user.
func (m *ChatBanModel) GetUserBans(ctx context.Context, userID int64) ([]*types.ChatBan, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.ChatBan, error) {
		var bans []*types.ChatBan

		err := m.db.NewSelect().
			Model(&bans).
			Where("user_id = ?", userID).
			Order("banned_at DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get user bans: %w", err)
		}

		return bans, nil
	})
}

// GetExpiredBans returns temporary bans whose expiry has passed.
func (m *ChatBanModel) GetExpiredBans(ctx context.Context, limit int) ([]*types.ChatBan, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.ChatBan, error) {
		var bans []*types.ChatBan

		err := m.db.NewSelect().
			Model(&bans).
			Where("expires_at IS NOT NULL").
			Where("expires_at < NOW()").
			Order("expires_at ASC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get expired bans: %w", err)
		}

		return bans, nil
	})
}

// DeleteBan removes the ban of a user in a chat.
func (m *ChatBanModel) DeleteBan(ctx context.Context, userID, chatID int64) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewDelete().
			Model((*types.ChatBan)(nil)).
			Where("user_id = ?", userID).
			Where("chat_id = ?", chatID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete chat ban: %w", err)
		}

		return nil
	})
}
