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

// ErrMessageNotFound is returned when a message is not in the message store.
var ErrMessageNotFound = errors.New("message not found")

// MessageModel handles database operations for stored chat messages.
type MessageModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewMessage creates a new message model instance.
func NewMessage(db *bun.DB, logger *zap.Logger) *MessageModel {
	return &MessageModel{
		db:     db,
		logger: logger.Named("db_message"),
	}
}

// SaveMessage upserts a message. Content is replaced only when the incoming
// edit version is not older than the stored one.
func (m *MessageModel) SaveMessage(ctx context.Context, message *types.Message) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(message).
			On("CONFLICT (chat_id, message_id) DO UPDATE").
			Set("channel_id = COALESCE(EXCLUDED.channel_id, message.channel_id)").
			Set("text = EXCLUDED.text").
			Set("attachment_url = EXCLUDED.attachment_url").
			Set("content_type = EXCLUDED.content_type").
			Set("edit_version = EXCLUDED.edit_version").
			Set("updated_at = EXCLUDED.updated_at").
			Where("message.edit_version <= EXCLUDED.edit_version").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}

		return nil
	})
}

// BackfillMessage inserts a message only if it is missing from the store.
// Returns true if the message was inserted.
func (m *MessageModel) BackfillMessage(ctx context.Context, message *types.Message) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		res, err := m.db.NewInsert().
			Model(message).
			On("CONFLICT (chat_id, message_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to backfill message: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to read affected rows: %w", err)
		}

		if affected > 0 {
			m.logger.Debug("Backfilled message",
				zap.Int64("chatID", message.ChatID),
				zap.Int64("messageID", message.MessageID))
		}

		return affected > 0, nil
	})
}

// GetMessage retrieves a stored message.
func (m *MessageModel) GetMessage(ctx context.Context, chatID, messageID int64) (*types.Message, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Message, error) {
		var message types.Message

		err := m.db.NewSelect().
			Model(&message).
			Where("chat_id = ?", chatID).
			Where("message_id = ?", messageID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrMessageNotFound
			}

			return nil, fmt.Errorf("failed to get message: %w", err)
		}

		return &message, nil
	})
}
