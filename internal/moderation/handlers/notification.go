package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
	"github.com/robalyx/chatguard/internal/platform"
	"go.uber.org/zap"
)

// DirectMessenger sends private messages to users.
type DirectMessenger interface {
	SendDirectMessage(ctx context.Context, userID int64, text string) error
}

// NotificationHandler informs the affected user and the admins about actions.
// Delivery is best effort.
type NotificationHandler struct {
	messenger DirectMessenger
	warnings  WarningReader
	policies  PolicyResolver
	logger    *zap.Logger
}

// NewNotificationHandler creates the notification handler.
func NewNotificationHandler(
	messenger DirectMessenger, warnings WarningReader, policies PolicyResolver, logger *zap.Logger,
) *NotificationHandler {
	return &NotificationHandler{
		messenger: messenger,
		warnings:  warnings,
		policies:  policies,
		logger:    logger.Named("handler_notification"),
	}
}

func (h *NotificationHandler) Name() string { return "notification" }
func (h *NotificationHandler) Order() int   { return OrderNotification }

func (h *NotificationHandler) AppliesTo() []enum.ActionType {
	return []enum.ActionType{
		enum.ActionTypeWarn,
		enum.ActionTypeTempBan,
		enum.ActionTypeBan,
		enum.ActionTypeMarkAsSpamAndBan,
	}
}

// Handle sends the user notice and, for bans, the admin summary.
func (h *NotificationHandler) Handle(ctx context.Context, event *types.ModerationEvent) (enum.FollowUp, error) {
	pol := h.policies.ForChat(event.ChatID)

	var errs []error

	if pol.NotifyUsers {
		if err := h.send(ctx, event.UserID, h.userNotice(ctx, event, pol.WarningThreshold)); err != nil {
			errs = append(errs, err)
		}
	}

	if event.Action == enum.ActionTypeBan || event.Action == enum.ActionTypeMarkAsSpamAndBan {
		summary := fmt.Sprintf("User %d was banned from %d chats (%d failed) by %s: %s",
			event.UserID, event.Payload.ChatsAffected, event.Payload.ChatsFailed,
			event.Executor.String(), event.Reason)

		for _, adminID := range pol.AlertAdmins {
			if err := h.send(ctx, adminID, summary); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return enum.FollowUpNone, errors.Join(errs...)
}

// send delivers one message. Users with closed direct messages are skipped silently.
func (h *NotificationHandler) send(ctx context.Context, userID int64, text string) error {
	err := h.messenger.SendDirectMessage(ctx, userID, text)
	if errors.Is(err, platform.ErrDirectMessagesClosed) {
		h.logger.Debug("User does not accept direct messages", zap.Int64("userID", userID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to notify user %d: %w", userID, err)
	}

	return nil
}

// userNotice renders the message sent to the affected user.
func (h *NotificationHandler) userNotice(ctx context.Context, event *types.ModerationEvent, threshold int64) string {
	switch event.Action {
	case enum.ActionTypeWarn:
		count := event.Payload.WarningCount
		if count == 0 && h.warnings != nil {
			if current, err := h.warnings.GetWarnings(ctx, event.UserID); err == nil {
				count = current
			}
		}
		return fmt.Sprintf("You received a warning (%d/%d): %s", count, threshold, event.Reason)
	case enum.ActionTypeTempBan:
		if event.Payload.ExpiresAt != nil {
			return fmt.Sprintf("You have been temporarily banned until %s: %s",
				event.Payload.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"), event.Reason)
		}
		return "You have been temporarily banned: " + event.Reason
	case enum.ActionTypeBan, enum.ActionTypeMarkAsSpamAndBan:
		return "You have been banned: " + event.Reason
	default:
		return "A moderation action was taken on your account: " + event.Reason
	}
}
