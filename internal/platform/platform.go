// Package platform defines the chat-platform actions the moderation core depends on.
package platform

import (
	"context"
	"errors"
)

var (
	// ErrAlreadyBanned is returned when the user is already banned from the chat.
	ErrAlreadyBanned = errors.New("user already banned")
	// ErrMissingPermissions is returned when the bot lacks permission for the action.
	ErrMissingPermissions = errors.New("missing permissions")
	// ErrMessageNotFound is returned when the message no longer exists.
	ErrMessageNotFound = errors.New("message not found")
	// ErrMessageUnlocatable is returned when the platform cannot tell where a message lives.
	ErrMessageUnlocatable = errors.New("message location unknown")
	// ErrDirectMessagesClosed is returned when the user does not accept direct messages.
	ErrDirectMessagesClosed = errors.New("user does not accept direct messages")
)

// Actions are the chat-platform primitives used to enforce moderation decisions.
// Implementations apply their own retry policy.
type Actions interface {
	// BanUser bans a user from a chat.
	BanUser(ctx context.Context, chatID, userID int64, reason string) error
	// DeleteMessage deletes a message from a chat.
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	// SendDirectMessage sends a private message to a user.
	SendDirectMessage(ctx context.Context, userID int64, text string) error
	// ListManagedChats returns every chat the moderation system manages.
	ListManagedChats(ctx context.Context) ([]int64, error)
}

// Unbanner is implemented by platforms able to lift bans, used to expire temporary bans.
type Unbanner interface {
	UnbanUser(ctx context.Context, chatID, userID int64) error
}
