package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/chatguard/internal/database/types/enum"
)

// MessageSnapshot is the caller's copy of a message at the time of an action.
// It lets handlers backfill the message store when the original was never stored.
type MessageSnapshot struct {
	Text          string
	AttachmentURL string
	ContentType   string
	SentAt        time.Time
}

// EventPayload carries action-specific data.
type EventPayload struct {
	WarningCount  int64            // Warning count known to the caller
	Duration      time.Duration    // Length of a temporary ban
	ExpiresAt     *time.Time       // End of a temporary ban
	ChatsAffected int              // Chats where the action actually applied
	ChatsFailed   int              // Chats where the action failed
	Snapshot      *MessageSnapshot // Message content, if known
}

// ModerationEvent is the unit of work consumed by the handler pipeline.
// Events are treated as immutable once constructed.
type ModerationEvent struct {
	ID        uuid.UUID       // Unique identifier of this event
	RootID    uuid.UUID       // Event that started the escalation chain
	Depth     int             // 0 for root events, 1 for follow-ups
	UserID    int64           // Target user
	ChatID    int64           // Chat the action is about, 0 if none
	MessageID int64           // Message the action is about, 0 if none
	Action    enum.ActionType // Action being taken
	Executor  Actor           // Who executed the action
	Reason    string          // Why the action was taken
	CreatedAt time.Time       // When the event was created
	Payload   EventPayload    // Action-specific data
}

// NewModerationEvent creates a root event.
func NewModerationEvent(
	action enum.ActionType, userID, chatID, messageID int64, executor Actor, reason string,
) *ModerationEvent {
	id := uuid.New()

	return &ModerationEvent{
		ID:        id,
		RootID:    id,
		UserID:    userID,
		ChatID:    chatID,
		MessageID: messageID,
		Action:    action,
		Executor:  executor,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
}

// FollowUpEvent creates the event for a follow-up action requested during
// this event's pipeline pass.
func (e *ModerationEvent) FollowUpEvent(action enum.ActionType, reason string) *ModerationEvent {
	return &ModerationEvent{
		ID:        uuid.New(),
		RootID:    e.RootID,
		Depth:     e.Depth + 1,
		UserID:    e.UserID,
		ChatID:    e.ChatID,
		MessageID: e.MessageID,
		Action:    action,
		Executor:  SystemActor("escalation"),
		Reason:    reason,
		CreatedAt: time.Now(),
		Payload: EventPayload{
			Snapshot: e.Payload.Snapshot,
		},
	}
}

// IsFollowUp returns true if the event was created by a follow-up.
func (e *ModerationEvent) IsFollowUp() bool {
	return e.Depth > 0
}

// WithResult returns a copy of the event carrying the actual execution counts.
func (e *ModerationEvent) WithResult(affected, failed int) *ModerationEvent {
	c := *e
	c.Payload.ChatsAffected = affected
	c.Payload.ChatsFailed = failed

	return &c
}
