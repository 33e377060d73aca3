package types

import (
	"strconv"

	"github.com/robalyx/chatguard/internal/database/types/enum"
)

// Actor identifies who caused a moderation event or detection record.
// Only the field matching Kind is meaningful.
type Actor struct {
	Kind enum.ActorKind `bun:",notnull"` // Kind of actor
	ID   string         `bun:",notnull"` // Chat user ID, console user ID or process name
}

// AutoDetectionActor returns the actor used for automatic detection.
func AutoDetectionActor() Actor {
	return Actor{Kind: enum.ActorKindAutoDetection, ID: "auto"}
}

// ChatUserActor returns an actor for a chat-platform user.
func ChatUserActor(userID int64) Actor {
	return Actor{Kind: enum.ActorKindChatUser, ID: strconv.FormatInt(userID, 10)}
}

// WebUserActor returns an actor for a web console user.
func WebUserActor(userID string) Actor {
	return Actor{Kind: enum.ActorKindWebUser, ID: userID}
}

// SystemActor returns an actor for a named system process.
func SystemActor(name string) Actor {
	return Actor{Kind: enum.ActorKindSystem, ID: name}
}

// IsManual returns true if the actor represents a human decision.
func (a Actor) IsManual() bool {
	return a.Kind.IsManual()
}

// ChatUserID returns the chat user ID for chat-user actors.
func (a Actor) ChatUserID() (int64, bool) {
	if a.Kind != enum.ActorKindChatUser {
		return 0, false
	}

	id, err := strconv.ParseInt(a.ID, 10, 64)
	if err != nil {
		return 0, false
	}

	return id, true
}

// String returns a readable form such as "ChatUser:1234".
func (a Actor) String() string {
	return a.Kind.String() + ":" + a.ID
}
