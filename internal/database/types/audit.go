package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/chatguard/internal/database/types/enum"
)

// AuditRecord is an immutable entry in the moderation audit trail.
type AuditRecord struct {
	ID        uuid.UUID       `bun:",pk,type:uuid"` // Unique identifier
	EventID   uuid.UUID       `bun:",type:uuid"`    // Moderation event that produced the record
	Action    enum.ActionType `bun:",notnull"`      // Action that was taken
	UserID    int64           `bun:",notnull"`      // Target user
	ChatID    int64           `bun:",nullzero"`     // Chat the action was scoped to, if any
	MessageID int64           `bun:",nullzero"`     // Message the action was about, if any
	Actor     Actor           `bun:"embed:actor_"`  // Who executed the action
	Reason    string          `bun:",type:text"`    // Why the action was taken
	CreatedAt time.Time       `bun:",notnull"`      // When the action was recorded
	ExpiresAt *time.Time      `bun:",nullzero"`     // When a temporary action ends
	Details   map[string]any  `bun:",type:jsonb"`   // Action-specific details
}
