package types

import "time"

// ChatBan records that a user is banned from a chat.
type ChatBan struct {
	UserID    int64      `bun:",pk"`          // Banned user
	ChatID    int64      `bun:",pk"`          // Chat the user is banned from
	Actor     Actor      `bun:"embed:actor_"` // Who issued the ban
	Reason    string     `bun:",type:text"`   // Why the user was banned
	BannedAt  time.Time  `bun:",notnull"`     // When the ban was issued
	ExpiresAt *time.Time `bun:",nullzero"`    // When the ban expires (null for permanent)
}

// IsExpired checks if the ban has expired.
func (b *ChatBan) IsExpired() bool {
	return b.ExpiresAt != nil && time.Now().After(*b.ExpiresAt)
}

// IsPermanent checks if the ban is permanent.
func (b *ChatBan) IsPermanent() bool {
	return b.ExpiresAt == nil
}
