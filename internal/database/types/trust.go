package types

import "time"

// TrustedUser is a user exempt from ordinary spam checks.
type TrustedUser struct {
	UserID    int64     `bun:",pk"`          // Trusted user
	Actor     Actor     `bun:"embed:actor_"` // Who granted the trust
	Reason    string    `bun:",type:text"`   // Why trust was granted
	GrantedAt time.Time `bun:",notnull"`     // When trust was granted
}
