// Package handlers contains the moderation event handlers run by the pipeline.
package handlers

import (
	"context"

	"github.com/robalyx/chatguard/internal/moderation/policy"
)

// Pipeline positions of the built-in handlers.
const (
	OrderTrustRevocation   = 10
	OrderWarningEscalation = 20
	OrderTrainingCuration  = 50
	OrderAudit             = 100
	OrderNotification      = 200
)

// PolicyResolver resolves the policy of a chat.
type PolicyResolver interface {
	ForChat(chatID int64) *policy.Policy
}

// WarningReader reads a user's warning count.
type WarningReader interface {
	GetWarnings(ctx context.Context, userID int64) (int64, error)
}
