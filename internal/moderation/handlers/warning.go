package handlers

import (
	"context"
	"fmt"

	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
	"go.uber.org/zap"
)

// WarningIncrementer atomically increments a user's warning count.
type WarningIncrementer interface {
	IncrementWarnings(ctx context.Context, userID int64) (int64, error)
}

// WarningEscalationHandler counts warnings and requests a ban when a user
// reaches the chat's warning threshold.
type WarningEscalationHandler struct {
	warnings WarningIncrementer
	policies PolicyResolver
	logger   *zap.Logger
}

// NewWarningEscalationHandler creates the warning escalation handler.
func NewWarningEscalationHandler(
	warnings WarningIncrementer, policies PolicyResolver, logger *zap.Logger,
) *WarningEscalationHandler {
	return &WarningEscalationHandler{
		warnings: warnings,
		policies: policies,
		logger:   logger.Named("handler_warning"),
	}
}

func (h *WarningEscalationHandler) Name() string { return "warning_escalation" }
func (h *WarningEscalationHandler) Order() int   { return OrderWarningEscalation }

func (h *WarningEscalationHandler) AppliesTo() []enum.ActionType {
	return []enum.ActionType{enum.ActionTypeWarn}
}

// Handle increments the warning count. The ban follow-up is requested only
// when the count equals the threshold, so concurrent warnings escalate once.
func (h *WarningEscalationHandler) Handle(ctx context.Context, event *types.ModerationEvent) (enum.FollowUp, error) {
	count, err := h.warnings.IncrementWarnings(ctx, event.UserID)
	if err != nil {
		return enum.FollowUpNone, fmt.Errorf("failed to increment warnings: %w", err)
	}

	threshold := h.policies.ForChat(event.ChatID).WarningThreshold
	if threshold <= 0 || count != threshold {
		return enum.FollowUpNone, nil
	}

	h.logger.Info("Warning threshold reached",
		zap.Int64("userID", event.UserID),
		zap.Int64("chatID", event.ChatID),
		zap.Int64("warnings", count))

	return enum.FollowUpBan, nil
}
