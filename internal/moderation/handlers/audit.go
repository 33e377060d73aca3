package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
	"github.com/robalyx/chatguard/internal/setup/telemetry"
	"go.uber.org/zap"
)

// AuditLogger writes audit records.
type AuditLogger interface {
	LogAction(ctx context.Context, record *types.AuditRecord) error
}

// AuditHandler records every moderation event in the audit trail.
type AuditHandler struct {
	audit    AuditLogger
	warnings WarningReader
	logger   *zap.Logger
}

// NewAuditHandler creates the audit handler.
func NewAuditHandler(audit AuditLogger, warnings WarningReader, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		audit:    audit,
		warnings: warnings,
		logger:   logger.Named("handler_audit"),
	}
}

func (h *AuditHandler) Name() string                 { return "audit" }
func (h *AuditHandler) Order() int                   { return OrderAudit }
func (h *AuditHandler) AppliesTo() []enum.ActionType { return nil }

// Handle writes the audit record. A failure leaves a gap in the audit trail
// and is logged with the audit_gap marker.
func (h *AuditHandler) Handle(ctx context.Context, event *types.ModerationEvent) (enum.FollowUp, error) {
	record := &types.AuditRecord{
		ID:        uuid.New(),
		EventID:   event.ID,
		Action:    event.Action,
		UserID:    event.UserID,
		ChatID:    event.ChatID,
		MessageID: event.MessageID,
		Actor:     event.Executor,
		Reason:    event.Reason,
		CreatedAt: event.CreatedAt,
		ExpiresAt: event.Payload.ExpiresAt,
		Details:   h.details(ctx, event),
	}

	if err := h.audit.LogAction(ctx, record); err != nil {
		h.logger.Error("Failed to write audit record",
			zap.Bool(telemetry.AuditGapField, true),
			zap.String("eventID", event.ID.String()),
			zap.String("action", event.Action.String()),
			zap.Int64("userID", event.UserID),
			zap.String("actor", event.Executor.String()),
			zap.Error(err))

		return enum.FollowUpNone, fmt.Errorf("failed to write audit record: %w", err)
	}

	return enum.FollowUpNone, nil
}

// details collects the action-specific audit details.
func (h *AuditHandler) details(ctx context.Context, event *types.ModerationEvent) map[string]any {
	details := map[string]any{
		"chats_affected": event.Payload.ChatsAffected,
		"chats_failed":   event.Payload.ChatsFailed,
	}

	if event.IsFollowUp() {
		details["root_event_id"] = event.RootID.String()
		details["depth"] = event.Depth
	}

	if event.Payload.Duration > 0 {
		details["duration_seconds"] = int64(event.Payload.Duration.Seconds())
	}

	if event.Payload.Snapshot != nil {
		details["message_text"] = event.Payload.Snapshot.Text
	}

	if event.Action == enum.ActionTypeWarn {
		count := event.Payload.WarningCount
		if count == 0 && h.warnings != nil {
			if current, err := h.warnings.GetWarnings(ctx, event.UserID); err == nil {
				count = current
			}
		}
		details["warning_count"] = count
	}

	return details
}
