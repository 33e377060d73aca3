package handlers

import (
	"context"
	"fmt"

	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
	"go.uber.org/zap"
)

// TrustRevoker removes a user's trusted flag.
type TrustRevoker interface {
	RevokeTrust(ctx context.Context, userID int64) (bool, error)
}

// ProgressResetter clears a user's auto-trust progress.
type ProgressResetter interface {
	Reset(ctx context.Context, userID int64) error
}

// TrustRevocationHandler revokes trust from users who get banned.
type TrustRevocationHandler struct {
	trust    TrustRevoker
	progress ProgressResetter
	logger   *zap.Logger
}

// NewTrustRevocationHandler creates the trust revocation handler.
// progress may be nil when auto-trust is disabled.
func NewTrustRevocationHandler(
	trust TrustRevoker, progress ProgressResetter, logger *zap.Logger,
) *TrustRevocationHandler {
	return &TrustRevocationHandler{
		trust:    trust,
		progress: progress,
		logger:   logger.Named("handler_trust"),
	}
}

func (h *TrustRevocationHandler) Name() string { return "trust_revocation" }
func (h *TrustRevocationHandler) Order() int   { return OrderTrustRevocation }

func (h *TrustRevocationHandler) AppliesTo() []enum.ActionType {
	return []enum.ActionType{enum.ActionTypeTempBan, enum.ActionTypeBan, enum.ActionTypeMarkAsSpamAndBan}
}

// Handle revokes trust and resets auto-trust progress.
func (h *TrustRevocationHandler) Handle(ctx context.Context, event *types.ModerationEvent) (enum.FollowUp, error) {
	revoked, err := h.trust.RevokeTrust(ctx, event.UserID)
	if err != nil {
		return enum.FollowUpNone, fmt.Errorf("failed to revoke trust: %w", err)
	}

	if h.progress != nil {
		if err := h.progress.Reset(ctx, event.UserID); err != nil {
			return enum.FollowUpNone, fmt.Errorf("failed to reset trust progress: %w", err)
		}
	}

	if revoked {
		h.logger.Info("Revoked trust from banned user",
			zap.Int64("userID", event.UserID),
			zap.String("action", event.Action.String()))
	}

	return enum.FollowUpNone, nil
}
