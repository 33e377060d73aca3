package decision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/chatguard/internal/database/models"
	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
	"github.com/robalyx/chatguard/internal/moderation/policy"
	"github.com/robalyx/chatguard/internal/platform"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrListChats is returned when the managed chats cannot be enumerated.
	ErrListChats = errors.New("failed to list managed chats")
	// ErrUnsupportedAction is returned for actions the service cannot execute.
	ErrUnsupportedAction = errors.New("unsupported action")
)

// BanStore persists per-chat ban state.
type BanStore interface {
	GetBan(ctx context.Context, userID, chatID int64) (*types.ChatBan, error)
	RecordBan(ctx context.Context, ban *types.ChatBan) (bool, error)
	GetExpiredBans(ctx context.Context, limit int) ([]*types.ChatBan, error)
	DeleteBan(ctx context.Context, userID, chatID int64) error
}

// ReportStore persists review reports.
type ReportStore interface {
	CreateReport(ctx context.Context, report *types.Report) error
}

// Target describes who and what an action is applied to.
type Target struct {
	UserID          int64
	ChatID          int64
	MessageID       int64
	Reason          string
	Actor           types.Actor
	NetConfidence   float64           // Used by review reports
	DetectionMethod string            // Used by review reports
	Violations      []types.Violation // Used by critical alerts
	Duration        time.Duration     // Temporary ban length, 0 uses the policy default
}

// ChatOutcome is the result of applying an action in one chat.
type ChatOutcome struct {
	ChatID        int64
	AlreadyBanned bool
	Err           error
}

// ExecutionResult summarizes what an executed action actually did.
type ExecutionResult struct {
	Chats          []ChatOutcome
	SuccessCount   int
	FailCount      int
	MessageDeleted bool
	DeleteErr      error
	ReportID       uuid.UUID
	AlertsSent     int
	ExpiresAt      *time.Time
}

// Service turns decisions into platform actions.
type Service struct {
	platform platform.Actions
	bans     BanStore
	reports  ReportStore
	logger   *zap.Logger
}

// NewService creates an action decision service.
func NewService(actions platform.Actions, bans BanStore, reports ReportStore, logger *zap.Logger) *Service {
	return &Service{
		platform: actions,
		bans:     bans,
		reports:  reports,
		logger:   logger.Named("decision"),
	}
}

// Execute carries out a detection tier.
func (s *Service) Execute(
	ctx context.Context, tier enum.Tier, target *Target, pol *policy.Policy,
) (*ExecutionResult, error) {
	switch tier {
	case enum.TierPass:
		return &ExecutionResult{}, nil
	case enum.TierReview:
		return s.createReport(ctx, target)
	case enum.TierAutoBan:
		result, err := s.banAcrossChats(ctx, target, nil, pol.MaxConcurrentTargets)
		if err != nil {
			return nil, err
		}
		s.deleteMessage(ctx, target, result)
		return result, nil
	case enum.TierDeleteAndNotify:
		return s.ExecuteCritical(ctx, target, pol), nil
	default:
		return nil, fmt.Errorf("%w: tier %s", ErrUnsupportedAction, tier)
	}
}

// ExecuteAction carries out a moderation event's action on the platform.
// Warn and ResetWarnings have no platform effect.
func (s *Service) ExecuteAction(
	ctx context.Context, action enum.ActionType, target *Target, pol *policy.Policy,
) (*ExecutionResult, error) {
	switch action {
	case enum.ActionTypeDelete:
		result := &ExecutionResult{}
		s.deleteMessage(ctx, target, result)
		if result.MessageDeleted {
			result.SuccessCount = 1
		} else if result.DeleteErr != nil {
			result.FailCount = 1
		}
		return result, nil

	case enum.ActionTypeWarn, enum.ActionTypeResetWarnings:
		return &ExecutionResult{}, nil

	case enum.ActionTypeTempBan:
		duration := target.Duration
		if duration <= 0 {
			duration = pol.TempBanDuration
		}
		expiresAt := time.Now().Add(duration)
		return s.banAcrossChats(ctx, target, &expiresAt, pol.MaxConcurrentTargets)

	case enum.ActionTypeBan:
		return s.banAcrossChats(ctx, target, nil, pol.MaxConcurrentTargets)

	case enum.ActionTypeMarkAsSpamAndBan:
		result, err := s.banAcrossChats(ctx, target, nil, pol.MaxConcurrentTargets)
		if err != nil {
			return nil, err
		}
		s.deleteMessage(ctx, target, result)
		return result, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAction, action)
	}
}

// ExecuteCritical deletes the offending message and alerts the chat's admins.
// Both steps are best effort.
func (s *Service) ExecuteCritical(ctx context.Context, target *Target, pol *policy.Policy) *ExecutionResult {
	result := &ExecutionResult{}
	s.deleteMessage(ctx, target, result)
	if result.MessageDeleted {
		result.SuccessCount = 1
	} else if result.DeleteErr != nil {
		result.FailCount = 1
	}

	alert := criticalAlert(target, result.MessageDeleted)
	for _, adminID := range pol.AlertAdmins {
		if err := s.platform.SendDirectMessage(ctx, adminID, alert); err != nil {
			s.logger.Warn("Failed to alert admin",
				zap.Int64("adminID", adminID),
				zap.Int64("chatID", target.ChatID),
				zap.Error(err))
			continue
		}
		result.AlertsSent++
	}

	s.logger.Info("Handled critical violation",
		zap.Int64("userID", target.UserID),
		zap.Int64("chatID", target.ChatID),
		zap.Int64("messageID", target.MessageID),
		zap.Bool("deleted", result.MessageDeleted),
		zap.Int("alertsSent", result.AlertsSent))

	return result
}

// LiftExpiredBans unbans users whose temporary bans have expired and removes
// the ban records. Returns the number of bans lifted.
func (s *Service) LiftExpiredBans(ctx context.Context, unbanner platform.Unbanner, limit int) (int, error) {
	expired, err := s.bans.GetExpiredBans(ctx, limit)
	if err != nil {
		return 0, err
	}

	lifted := 0
	for _, ban := range expired {
		if err := unbanner.UnbanUser(ctx, ban.ChatID, ban.UserID); err != nil {
			s.logger.Warn("Failed to lift expired ban",
				zap.Int64("userID", ban.UserID),
				zap.Int64("chatID", ban.ChatID),
				zap.Error(err))
			continue
		}

		if err := s.bans.DeleteBan(ctx, ban.UserID, ban.ChatID); err != nil {
			s.logger.Error("Failed to delete lifted ban record",
				zap.Int64("userID", ban.UserID),
				zap.Int64("chatID", ban.ChatID),
				zap.Error(err))
			continue
		}

		lifted++
	}

	if lifted > 0 {
		s.logger.Info("Lifted expired bans", zap.Int("count", lifted))
	}

	return lifted, nil
}

// banAcrossChats bans the target from every managed chat with bounded
// concurrency. A failure in one chat never prevents the others.
func (s *Service) banAcrossChats(
	ctx context.Context, target *Target, expiresAt *time.Time, maxConcurrent int,
) (*ExecutionResult, error) {
	chats, err := s.platform.ListManagedChats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListChats, err)
	}

	outcomes := make([]ChatOutcome, len(chats))

	var g errgroup.Group
	g.SetLimit(max(1, maxConcurrent))

	for i, chatID := range chats {
		g.Go(func() error {
			outcomes[i] = s.banInChat(ctx, target, chatID, expiresAt)
			return nil
		})
	}

	_ = g.Wait()

	result := &ExecutionResult{Chats: outcomes, ExpiresAt: expiresAt}
	for _, o := range outcomes {
		if o.Err != nil {
			result.FailCount++
		} else {
			result.SuccessCount++
		}
	}

	s.logger.Info("Banned user across chats",
		zap.Int64("userID", target.UserID),
		zap.String("actor", target.Actor.String()),
		zap.Int("chats", len(chats)),
		zap.Int("succeeded", result.SuccessCount),
		zap.Int("failed", result.FailCount),
		zap.Bool("temporary", expiresAt != nil))

	return result, nil
}

// banInChat bans the target from one chat. Existing active bans and platform
// "already banned" responses count as success.
func (s *Service) banInChat(
	ctx context.Context, target *Target, chatID int64, expiresAt *time.Time,
) ChatOutcome {
	outcome := ChatOutcome{ChatID: chatID}

	existing, err := s.bans.GetBan(ctx, target.UserID, chatID)
	switch {
	case err == nil && !existing.IsExpired() && (existing.IsPermanent() || expiresAt != nil):
		outcome.AlreadyBanned = true
		return outcome
	case err != nil && !errors.Is(err, models.ErrBanNotFound):
		s.logger.Warn("Failed to look up existing ban",
			zap.Int64("userID", target.UserID),
			zap.Int64("chatID", chatID),
			zap.Error(err))
	}

	if err := s.platform.BanUser(ctx, chatID, target.UserID, target.Reason); err != nil {
		if !errors.Is(err, platform.ErrAlreadyBanned) {
			s.logger.Warn("Failed to ban user",
				zap.Int64("userID", target.UserID),
				zap.Int64("chatID", chatID),
				zap.Error(err))
			outcome.Err = err
			return outcome
		}
		outcome.AlreadyBanned = true
	}

	_, err = s.bans.RecordBan(ctx, &types.ChatBan{
		UserID:    target.UserID,
		ChatID:    chatID,
		Actor:     target.Actor,
		Reason:    target.Reason,
		BannedAt:  time.Now(),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		s.logger.Error("Failed to record ban",
			zap.Int64("userID", target.UserID),
			zap.Int64("chatID", chatID),
			zap.Error(err))
	}

	return outcome
}

// deleteMessage deletes the target message if there is one.
// A message that is already gone is not an error.
func (s *Service) deleteMessage(ctx context.Context, target *Target, result *ExecutionResult) {
	if target.MessageID == 0 || target.ChatID == 0 {
		return
	}

	err := s.platform.DeleteMessage(ctx, target.ChatID, target.MessageID)
	switch {
	case err == nil:
		result.MessageDeleted = true
	case errors.Is(err, platform.ErrMessageNotFound):
		s.logger.Debug("Message already deleted",
			zap.Int64("chatID", target.ChatID),
			zap.Int64("messageID", target.MessageID))
	default:
		result.DeleteErr = err
		s.logger.Warn("Failed to delete message",
			zap.Int64("chatID", target.ChatID),
			zap.Int64("messageID", target.MessageID),
			zap.Error(err))
	}
}

// createReport files a pending report for a human moderator.
func (s *Service) createReport(ctx context.Context, target *Target) (*ExecutionResult, error) {
	report := &types.Report{
		ID:              uuid.New(),
		MessageID:       target.MessageID,
		ChatID:          target.ChatID,
		UserID:          target.UserID,
		NetConfidence:   target.NetConfidence,
		DetectionMethod: target.DetectionMethod,
		Status:          enum.ReportStatusPending,
		CreatedAt:       time.Now(),
	}

	if err := s.reports.CreateReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	s.logger.Info("Created review report",
		zap.String("reportID", report.ID.String()),
		zap.Int64("userID", target.UserID),
		zap.Float64("netConfidence", target.NetConfidence))

	return &ExecutionResult{ReportID: report.ID, SuccessCount: 1}, nil
}

// criticalAlert renders the admin alert for a critical violation.
func criticalAlert(target *Target, deleted bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Critical violation by user %d in chat %d", target.UserID, target.ChatID)
	if deleted {
		b.WriteString(" (message deleted)")
	} else {
		b.WriteString(" (message could not be deleted)")
	}

	for _, v := range target.Violations {
		fmt.Fprintf(&b, "\n- %s: %s", v.Detector, v.Reason)
	}

	return b.String()
}
