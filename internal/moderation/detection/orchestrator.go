package detection

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
	"github.com/robalyx/chatguard/internal/moderation/check"
	"github.com/robalyx/chatguard/internal/moderation/decision"
	"github.com/robalyx/chatguard/internal/moderation/dedup"
	"github.com/robalyx/chatguard/internal/moderation/policy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrPersistDetection is returned when the detection record cannot be stored.
var ErrPersistDetection = errors.New("failed to persist detection result")

// MessageStore persists inbound messages.
type MessageStore interface {
	SaveMessage(ctx context.Context, message *types.Message) error
}

// DetectionStore persists detection records.
type DetectionStore interface {
	SaveDetection(ctx context.Context, result *types.DetectionResult) error
}

// TrustStore reads and grants the trusted flag.
type TrustStore interface {
	IsTrusted(ctx context.Context, userID int64) (bool, error)
	GrantTrust(ctx context.Context, trusted *types.TrustedUser) error
}

// ContentChecker runs the detectors for a request.
type ContentChecker interface {
	Check(ctx context.Context, req *types.ContentCheckRequest, settings []policy.DetectorSettings) *types.AggregateResult
}

// DuplicateChecker finds near-duplicate training samples.
type DuplicateChecker interface {
	IsDuplicate(ctx context.Context, fp dedup.Fingerprint, verdict enum.Verdict, maxDistance, window int) (bool, error)
}

// ActionExecutor carries out detection tiers.
type ActionExecutor interface {
	Execute(ctx context.Context, tier enum.Tier, target *decision.Target, pol *policy.Policy) (*decision.ExecutionResult, error)
}

// Dispatcher passes moderation events through the handler pipeline. When
// executed is non-nil the action was already carried out and only the
// pipeline pass remains.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *types.ModerationEvent, executed *decision.ExecutionResult) error
}

// PolicyResolver resolves the policy of a chat.
type PolicyResolver interface {
	ForChat(chatID int64) *policy.Policy
}

// Outcome summarizes one detection run.
type Outcome struct {
	Skipped    bool
	SkipReason string
	Exempt     bool
	Aggregate  *types.AggregateResult
	Tier       enum.Tier
	Record     *types.DetectionResult
	Execution  *decision.ExecutionResult
}

// Orchestrator runs the end-to-end detection flow for inbound messages.
type Orchestrator struct {
	messages   MessageStore
	detections DetectionStore
	trust      TrustStore
	checker    ContentChecker
	dedup      DuplicateChecker
	executor   ActionExecutor
	dispatcher Dispatcher
	policies   PolicyResolver
	autoTrust  *AutoTrust
	tracer     trace.Tracer
	logger     *zap.Logger
}

// Dependencies groups the collaborators of the orchestrator.
type Dependencies struct {
	Messages   MessageStore
	Detections DetectionStore
	Trust      TrustStore
	Checker    ContentChecker
	Dedup      DuplicateChecker
	Executor   ActionExecutor
	Dispatcher Dispatcher
	Policies   PolicyResolver
	Progress   ProgressCounter // Optional, enables auto-trust
}

// NewOrchestrator creates a detection orchestrator.
func NewOrchestrator(deps Dependencies, logger *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		messages:   deps.Messages,
		detections: deps.Detections,
		trust:      deps.Trust,
		checker:    deps.Checker,
		dedup:      deps.Dedup,
		executor:   deps.Executor,
		dispatcher: deps.Dispatcher,
		policies:   deps.Policies,
		tracer:     otel.Tracer("chatguard/detection"),
		logger:     logger.Named("detection"),
	}

	if deps.Progress != nil {
		o.autoTrust = NewAutoTrust(deps.Progress, deps.Trust, o.logger)
	}

	return o
}

// RunDetection checks an inbound message, persists the result and acts on it.
// editVersion is 0 for new messages and increases with every observed edit.
func (o *Orchestrator) RunDetection(
	ctx context.Context, msg *types.Message, editVersion int,
) (*Outcome, error) {
	ctx, span := o.tracer.Start(ctx, "detection.RunDetection", trace.WithAttributes(
		attribute.Int64("chat_id", msg.ChatID),
		attribute.Int64("message_id", msg.MessageID),
		attribute.Int("edit_version", editVersion),
	))
	defer span.End()

	msg.EditVersion = editVersion
	if err := o.messages.SaveMessage(ctx, msg); err != nil {
		o.logger.Warn("Failed to store message",
			zap.Int64("messageID", msg.MessageID),
			zap.Error(err))
	}

	pol := o.policies.ForChat(msg.ChatID)
	outcome := &Outcome{Exempt: o.isExempt(ctx, pol, msg.UserID)}

	// Exempt users only face critical detectors
	settings := pol.EnabledDetectors()
	if outcome.Exempt {
		settings = pol.CriticalDetectors()
		if len(settings) == 0 {
			outcome.Skipped = true
			outcome.SkipReason = "exempt user"
			return outcome, nil
		}
	}

	agg := o.checker.Check(ctx, msg.CheckRequest(), settings)
	outcome.Aggregate = agg
	outcome.Tier = decision.Decide(agg, pol.AutoBanThreshold, pol.ReviewThreshold)

	span.SetAttributes(
		attribute.Float64("net_confidence", agg.NetConfidence),
		attribute.String("tier", outcome.Tier.String()),
	)

	if agg.Skipped {
		outcome.Skipped = true
		outcome.SkipReason = agg.SkipReason
		return outcome, nil
	}

	// Critical violations bypass scoring and trust
	if outcome.Tier == enum.TierDeleteAndNotify {
		o.handleCritical(ctx, msg, pol, agg, outcome)
		return outcome, nil
	}

	if outcome.Exempt {
		return outcome, nil
	}

	record := o.buildRecord(ctx, msg, pol, agg)
	outcome.Record = record

	if err := o.detections.SaveDetection(ctx, record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")

		o.logger.Error("Failed to persist detection result, aborting",
			zap.Int64("messageID", msg.MessageID),
			zap.Int64("chatID", msg.ChatID),
			zap.Error(err))

		return outcome, fmt.Errorf("%w: %w", ErrPersistDetection, err)
	}

	if record.Verdict == enum.VerdictClean {
		o.runSideWorkflows(ctx, msg, pol)
	}

	target := &decision.Target{
		UserID:          msg.UserID,
		ChatID:          msg.ChatID,
		MessageID:       msg.MessageID,
		Actor:           types.AutoDetectionActor(),
		Reason:          fmt.Sprintf("Automatic detection (confidence %.2f)", agg.NetConfidence),
		NetConfidence:   agg.NetConfidence,
		DetectionMethod: record.DetectionMethod,
	}

	switch outcome.Tier {
	case enum.TierAutoBan:
		result, err := o.executor.Execute(ctx, enum.TierAutoBan, target, pol)
		if err != nil {
			return outcome, fmt.Errorf("failed to execute auto-ban: %w", err)
		}
		outcome.Execution = result

		event := types.NewModerationEvent(
			enum.ActionTypeBan, msg.UserID, msg.ChatID, msg.MessageID, types.AutoDetectionActor(), target.Reason,
		)
		event.Payload.Snapshot = snapshot(msg)

		if err := o.dispatcher.Dispatch(ctx, event, result); err != nil {
			o.logger.Error("Failed to dispatch auto-ban event",
				zap.Int64("userID", msg.UserID),
				zap.Error(err))
		}

	case enum.TierReview:
		result, err := o.executor.Execute(ctx, enum.TierReview, target, pol)
		if err != nil {
			return outcome, fmt.Errorf("failed to create review: %w", err)
		}
		outcome.Execution = result

	case enum.TierPass, enum.TierDeleteAndNotify:
	}

	return outcome, nil
}

// handleCritical deletes the message, alerts admins and warns non-exempt users.
func (o *Orchestrator) handleCritical(
	ctx context.Context, msg *types.Message, pol *policy.Policy, agg *types.AggregateResult, outcome *Outcome,
) {
	detectors := make([]string, 0, len(agg.Violations))
	for _, v := range agg.Violations {
		detectors = append(detectors, v.Detector)
	}
	reason := "Critical violation: " + strings.Join(detectors, ", ")

	target := &decision.Target{
		UserID:     msg.UserID,
		ChatID:     msg.ChatID,
		MessageID:  msg.MessageID,
		Actor:      types.AutoDetectionActor(),
		Reason:     reason,
		Violations: agg.Violations,
	}

	result, err := o.executor.Execute(ctx, enum.TierDeleteAndNotify, target, pol)
	if err != nil {
		o.logger.Error("Failed to handle critical violation",
			zap.Int64("messageID", msg.MessageID),
			zap.Error(err))
		return
	}
	outcome.Execution = result

	if outcome.Exempt {
		return
	}

	event := types.NewModerationEvent(
		enum.ActionTypeWarn, msg.UserID, msg.ChatID, msg.MessageID, types.AutoDetectionActor(), reason,
	)
	event.Payload.Snapshot = snapshot(msg)

	if err := o.dispatcher.Dispatch(ctx, event, nil); err != nil {
		o.logger.Error("Failed to dispatch warning for critical violation",
			zap.Int64("userID", msg.UserID),
			zap.Error(err))
	}
}

// buildRecord creates the detection record and decides training-worthiness.
func (o *Orchestrator) buildRecord(
	ctx context.Context, msg *types.Message, pol *policy.Policy, agg *types.AggregateResult,
) *types.DetectionResult {
	actor := types.AutoDetectionActor()
	fp := dedup.Hash(msg.Text)

	verdict, worthy := TrainingDecision(agg, actor, pol)
	if worthy && fp != 0 {
		duplicate, err := o.dedup.IsDuplicate(ctx, fp, verdict, pol.DedupMaxDistance, pol.DedupCandidateWindow)
		if err != nil {
			o.logger.Warn("Failed to check for duplicate training sample",
				zap.Int64("messageID", msg.MessageID),
				zap.Error(err))
			worthy = false
		} else if duplicate {
			worthy = false
		}
	}

	return &types.DetectionResult{
		ID:              uuid.New(),
		MessageID:       msg.MessageID,
		ChatID:          msg.ChatID,
		UserID:          msg.UserID,
		DetectedAt:      time.Now(),
		NetConfidence:   agg.NetConfidence,
		MaxConfidence:   agg.MaxConfidence,
		Verdict:         verdict,
		DetectionMethod: check.DetectionMethod(agg),
		UsedForTraining: worthy,
		Actor:           actor,
		EditVersion:     msg.EditVersion,
		Fingerprint:     int64(fp), //nolint:gosec // stored bit pattern
		Checks:          agg.Results,
	}
}

// runSideWorkflows runs follow-up work for clean messages. Failures are logged only.
func (o *Orchestrator) runSideWorkflows(ctx context.Context, msg *types.Message, pol *policy.Policy) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Side workflow panicked",
				zap.Int64("messageID", msg.MessageID),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
		}
	}()

	if o.autoTrust != nil && pol.AutoTrustEnabled {
		if err := o.autoTrust.RecordClean(ctx, msg, pol.CleanMessagesToTrust); err != nil {
			o.logger.Warn("Auto-trust workflow failed",
				zap.Int64("userID", msg.UserID),
				zap.Error(err))
		}
	}
}

// isExempt returns true for chat admins and trusted users.
// A trust lookup failure is treated as not trusted.
func (o *Orchestrator) isExempt(ctx context.Context, pol *policy.Policy, userID int64) bool {
	if pol.IsAdmin(userID) {
		return true
	}

	trusted, err := o.trust.IsTrusted(ctx, userID)
	if err != nil {
		o.logger.Warn("Failed to check trust, treating user as untrusted",
			zap.Int64("userID", userID),
			zap.Error(err))
		return false
	}

	return trusted
}

// snapshot copies the message content for downstream handlers.
func snapshot(msg *types.Message) *types.MessageSnapshot {
	return &types.MessageSnapshot{
		Text:          msg.Text,
		AttachmentURL: msg.AttachmentURL,
		ContentType:   msg.ContentType,
		SentAt:        msg.SentAt,
	}
}
