// Package moderation exposes the entry points of the moderation core.
package moderation

import (
	"context"
	"fmt"

	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
	"github.com/robalyx/chatguard/internal/moderation/decision"
	"github.com/robalyx/chatguard/internal/moderation/detection"
	"github.com/robalyx/chatguard/internal/moderation/pipeline"
	"github.com/robalyx/chatguard/internal/moderation/policy"
	"go.uber.org/zap"
)

// MaxFollowUpDepth is the deepest event allowed to trigger a follow-up.
// Follow-ups requested by deeper events are logged and discarded.
const MaxFollowUpDepth = 1

// ActionExecutor carries out tiers and moderation actions on the platform.
type ActionExecutor interface {
	Execute(ctx context.Context, tier enum.Tier, target *decision.Target, pol *policy.Policy) (*decision.ExecutionResult, error)
	ExecuteAction(ctx context.Context, action enum.ActionType, target *decision.Target, pol *policy.Policy) (*decision.ExecutionResult, error)
}

// EventPipeline runs the handler chain for an event.
type EventPipeline interface {
	Run(ctx context.Context, event *types.ModerationEvent) *pipeline.PassResult
}

// WarningResetter clears a user's warning count.
type WarningResetter interface {
	ResetWarnings(ctx context.Context, userID int64) error
}

// Dependencies groups the collaborators of the service. The detection
// dependencies do not need an executor, dispatcher or policy resolver;
// the service supplies its own.
type Dependencies struct {
	Detection detection.Dependencies
	Executor  ActionExecutor
	Pipeline  EventPipeline
	Warnings  WarningResetter
	Policies  detection.PolicyResolver
}

// ActionOutcome describes one executed moderation action and any follow-up
// it triggered.
type ActionOutcome struct {
	Event       *types.ModerationEvent    // Event as seen by the pipeline
	Execution   *decision.ExecutionResult // What the platform actions did
	Pass        *pipeline.PassResult      // Pipeline pass summary
	FollowUp    *ActionOutcome            // Executed follow-up, if any
	FollowUpErr error                     // Why the follow-up could not be executed
}

// Service is the moderation core used by message ingestion and command handlers.
type Service struct {
	detection *detection.Orchestrator
	executor  ActionExecutor
	pipeline  EventPipeline
	warnings  WarningResetter
	policies  detection.PolicyResolver
	logger    *zap.Logger
}

// NewService creates the moderation service.
func NewService(deps Dependencies, logger *zap.Logger) *Service {
	s := &Service{
		executor: deps.Executor,
		pipeline: deps.Pipeline,
		warnings: deps.Warnings,
		policies: deps.Policies,
		logger:   logger.Named("moderation"),
	}

	detectionDeps := deps.Detection
	detectionDeps.Executor = deps.Executor
	detectionDeps.Dispatcher = s
	detectionDeps.Policies = deps.Policies
	s.detection = detection.NewOrchestrator(detectionDeps, logger)

	return s
}

// RunDetection checks an inbound message and acts on the result. Failures are
// logged and never returned to message ingestion; the outcome is nil when the
// run failed.
func (s *Service) RunDetection(ctx context.Context, msg *types.Message, editVersion int) *detection.Outcome {
	outcome, err := s.detection.RunDetection(ctx, msg, editVersion)
	if err != nil {
		s.logger.Error("Detection failed",
			zap.Int64("chatID", msg.ChatID),
			zap.Int64("messageID", msg.MessageID),
			zap.Int64("userID", msg.UserID),
			zap.Int("editVersion", editVersion),
			zap.Error(err))
		return nil
	}

	if outcome.Skipped {
		s.logger.Debug("Detection skipped",
			zap.Int64("messageID", msg.MessageID),
			zap.String("reason", outcome.SkipReason))
	}

	return outcome
}

// ExecuteModerationAction executes the event's action on the platform, passes
// the event through the pipeline with the actual results and executes the
// follow-up action the pass requested, if any.
func (s *Service) ExecuteModerationAction(
	ctx context.Context, event *types.ModerationEvent,
) (*ActionOutcome, error) {
	return s.execute(ctx, event, nil)
}

// Dispatch implements detection.Dispatcher. A non-nil executed result skips
// the platform step.
func (s *Service) Dispatch(
	ctx context.Context, event *types.ModerationEvent, executed *decision.ExecutionResult,
) error {
	_, err := s.execute(ctx, event, executed)
	return err
}

func (s *Service) execute(
	ctx context.Context, event *types.ModerationEvent, executed *decision.ExecutionResult,
) (*ActionOutcome, error) {
	pol := s.policies.ForChat(event.ChatID)

	if executed == nil {
		if event.Action == enum.ActionTypeResetWarnings {
			if err := s.warnings.ResetWarnings(ctx, event.UserID); err != nil {
				return nil, fmt.Errorf("failed to reset warnings: %w", err)
			}
		}

		result, err := s.executor.ExecuteAction(ctx, event.Action, targetFor(event), pol)
		if err != nil {
			return nil, fmt.Errorf("failed to execute %s: %w", event.Action, err)
		}
		executed = result
	}

	passed := event.WithResult(executed.SuccessCount, executed.FailCount)
	if executed.ExpiresAt != nil {
		passed.Payload.ExpiresAt = executed.ExpiresAt
	}

	outcome := &ActionOutcome{
		Event:     passed,
		Execution: executed,
		Pass:      s.pipeline.Run(ctx, passed),
	}

	s.logger.Info("Executed moderation action",
		zap.String("action", passed.Action.String()),
		zap.String("eventID", passed.ID.String()),
		zap.Int64("userID", passed.UserID),
		zap.Int("depth", passed.Depth),
		zap.Int("chatsAffected", executed.SuccessCount),
		zap.Int("chatsFailed", executed.FailCount),
		zap.Int("handlerErrors", len(outcome.Pass.Errors)))

	if outcome.Pass.FollowUp == enum.FollowUpNone {
		return outcome, nil
	}

	if passed.Depth >= MaxFollowUpDepth {
		s.logger.Warn("Discarding follow-up of a follow-up",
			zap.String("followUp", outcome.Pass.FollowUp.String()),
			zap.String("requestedBy", outcome.Pass.FollowUpFrom),
			zap.String("rootEventID", passed.RootID.String()))
		return outcome, nil
	}

	action, ok := outcome.Pass.FollowUp.ActionType()
	if !ok {
		return outcome, nil
	}

	followUp := passed.FollowUpEvent(action, fmt.Sprintf("Escalated by %s: %s", outcome.Pass.FollowUpFrom, passed.Reason))

	child, err := s.execute(ctx, followUp, nil)
	if err != nil {
		outcome.FollowUpErr = err
		s.logger.Error("Failed to execute follow-up action",
			zap.String("action", action.String()),
			zap.Int64("userID", passed.UserID),
			zap.String("rootEventID", passed.RootID.String()),
			zap.Error(err))
		return outcome, nil
	}
	outcome.FollowUp = child

	return outcome, nil
}

// targetFor builds the decision target of an event.
func targetFor(event *types.ModerationEvent) *decision.Target {
	return &decision.Target{
		UserID:    event.UserID,
		ChatID:    event.ChatID,
		MessageID: event.MessageID,
		Reason:    event.Reason,
		Actor:     event.Executor,
		Duration:  event.Payload.Duration,
	}
}
