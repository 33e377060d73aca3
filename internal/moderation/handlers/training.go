package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/chatguard/internal/database/models"
	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
	"github.com/robalyx/chatguard/internal/moderation/dedup"
	"go.uber.org/zap"
)

// ErrMessageUnavailable is returned when neither the store nor the event has the message content.
var ErrMessageUnavailable = errors.New("message content unavailable")

// ManualDetectionMethod labels detection records created from moderator decisions.
const ManualDetectionMethod = "manual"

// MessageStore reads and backfills stored messages.
type MessageStore interface {
	GetMessage(ctx context.Context, chatID, messageID int64) (*types.Message, error)
	BackfillMessage(ctx context.Context, message *types.Message) (bool, error)
}

// TrainingStore persists labeled samples.
type TrainingStore interface {
	SaveDetection(ctx context.Context, result *types.DetectionResult) error
	SaveImageSample(ctx context.Context, sample *types.ImageTrainingSample) error
}

// DuplicateChecker finds near-duplicate training samples.
type DuplicateChecker interface {
	IsDuplicate(ctx context.Context, fp dedup.Fingerprint, verdict enum.Verdict, maxDistance, window int) (bool, error)
}

// TrainingCurationHandler turns manual spam decisions into training samples.
type TrainingCurationHandler struct {
	messages MessageStore
	training TrainingStore
	dedup    DuplicateChecker
	policies PolicyResolver
	logger   *zap.Logger
}

// NewTrainingCurationHandler creates the training curation handler.
func NewTrainingCurationHandler(
	messages MessageStore, training TrainingStore, dedup DuplicateChecker, policies PolicyResolver,
	logger *zap.Logger,
) *TrainingCurationHandler {
	return &TrainingCurationHandler{
		messages: messages,
		training: training,
		dedup:    dedup,
		policies: policies,
		logger:   logger.Named("handler_training"),
	}
}

func (h *TrainingCurationHandler) Name() string { return "training_curation" }
func (h *TrainingCurationHandler) Order() int   { return OrderTrainingCuration }

func (h *TrainingCurationHandler) AppliesTo() []enum.ActionType {
	return []enum.ActionType{enum.ActionTypeMarkAsSpamAndBan}
}

// Handle stores the message as a spam training sample labeled by the executor.
// Manual labels are training-worthy unless they duplicate an existing sample
// or the duplicate lookup fails.
func (h *TrainingCurationHandler) Handle(ctx context.Context, event *types.ModerationEvent) (enum.FollowUp, error) {
	msg, err := h.resolveMessage(ctx, event)
	if err != nil {
		return enum.FollowUpNone, err
	}

	pol := h.policies.ForChat(event.ChatID)
	fp := dedup.Hash(msg.Text)

	worthy := true

	duplicate, err := h.dedup.IsDuplicate(ctx, fp, enum.VerdictSpam, pol.DedupMaxDistance, pol.DedupCandidateWindow)
	if err != nil {
		h.logger.Warn("Failed to check for duplicate training sample",
			zap.Int64("messageID", event.MessageID),
			zap.Error(err))
		worthy = false
	} else if duplicate {
		worthy = false
	}

	record := &types.DetectionResult{
		ID:              uuid.New(),
		MessageID:       msg.MessageID,
		ChatID:          msg.ChatID,
		UserID:          msg.UserID,
		DetectedAt:      time.Now(),
		NetConfidence:   100,
		MaxConfidence:   100,
		Verdict:         enum.VerdictSpam,
		DetectionMethod: ManualDetectionMethod,
		UsedForTraining: worthy,
		Actor:           event.Executor,
		EditVersion:     msg.EditVersion,
		Fingerprint:     int64(fp), //nolint:gosec // stored bit pattern
	}

	if err := h.training.SaveDetection(ctx, record); err != nil {
		return enum.FollowUpNone, fmt.Errorf("failed to save manual detection: %w", err)
	}

	if attachment := msg.Attachment(); attachment.IsImage() {
		err := h.training.SaveImageSample(ctx, &types.ImageTrainingSample{
			ID:        uuid.New(),
			MessageID: msg.MessageID,
			ChatID:    msg.ChatID,
			ImageURL:  attachment.URL,
			Verdict:   enum.VerdictSpam,
			Actor:     event.Executor,
			CreatedAt: time.Now(),
		})
		if err != nil {
			return enum.FollowUpNone, fmt.Errorf("failed to save image sample: %w", err)
		}
	}

	h.logger.Info("Stored manual spam label",
		zap.Int64("messageID", msg.MessageID),
		zap.String("actor", event.Executor.String()),
		zap.Bool("usedForTraining", record.UsedForTraining))

	return enum.FollowUpNone, nil
}

// resolveMessage loads the message, backfilling it from the event snapshot
// when it was never stored.
func (h *TrainingCurationHandler) resolveMessage(
	ctx context.Context, event *types.ModerationEvent,
) (*types.Message, error) {
	msg, err := h.messages.GetMessage(ctx, event.ChatID, event.MessageID)
	if err == nil {
		return msg, nil
	}

	if !errors.Is(err, models.ErrMessageNotFound) {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}

	snapshot := event.Payload.Snapshot
	if snapshot == nil {
		return nil, fmt.Errorf("%w: message %d", ErrMessageUnavailable, event.MessageID)
	}

	msg = &types.Message{
		ChatID:        event.ChatID,
		MessageID:     event.MessageID,
		UserID:        event.UserID,
		Text:          snapshot.Text,
		AttachmentURL: snapshot.AttachmentURL,
		ContentType:   snapshot.ContentType,
		SentAt:        snapshot.SentAt,
		UpdatedAt:     time.Now(),
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = event.CreatedAt
	}

	if _, err := h.messages.BackfillMessage(ctx, msg); err != nil {
		h.logger.Warn("Failed to backfill message",
			zap.Int64("messageID", event.MessageID),
			zap.Error(err))
	}

	return msg, nil
}
