package handlers_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/robalyx/chatguard/internal/database/models"
	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
	"github.com/robalyx/chatguard/internal/moderation/dedup"
	"github.com/robalyx/chatguard/internal/moderation/handlers"
	"github.com/robalyx/chatguard/internal/moderation/policy"
	"github.com/robalyx/chatguard/internal/platform"
	"github.com/robalyx/chatguard/internal/setup/telemetry"
	"github.com/robalyx/chatguard/internal/warning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

var errStore = errors.New("store unavailable")

type staticPolicies struct {
	policy *policy.Policy
}

func (s staticPolicies) ForChat(int64) *policy.Policy { return s.policy }

func newPolicies() staticPolicies {
	return staticPolicies{policy: &policy.Policy{
		WarningThreshold:     3,
		DedupMaxDistance:     3,
		DedupCandidateWindow: 100,
		NotifyUsers:          true,
		AlertAdmins:          []int64{900},
	}}
}

func newWarningStore(t *testing.T) *warning.Store {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return warning.NewStore(client, zaptest.NewLogger(t))
}

func newEvent(action enum.ActionType) *types.ModerationEvent {
	return types.NewModerationEvent(action, 42, 1, 100, types.ChatUserActor(7), "spam")
}

func TestWarningEscalation(t *testing.T) {
	t.Parallel()

	store := newWarningStore(t)
	h := handlers.NewWarningEscalationHandler(store, newPolicies(), zaptest.NewLogger(t))

	var followUps []enum.FollowUp
	for range 4 {
		followUp, err := h.Handle(t.Context(), newEvent(enum.ActionTypeWarn))
		require.NoError(t, err)
		followUps = append(followUps, followUp)
	}

	assert.Equal(t, []enum.FollowUp{
		enum.FollowUpNone, enum.FollowUpNone, enum.FollowUpBan, enum.FollowUpNone,
	}, followUps)
}

func TestWarningEscalationConcurrent(t *testing.T) {
	t.Parallel()

	store := newWarningStore(t)
	h := handlers.NewWarningEscalationHandler(store, newPolicies(), zaptest.NewLogger(t))

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		bans  int
		total = 10
	)

	for range total {
		wg.Add(1)
		go func() {
			defer wg.Done()

			followUp, err := h.Handle(t.Context(), newEvent(enum.ActionTypeWarn))
			assert.NoError(t, err)

			if followUp == enum.FollowUpBan {
				mu.Lock()
				bans++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, bans)

	count, err := store.GetWarnings(t.Context(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(total), count)
}

type fakeTrust struct {
	revoked []int64
	err     error
}

func (f *fakeTrust) RevokeTrust(_ context.Context, userID int64) (bool, error) {
	f.revoked = append(f.revoked, userID)
	return true, f.err
}

type fakeProgress struct {
	reset []int64
}

func (f *fakeProgress) Reset(_ context.Context, userID int64) error {
	f.reset = append(f.reset, userID)
	return nil
}

func TestTrustRevocation(t *testing.T) {
	t.Parallel()

	trust := &fakeTrust{}
	progress := &fakeProgress{}
	h := handlers.NewTrustRevocationHandler(trust, progress, zaptest.NewLogger(t))

	followUp, err := h.Handle(t.Context(), newEvent(enum.ActionTypeBan))
	require.NoError(t, err)
	assert.Equal(t, enum.FollowUpNone, followUp)
	assert.Equal(t, []int64{42}, trust.revoked)
	assert.Equal(t, []int64{42}, progress.reset)

	failing := handlers.NewTrustRevocationHandler(&fakeTrust{err: errStore}, nil, zaptest.NewLogger(t))
	_, err = failing.Handle(t.Context(), newEvent(enum.ActionTypeBan))
	require.ErrorIs(t, err, errStore)
}

type fakeMessages struct {
	stored     map[int64]*types.Message
	backfilled []*types.Message
}

func (f *fakeMessages) GetMessage(_ context.Context, _, messageID int64) (*types.Message, error) {
	if msg, ok := f.stored[messageID]; ok {
		return msg, nil
	}
	return nil, models.ErrMessageNotFound
}

func (f *fakeMessages) BackfillMessage(_ context.Context, msg *types.Message) (bool, error) {
	f.backfilled = append(f.backfilled, msg)
	return true, nil
}

type fakeTraining struct {
	detections []*types.DetectionResult
	images     []*types.ImageTrainingSample
}

func (f *fakeTraining) SaveDetection(_ context.Context, result *types.DetectionResult) error {
	f.detections = append(f.detections, result)
	return nil
}

func (f *fakeTraining) SaveImageSample(_ context.Context, sample *types.ImageTrainingSample) error {
	f.images = append(f.images, sample)
	return nil
}

type fakeDedup struct {
	duplicate bool
	err       error
}

func (f *fakeDedup) IsDuplicate(context.Context, dedup.Fingerprint, enum.Verdict, int, int) (bool, error) {
	return f.duplicate, f.err
}

func TestTrainingCurationStoredMessage(t *testing.T) {
	t.Parallel()

	messages := &fakeMessages{stored: map[int64]*types.Message{
		100: {
			ChatID: 1, MessageID: 100, UserID: 42, Text: "free nitro",
			AttachmentURL: "https://cdn.example/a.png", ContentType: "image/png",
		},
	}}
	training := &fakeTraining{}
	h := handlers.NewTrainingCurationHandler(messages, training, &fakeDedup{}, newPolicies(), zaptest.NewLogger(t))

	_, err := h.Handle(t.Context(), newEvent(enum.ActionTypeMarkAsSpamAndBan))
	require.NoError(t, err)

	require.Len(t, training.detections, 1)
	record := training.detections[0]
	assert.Equal(t, enum.VerdictSpam, record.Verdict)
	assert.True(t, record.UsedForTraining)
	assert.Equal(t, enum.ActorKindChatUser, record.Actor.Kind)
	assert.Equal(t, handlers.ManualDetectionMethod, record.DetectionMethod)
	assert.Equal(t, int64(dedup.Hash("free nitro")), record.Fingerprint)

	require.Len(t, training.images, 1)
	assert.Empty(t, messages.backfilled)
}

func TestTrainingCurationBackfillsFromSnapshot(t *testing.T) {
	t.Parallel()

	messages := &fakeMessages{stored: map[int64]*types.Message{}}
	training := &fakeTraining{}
	h := handlers.NewTrainingCurationHandler(messages, training, &fakeDedup{duplicate: true}, newPolicies(), zaptest.NewLogger(t))

	event := newEvent(enum.ActionTypeMarkAsSpamAndBan)
	event.Payload.Snapshot = &types.MessageSnapshot{Text: "join my server", SentAt: time.Now()}

	_, err := h.Handle(t.Context(), event)
	require.NoError(t, err)

	require.Len(t, messages.backfilled, 1)
	assert.Equal(t, "join my server", messages.backfilled[0].Text)
	require.Len(t, training.detections, 1)
	assert.False(t, training.detections[0].UsedForTraining)
	assert.Empty(t, training.images)
}

func TestTrainingCurationDedupFailureIsNotWorthy(t *testing.T) {
	t.Parallel()

	messages := &fakeMessages{stored: map[int64]*types.Message{
		100: {ChatID: 1, MessageID: 100, UserID: 42, Text: "free nitro"},
	}}
	training := &fakeTraining{}
	h := handlers.NewTrainingCurationHandler(messages, training, &fakeDedup{err: errStore}, newPolicies(), zaptest.NewLogger(t))

	_, err := h.Handle(t.Context(), newEvent(enum.ActionTypeMarkAsSpamAndBan))
	require.NoError(t, err)

	require.Len(t, training.detections, 1)
	assert.False(t, training.detections[0].UsedForTraining)
	assert.Equal(t, enum.VerdictSpam, training.detections[0].Verdict)
}

func TestTrainingCurationWithoutContent(t *testing.T) {
	t.Parallel()

	h := handlers.NewTrainingCurationHandler(&fakeMessages{}, &fakeTraining{}, &fakeDedup{}, newPolicies(), zaptest.NewLogger(t))

	_, err := h.Handle(t.Context(), newEvent(enum.ActionTypeMarkAsSpamAndBan))
	require.ErrorIs(t, err, handlers.ErrMessageUnavailable)
}

type fakeAudit struct {
	records []*types.AuditRecord
	err     error
}

func (f *fakeAudit) LogAction(_ context.Context, record *types.AuditRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

func TestAuditRecordsEvent(t *testing.T) {
	t.Parallel()

	store := newWarningStore(t)
	_, err := store.IncrementWarnings(t.Context(), 42)
	require.NoError(t, err)

	audit := &fakeAudit{}
	h := handlers.NewAuditHandler(audit, store, zaptest.NewLogger(t))

	event := newEvent(enum.ActionTypeWarn).WithResult(1, 0)
	_, err = h.Handle(t.Context(), event)
	require.NoError(t, err)

	require.Len(t, audit.records, 1)
	record := audit.records[0]
	assert.Equal(t, event.ID, record.EventID)
	assert.Equal(t, enum.ActionTypeWarn, record.Action)
	assert.Equal(t, int64(1), record.Details["warning_count"])
	assert.Equal(t, 1, record.Details["chats_affected"])
}

func TestAuditFailureIsMarkedAsGap(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.ErrorLevel)
	h := handlers.NewAuditHandler(&fakeAudit{err: errStore}, nil, zap.New(core))

	_, err := h.Handle(t.Context(), newEvent(enum.ActionTypeBan))
	require.ErrorIs(t, err, errStore)

	entries := logs.FilterField(zap.Bool(telemetry.AuditGapField, true)).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Failed to write audit record", entries[0].Message)
}

type fakeMessenger struct {
	mu     sync.Mutex
	sent   map[int64][]string
	closed map[int64]bool
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{sent: make(map[int64][]string), closed: make(map[int64]bool)}
}

func (f *fakeMessenger) SendDirectMessage(_ context.Context, userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed[userID] {
		return platform.ErrDirectMessagesClosed
	}
	f.sent[userID] = append(f.sent[userID], text)
	return nil
}

func TestNotificationBan(t *testing.T) {
	t.Parallel()

	messenger := newFakeMessenger()
	h := handlers.NewNotificationHandler(messenger, nil, newPolicies(), zaptest.NewLogger(t))

	_, err := h.Handle(t.Context(), newEvent(enum.ActionTypeBan).WithResult(2, 1))
	require.NoError(t, err)

	require.Len(t, messenger.sent[42], 1)
	assert.Contains(t, messenger.sent[42][0], "banned")
	require.Len(t, messenger.sent[900], 1)
	assert.Contains(t, messenger.sent[900][0], "banned from 2 chats (1 failed)")
}

func TestNotificationWarnClosedDMs(t *testing.T) {
	t.Parallel()

	messenger := newFakeMessenger()
	messenger.closed[42] = true
	h := handlers.NewNotificationHandler(messenger, nil, newPolicies(), zaptest.NewLogger(t))

	event := newEvent(enum.ActionTypeWarn)
	event.Payload.WarningCount = 2

	_, err := h.Handle(t.Context(), event)
	require.NoError(t, err)
	assert.Empty(t, messenger.sent)
}
