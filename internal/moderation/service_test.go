package moderation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
	"github.com/robalyx/chatguard/internal/moderation"
	"github.com/robalyx/chatguard/internal/moderation/decision"
	"github.com/robalyx/chatguard/internal/moderation/handlers"
	"github.com/robalyx/chatguard/internal/moderation/pipeline"
	"github.com/robalyx/chatguard/internal/moderation/policy"
	"github.com/robalyx/chatguard/internal/warning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errPlatform = errors.New("platform unavailable")

type staticPolicies struct {
	policy *policy.Policy
}

func (s staticPolicies) ForChat(int64) *policy.Policy { return s.policy }

type executedAction struct {
	action enum.ActionType
	target *decision.Target
}

type fakeExecutor struct {
	mu      sync.Mutex
	actions []executedAction
	err     error
}

func (f *fakeExecutor) Execute(
	context.Context, enum.Tier, *decision.Target, *policy.Policy,
) (*decision.ExecutionResult, error) {
	return &decision.ExecutionResult{}, nil
}

func (f *fakeExecutor) ExecuteAction(
	_ context.Context, action enum.ActionType, target *decision.Target, _ *policy.Policy,
) (*decision.ExecutionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	f.actions = append(f.actions, executedAction{action: action, target: target})

	result := &decision.ExecutionResult{}
	switch action {
	case enum.ActionTypeBan, enum.ActionTypeMarkAsSpamAndBan:
		result.SuccessCount = 2
		result.FailCount = 1
	case enum.ActionTypeTempBan:
		expiresAt := time.Now().Add(target.Duration)
		result.SuccessCount = 3
		result.ExpiresAt = &expiresAt
	case enum.ActionTypeDelete, enum.ActionTypeWarn, enum.ActionTypeResetWarnings:
	}

	return result, nil
}

// recorder captures every event passed through the pipeline and can request
// a follow-up for every event it sees.
type recorder struct {
	mu       sync.Mutex
	events   []*types.ModerationEvent
	followUp enum.FollowUp
}

func (r *recorder) Name() string                 { return "recorder" }
func (r *recorder) Order() int                   { return handlers.OrderAudit }
func (r *recorder) AppliesTo() []enum.ActionType { return nil }

func (r *recorder) Handle(_ context.Context, event *types.ModerationEvent) (enum.FollowUp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.followUp, nil
}

type harness struct {
	service  *moderation.Service
	executor *fakeExecutor
	recorder *recorder
	warnings *warning.Store
}

func newHarness(t *testing.T, followUp enum.FollowUp) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	logger := zaptest.NewLogger(t)
	policies := staticPolicies{policy: &policy.Policy{WarningThreshold: 2}}
	store := warning.NewStore(client, logger)

	h := &harness{
		executor: &fakeExecutor{},
		recorder: &recorder{followUp: followUp},
		warnings: store,
	}

	h.service = moderation.NewService(moderation.Dependencies{
		Executor: h.executor,
		Pipeline: pipeline.New(logger,
			handlers.NewWarningEscalationHandler(store, policies, logger),
			h.recorder,
		),
		Warnings: store,
		Policies: policies,
	}, logger)

	return h
}

func warnEvent() *types.ModerationEvent {
	return types.NewModerationEvent(enum.ActionTypeWarn, 42, 1, 100, types.ChatUserActor(7), "rude")
}

func TestWarningEscalatesToBan(t *testing.T) {
	t.Parallel()

	h := newHarness(t, enum.FollowUpNone)

	first, err := h.service.ExecuteModerationAction(t.Context(), warnEvent())
	require.NoError(t, err)
	assert.Nil(t, first.FollowUp)

	second, err := h.service.ExecuteModerationAction(t.Context(), warnEvent())
	require.NoError(t, err)
	require.NotNil(t, second.FollowUp)
	assert.Equal(t, enum.FollowUpBan, second.Pass.FollowUp)
	assert.Equal(t, "warning_escalation", second.Pass.FollowUpFrom)

	ban := second.FollowUp
	assert.Equal(t, enum.ActionTypeBan, ban.Event.Action)
	assert.Equal(t, 1, ban.Event.Depth)
	assert.Equal(t, second.Event.RootID, ban.Event.RootID)
	assert.Equal(t, 2, ban.Event.Payload.ChatsAffected)
	assert.Equal(t, 1, ban.Event.Payload.ChatsFailed)
	assert.Nil(t, ban.FollowUp)

	require.Len(t, h.executor.actions, 3)
	assert.Equal(t, enum.ActionTypeBan, h.executor.actions[2].action)
	assert.Equal(t, enum.ActorKindSystem, h.executor.actions[2].target.Actor.Kind)
}

func TestFollowUpOfFollowUpIsDiscarded(t *testing.T) {
	t.Parallel()

	h := newHarness(t, enum.FollowUpBan)

	outcome, err := h.service.ExecuteModerationAction(t.Context(),
		types.NewModerationEvent(enum.ActionTypeDelete, 42, 1, 100, types.ChatUserActor(7), "spam"))
	require.NoError(t, err)

	require.NotNil(t, outcome.FollowUp)
	assert.Equal(t, enum.FollowUpBan, outcome.FollowUp.Pass.FollowUp)
	assert.Nil(t, outcome.FollowUp.FollowUp)

	assert.Len(t, h.executor.actions, 2)
	assert.Len(t, h.recorder.events, 2)
}

func TestResetWarnings(t *testing.T) {
	t.Parallel()

	h := newHarness(t, enum.FollowUpNone)

	_, err := h.service.ExecuteModerationAction(t.Context(), warnEvent())
	require.NoError(t, err)

	count, err := h.warnings.GetWarnings(t.Context(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = h.service.ExecuteModerationAction(t.Context(),
		types.NewModerationEvent(enum.ActionTypeResetWarnings, 42, 0, 0, types.WebUserActor("admin"), "appeal"))
	require.NoError(t, err)

	count, err = h.warnings.GetWarnings(t.Context(), 42)
	require.NoError(t, err)
	assert.Zero(t, count)

	// The counter starts over so the next warning does not escalate
	outcome, err := h.service.ExecuteModerationAction(t.Context(), warnEvent())
	require.NoError(t, err)
	assert.Nil(t, outcome.FollowUp)
}

func TestTempBanCarriesExpiry(t *testing.T) {
	t.Parallel()

	h := newHarness(t, enum.FollowUpNone)

	event := types.NewModerationEvent(enum.ActionTypeTempBan, 42, 1, 0, types.ChatUserActor(7), "cool down")
	event.Payload.Duration = time.Hour

	outcome, err := h.service.ExecuteModerationAction(t.Context(), event)
	require.NoError(t, err)

	assert.Equal(t, time.Hour, h.executor.actions[0].target.Duration)
	require.NotNil(t, outcome.Event.Payload.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *outcome.Event.Payload.ExpiresAt, time.Minute)
	assert.Equal(t, 3, outcome.Event.Payload.ChatsAffected)

	// The caller's event is left untouched
	assert.Nil(t, event.Payload.ExpiresAt)
}

func TestDispatchSkipsExecution(t *testing.T) {
	t.Parallel()

	h := newHarness(t, enum.FollowUpNone)

	event := types.NewModerationEvent(enum.ActionTypeBan, 42, 1, 100, types.AutoDetectionActor(), "auto")
	err := h.service.Dispatch(t.Context(), event, &decision.ExecutionResult{SuccessCount: 5})
	require.NoError(t, err)

	assert.Empty(t, h.executor.actions)
	require.Len(t, h.recorder.events, 1)
	assert.Equal(t, 5, h.recorder.events[0].Payload.ChatsAffected)
}

func TestExecutionFailureSkipsPipeline(t *testing.T) {
	t.Parallel()

	h := newHarness(t, enum.FollowUpNone)
	h.executor.err = errPlatform

	_, err := h.service.ExecuteModerationAction(t.Context(), warnEvent())
	require.ErrorIs(t, err, errPlatform)
	assert.Empty(t, h.recorder.events)

	count, err := h.warnings.GetWarnings(t.Context(), 42)
	require.NoError(t, err)
	assert.Zero(t, count)
}

type memAudit struct {
	mu      sync.Mutex
	records []*types.AuditRecord
}

func (m *memAudit) LogAction(_ context.Context, record *types.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func TestRepeatedBanIsAuditedEachTime(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	audit := &memAudit{}
	executor := &fakeExecutor{}

	service := moderation.NewService(moderation.Dependencies{
		Executor: executor,
		Pipeline: pipeline.New(logger, handlers.NewAuditHandler(audit, nil, logger)),
		Policies: staticPolicies{policy: &policy.Policy{WarningThreshold: 2}},
	}, logger)

	var eventIDs []string
	for range 2 {
		event := types.NewModerationEvent(enum.ActionTypeBan, 42, 1, 100, types.ChatUserActor(7), "raid")

		outcome, err := service.ExecuteModerationAction(t.Context(), event)
		require.NoError(t, err)
		require.NotNil(t, outcome.Execution)
		assert.Equal(t, 2, outcome.Execution.SuccessCount)
		assert.Equal(t, 2, outcome.Event.Payload.ChatsAffected)
		assert.Equal(t, 1, outcome.Event.Payload.ChatsFailed)
		assert.Empty(t, outcome.Pass.Errors)
		assert.Nil(t, outcome.FollowUp)

		eventIDs = append(eventIDs, event.ID.String())
	}

	require.Len(t, executor.actions, 2)
	require.Len(t, audit.records, 2)
	for i, record := range audit.records {
		assert.Equal(t, enum.ActionTypeBan, record.Action)
		assert.Equal(t, int64(42), record.UserID)
		assert.Equal(t, eventIDs[i], record.EventID.String())
		assert.Equal(t, 2, record.Details["chats_affected"])
		assert.Equal(t, 1, record.Details["chats_failed"])
	}
	assert.NotEqual(t, audit.records[0].ID, audit.records[1].ID)
}
