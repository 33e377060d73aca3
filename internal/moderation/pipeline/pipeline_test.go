package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
	"github.com/robalyx/chatguard/internal/moderation/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

type testHandler struct {
	name     string
	order    int
	applies  []enum.ActionType
	followUp enum.FollowUp
	err      error
	panics   bool
	rec      *recorder
}

func (h *testHandler) Name() string                 { return h.name }
func (h *testHandler) Order() int                   { return h.order }
func (h *testHandler) AppliesTo() []enum.ActionType { return h.applies }

func (h *testHandler) Handle(context.Context, *types.ModerationEvent) (enum.FollowUp, error) {
	h.rec.record(h.name)
	if h.panics {
		panic("handler exploded")
	}
	return h.followUp, h.err
}

func event(action enum.ActionType) *types.ModerationEvent {
	return types.NewModerationEvent(action, 42, 1, 100, types.ChatUserActor(7), "test")
}

func TestPipelineOrdering(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	p := pipeline.New(zaptest.NewLogger(t),
		&testHandler{name: "audit", order: 100, rec: rec},
		&testHandler{name: "trust", order: 10, rec: rec},
		&testHandler{name: "first-50", order: 50, rec: rec},
		&testHandler{name: "second-50", order: 50, rec: rec},
	)

	result := p.Run(t.Context(), event(enum.ActionTypeBan))

	want := []string{"trust", "first-50", "second-50", "audit"}
	assert.Equal(t, want, rec.calls)
	assert.Equal(t, want, result.Ran)
	assert.Equal(t, enum.FollowUpNone, result.FollowUp)
}

func TestPipelineAppliesTo(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	p := pipeline.New(zaptest.NewLogger(t),
		&testHandler{name: "warn-only", order: 20, applies: []enum.ActionType{enum.ActionTypeWarn}, rec: rec},
		&testHandler{name: "all", order: 100, rec: rec},
	)

	assert.Equal(t, []string{"warn-only", "all"}, p.Handlers(enum.ActionTypeWarn))
	assert.Equal(t, []string{"all"}, p.Handlers(enum.ActionTypeDelete))

	p.Run(t.Context(), event(enum.ActionTypeDelete))
	assert.Equal(t, []string{"all"}, rec.calls)
}

func TestPipelineErrorsDoNotStopHandlers(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	p := pipeline.New(zaptest.NewLogger(t),
		&testHandler{name: "fails", order: 10, err: errors.New("store down"), rec: rec},
		&testHandler{name: "panics", order: 20, panics: true, rec: rec},
		&testHandler{name: "audit", order: 100, rec: rec},
	)

	result := p.Run(t.Context(), event(enum.ActionTypeWarn))

	assert.Equal(t, []string{"fails", "panics", "audit"}, rec.calls)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "fails", result.Errors[0].Handler)
	assert.ErrorIs(t, result.Errors[1].Err, pipeline.ErrHandlerPanic)
}

func TestPipelineFirstFollowUpWins(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	p := pipeline.New(zaptest.NewLogger(t),
		&testHandler{name: "escalate", order: 20, followUp: enum.FollowUpBan, rec: rec},
		&testHandler{name: "escalate-again", order: 30, followUp: enum.FollowUpBan, rec: rec},
		&testHandler{name: "audit", order: 100, rec: rec},
	)

	result := p.Run(t.Context(), event(enum.ActionTypeWarn))

	assert.Equal(t, enum.FollowUpBan, result.FollowUp)
	assert.Equal(t, "escalate", result.FollowUpFrom)
	assert.Len(t, rec.calls, 3)
}

func TestPipelineLogsDroppedFollowUpSource(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)

	rec := &recorder{}
	p := pipeline.New(zap.New(core),
		&testHandler{name: "escalate", order: 20, followUp: enum.FollowUpBan, rec: rec},
		&testHandler{name: "escalate-again", order: 30, followUp: enum.FollowUpBan, rec: rec},
	)

	result := p.Run(t.Context(), event(enum.ActionTypeWarn))
	assert.Equal(t, "escalate", result.FollowUpFrom)

	dropped := logs.FilterMessage("Dropping additional follow-up").All()
	require.Len(t, dropped, 1)

	fields := dropped[0].ContextMap()
	assert.Equal(t, "escalate-again", fields["droppedFrom"])
	assert.Equal(t, "escalate", fields["keptFrom"])
	assert.Equal(t, enum.FollowUpBan.String(), fields["dropped"])
}

func TestPipelineFollowUpFromFailingHandler(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	p := pipeline.New(zaptest.NewLogger(t),
		&testHandler{name: "partial", order: 20, followUp: enum.FollowUpBan, err: errors.New("partial"), rec: rec},
	)

	result := p.Run(t.Context(), event(enum.ActionTypeWarn))
	assert.Equal(t, enum.FollowUpBan, result.FollowUp)
	assert.Len(t, result.Errors, 1)
}
