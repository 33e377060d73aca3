package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"

	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrHandlerPanic is recorded when a handler panics.
var ErrHandlerPanic = errors.New("handler panicked")

// Handler reacts to moderation events. Handlers run sequentially in
// ascending Order and must not mutate the event.
type Handler interface {
	// Name identifies the handler in logs.
	Name() string
	// Order positions the handler in the pipeline. Lower runs first.
	Order() int
	// AppliesTo lists the actions the handler runs for. Empty means all actions.
	AppliesTo() []enum.ActionType
	// Handle processes the event and may request a follow-up action.
	Handle(ctx context.Context, event *types.ModerationEvent) (enum.FollowUp, error)
}

// HandlerError is a failure of one handler during a pass.
type HandlerError struct {
	Handler string
	Err     error
}

// PassResult summarizes one pipeline pass.
type PassResult struct {
	Ran          []string       // Handlers that ran, in order
	Errors       []HandlerError // Handlers that failed
	FollowUp     enum.FollowUp  // First follow-up requested, if any
	FollowUpFrom string         // Handler that requested the follow-up
}

// Pipeline dispatches moderation events to ordered handlers.
type Pipeline struct {
	byAction map[enum.ActionType][]Handler
	tracer   trace.Tracer
	logger   *zap.Logger
}

// New creates a pipeline. Handlers with equal Order keep registration order.
func New(logger *zap.Logger, handlers ...Handler) *Pipeline {
	sorted := slices.Clone(handlers)
	slices.SortStableFunc(sorted, func(a, b Handler) int {
		return a.Order() - b.Order()
	})

	byAction := make(map[enum.ActionType][]Handler)
	for _, action := range enum.AllActionTypes() {
		for _, h := range sorted {
			applies := h.AppliesTo()
			if len(applies) == 0 || slices.Contains(applies, action) {
				byAction[action] = append(byAction[action], h)
			}
		}
	}

	return &Pipeline{
		byAction: byAction,
		tracer:   otel.Tracer("chatguard/pipeline"),
		logger:   logger.Named("pipeline"),
	}
}

// Handlers returns the names of the handlers that run for an action, in order.
func (p *Pipeline) Handlers(action enum.ActionType) []string {
	names := make([]string, 0, len(p.byAction[action]))
	for _, h := range p.byAction[action] {
		names = append(names, h.Name())
	}
	return names
}

// Run passes the event through every applicable handler. Handler errors and
// panics are logged and never stop later handlers. Only the first follow-up
// requested is kept.
func (p *Pipeline) Run(ctx context.Context, event *types.ModerationEvent) *PassResult {
	ctx, span := p.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("action", event.Action.String()),
		attribute.String("event_id", event.ID.String()),
		attribute.Int("depth", event.Depth),
	))
	defer span.End()

	result := &PassResult{}

	for _, h := range p.byAction[event.Action] {
		followUp, err := p.runHandler(ctx, h, event)
		result.Ran = append(result.Ran, h.Name())

		if err != nil {
			result.Errors = append(result.Errors, HandlerError{Handler: h.Name(), Err: err})
			span.RecordError(err, trace.WithAttributes(attribute.String("handler", h.Name())))

			p.logger.Error("Handler failed",
				zap.String("handler", h.Name()),
				zap.String("action", event.Action.String()),
				zap.String("eventID", event.ID.String()),
				zap.Int64("userID", event.UserID),
				zap.Error(err))
		}

		if followUp == enum.FollowUpNone {
			continue
		}

		if result.FollowUp != enum.FollowUpNone {
			p.logger.Warn("Dropping additional follow-up",
				zap.String("droppedFrom", h.Name()),
				zap.String("dropped", followUp.String()),
				zap.String("kept", result.FollowUp.String()),
				zap.String("keptFrom", result.FollowUpFrom),
				zap.String("eventID", event.ID.String()))
			continue
		}

		result.FollowUp = followUp
		result.FollowUpFrom = h.Name()
	}

	if len(result.Errors) > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d handlers failed", len(result.Errors)))
	}

	return result
}

// runHandler runs one handler, converting a panic into an error.
func (p *Pipeline) runHandler(
	ctx context.Context, h Handler, event *types.ModerationEvent,
) (followUp enum.FollowUp, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Handler panicked",
				zap.String("handler", h.Name()),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))

			followUp = enum.FollowUpNone
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	return h.Handle(ctx, event)
}
