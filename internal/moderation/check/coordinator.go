package check

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
	"github.com/robalyx/chatguard/internal/moderation/policy"
	"github.com/robalyx/chatguard/pkg/utils"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	// ErrDetectorTimeout is recorded when a detector does not answer in time.
	ErrDetectorTimeout = errors.New("detector timed out")
	// ErrDetectorPanic is recorded when a detector panics.
	ErrDetectorPanic = errors.New("detector panicked")
	// ErrNilResult is recorded when a detector returns neither a result nor an error.
	ErrNilResult = errors.New("detector returned no result")
)

// Detector is a single independent content check.
// Implementations must be safe for concurrent use.
type Detector interface {
	// Name is the key used to configure the detector.
	Name() string
	// ContentKind tells the coordinator which messages the detector applies to.
	ContentKind() enum.ContentKind
	// Check inspects the request. Confidence must lie in [0, 100].
	Check(ctx context.Context, req *types.ContentCheckRequest) (*types.CheckResult, error)
}

// Coordinator fans a content check out to every applicable detector and
// aggregates their results into a signed net confidence.
type Coordinator struct {
	detectors map[string]Detector
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewCoordinator creates a coordinator over the registered detectors.
func NewCoordinator(detectors []Detector, logger *zap.Logger) *Coordinator {
	registry := make(map[string]Detector, len(detectors))
	for _, d := range detectors {
		registry[d.Name()] = d
	}

	return &Coordinator{
		detectors: registry,
		tracer:    otel.Tracer("chatguard/check"),
		logger:    logger.Named("check_coordinator"),
	}
}

// Registered returns true if a detector with the name is registered.
func (c *Coordinator) Registered(name string) bool {
	_, ok := c.detectors[name]
	return ok
}

// Check runs every enabled, registered and applicable detector concurrently
// and aggregates the results. Detectors that fail or time out contribute a
// neutral result. Results that completed before ctx was cancelled are kept.
func (c *Coordinator) Check(
	ctx context.Context, req *types.ContentCheckRequest, settings []policy.DetectorSettings,
) *types.AggregateResult {
	ctx, span := c.tracer.Start(ctx, "check.Check", trace.WithAttributes(
		attribute.Int64("chat_id", req.ChatID),
		attribute.Int64("message_id", req.MessageID),
	))
	defer span.End()

	type runnable struct {
		detector Detector
		settings policy.DetectorSettings
	}

	// Select detectors that apply to this request
	var selected []runnable
	for _, s := range settings {
		if !s.Enabled {
			continue
		}

		detector, ok := c.detectors[s.Name]
		if !ok {
			c.logger.Debug("Skipping unregistered detector", zap.String("detector", s.Name))
			continue
		}

		if !applies(detector.ContentKind(), req) {
			continue
		}

		selected = append(selected, runnable{detector: detector, settings: s})
	}

	if len(selected) == 0 {
		return &types.AggregateResult{
			Skipped:    true,
			SkipReason: "no applicable detectors",
		}
	}

	// Run detectors concurrently, each writing to its own slot
	var (
		p       = pool.New().WithContext(ctx)
		results = make([]*types.CheckResult, len(selected))
	)

	for i, r := range selected {
		p.Go(func(ctx context.Context) error {
			results[i] = c.run(ctx, r.detector, r.settings, req)
			return nil
		})
	}

	_ = p.Wait()

	agg := Aggregate(results)

	span.SetAttributes(
		attribute.Float64("net_confidence", agg.NetConfidence),
		attribute.Int("detectors", len(results)),
		attribute.Int("violations", len(agg.Violations)),
	)

	c.logger.Debug("Content check completed",
		zap.Int64("messageID", req.MessageID),
		zap.Int64("chatID", req.ChatID),
		zap.Float64("netConfidence", agg.NetConfidence),
		zap.Int("violations", len(agg.Violations)),
		zap.Int("detectors", len(results)))

	return agg
}

// run executes one detector under its timeout and converts any failure into
// a neutral result.
func (c *Coordinator) run(
	ctx context.Context, detector Detector, settings policy.DetectorSettings, req *types.ContentCheckRequest,
) *types.CheckResult {
	ctx, span := c.tracer.Start(ctx, "check.Detector", trace.WithAttributes(
		attribute.String("detector", settings.Name),
	))
	defer span.End()

	if settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.Timeout)
		defer cancel()
	}

	type outcome struct {
		result *types.CheckResult
		err    error
	}

	start := time.Now()
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", ErrDetectorPanic, r)}
			}
		}()

		result, err := detector.Check(ctx, req)
		done <- outcome{result: result, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
		if out.err == nil && out.result == nil {
			out.err = ErrNilResult
		}
	case <-ctx.Done():
		// A result that raced the cancellation still counts
		select {
		case out = <-done:
			if out.err == nil && out.result == nil {
				out.err = ErrNilResult
			}
		default:
			out.err = fmt.Errorf("%w: %w", ErrDetectorTimeout, ctx.Err())
		}
	}

	elapsed := time.Since(start)

	if out.err != nil {
		span.RecordError(out.err)
		span.SetStatus(codes.Error, out.err.Error())

		c.logger.Warn("Detector failed",
			zap.String("detector", settings.Name),
			zap.Int64("messageID", req.MessageID),
			zap.Duration("duration", elapsed),
			zap.Error(out.err))

		return &types.CheckResult{
			Detector: settings.Name,
			Verdict:  enum.VerdictClean,
			Reason:   out.err.Error(),
			Weight:   settings.Weight,
			Failed:   true,
			Duration: elapsed,
		}
	}

	result := *out.result
	result.Detector = settings.Name
	result.Confidence = types.ClampConfidence(result.Confidence)
	result.IsCritical = settings.Critical
	result.Weight = settings.Weight
	result.Duration = elapsed

	span.SetAttributes(
		attribute.String("verdict", result.Verdict.String()),
		attribute.Float64("confidence", result.Confidence),
	)

	return &result
}

// Aggregate combines detector results into a net confidence.
//
// Non-critical results contribute confidence*sign*weight to a weighted
// average, where spam counts positive and clean negative. Failed results and
// results with a non-positive weight are excluded from both sums. Critical
// results never enter the average; their spam verdicts become violations.
func Aggregate(results []*types.CheckResult) *types.AggregateResult {
	agg := &types.AggregateResult{Results: results}

	var weighted, totalWeight float64
	for _, r := range results {
		if r == nil || r.Failed {
			continue
		}

		confidence := types.ClampConfidence(r.Confidence)

		if r.IsCritical {
			if r.Verdict == enum.VerdictSpam {
				agg.Violations = append(agg.Violations, types.Violation{
					Detector:   r.Detector,
					Reason:     r.Reason,
					Confidence: confidence,
				})
			}
			continue
		}

		if r.Weight <= 0 || math.IsNaN(r.Weight) {
			continue
		}

		weighted += confidence * r.Verdict.Sign() * r.Weight
		totalWeight += r.Weight

		if r.Verdict == enum.VerdictSpam && confidence > agg.MaxConfidence {
			agg.MaxConfidence = confidence
		}
	}

	if totalWeight > 0 {
		agg.NetConfidence = utils.RoundConfidence(weighted / totalWeight)
	}

	return agg
}

// DetectionMethod summarizes which detectors produced a usable result.
func DetectionMethod(agg *types.AggregateResult) string {
	names := make([]string, 0, len(agg.Results))
	for _, r := range agg.Results {
		if r != nil && !r.Failed {
			names = append(names, r.Detector)
		}
	}

	if len(names) == 0 {
		return "none"
	}

	return strings.Join(names, ",")
}

// applies returns true if a detector of the kind can inspect the request.
func applies(kind enum.ContentKind, req *types.ContentCheckRequest) bool {
	switch kind {
	case enum.ContentKindText:
		return req.HasText()
	case enum.ContentKindAttachment:
		return req.HasAttachment()
	case enum.ContentKindAny:
		return true
	default:
		return false
	}
}
