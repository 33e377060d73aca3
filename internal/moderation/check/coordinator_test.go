package check_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
	"github.com/robalyx/chatguard/internal/moderation/check"
	"github.com/robalyx/chatguard/internal/moderation/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errBoom = errors.New("boom")

type fakeDetector struct {
	name       string
	kind       enum.ContentKind
	verdict    enum.Verdict
	confidence float64
	delay      time.Duration
	err        error
	panics     bool
}

func (d *fakeDetector) Name() string                  { return d.name }
func (d *fakeDetector) ContentKind() enum.ContentKind { return d.kind }

func (d *fakeDetector) Check(ctx context.Context, _ *types.ContentCheckRequest) (*types.CheckResult, error) {
	if d.panics {
		panic("detector exploded")
	}

	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if d.err != nil {
		return nil, d.err
	}

	return &types.CheckResult{
		Verdict:    d.verdict,
		Confidence: d.confidence,
		Reason:     d.name + " reason",
	}, nil
}

func settings(name string, weight float64, critical bool) policy.DetectorSettings {
	return policy.DetectorSettings{
		Name:     name,
		Enabled:  true,
		Weight:   weight,
		Critical: critical,
		Timeout:  time.Second,
	}
}

func textRequest() *types.ContentCheckRequest {
	return &types.ContentCheckRequest{MessageID: 1, ChatID: 2, UserID: 3, Text: "buy cheap followers"}
}

func TestCoordinatorWeightedAverage(t *testing.T) {
	t.Parallel()

	c := check.NewCoordinator([]check.Detector{
		&fakeDetector{name: "a", verdict: enum.VerdictSpam, confidence: 90},
		&fakeDetector{name: "b", verdict: enum.VerdictClean, confidence: 30},
	}, zaptest.NewLogger(t))

	agg := c.Check(t.Context(), textRequest(), []policy.DetectorSettings{
		settings("a", 1, false),
		settings("b", 1, false),
	})

	// (90*1*1 + 30*-1*1) / 2 = 30
	assert.InDelta(t, 30.0, agg.NetConfidence, 0.001)
	assert.InDelta(t, 90.0, agg.MaxConfidence, 0.001)
	assert.Equal(t, enum.VerdictSpam, agg.Verdict())
	assert.Len(t, agg.Results, 2)
	assert.False(t, agg.HasViolations())
}

func TestCoordinatorFailuresAreNeutral(t *testing.T) {
	t.Parallel()

	c := check.NewCoordinator([]check.Detector{
		&fakeDetector{name: "ok", verdict: enum.VerdictSpam, confidence: 80},
		&fakeDetector{name: "err", err: errBoom},
		&fakeDetector{name: "slow", verdict: enum.VerdictClean, confidence: 100, delay: time.Minute},
		&fakeDetector{name: "panic", panics: true},
	}, zaptest.NewLogger(t))

	slow := settings("slow", 1, false)
	slow.Timeout = 20 * time.Millisecond

	agg := c.Check(t.Context(), textRequest(), []policy.DetectorSettings{
		settings("ok", 1, false),
		settings("err", 1, false),
		slow,
		settings("panic", 1, true),
	})

	// Only the successful detector contributes
	assert.InDelta(t, 80.0, agg.NetConfidence, 0.001)
	require.Len(t, agg.Results, 4)

	failed := 0
	for _, r := range agg.Results {
		if r.Failed {
			failed++
			assert.False(t, r.IsCritical)
			assert.Zero(t, r.Confidence)
		}
	}
	assert.Equal(t, 3, failed)
	assert.False(t, agg.HasViolations())

	result, ok := agg.Result("slow")
	require.True(t, ok)
	assert.Contains(t, result.Reason, check.ErrDetectorTimeout.Error())
}

func TestCoordinatorCriticalSeparation(t *testing.T) {
	t.Parallel()

	c := check.NewCoordinator([]check.Detector{
		&fakeDetector{name: "links", verdict: enum.VerdictSpam, confidence: 100},
		&fakeDetector{name: "wordlist", verdict: enum.VerdictClean, confidence: 50},
	}, zaptest.NewLogger(t))

	agg := c.Check(t.Context(), textRequest(), []policy.DetectorSettings{
		settings("links", 5, true),
		settings("wordlist", 1, false),
	})

	require.True(t, agg.HasViolations())
	assert.Equal(t, "links", agg.Violations[0].Detector)
	assert.InDelta(t, -50.0, agg.NetConfidence, 0.001)
	assert.Zero(t, agg.MaxConfidence)
}

func TestCoordinatorSkipsInapplicableDetectors(t *testing.T) {
	t.Parallel()

	c := check.NewCoordinator([]check.Detector{
		&fakeDetector{name: "text", kind: enum.ContentKindText, verdict: enum.VerdictSpam, confidence: 90},
		&fakeDetector{name: "image", kind: enum.ContentKindAttachment, verdict: enum.VerdictSpam, confidence: 90},
	}, zaptest.NewLogger(t))

	req := &types.ContentCheckRequest{
		MessageID:  1,
		Attachment: &types.Attachment{URL: "https://cdn.example/a.png", ContentType: "image/png"},
	}

	agg := c.Check(t.Context(), req, []policy.DetectorSettings{
		settings("text", 1, false),
		settings("image", 1, false),
		settings("unregistered", 1, false),
	})

	require.Len(t, agg.Results, 1)
	assert.Equal(t, "image", agg.Results[0].Detector)
}

func TestCoordinatorNoDetectors(t *testing.T) {
	t.Parallel()

	c := check.NewCoordinator(nil, zaptest.NewLogger(t))

	agg := c.Check(t.Context(), textRequest(), nil)
	assert.True(t, agg.Skipped)
	assert.Zero(t, agg.NetConfidence)
	assert.Empty(t, agg.Results)
}

func TestCoordinatorCancelledContext(t *testing.T) {
	t.Parallel()

	c := check.NewCoordinator([]check.Detector{
		&fakeDetector{name: "slow", verdict: enum.VerdictSpam, confidence: 100, delay: time.Minute},
	}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	agg := c.Check(ctx, textRequest(), []policy.DetectorSettings{settings("slow", 1, false)})
	require.Len(t, agg.Results, 1)
	assert.True(t, agg.Results[0].Failed)
	assert.Zero(t, agg.NetConfidence)
}

// signalDetector reports when its check started and, unless it blocks,
// answers immediately.
type signalDetector struct {
	name    string
	verdict enum.Verdict
	blocks  bool
	started chan struct{}
}

func (d *signalDetector) Name() string                  { return d.name }
func (d *signalDetector) ContentKind() enum.ContentKind { return enum.ContentKindText }

func (d *signalDetector) Check(ctx context.Context, _ *types.ContentCheckRequest) (*types.CheckResult, error) {
	close(d.started)

	if d.blocks {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	return &types.CheckResult{Verdict: d.verdict, Confidence: 80, Reason: d.name + " reason"}, nil
}

func TestCoordinatorCancelledMidCheck(t *testing.T) {
	t.Parallel()

	fast := &signalDetector{name: "fast", verdict: enum.VerdictSpam, started: make(chan struct{})}
	stuck := &signalDetector{name: "stuck", blocks: true, started: make(chan struct{})}

	c := check.NewCoordinator([]check.Detector{fast, stuck}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	go func() {
		<-fast.started
		<-stuck.started
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	noTimeout := func(s policy.DetectorSettings) policy.DetectorSettings {
		s.Timeout = 0
		return s
	}

	agg := c.Check(ctx, textRequest(), []policy.DetectorSettings{
		noTimeout(settings("fast", 1, false)),
		noTimeout(settings("stuck", 1, false)),
	})

	require.Len(t, agg.Results, 2)
	assert.False(t, agg.Results[0].Failed)
	assert.True(t, agg.Results[1].Failed)
	require.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.InDelta(t, 80.0, agg.NetConfidence, 0.001)
	assert.InDelta(t, 80.0, agg.MaxConfidence, 0.001)
	assert.Equal(t, "fast", check.DetectionMethod(agg))
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		results []*types.CheckResult
		want    float64
	}{
		{
			name:    "empty",
			results: nil,
			want:    0,
		},
		{
			name: "single spam",
			results: []*types.CheckResult{
				{Detector: "a", Verdict: enum.VerdictSpam, Confidence: 75, Weight: 1},
			},
			want: 75,
		},
		{
			name: "weights shift the average",
			results: []*types.CheckResult{
				{Detector: "a", Verdict: enum.VerdictSpam, Confidence: 90, Weight: 3},
				{Detector: "b", Verdict: enum.VerdictClean, Confidence: 90, Weight: 1},
			},
			want: 45,
		},
		{
			name: "confidence is clamped",
			results: []*types.CheckResult{
				{Detector: "a", Verdict: enum.VerdictSpam, Confidence: 250, Weight: 1},
			},
			want: 100,
		},
		{
			name: "zero weight is excluded",
			results: []*types.CheckResult{
				{Detector: "a", Verdict: enum.VerdictSpam, Confidence: 60, Weight: 1},
				{Detector: "b", Verdict: enum.VerdictClean, Confidence: 100, Weight: 0},
			},
			want: 60,
		},
		{
			name: "rounded to two decimals",
			results: []*types.CheckResult{
				{Detector: "a", Verdict: enum.VerdictSpam, Confidence: 100, Weight: 1},
				{Detector: "b", Verdict: enum.VerdictSpam, Confidence: 0, Weight: 1},
				{Detector: "c", Verdict: enum.VerdictSpam, Confidence: 0, Weight: 1},
			},
			want: 33.33,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			agg := check.Aggregate(tt.results)
			assert.InDelta(t, tt.want, agg.NetConfidence, 0.0001)
			assert.GreaterOrEqual(t, agg.NetConfidence, -100.0)
			assert.LessOrEqual(t, agg.NetConfidence, 100.0)
		})
	}
}

func TestDetectionMethod(t *testing.T) {
	t.Parallel()

	agg := &types.AggregateResult{Results: []*types.CheckResult{
		{Detector: "wordlist"},
		{Detector: "gemini", Failed: true},
		{Detector: "links"},
	}}

	assert.Equal(t, "wordlist,links", check.DetectionMethod(agg))
	assert.Equal(t, "none", check.DetectionMethod(&types.AggregateResult{}))
}
