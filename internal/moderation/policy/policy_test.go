package policy_test

import (
	"testing"
	"time"

	"github.com/robalyx/chatguard/internal/moderation/policy"
	"github.com/robalyx/chatguard/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func testConfig() *config.ModerationConfig {
	cfg := &config.ModerationConfig{
		Detectors: map[string]config.DetectorConfig{
			"wordlist": {Enabled: true, Weight: 1},
			"links":    {Enabled: true, Weight: 1, Critical: true},
			"gemini":   {Enabled: false, Weight: 2, TimeoutMs: 8000},
		},
		Admins:       []int64{1},
		Notification: config.Notification{AdminIDs: []int64{99}},
		Chats: map[string]config.ChatOverride{
			"100": {
				AutoBanThreshold: ptr(90.0),
				WarningThreshold: ptr(int64(5)),
				Admins:           []int64{7},
				Detectors: map[string]config.DetectorOverride{
					"links":  {Critical: ptr(false)},
					"gemini": {Enabled: ptr(true)},
				},
			},
		},
	}
	cfg.ApplyDefaults()

	return cfg
}

func TestResolverGlobal(t *testing.T) {
	t.Parallel()

	r, err := policy.NewResolver(testConfig())
	require.NoError(t, err)

	p := r.ForChat(555)
	assert.Same(t, r.Global(), p)
	assert.InDelta(t, config.DefaultAutoBanThreshold, p.AutoBanThreshold, 0.001)
	assert.Equal(t, int64(config.DefaultWarningThreshold), p.WarningThreshold)
	assert.True(t, p.IsAdmin(1))
	assert.False(t, p.IsAdmin(7))

	names := make([]string, 0, len(p.Detectors))
	for _, d := range p.Detectors {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"gemini", "links", "wordlist"}, names)

	enabled := p.EnabledDetectors()
	require.Len(t, enabled, 2)
	assert.Equal(t, "links", enabled[0].Name)
	assert.Equal(t, time.Duration(config.DefaultDetectorTimeoutMs)*time.Millisecond, enabled[0].Timeout)

	critical := p.CriticalDetectors()
	require.Len(t, critical, 1)
	assert.Equal(t, "links", critical[0].Name)
}

func TestResolverChatOverride(t *testing.T) {
	t.Parallel()

	r, err := policy.NewResolver(testConfig())
	require.NoError(t, err)

	p := r.ForChat(100)
	assert.Equal(t, int64(100), p.ChatID)
	assert.InDelta(t, 90.0, p.AutoBanThreshold, 0.001)
	assert.InDelta(t, config.DefaultReviewThreshold, p.ReviewThreshold, 0.001)
	assert.Equal(t, int64(5), p.WarningThreshold)
	assert.True(t, p.IsAdmin(1))
	assert.True(t, p.IsAdmin(7))
	assert.ElementsMatch(t, []int64{99, 7}, p.AlertAdmins)
	assert.Empty(t, p.CriticalDetectors())

	enabled := p.EnabledDetectors()
	require.Len(t, enabled, 3)
	assert.Equal(t, "gemini", enabled[0].Name)
	assert.Equal(t, 8*time.Second, enabled[0].Timeout)

	// Overrides must not leak into the global policy
	assert.Len(t, r.Global().CriticalDetectors(), 1)
	assert.Equal(t, []int64{99}, r.Global().AlertAdmins)
}

func TestResolverInvalidChatID(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Chats["general"] = config.ChatOverride{}

	_, err := policy.NewResolver(cfg)
	require.ErrorIs(t, err, policy.ErrInvalidChatID)
}
