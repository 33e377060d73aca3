package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/robalyx/chatguard/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const commonTOML = `
[common]
version = 1

[common.debug]
log_level = "debug"
max_logs_to_keep = 3
max_log_lines = 1000

[common.redis]
host = "localhost"
port = 6379
`

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadConfigFrom(t *testing.T) {
	t.Parallel()

	t.Run("defaults and overrides", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeConfig(t, dir, "common.toml", commonTOML)
		writeConfig(t, dir, "moderation.toml", `
[moderation]
version = 2
admins = [42]

[moderation.detectors.wordlist]
enabled = true

[moderation.detectors.links]
enabled = true
weight = 2.5
critical = true

[moderation.chats."100"]
auto_ban_threshold = 90.0
admins = [7]

[moderation.chats."100".detectors.links]
critical = false
`)

		cfg, err := config.LoadConfigFrom(dir)
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.Common.Debug.LogLevel)
		assert.Equal(t, 6379, cfg.Common.Redis.Port)

		mod := cfg.Moderation
		assert.InDelta(t, config.DefaultAutoBanThreshold, mod.Thresholds.AutoBan, 0.001)
		assert.InDelta(t, config.DefaultReviewThreshold, mod.Thresholds.Review, 0.001)
		assert.Equal(t, config.DefaultDedupMaxDistance, mod.Dedup.MaxDistance)
		assert.Equal(t, int64(config.DefaultWarningThreshold), mod.Warnings.AutoBanThreshold)
		assert.Equal(t, []int64{42}, mod.Admins)

		require.Contains(t, mod.Detectors, "wordlist")
		assert.InDelta(t, config.DefaultDetectorWeight, mod.Detectors["wordlist"].Weight, 0.001)
		assert.InDelta(t, 2.5, mod.Detectors["links"].Weight, 0.001)
		assert.True(t, mod.Detectors["links"].Critical)

		require.Contains(t, mod.Chats, "100")
		override := mod.Chats["100"]
		require.NotNil(t, override.AutoBanThreshold)
		assert.InDelta(t, 90.0, *override.AutoBanThreshold, 0.001)
		assert.Nil(t, override.ReviewThreshold)
		assert.Equal(t, []int64{7}, override.Admins)
		require.NotNil(t, override.Detectors["links"].Critical)
		assert.False(t, *override.Detectors["links"].Critical)
	})

	t.Run("version mismatch", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeConfig(t, dir, "common.toml", commonTOML)
		writeConfig(t, dir, "moderation.toml", "[moderation]\nversion = 1\n")

		_, err := config.LoadConfigFrom(dir)
		require.ErrorIs(t, err, config.ErrConfigVersionMismatch)
	})

	t.Run("version missing", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeConfig(t, dir, "common.toml", commonTOML)
		writeConfig(t, dir, "moderation.toml", "[moderation]\nadmins = []\n")

		_, err := config.LoadConfigFrom(dir)
		require.ErrorIs(t, err, config.ErrConfigVersionMissing)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeConfig(t, dir, "common.toml", commonTOML)

		_, err := config.LoadConfigFrom(dir)
		require.ErrorIs(t, err, config.ErrConfigFileNotFound)
	})
}

func TestParseWordlist(t *testing.T) {
	t.Parallel()

	wordlist, err := config.ParseWordlist([]byte(`{
		// comments are allowed
		"terms": [
			{"term": "free nitro", "relatedTerms": ["fr33 nitro"], "category": "scam", "confidence": 90},
		]
	}`))
	require.NoError(t, err)
	require.Len(t, wordlist.Terms, 1)
	assert.Equal(t, "free nitro", wordlist.Terms[0].Term)
	assert.Equal(t, []string{"fr33 nitro"}, wordlist.Terms[0].RelatedTerms)
	assert.InDelta(t, 90.0, wordlist.Terms[0].Confidence, 0.001)

	_, err = config.ParseWordlist([]byte(`{"terms": [`))
	require.Error(t, err)
}
