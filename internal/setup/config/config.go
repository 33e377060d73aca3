package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v0.3.0"

// Current version of the config file.
const (
	CurrentCommonVersion     = 1
	CurrentModerationVersion = 2
)

// Default values applied when a config file leaves a field unset.
const (
	DefaultAutoBanThreshold     = 85.0
	DefaultReviewThreshold      = 70.0
	DefaultHighTrustFloor       = 95.0
	DefaultStrictBound          = 90.0
	DefaultDedupMaxDistance     = 3
	DefaultDedupCandidateWindow = 500
	DefaultWarningThreshold     = 3
	DefaultMaxConcurrentTargets = 4
	DefaultDetectorTimeoutMs    = 5000
	DefaultDetectorWeight       = 1.0
	DefaultCleanMessagesToTrust = 20
)

// Config represents the entire application configuration.
type Config struct {
	Common     CommonConfig
	Moderation ModerationConfig
}

// CommonConfig contains configuration shared by every command.
type CommonConfig struct {
	// Version of the common config.
	Version    int        `koanf:"version"`
	Debug      Debug      `koanf:"debug"`
	Telemetry  Telemetry  `koanf:"telemetry"`
	Retry      Retry      `koanf:"retry"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	Redis      Redis      `koanf:"redis"`
	Discord    Discord    `koanf:"discord"`
	Gemini     Gemini     `koanf:"gemini"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log files to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Maximum lines per log file.
	MaxLogLines int `koanf:"max_log_lines"`
}

// Telemetry contains tracing exporter configuration.
type Telemetry struct {
	// Uptrace DSN. Tracing stays on the no-op provider when empty.
	UptraceDSN string `koanf:"uptrace_dsn"`
	// Service name reported with every span.
	ServiceName string `koanf:"service_name"`
	// Deployment environment reported with every span.
	Environment string `koanf:"environment"`
}

// Retry contains retry configuration.
type Retry struct {
	// Maximum retry attempts.
	MaxRetries uint64 `koanf:"max_retries"`
	// Initial retry delay in milliseconds.
	Delay int `koanf:"delay"`
	// Maximum retry delay in milliseconds.
	MaxDelay int `koanf:"max_delay"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// Discord contains Discord bot configuration.
type Discord struct {
	// Discord bot token for authentication.
	Token string `koanf:"token"`
	// Maximum inbound messages checked concurrently.
	MaxConcurrentMessages int `koanf:"max_concurrent_messages"`
}

// Gemini contains Gemini API configuration for the LLM detector.
type Gemini struct {
	// API key for authentication.
	APIKey string `koanf:"api_key"`
	// Model used for message classification.
	Model string `koanf:"model"`
	// Maximum concurrent requests.
	MaxConcurrent int64 `koanf:"max_concurrent"`
}

// ModerationConfig contains the moderation policy defaults and per-chat overrides.
type ModerationConfig struct {
	// Version of the moderation config.
	Version      int                       `koanf:"version"`
	Detectors    map[string]DetectorConfig `koanf:"detectors"`
	Thresholds   Thresholds                `koanf:"thresholds"`
	Training     Training                  `koanf:"training"`
	Dedup        Dedup                     `koanf:"dedup"`
	Warnings     Warnings                  `koanf:"warnings"`
	Execution    Execution                 `koanf:"execution"`
	Notification Notification              `koanf:"notification"`
	AutoTrust    AutoTrust                 `koanf:"auto_trust"`
	Links        Links                     `koanf:"links"`
	// Users exempt from ordinary detection in every chat.
	Admins []int64 `koanf:"admins"`
	// Per-chat overrides keyed by chat ID.
	Chats map[string]ChatOverride `koanf:"chats"`
}

// DetectorConfig configures one registered detector.
type DetectorConfig struct {
	// Whether the detector runs at all.
	Enabled bool `koanf:"enabled"`
	// Weight in the net confidence average.
	Weight float64 `koanf:"weight"`
	// Critical detectors bypass scoring and trust exemptions.
	Critical bool `koanf:"critical"`
	// Per-call timeout in milliseconds (0 uses execution.detector_timeout_ms).
	TimeoutMs int `koanf:"timeout_ms"`
}

// Thresholds maps net confidence to action tiers.
type Thresholds struct {
	// Net confidence at or above which a user is banned everywhere.
	AutoBan float64 `koanf:"auto_ban"`
	// Net confidence at or above which a report is created.
	Review float64 `koanf:"review"`
}

// Training configures which detection results are kept as training samples.
type Training struct {
	// Detector whose spam vote is trusted without the strict bound.
	HighTrustDetector string `koanf:"high_trust_detector"`
	// Minimum confidence of the high-trust detector's spam vote.
	HighTrustFloor float64 `koanf:"high_trust_floor"`
	// Minimum absolute net confidence for other results.
	StrictBound float64 `koanf:"strict_bound"`
}

// Dedup configures near-duplicate suppression of training samples.
type Dedup struct {
	// Maximum Hamming distance between near-duplicate fingerprints.
	MaxDistance int `koanf:"max_distance"`
	// Number of recent samples per verdict compared against.
	CandidateWindow int `koanf:"candidate_window"`
}

// Warnings configures warning escalation.
type Warnings struct {
	// Warning count that escalates to a ban.
	AutoBanThreshold int64 `koanf:"auto_ban_threshold"`
}

// Execution configures action execution.
type Execution struct {
	// Maximum chats a cross-chat action touches concurrently.
	MaxConcurrentTargets int `koanf:"max_concurrent_targets"`
	// Default per-detector timeout in milliseconds.
	DetectorTimeoutMs int `koanf:"detector_timeout_ms"`
	// Temporary ban length in minutes.
	TempBanMinutes int `koanf:"temp_ban_minutes"`
}

// Notification configures moderation notifications.
type Notification struct {
	// Users alerted about critical violations and bans.
	AdminIDs []int64 `koanf:"admin_ids"`
	// Send a direct message to the affected user.
	NotifyUsers bool `koanf:"notify_users"`
}

// AutoTrust configures the clean-message auto-trust workflow.
type AutoTrust struct {
	// Enable auto-trust.
	Enabled bool `koanf:"enabled"`
	// Clean detections required before trust is granted.
	CleanMessagesRequired int `koanf:"clean_messages_required"`
}

// Links configures the link blocklist detector.
type Links struct {
	// Blocked domains, matched on the domain and its subdomains.
	BlockedDomains []string `koanf:"blocked_domains"`
	// Confidence reported for a blocked link.
	Confidence float64 `koanf:"confidence"`
}

// ChatOverride overrides a subset of the moderation defaults for one chat.
// Nil fields inherit the global value.
type ChatOverride struct {
	Detectors        map[string]DetectorOverride `koanf:"detectors"`
	AutoBanThreshold *float64                    `koanf:"auto_ban_threshold"`
	ReviewThreshold  *float64                    `koanf:"review_threshold"`
	HighTrustFloor   *float64                    `koanf:"high_trust_floor"`
	StrictBound      *float64                    `koanf:"strict_bound"`
	DedupMaxDistance *int                        `koanf:"dedup_max_distance"`
	WarningThreshold *int64                      `koanf:"warning_threshold"`
	// Additional admins for this chat.
	Admins []int64 `koanf:"admins"`
}

// DetectorOverride overrides a detector's settings for one chat.
type DetectorOverride struct {
	Enabled   *bool    `koanf:"enabled"`
	Weight    *float64 `koanf:"weight"`
	Critical  *bool    `koanf:"critical"`
	TimeoutMs *int     `koanf:"timeout_ms"`
}

// LoadConfig loads the configuration from the specified file.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// List search paths
	configPaths := SearchPaths(homeDir)

	// Load all config files
	var usedConfigPath string

	configFiles := []string{"common", "moderation"}
	for _, configName := range configFiles {
		configLoaded := false

		for _, path := range configPaths {
			configPath := fmt.Sprintf("%s/%s.toml", path, configName)
			if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
				configLoaded = true

				if usedConfigPath == "" {
					usedConfigPath = path
				}

				break
			}
		}

		if !configLoaded {
			return nil, "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, configName)
		}
	}

	config, err := unmarshal(k)
	if err != nil {
		return nil, "", err
	}

	return config, usedConfigPath, nil
}

// LoadConfigFrom loads both config files from a single directory.
func LoadConfigFrom(dir string) (*Config, error) {
	k := koanf.New(".")

	for _, configName := range []string{"common", "moderation"} {
		configPath := fmt.Sprintf("%s/%s.toml", dir, configName)
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrConfigFileNotFound, configPath, err)
		}
	}

	return unmarshal(k)
}

// SearchPaths lists the directories searched for config files, in order.
func SearchPaths(homeDir string) []string {
	return []string{
		".chatguard",
		homeDir + "/.chatguard/config",
		"/etc/chatguard/config",
		"/app/config",
		"config",
		".",
	}
}

// unmarshal decodes the loaded files, checks their versions and fills defaults.
func unmarshal(k *koanf.Koanf) (*Config, error) {
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Check versions for each config file
	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, err
	}

	if err := checkConfigVersion("moderation", config.Moderation.Version, CurrentModerationVersion); err != nil {
		return nil, err
	}

	config.Moderation.ApplyDefaults()

	return &config, nil
}

// ApplyDefaults fills unset moderation values with their defaults.
func (m *ModerationConfig) ApplyDefaults() {
	if m.Thresholds.AutoBan == 0 {
		m.Thresholds.AutoBan = DefaultAutoBanThreshold
	}

	if m.Thresholds.Review == 0 {
		m.Thresholds.Review = DefaultReviewThreshold
	}

	if m.Training.HighTrustFloor == 0 {
		m.Training.HighTrustFloor = DefaultHighTrustFloor
	}

	if m.Training.StrictBound == 0 {
		m.Training.StrictBound = DefaultStrictBound
	}

	if m.Dedup.MaxDistance == 0 {
		m.Dedup.MaxDistance = DefaultDedupMaxDistance
	}

	if m.Dedup.CandidateWindow == 0 {
		m.Dedup.CandidateWindow = DefaultDedupCandidateWindow
	}

	if m.Warnings.AutoBanThreshold == 0 {
		m.Warnings.AutoBanThreshold = DefaultWarningThreshold
	}

	if m.Execution.MaxConcurrentTargets == 0 {
		m.Execution.MaxConcurrentTargets = DefaultMaxConcurrentTargets
	}

	if m.Execution.DetectorTimeoutMs == 0 {
		m.Execution.DetectorTimeoutMs = DefaultDetectorTimeoutMs
	}

	if m.AutoTrust.CleanMessagesRequired == 0 {
		m.AutoTrust.CleanMessagesRequired = DefaultCleanMessagesToTrust
	}

	for name, detector := range m.Detectors {
		if detector.Weight == 0 {
			detector.Weight = DefaultDetectorWeight
			m.Detectors[name] = detector
		}
	}
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/robalyx/chatguard/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
