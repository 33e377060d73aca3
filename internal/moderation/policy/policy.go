package policy

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/robalyx/chatguard/internal/setup/config"
)

// ErrInvalidChatID is returned when a per-chat override is keyed by something other than a chat ID.
var ErrInvalidChatID = errors.New("invalid chat ID in moderation overrides")

// DetectorSettings is the effective configuration of one detector in one chat.
type DetectorSettings struct {
	Name     string
	Enabled  bool
	Weight   float64
	Critical bool
	Timeout  time.Duration
}

// Policy is the resolved moderation configuration for a single chat.
type Policy struct {
	ChatID               int64
	Detectors            []DetectorSettings // Sorted by name
	AutoBanThreshold     float64
	ReviewThreshold      float64
	HighTrustDetector    string
	HighTrustFloor       float64
	StrictBound          float64
	DedupMaxDistance     int
	DedupCandidateWindow int
	WarningThreshold     int64
	MaxConcurrentTargets int
	TempBanDuration      time.Duration
	NotifyUsers          bool
	AlertAdmins          []int64
	AutoTrustEnabled     bool
	CleanMessagesToTrust int

	admins map[int64]struct{}
}

// IsAdmin returns true if the user is an administrator of this chat.
func (p *Policy) IsAdmin(userID int64) bool {
	_, ok := p.admins[userID]
	return ok
}

// EnabledDetectors returns every enabled detector.
func (p *Policy) EnabledDetectors() []DetectorSettings {
	enabled := make([]DetectorSettings, 0, len(p.Detectors))
	for _, d := range p.Detectors {
		if d.Enabled {
			enabled = append(enabled, d)
		}
	}
	return enabled
}

// CriticalDetectors returns every enabled critical detector.
func (p *Policy) CriticalDetectors() []DetectorSettings {
	critical := make([]DetectorSettings, 0, len(p.Detectors))
	for _, d := range p.Detectors {
		if d.Enabled && d.Critical {
			critical = append(critical, d)
		}
	}
	return critical
}

// Resolver resolves the effective policy of each chat.
// Policies are computed once at construction and never mutated.
type Resolver struct {
	global *Policy
	chats  map[int64]*Policy
}

// NewResolver builds the global policy and one policy per overridden chat.
func NewResolver(cfg *config.ModerationConfig) (*Resolver, error) {
	r := &Resolver{
		global: buildPolicy(0, cfg, nil),
		chats:  make(map[int64]*Policy, len(cfg.Chats)),
	}

	for key, override := range cfg.Chats {
		chatID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidChatID, key)
		}

		r.chats[chatID] = buildPolicy(chatID, cfg, &override)
	}

	return r, nil
}

// ForChat returns the policy of a chat, falling back to the global policy.
func (r *Resolver) ForChat(chatID int64) *Policy {
	if p, ok := r.chats[chatID]; ok {
		return p
	}
	return r.global
}

// Global returns the policy used for chats without overrides.
func (r *Resolver) Global() *Policy {
	return r.global
}

// buildPolicy merges the global config with an optional chat override.
func buildPolicy(chatID int64, cfg *config.ModerationConfig, override *config.ChatOverride) *Policy {
	p := &Policy{
		ChatID:               chatID,
		AutoBanThreshold:     cfg.Thresholds.AutoBan,
		ReviewThreshold:      cfg.Thresholds.Review,
		HighTrustDetector:    cfg.Training.HighTrustDetector,
		HighTrustFloor:       cfg.Training.HighTrustFloor,
		StrictBound:          cfg.Training.StrictBound,
		DedupMaxDistance:     cfg.Dedup.MaxDistance,
		DedupCandidateWindow: cfg.Dedup.CandidateWindow,
		WarningThreshold:     cfg.Warnings.AutoBanThreshold,
		MaxConcurrentTargets: cfg.Execution.MaxConcurrentTargets,
		TempBanDuration:      time.Duration(cfg.Execution.TempBanMinutes) * time.Minute,
		NotifyUsers:          cfg.Notification.NotifyUsers,
		AlertAdmins:          slices.Clone(cfg.Notification.AdminIDs),
		AutoTrustEnabled:     cfg.AutoTrust.Enabled,
		CleanMessagesToTrust: cfg.AutoTrust.CleanMessagesRequired,
		admins:               make(map[int64]struct{}, len(cfg.Admins)),
	}

	for _, id := range cfg.Admins {
		p.admins[id] = struct{}{}
	}

	defaultTimeout := time.Duration(cfg.Execution.DetectorTimeoutMs) * time.Millisecond
	for name, dc := range cfg.Detectors {
		settings := DetectorSettings{
			Name:     name,
			Enabled:  dc.Enabled,
			Weight:   dc.Weight,
			Critical: dc.Critical,
			Timeout:  defaultTimeout,
		}
		if dc.TimeoutMs > 0 {
			settings.Timeout = time.Duration(dc.TimeoutMs) * time.Millisecond
		}

		if override != nil {
			if do, ok := override.Detectors[name]; ok {
				applyDetectorOverride(&settings, do)
			}
		}

		p.Detectors = append(p.Detectors, settings)
	}

	slices.SortFunc(p.Detectors, func(a, b DetectorSettings) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})

	if override == nil {
		return p
	}

	if override.AutoBanThreshold != nil {
		p.AutoBanThreshold = *override.AutoBanThreshold
	}
	if override.ReviewThreshold != nil {
		p.ReviewThreshold = *override.ReviewThreshold
	}
	if override.HighTrustFloor != nil {
		p.HighTrustFloor = *override.HighTrustFloor
	}
	if override.StrictBound != nil {
		p.StrictBound = *override.StrictBound
	}
	if override.DedupMaxDistance != nil {
		p.DedupMaxDistance = *override.DedupMaxDistance
	}
	if override.WarningThreshold != nil {
		p.WarningThreshold = *override.WarningThreshold
	}

	// Chat admins are exempt and are also alerted about this chat
	for _, id := range override.Admins {
		p.admins[id] = struct{}{}
		if !slices.Contains(p.AlertAdmins, id) {
			p.AlertAdmins = append(p.AlertAdmins, id)
		}
	}

	return p
}

func applyDetectorOverride(settings *DetectorSettings, do config.DetectorOverride) {
	if do.Enabled != nil {
		settings.Enabled = *do.Enabled
	}
	if do.Weight != nil {
		settings.Weight = *do.Weight
	}
	if do.Critical != nil {
		settings.Critical = *do.Critical
	}
	if do.TimeoutMs != nil && *do.TimeoutMs > 0 {
		settings.Timeout = time.Duration(*do.TimeoutMs) * time.Millisecond
	}
}
