package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/tailscale/hujson"
)

// ErrWordlistNotFound is returned when no wordlist file exists in any config path.
var ErrWordlistNotFound = errors.New("could not find wordlist.jsonc in any config path")

// WordlistEntry represents a single spam term with its metadata.
type WordlistEntry struct {
	Term           string   `json:"term"`                     // Primary term
	RelatedTerms   []string `json:"relatedTerms"`             // Variations, misspellings, abbreviations
	Category       string   `json:"category"`                 // advertising, scam, crypto, adult
	Confidence     float64  `json:"confidence"`               // Confidence reported when the term matches
	AllowSubstring bool     `json:"allowSubstring,omitempty"` // Allow matching as substring within words (not just word boundaries)
}

// Wordlist represents the full wordlist configuration.
type Wordlist struct {
	Terms []WordlistEntry `json:"terms"`
}

// LoadWordlist loads the wordlist configuration from the first available path.
// It searches the same config paths as LoadConfig for consistency.
func LoadWordlist(configPath string) (*Wordlist, error) {
	// Try the specific config path
	if configPath != "" {
		if wordlist, err := LoadWordlistFromPath(configPath + "/wordlist.jsonc"); err == nil {
			return wordlist, nil
		}
	}

	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	// Try to load wordlist from each path
	for _, path := range SearchPaths(homeDir) {
		if wordlist, err := LoadWordlistFromPath(path + "/wordlist.jsonc"); err == nil {
			return wordlist, nil
		}
	}

	return nil, ErrWordlistNotFound
}

// LoadWordlistFromPath loads the wordlist from a specific file path.
func LoadWordlistFromPath(wordlistPath string) (*Wordlist, error) {
	// Read wordlist file
	data, err := os.ReadFile(wordlistPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read wordlist file: %w", err)
	}

	return ParseWordlist(data)
}

// ParseWordlist parses JSONC wordlist data.
func ParseWordlist(data []byte) (*Wordlist, error) {
	// Parse JSONC
	standardJSON, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to standardize JSONC: %w", err)
	}

	// Parse wordlist
	var wordlist Wordlist
	if err := sonic.Unmarshal(standardJSON, &wordlist); err != nil {
		return nil, fmt.Errorf("failed to parse wordlist JSON: %w", err)
	}

	return &wordlist, nil
}
