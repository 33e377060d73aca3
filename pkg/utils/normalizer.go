package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TextNormalizer wraps transform.Transformer to provide convenient string normalization methods.
// This is not safe for concurrent use.
type TextNormalizer struct {
	transformer transform.Transformer
}

// NewTextNormalizer creates a new TextNormalizer instance.
func NewTextNormalizer() *TextNormalizer {
	return &TextNormalizer{
		transformer: transform.Chain(
			norm.NFKD,                          // Decompose with compatibility decomposition
			runes.Remove(runes.In(unicode.Mn)), // Remove non-spacing marks
			runes.Map(unicode.ToLower),         // Convert to lowercase before normalization
			norm.NFKC,                          // Normalize with compatibility composition
		),
	}
}

// Normalize cleans up text using the normalizer.
// Returns empty string if normalization fails or input is empty.
func (n *TextNormalizer) Normalize(s string) string {
	// Return empty string if input is empty
	if s == "" {
		return ""
	}

	// Clean up whitespace while preserving newlines
	s = CompressWhitespacePreserveNewlines(s)
	if s == "" {
		return ""
	}

	// Normalize the text
	result, _, err := transform.String(n.transformer, s)
	if err != nil || result == "" {
		return ""
	}

	return result
}

// Contains checks if substr exists within s using the normalizer.
// Empty strings or normalization failures return false.
func (n *TextNormalizer) Contains(s, substr string) bool {
	if s == "" || substr == "" {
		return false
	}

	normalizedS := n.Normalize(s)
	normalizedSubstr := n.Normalize(substr)

	if normalizedS == "" || normalizedSubstr == "" {
		return strings.Contains(
			strings.ToLower(s),
			strings.ToLower(substr),
		)
	}

	return strings.Contains(normalizedS, normalizedSubstr)
}

// Tokens normalizes s and splits it into word tokens.
// Punctuation and symbols are dropped rather than treated as separators,
// so "fr.ee" and "free" produce the same token.
func (n *TextNormalizer) Tokens(s string) []string {
	normalized := n.Normalize(s)
	if normalized == "" {
		return nil
	}

	stripped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
			return r
		default:
			return -1
		}
	}, normalized)

	return strings.Fields(stripped)
}
