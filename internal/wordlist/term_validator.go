package wordlist

import (
	"fmt"

	"github.com/robalyx/chatguard/internal/detector"
	"github.com/robalyx/chatguard/internal/setup/config"
	"go.uber.org/zap"
)

// TermValidator finds primary terms that never change the detector's result:
// duplicates after normalization, and terms whose every match is already
// reported by another entry with at least the same confidence.
type TermValidator struct{}

// NewTermValidator creates a new TermValidator instance.
func NewTermValidator() *TermValidator {
	return &TermValidator{}
}

// Validate performs duplicate and shadowed term validation.
func (v *TermValidator) Validate(wordlist *config.Wordlist) []Issue {
	issues := v.checkDuplicates(wordlist)
	issues = append(issues, v.checkShadowed(wordlist)...)

	return issues
}

// checkDuplicates finds primary terms that normalize to an earlier primary term.
func (v *TermValidator) checkDuplicates(wordlist *config.Wordlist) []Issue {
	var issues []Issue

	seen := make(map[string]int)

	for i, entry := range wordlist.Terms {
		key := detector.NormalizeTerm(entry.Term)
		if key == "" {
			continue
		}

		if prev, exists := seen[key]; exists {
			issues = append(issues, Issue{
				Type: IssueExactDuplicate,
				Description: fmt.Sprintf("Term '%s' duplicates '%s' (positions %d and %d)",
					entry.Term, wordlist.Terms[prev].Term, prev, i),
				Term:     entry.Term,
				Location: i,
			})
			continue
		}

		seen[key] = i
	}

	return issues
}

// checkShadowed finds terms that can only match text another entry already
// matches. A shadowing entry with lower confidence is fine because the longer
// term then raises the reported confidence.
func (v *TermValidator) checkShadowed(wordlist *config.Wordlist) []Issue {
	var issues []Issue

	matchers := make([]*detector.WordlistDetector, len(wordlist.Terms))
	for i, entry := range wordlist.Terms {
		matchers[i] = detector.NewWordlistDetector(&config.Wordlist{
			Terms: []config.WordlistEntry{{Term: entry.Term, AllowSubstring: entry.AllowSubstring}},
		}, zap.NewNop())
	}

	for i, entry := range wordlist.Terms {
		normalized := detector.NormalizeTerm(entry.Term)
		if normalized == "" {
			continue
		}

		for j, other := range wordlist.Terms {
			if i == j || detector.NormalizeTerm(other.Term) == normalized {
				continue
			}

			if effectiveConfidence(other) < effectiveConfidence(entry) {
				continue
			}

			if len(matchers[j].Match(entry.Term)) == 0 {
				continue
			}

			issues = append(issues, Issue{
				Type: IssueShadowedTerm,
				Description: fmt.Sprintf("Term '%s' is redundant because '%s' matches every message it matches "+
					"with the same or higher confidence", entry.Term, other.Term),
				Term:     entry.Term,
				Location: i,
			})

			break
		}
	}

	return issues
}

// effectiveConfidence is the confidence the detector reports for an entry.
func effectiveConfidence(entry config.WordlistEntry) float64 {
	if entry.Confidence <= 0 {
		return detector.DefaultTermConfidence
	}
	return entry.Confidence
}
