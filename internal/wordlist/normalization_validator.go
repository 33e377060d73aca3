package wordlist

import (
	"fmt"
	"unicode/utf8"

	"github.com/robalyx/chatguard/internal/detector"
	"github.com/robalyx/chatguard/internal/setup/config"
)

const (
	minTermLength = 2
	maxTermLength = 40
)

// NormalizationValidator finds variations the detector already matches
// through case folding, accent removal and leetspeak reversal.
type NormalizationValidator struct{}

// NewNormalizationValidator creates a new NormalizationValidator instance.
func NewNormalizationValidator() *NormalizationValidator {
	return &NormalizationValidator{}
}

// Validate performs term length and normalization redundancy validation.
func (v *NormalizationValidator) Validate(wordlist *config.Wordlist) []Issue {
	var issues []Issue

	for i, entry := range wordlist.Terms {
		issues = append(issues, v.checkTermLength(entry, i)...)
		issues = append(issues, v.checkRelatedRedundancy(entry, i)...)
	}

	return issues
}

// checkTermLength flags terms too short to match reliably or too long to be useful.
func (v *NormalizationValidator) checkTermLength(entry config.WordlistEntry, location int) []Issue {
	length := utf8.RuneCountInString(detector.NormalizeTerm(entry.Term))
	if entry.Term == "" || (length >= minTermLength && length <= maxTermLength) {
		return nil
	}

	return []Issue{{
		Type: IssueInvalidTermLength,
		Description: fmt.Sprintf("Term '%s' normalizes to %d characters (must be %d-%d)",
			entry.Term, length, minTermLength, maxTermLength),
		Term:     entry.Term,
		Location: location,
	}}
}

// checkRelatedRedundancy flags related terms that normalize to the primary
// term or to an earlier related term of the same entry.
func (v *NormalizationValidator) checkRelatedRedundancy(entry config.WordlistEntry, location int) []Issue {
	var issues []Issue

	seen := map[string]string{detector.NormalizeTerm(entry.Term): entry.Term}

	for _, relatedTerm := range entry.RelatedTerms {
		normalized := detector.NormalizeTerm(relatedTerm)
		if normalized == "" {
			continue
		}

		if existing, ok := seen[normalized]; ok {
			issues = append(issues, Issue{
				Type: IssueNormalizationRedundancy,
				Description: fmt.Sprintf("Related term '%s' of '%s' matches the same text as '%s' - "+
					"remove it as the detector normalizes it automatically", relatedTerm, entry.Term, existing),
				Term:     entry.Term,
				Location: location,
			})
			continue
		}

		seen[normalized] = relatedTerm
	}

	return issues
}
