package wordlist

import (
	"fmt"
	"strings"

	"github.com/robalyx/chatguard/internal/setup/config"
)

// ReferenceValidator checks how related terms relate to primary terms and to
// each other across entries.
type ReferenceValidator struct{}

// NewReferenceValidator creates a new ReferenceValidator instance.
func NewReferenceValidator() *ReferenceValidator {
	return &ReferenceValidator{}
}

// Validate performs self, cross and shared reference validation.
func (v *ReferenceValidator) Validate(wordlist *config.Wordlist) []Issue {
	issues := v.checkReferences(wordlist)
	issues = append(issues, v.checkSharedRelatedTerms(wordlist)...)

	return issues
}

// checkReferences finds related terms that repeat their own primary term or
// another entry's primary term.
func (v *ReferenceValidator) checkReferences(wordlist *config.Wordlist) []Issue {
	var issues []Issue

	primaries := make(map[string]int, len(wordlist.Terms))
	for i, entry := range wordlist.Terms {
		primaries[strings.ToLower(entry.Term)] = i
	}

	for i, entry := range wordlist.Terms {
		for _, related := range entry.RelatedTerms {
			if strings.EqualFold(entry.Term, related) {
				issues = append(issues, Issue{
					Type:        IssueSelfReference,
					Description: fmt.Sprintf("Term '%s' lists itself as a related term", entry.Term),
					Term:        entry.Term,
					Location:    i,
				})
				continue
			}

			if owner, exists := primaries[strings.ToLower(related)]; exists {
				issues = append(issues, Issue{
					Type: IssueCrossReference,
					Description: fmt.Sprintf("Related term '%s' of '%s' is also the primary term at position %d",
						related, entry.Term, owner),
					Term:     entry.Term,
					Location: i,
				})
			}
		}
	}

	return issues
}

// checkSharedRelatedTerms finds related terms listed by more than one entry.
// Only the first entry ever reports the match, so the others never see it.
func (v *ReferenceValidator) checkSharedRelatedTerms(wordlist *config.Wordlist) []Issue {
	var issues []Issue

	firstOwner := make(map[string]int)

	for i, entry := range wordlist.Terms {
		for _, related := range entry.RelatedTerms {
			key := strings.ToLower(strings.TrimSpace(related))
			if key == "" {
				continue
			}

			owner, exists := firstOwner[key]
			if !exists {
				firstOwner[key] = i
				continue
			}

			if owner == i {
				continue
			}

			issues = append(issues, Issue{
				Type: IssueSharedRelatedTerm,
				Description: fmt.Sprintf("Related term '%s' of '%s' is already listed by '%s' - "+
					"consider making it a primary term instead", related, entry.Term, wordlist.Terms[owner].Term),
				Term:     entry.Term,
				Location: i,
			})
		}
	}

	return issues
}
