package wordlist

import (
	"fmt"
	"slices"
	"strings"

	"github.com/robalyx/chatguard/internal/setup/config"
)

// ValidCategories lists the spam categories a wordlist entry may use.
var ValidCategories = []string{"advertising", "scam", "crypto", "adult"}

// FieldValidator handles required field and value range validation.
type FieldValidator struct{}

// NewFieldValidator creates a new FieldValidator instance.
func NewFieldValidator() *FieldValidator {
	return &FieldValidator{}
}

// Validate performs required field and value range validation.
func (v *FieldValidator) Validate(wordlist *config.Wordlist) []Issue {
	var issues []Issue

	for i, entry := range wordlist.Terms {
		// Empty term
		if strings.TrimSpace(entry.Term) == "" {
			issues = append(issues, Issue{
				Type:        IssueEmptyTerm,
				Description: fmt.Sprintf("Entry at position %d has empty term", i),
				Location:    i,
			})
		}

		// Invalid category
		if !slices.Contains(ValidCategories, entry.Category) {
			issues = append(issues, Issue{
				Type: IssueInvalidCategory,
				Description: fmt.Sprintf("Term '%s' has invalid category '%s' (must be: %s)",
					entry.Term, entry.Category, strings.Join(ValidCategories, ", ")),
				Term:     entry.Term,
				Location: i,
			})
		}

		// Confidence out of range, 0 uses the detector default
		if entry.Confidence < 0 || entry.Confidence > 100 {
			issues = append(issues, Issue{
				Type: IssueInvalidConfidence,
				Description: fmt.Sprintf("Term '%s' has confidence %.2f (must be between 0 and 100)",
					entry.Term, entry.Confidence),
				Term:     entry.Term,
				Location: i,
			})
		}

		// Check for empty related terms
		for j, relatedTerm := range entry.RelatedTerms {
			if strings.TrimSpace(relatedTerm) == "" {
				issues = append(issues, Issue{
					Type: IssueEmptyRelatedTerm,
					Description: fmt.Sprintf("Term '%s' has empty related term at position %d",
						entry.Term, j),
					Term:     entry.Term,
					Location: i,
				})
			}
		}
	}

	return issues
}
