// Package wordlist validates the spam wordlist against the matching rules of
// the wordlist detector.
package wordlist

import (
	"cmp"
	"slices"

	"github.com/robalyx/chatguard/internal/setup/config"
)

// IssueType identifies the kind of problem found in the wordlist.
type IssueType string

const (
	IssueEmptyWordlist           IssueType = "empty_wordlist"
	IssueEmptyTerm               IssueType = "empty_required_field"
	IssueEmptyRelatedTerm        IssueType = "empty_related_term"
	IssueInvalidCategory         IssueType = "invalid_category"
	IssueInvalidConfidence       IssueType = "invalid_confidence"
	IssueInvalidTermLength       IssueType = "invalid_term_length"
	IssueExactDuplicate          IssueType = "exact_duplicate"
	IssueShadowedTerm            IssueType = "shadowed_term"
	IssueSelfReference           IssueType = "self_reference"
	IssueCrossReference          IssueType = "cross_reference_duplicate"
	IssueSharedRelatedTerm       IssueType = "duplicate_related_term"
	IssueNormalizationRedundancy IssueType = "normalization_redundancy"
)

// Issue represents a validation issue found in the wordlist.
type Issue struct {
	Type        IssueType
	Description string
	Term        string
	Location    int // Index of the entry, -1 for the whole list
}

// Validator checks one aspect of the wordlist.
type Validator interface {
	Validate(wordlist *config.Wordlist) []Issue
}

// ValidateWordlist runs every validator and returns the issues ordered by entry.
func ValidateWordlist(wordlist *config.Wordlist) []Issue {
	if wordlist == nil || len(wordlist.Terms) == 0 {
		return []Issue{{
			Type:        IssueEmptyWordlist,
			Description: "Wordlist is empty or could not be loaded",
			Location:    -1,
		}}
	}

	validators := []Validator{
		NewFieldValidator(),
		NewTermValidator(),
		NewReferenceValidator(),
		NewNormalizationValidator(),
	}

	var issues []Issue
	for _, validator := range validators {
		issues = append(issues, validator.Validate(wordlist)...)
	}

	slices.SortStableFunc(issues, func(a, b Issue) int {
		return cmp.Compare(a.Location, b.Location)
	})

	return issues
}
