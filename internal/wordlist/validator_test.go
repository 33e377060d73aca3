package wordlist_test

import (
	"testing"

	"github.com/robalyx/chatguard/internal/setup/config"
	"github.com/robalyx/chatguard/internal/wordlist"
	"github.com/stretchr/testify/assert"
)

func issueTypes(issues []wordlist.Issue) []wordlist.IssueType {
	types := make([]wordlist.IssueType, 0, len(issues))
	for _, issue := range issues {
		types = append(types, issue.Type)
	}
	return types
}

func TestValidateWordlist(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		terms []config.WordlistEntry
		want  []wordlist.IssueType
	}{
		{
			name: "clean wordlist",
			terms: []config.WordlistEntry{
				{Term: "free nitro", RelatedTerms: []string{"nitro gift"}, Category: "scam", Confidence: 90},
				{Term: "buy followers", Category: "advertising"},
			},
			want: []wordlist.IssueType{},
		},
		{
			name: "duplicate ignoring case",
			terms: []config.WordlistEntry{
				{Term: "free nitro", Category: "scam"},
				{Term: "Free Nitro", Category: "scam"},
			},
			want: []wordlist.IssueType{wordlist.IssueExactDuplicate},
		},
		{
			name: "invalid fields",
			terms: []config.WordlistEntry{
				{Term: "free nitro", Category: "spam", Confidence: 120, RelatedTerms: []string{" "}},
			},
			want: []wordlist.IssueType{wordlist.IssueInvalidCategory, wordlist.IssueInvalidConfidence, wordlist.IssueEmptyRelatedTerm},
		},
		{
			name: "self reference",
			terms: []config.WordlistEntry{
				{Term: "airdrop", RelatedTerms: []string{"AirDrop"}, Category: "crypto"},
			},
			want: []wordlist.IssueType{wordlist.IssueSelfReference, wordlist.IssueNormalizationRedundancy},
		},
		{
			name: "leetspeak variant is redundant",
			terms: []config.WordlistEntry{
				{Term: "free nitro", RelatedTerms: []string{"fr33 nitro"}, Category: "scam"},
			},
			want: []wordlist.IssueType{wordlist.IssueNormalizationRedundancy},
		},
		{
			name: "related term shared between entries",
			terms: []config.WordlistEntry{
				{Term: "free nitro", RelatedTerms: []string{"giveaway"}, Category: "scam"},
				{Term: "crypto drop", RelatedTerms: []string{"giveaway"}, Category: "crypto"},
			},
			want: []wordlist.IssueType{wordlist.IssueSharedRelatedTerm},
		},
		{
			name: "longer term shadowed by a more confident one",
			terms: []config.WordlistEntry{
				{Term: "nitro", Category: "scam", Confidence: 80},
				{Term: "free nitro", Category: "scam", Confidence: 70},
			},
			want: []wordlist.IssueType{wordlist.IssueShadowedTerm},
		},
		{
			name: "longer term raising confidence is kept",
			terms: []config.WordlistEntry{
				{Term: "nitro", Category: "scam", Confidence: 60},
				{Term: "free nitro", Category: "scam", Confidence: 90},
			},
			want: []wordlist.IssueType{},
		},
		{
			name: "cross reference to another primary term",
			terms: []config.WordlistEntry{
				{Term: "free nitro", RelatedTerms: []string{"steam gift"}, Category: "scam"},
				{Term: "steam gift", Category: "scam"},
			},
			want: []wordlist.IssueType{wordlist.IssueCrossReference},
		},
		{
			name: "term too short",
			terms: []config.WordlistEntry{
				{Term: "x", Category: "adult"},
			},
			want: []wordlist.IssueType{wordlist.IssueInvalidTermLength},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			issues := wordlist.ValidateWordlist(&config.Wordlist{Terms: tt.terms})
			assert.ElementsMatch(t, tt.want, issueTypes(issues))
		})
	}
}

func TestValidateEmptyWordlist(t *testing.T) {
	t.Parallel()

	issues := wordlist.ValidateWordlist(nil)
	assert.Equal(t, []wordlist.IssueType{wordlist.IssueEmptyWordlist}, issueTypes(issues))
}

func TestShippedWordlistIsValid(t *testing.T) {
	t.Parallel()

	list, err := config.LoadWordlistFromPath("../../config/wordlist.jsonc")
	if !assert.NoError(t, err) {
		return
	}

	assert.Empty(t, wordlist.ValidateWordlist(list))
}
