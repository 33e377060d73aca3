package detector

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
	"github.com/robalyx/chatguard/internal/setup/config"
	"github.com/robalyx/chatguard/internal/translator"
	"github.com/robalyx/chatguard/pkg/utils"
	"go.uber.org/zap"
)

// WordlistName is the configuration key of the wordlist detector.
const WordlistName = "wordlist"

// DefaultTermConfidence is used for wordlist entries without a confidence.
const DefaultTermConfidence = 75.0

// leetReplacer undoes common character substitutions.
var leetReplacer = strings.NewReplacer("@", "a", "3", "e", "0", "o", "1", "i", "$", "s")

// WordlistMatch describes a wordlist term found in a message.
type WordlistMatch struct {
	PrimaryTerm string
	MatchedTerm string
	Category    string
	Confidence  float64
}

// WordlistDetector flags messages containing known spam terms.
type WordlistDetector struct {
	wordlist   *config.Wordlist
	translator *translator.Translator
	regexCache map[string]*regexp.Regexp
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewWordlistDetector creates a detector over the loaded wordlist.
func NewWordlistDetector(wordlist *config.Wordlist, logger *zap.Logger) *WordlistDetector {
	return &WordlistDetector{
		wordlist:   wordlist,
		translator: translator.New(),
		regexCache: make(map[string]*regexp.Regexp),
		logger:     logger.Named("detector_wordlist"),
	}
}

// Name returns the configuration key of the detector.
func (d *WordlistDetector) Name() string {
	return WordlistName
}

// ContentKind returns the content the detector inspects.
func (d *WordlistDetector) ContentKind() enum.ContentKind {
	return enum.ContentKindText
}

// Check matches the message text against every wordlist entry.
// The most confident match determines the result.
func (d *WordlistDetector) Check(_ context.Context, req *types.ContentCheckRequest) (*types.CheckResult, error) {
	matches := d.Match(req.Text)
	if len(matches) == 0 {
		return &types.CheckResult{
			Verdict: enum.VerdictClean,
			Reason:  "no wordlist terms matched",
		}, nil
	}

	best := matches[0]
	terms := make([]string, 0, len(matches))
	for _, m := range matches {
		terms = append(terms, m.MatchedTerm)
		if m.Confidence > best.Confidence {
			best = m
		}
	}

	d.logger.Debug("Wordlist matched",
		zap.Int64("messageID", req.MessageID),
		zap.Strings("terms", terms))

	return &types.CheckResult{
		Verdict:    enum.VerdictSpam,
		Confidence: best.Confidence,
		Reason:     "matched " + best.Category + " term: " + best.PrimaryTerm,
	}, nil
}

// Match returns the first matching variation of each wordlist entry.
// Morse and binary segments are decoded and matched alongside the raw text.
func (d *WordlistDetector) Match(text string) []WordlistMatch {
	if d.wordlist == nil || len(d.wordlist.Terms) == 0 || text == "" {
		return nil
	}

	// TextNormalizer is not safe for concurrent use
	normalizer := utils.NewTextNormalizer()
	candidates := []string{substitute(normalizer, text)}
	if translator.HasEncodedContent(text) {
		candidates = append(candidates, substitute(normalizer, d.translator.Decode(text)))
	}

	var matches []WordlistMatch
	for i := range d.wordlist.Terms {
		entry := &d.wordlist.Terms[i]

		for _, term := range append([]string{entry.Term}, entry.RelatedTerms...) {
			if term == "" {
				continue
			}

			if !d.containsAny(candidates, substitute(normalizer, term), entry.AllowSubstring) {
				continue
			}

			confidence := entry.Confidence
			if confidence <= 0 {
				confidence = DefaultTermConfidence
			}

			matches = append(matches, WordlistMatch{
				PrimaryTerm: entry.Term,
				MatchedTerm: term,
				Category:    entry.Category,
				Confidence:  confidence,
			})

			break
		}
	}

	return matches
}

// containsAny checks the term against each candidate form of the message.
func (d *WordlistDetector) containsAny(candidates []string, term string, allowSubstring bool) bool {
	for _, candidate := range candidates {
		if d.contains(candidate, term, allowSubstring) {
			return true
		}
	}
	return false
}

// contains checks if the normalized text contains the term, on word boundaries
// unless substrings are allowed.
func (d *WordlistDetector) contains(text, term string, allowSubstring bool) bool {
	if term == "" {
		return false
	}

	if allowSubstring {
		return strings.Contains(text, term)
	}

	return d.compiledRegex(term).MatchString(text)
}

// compiledRegex gets or compiles a word-boundary regex for the term.
func (d *WordlistDetector) compiledRegex(term string) *regexp.Regexp {
	d.mu.RLock()
	if cached, exists := d.regexCache[term]; exists {
		d.mu.RUnlock()
		return cached
	}
	d.mu.RUnlock()

	pattern := `(?:^|[^\p{L}\p{N}])` + regexp.QuoteMeta(term) + `(?:[^\p{L}\p{N}]|$)`
	regex := regexp.MustCompile("(?i)" + pattern)

	d.mu.Lock()
	d.regexCache[term] = regex
	d.mu.Unlock()

	return regex
}

// NormalizeTerm returns the form of a term the detector actually matches.
func NormalizeTerm(term string) string {
	return substitute(utils.NewTextNormalizer(), term)
}

// substitute normalizes text and reverses leetspeak.
func substitute(normalizer *utils.TextNormalizer, text string) string {
	normalized := normalizer.Normalize(text)
	if normalized == "" {
		normalized = strings.ToLower(text)
	}

	return leetReplacer.Replace(normalized)
}
