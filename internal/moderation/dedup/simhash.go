package dedup

import (
	"encoding/binary"
	"math/bits"
	"strings"
	"unicode"

	"github.com/robalyx/chatguard/pkg/utils"
	"golang.org/x/crypto/blake2b"
)

// Fingerprint is a 64-bit SimHash of normalized text.
// The zero value means the text produced no tokens.
type Fingerprint uint64

// phoneticReplacer folds spellings that sound alike. Longer patterns come
// first so "ck" wins over "c".
var phoneticReplacer = strings.NewReplacer("ph", "f", "ck", "k", "c", "k", "q", "k", "z", "s")

// Hash computes the SimHash of text. Tokens come from the text normalizer so
// case, accents, punctuation and whitespace differences do not change the
// fingerprint. Each token is reduced to its consonant skeleton before hashing,
// so dropped or swapped vowels, doubled letters and sound-alike spellings
// ("skinz", "folowers", "expirs") hash like the original word. Each skeleton
// votes on every bit weighted by its frequency.
func Hash(text string) Fingerprint {
	tokens := utils.NewTextNormalizer().Tokens(text)
	if len(tokens) == 0 {
		return 0
	}

	frequencies := make(map[string]int, len(tokens))
	for _, token := range tokens {
		frequencies[skeleton(token)]++
	}

	var vector [64]int
	for token, weight := range frequencies {
		h := tokenHash(token)
		for bit := range 64 {
			if h&(1<<bit) != 0 {
				vector[bit] += weight
			} else {
				vector[bit] -= weight
			}
		}
	}

	var fingerprint uint64
	for bit, v := range vector {
		if v > 0 {
			fingerprint |= 1 << bit
		}
	}

	return Fingerprint(fingerprint)
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b Fingerprint) int {
	return bits.OnesCount64(uint64(a ^ b))
}

// IsNearDuplicate returns true if any candidate lies within maxDistance of fp.
func IsNearDuplicate(fp Fingerprint, candidates []uint64, maxDistance int) bool {
	if fp == 0 {
		return false
	}

	for _, c := range candidates {
		if Distance(fp, Fingerprint(c)) <= maxDistance {
			return true
		}
	}

	return false
}

// skeleton keeps the first character of a token and its consonants after
// phonetic folding, collapsing repeated letters. Digits are kept as they are.
func skeleton(token string) string {
	folded := phoneticReplacer.Replace(token)

	var b strings.Builder
	b.Grow(len(folded))

	var prev rune
	for i, r := range folded {
		if i > 0 && isVowel(r) {
			continue
		}
		if r == prev && unicode.IsLetter(r) {
			continue
		}

		b.WriteRune(r)
		prev = r
	}

	return b.String()
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}

// tokenHash returns a stable 64-bit hash of a token.
func tokenHash(token string) uint64 {
	sum := blake2b.Sum256([]byte(token))
	return binary.LittleEndian.Uint64(sum[:8])
}
