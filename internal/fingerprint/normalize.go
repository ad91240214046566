package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// #region stopwords
// stopwords contains common English words excluded from keyword extraction.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "be": true, "been": true,
	"being": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "not": true,
	"no": true, "and": true, "or": true, "but": true, "if": true,
	"then": true, "than": true, "so": true, "as": true, "at": true,
	"by": true, "for": true, "from": true, "in": true, "into": true,
	"of": true, "on": true, "to": true, "with": true, "about": true,
	"up": true, "out": true, "it": true, "its": true, "this": true,
	"that": true, "these": true, "those": true, "what": true, "which": true,
	"who": true, "how": true, "when": true, "where": true, "why": true,
	"you": true, "your": true, "we": true, "they": true, "them": true,
	"because": true, "there": true, "their": true, "would've": true,
	"also": true, "just": true, "very": true, "more": true, "most": true,
	"some": true, "such": true, "only": true, "other": true, "like": true,
}

// #endregion stopwords

// #region normalize
// Normalize lowercases text, strips punctuation, and collapses whitespace.
// The result is the canonical form hashed for replay detection.
func Normalize(text string) string {
	lowered := strings.ToLower(text)
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Hash returns the hex sha256 of the normalized text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// #endregion normalize

// #region keywords
// maxKeywords caps the extracted keyword set per submission.
const maxKeywords = 20

// Keywords extracts deduplicated non-stopword tokens longer than 3 runes from
// the normalized text, capped at maxKeywords in order of first appearance.
func Keywords(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.Fields(Normalize(text)) {
		if len([]rune(w)) <= 3 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

// #endregion keywords

// #region jaccard
// Jaccard computes set similarity between two keyword slices. Two empty sets
// have similarity 0, not 1, so blank submissions never match each other.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, w := range a {
		setA[w] = true
	}
	inter := 0
	setB := make(map[string]bool, len(b))
	for _, w := range b {
		if setB[w] {
			continue
		}
		setB[w] = true
		if setA[w] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// #endregion jaccard
