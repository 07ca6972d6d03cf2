package query

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// wordRe matches runs of letters, marks, digits and underscores.
var wordRe = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`)

// Normalizer turns raw text into the lowercase, corrected, space-joined
// token string used for rewriting and retrieval.
type Normalizer struct {
	corrections CorrectionsTable
}

// NewNormalizer creates a normalizer backed by the given table.
func NewNormalizer(corrections CorrectionsTable) *Normalizer {
	return &Normalizer{corrections: corrections}
}

// Normalize never fails. Punctuation and original spacing are dropped;
// text without word tokens yields "".
func (n *Normalizer) Normalize(text string) string {
	tokens := Tokens(text)
	for i, tok := range tokens {
		tokens[i] = n.corrections.Correct(tok)
	}
	return strings.Join(tokens, " ")
}

// Tokens returns the lowercase word tokens of text.
func Tokens(text string) []string {
	return wordRe.FindAllString(fold(text), -1)
}

// fold applies compatibility normalization and Unicode lowercasing. A
// Caser holds state, so a new one is made per call.
func fold(s string) string {
	lower := cases.Lower(language.Und).String(norm.NFKC.String(s))
	return norm.NFKC.String(lower)
}
