// Package textnorm normalizes free-text queries before matching.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fold applies NFKC normalization and Unicode case folding, collapses runs
// of whitespace, and trims the result.
func Fold(s string) string {
	folded := cases.Fold().String(norm.NFKC.String(s))
	return strings.Join(strings.Fields(folded), " ")
}

// Words splits the folded text into letter/digit runs. Apostrophes inside a
// word are dropped so "program's" yields "programs".
func Words(s string) []string {
	folded := strings.ReplaceAll(Fold(s), "'", "")
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// WordSet returns the distinct words of s.
func WordSet(s string) map[string]struct{} {
	words := Words(s)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
