package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reSpaces  = regexp.MustCompile(`\s+`)
	reLetters = regexp.MustCompile(`\p{L}+`)
)

// FoldAccents removes combining marks, so "Emissão" becomes "Emissao".
func FoldAccents(input string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, input)
	if err != nil {
		return input
	}
	return out
}

// NormalizeLabel lowercases, folds accents and collapses whitespace.
func NormalizeLabel(input string) string {
	s := strings.ToLower(FoldAccents(input))
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// ContainsAny reports whether the normalized text contains one of the
// (already normalized) keywords.
func ContainsAny(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	norm := NormalizeLabel(text)
	for _, kw := range keywords {
		if strings.Contains(norm, kw) {
			return true
		}
	}
	return false
}

// LetterTokens splits the normalized input into alphabetic tokens.
func LetterTokens(input string) []string {
	return reLetters.FindAllString(NormalizeLabel(input), -1)
}
