// Package textnorm turns free text into the canonical form fed to the embedding model:
// ASCII lowercase letters and digits separated by single spaces.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize decomposes text (NFKD), drops combining marks, lowercases it, replaces every
// rune outside [a-z0-9] with a space and collapses the spaces. It never fails: input that
// contains nothing usable yields an empty string.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	// transformers keep state, so the chain is built per call.
	stripMarks := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	decomposed, _, err := transform.String(stripMarks, text)
	if err != nil {
		decomposed = text
	}

	mapped := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return ' '
	}, strings.ToLower(decomposed))

	return strings.Join(strings.Fields(mapped), " ")
}

// NormalizeOptional is Normalize for input that may be absent. A nil text is treated as empty.
func NormalizeOptional(text *string) string {
	if text == nil {
		return ""
	}
	return Normalize(*text)
}
