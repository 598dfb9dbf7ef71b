package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var lower = cases.Lower(language.Und)

// Fold lower-cases s and strips combining marks, so "Svadobné Oznámenie"
// becomes "svadobne oznamenie". Separators such as '_' and '-' turn into
// spaces so template keys like "wedding_invite" tokenize as two words.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = lower.String(out)
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', '/', '.':
			return ' '
		}
		return r
	}, out)
}
