package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// nameSuffixes are generational suffixes dropped during normalization, longest first
var nameSuffixes = []string{"iii", "jr", "sr", "ii", "iv"}

// NormalizeName canonicalizes a display name for comparison.
// "Pat Doe Jr." and "pat  doe" both become "pat doe".
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	// Casers are stateful, build one per call
	name = cases.Fold().String(stripAccents(name))

	// Punctuation is removed without inserting a space: "A.J." -> "aj", "D'Andre" -> "dandre"
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	kept := tokens[:0]
	for i, tok := range tokens {
		// never strip the leading token, a lone "Jr" is still a name
		if i > 0 && isSuffix(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

func isSuffix(token string) bool {
	for _, s := range nameSuffixes {
		if token == s {
			return true
		}
	}
	return false
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
