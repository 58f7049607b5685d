// Package slug turns post titles into URL-safe identifiers.
//
// Rules:
//  1. Strip diacritics (ř → r, é → e) and map a handful of letters that have
//     no decomposition (ł → l, ß → ss, ...).
//  2. Lower-case everything.
//  3. Convert any run of characters outside [a-z0-9] into a single "-".
//  4. Trim leading and trailing "-".
//  5. Cap the result at MaxLength bytes without ending on "-".
//
// Make is idempotent: Make(Make(s)) == Make(s) for every s.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLength is the longest slug Make produces.
const MaxLength = 100

var specialLetters = strings.NewReplacer(
	"ß", "ss",
	"æ", "ae", "Æ", "ae",
	"œ", "oe", "Œ", "oe",
	"ø", "o", "Ø", "o",
	"ł", "l", "Ł", "l",
	"đ", "d", "Đ", "d",
	"þ", "th", "Þ", "th",
	"&", " and ",
)

// Make converts title into lower-kebab ASCII. It returns an empty string when
// title contains no letters or digits.
func Make(title string) string {
	stripped, _, err := transform.String(newStripper(), specialLetters.Replace(title))
	if err != nil {
		stripped = title
	}

	var b strings.Builder
	b.Grow(len(stripped))
	lastWasDash := false
	for _, r := range strings.ToLower(stripped) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasDash = false
		default:
			if !lastWasDash {
				b.WriteRune('-')
				lastWasDash = true
			}
		}
	}

	s := strings.Trim(b.String(), "-")
	if len(s) > MaxLength {
		s = strings.TrimRight(s[:MaxLength], "-")
	}
	return s
}

// newStripper decomposes characters and drops the combining marks. A
// transform.Transformer keeps state, so each call gets a fresh chain.
func newStripper() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}
