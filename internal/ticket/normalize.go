package ticket

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// foldTable covers letters that carry no combining mark under NFD.
var foldTable = strings.NewReplacer(
	"ß", "ss", "ẞ", "ss",
	"æ", "ae", "Æ", "ae",
	"œ", "oe", "Œ", "oe",
	"ø", "o", "Ø", "o",
	"ł", "l", "Ł", "l",
	"đ", "d", "Đ", "d",
	"ð", "d", "Ð", "d",
	"þ", "th", "Þ", "th",
	"ı", "i",
)

// Normalize canonicalizes a free-text label for comparison:
// 1. Transliterate diacritics to their unaccented base letters
// 2. Trim leading/trailing whitespace
// 3. Lowercase
// 4. Collapse internal whitespace to single spaces
//
// Characters with no unaccented equivalent pass through unchanged.
func Normalize(s string) string {
	s = Transliterate(s)
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return s
}

// Transliterate strips combining marks (é → e, ñ → n) and folds the
// handful of letters that do not decompose. It never fails; on a
// transform error the input is returned as-is.
func Transliterate(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return foldTable.Replace(out)
}
