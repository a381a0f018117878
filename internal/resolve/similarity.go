package resolve

import (
	"strings"
	"unicode"

	"github.com/xrash/smetrics"
)

// Jaro-Winkler parameters: boost above 0.7 similarity, up to a 4-rune prefix.
const (
	jwBoostThreshold = 0.7
	jwPrefixSize     = 4
)

// Score returns the similarity of two normalized strings in [0, 1]:
//
//	max(JaroWinkler(a, b), (Dice(a, b) + Coverage(a, b)) / 2)
//
// Jaro-Winkler rewards typos and transpositions ("jnae" ~ "jane");
// the bigram/token half rewards a candidate contained in a longer name
// ("backlog" ~ "on hold/backlog").
func Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	jw := smetrics.JaroWinkler(a, b, jwBoostThreshold, jwPrefixSize)
	overlap := (Dice(a, b) + Coverage(a, b)) / 2
	if overlap > jw {
		return overlap
	}
	return jw
}

// Dice is the Sørensen–Dice coefficient over character bigrams.
// Strings shorter than two runes compare by equality.
func Dice(a, b string) float64 {
	ab, bb := bigrams(a), bigrams(b)
	if len(ab) == 0 || len(bb) == 0 {
		if a == b {
			return 1
		}
		return 0
	}

	counts := make(map[string]int, len(bb))
	for _, g := range bb {
		counts[g]++
	}
	shared := 0
	for _, g := range ab {
		if counts[g] > 0 {
			counts[g]--
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(ab)+len(bb))
}

// Coverage is the fraction of candidate tokens that appear among the
// tokens of name.
func Coverage(candidate, name string) float64 {
	ct := Tokens(candidate)
	if len(ct) == 0 {
		return 0
	}
	have := make(map[string]bool)
	for _, t := range Tokens(name) {
		have[t] = true
	}
	hit := 0
	for _, t := range ct {
		if have[t] {
			hit++
		}
	}
	return float64(hit) / float64(len(ct))
}

// Tokens splits s on anything that is not a letter or digit.
func Tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func bigrams(s string) []string {
	r := []rune(s)
	if len(r) < 2 {
		return nil
	}
	out := make([]string, 0, len(r)-1)
	for i := 0; i < len(r)-1; i++ {
		out = append(out, string(r[i:i+2]))
	}
	return out
}
