package resolve

import (
	"github.com/hpungsan/cardbot/internal/ticket"
)

// DefaultThreshold is the minimum Score for a fuzzy match.
const DefaultThreshold = 0.75

// MatchKind tells which tier produced a match.
type MatchKind string

const (
	MatchExact MatchKind = "exact"
	MatchFuzzy MatchKind = "fuzzy"
)

// Result is the outcome of resolving one free-text value against a Map.
// The zero value is Unmatched.
type Result struct {
	Matched bool      `json:"matched"`
	ID      string    `json:"id,omitempty"`
	Name    string    `json:"name,omitempty"`
	Kind    MatchKind `json:"kind,omitempty"`
	Score   float64   `json:"score,omitempty"`
}

// Unmatched is the result for a value with no acceptable match.
var Unmatched = Result{}

// Resolver resolves free-text values using exact-then-fuzzy lookup.
type Resolver struct {
	// Threshold is the minimum similarity for the fuzzy tier. Zero means DefaultThreshold.
	Threshold float64
}

// Resolve resolves candidate against m with the default threshold.
func Resolve(candidate string, m Map) Result {
	return Resolver{}.Resolve(candidate, m)
}

// Resolve returns the entry of m that best matches candidate.
//
// An entry whose normalized name equals the normalized candidate always
// wins, even over a higher-scoring fuzzy neighbor. Otherwise the entry with
// the highest Score at or above the threshold wins; ties go to the entry
// that comes first. An empty candidate or map yields Unmatched.
func (r Resolver) Resolve(candidate string, m Map) Result {
	norm := ticket.Normalize(candidate)
	if norm == "" || m.Len() == 0 {
		return Unmatched
	}

	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = ticket.Normalize(e.Name)
		if keys[i] == norm {
			return Result{Matched: true, ID: e.ID, Name: e.Name, Kind: MatchExact, Score: 1}
		}
	}

	threshold := r.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	best, bestScore := -1, 0.0
	for i, key := range keys {
		s := Score(norm, key)
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore < threshold {
		return Unmatched
	}

	e := m.entries[best]
	return Result{Matched: true, ID: e.ID, Name: e.Name, Kind: MatchFuzzy, Score: bestScore}
}
