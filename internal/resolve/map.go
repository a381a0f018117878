package resolve

import (
	"encoding/json"
	"strings"
)

// Entry pairs a board display name with its opaque identifier.
type Entry struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Map is a read-only, ordered snapshot of name → identifier entries for
// one vocabulary category. Order matters: it breaks fuzzy-score ties.
type Map struct {
	entries []Entry
}

// NewMap builds a Map from entries, dropping entries with a blank name or id.
// The input slice is copied.
func NewMap(entries ...Entry) Map {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Name) == "" || strings.TrimSpace(e.ID) == "" {
			continue
		}
		out = append(out, e)
	}
	return Map{entries: out}
}

// Len returns the number of entries.
func (m Map) Len() int {
	return len(m.entries)
}

// Entries returns a copy of the entries in order.
func (m Map) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Names returns the display names in order.
func (m Map) Names() []string {
	names := make([]string, len(m.entries))
	for i, e := range m.entries {
		names[i] = e.Name
	}
	return names
}

// Lookup returns the identifier of the first entry whose display name is
// exactly name (no normalization).
func (m Map) Lookup(name string) (string, bool) {
	for _, e := range m.entries {
		if e.Name == name {
			return e.ID, true
		}
	}
	return "", false
}

// MarshalJSON encodes the map as an ordered array of entries.
func (m Map) MarshalJSON() ([]byte, error) {
	if m.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m.entries)
}

// UnmarshalJSON decodes an ordered array of entries.
func (m *Map) UnmarshalJSON(data []byte) error {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*m = NewMap(entries...)
	return nil
}
