package ticket

import "strings"

// Sentinel defaults substituted for absent optional fields.
const (
	DefaultLabel    = "General"
	DefaultAssignee = "Unassigned"
	DefaultTitle    = "Untitled ticket"
	AttachmentName  = "Screenshot"

	CategoryColumns = "columns"
	CategoryMembers = "members"
	CategoryLabels  = "labels"
)

// Categories lists every vocabulary category in resolution order.
var Categories = []string{CategoryColumns, CategoryMembers, CategoryLabels}

// Fields is the structured result of parsing a free-text request.
// Title and Description are never empty once produced by the extractor.
type Fields struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Label       string `json:"label"`
	Assignee    string `json:"assignee"`
	Column      string `json:"column"`
	Client      string `json:"client,omitempty"`
	SharingURL  string `json:"sharing_url,omitempty"`
}

// HasSharingURL reports whether a screenshot link accompanies the request.
func (f Fields) HasSharingURL() bool {
	return strings.TrimSpace(f.SharingURL) != ""
}

// IsUnassigned reports whether the assignee is absent or the sentinel.
func (f Fields) IsUnassigned() bool {
	a := Normalize(f.Assignee)
	return a == "" || a == Normalize(DefaultAssignee)
}

// IsKnownCategory reports whether name is one of the vocabulary categories.
func IsKnownCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}
