package ticket

// AttachStatus is the outcome of screenshot enrichment for a card.
type AttachStatus string

const (
	AttachSkipped  AttachStatus = "skipped"
	AttachAttached AttachStatus = "attached"
	AttachFailed   AttachStatus = "failed"
	AttachPending  AttachStatus = "pending"
)

// IsTerminal reports whether no further outcome will follow s.
func (s AttachStatus) IsTerminal() bool {
	return s == AttachSkipped || s == AttachAttached || s == AttachFailed
}

// Attachment is one recorded enrichment attempt.
type Attachment struct {
	// ID is a ULID that identifies the enrichment job
	ID string `json:"id"`

	// RequestID ties the job to the intake request that created the card
	RequestID string `json:"request_id"`

	CardID     string       `json:"card_id"`
	SharingURL string       `json:"sharing_url"`
	Status     AttachStatus `json:"status"`

	// ImageURL is set once an image reference was found
	ImageURL string `json:"image_url,omitempty"`

	// Reason explains a failed outcome
	Reason string `json:"reason,omitempty"`

	// CreatedAt and UpdatedAt are Unix timestamps
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}
