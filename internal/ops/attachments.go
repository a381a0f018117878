package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/cardbot/internal/db"
	"github.com/hpungsan/cardbot/internal/errors"
	"github.com/hpungsan/cardbot/internal/ticket"
)

// ListAttachmentsInput contains parameters for the ListAttachments operation.
type ListAttachmentsInput struct {
	CardID string // optional filter
	Limit  int    // default: 20, max: 100
}

// ListAttachmentsOutput contains the result of the ListAttachments operation.
type ListAttachmentsOutput struct {
	Items []ticket.Attachment `json:"items"`
	Limit int                 `json:"limit"`
}

// ListAttachments returns recent enrichment outcomes, newest first.
func ListAttachments(ctx context.Context, database *sql.DB, input ListAttachmentsInput) (*ListAttachmentsOutput, error) {
	limit := clampLimit(input.Limit)

	items, err := db.ListAttachments(ctx, database, strings.TrimSpace(input.CardID), limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []ticket.Attachment{}
	}
	return &ListAttachmentsOutput{Items: items, Limit: limit}, nil
}

// GetAttachment returns one enrichment job by id.
func GetAttachment(ctx context.Context, database *sql.DB, id string) (*ticket.Attachment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	return db.GetAttachment(ctx, database, id)
}
