package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/cardbot/internal/board"
	"github.com/hpungsan/cardbot/internal/errors"
	"github.com/hpungsan/cardbot/internal/scrape"
	"github.com/hpungsan/cardbot/internal/ticket"
)

// EnrichOutput is the outcome of screenshot enrichment.
type EnrichOutput struct {
	Status   ticket.AttachStatus `json:"status"`
	ImageURL string              `json:"image_url,omitempty"`
	Reason   string              `json:"reason,omitempty"`
	JobID    string              `json:"job_id,omitempty"`

	// Err is the underlying failure, kept for logs only.
	Err error `json:"-"`
}

// Enrich attaches the screenshot behind sharingURL to an existing card.
// It never fails: every problem becomes a "failed" outcome with a reason.
func Enrich(ctx context.Context, fetcher scrape.Fetcher, api board.Attacher, cardID, sharingURL string) EnrichOutput {
	sharingURL = strings.TrimSpace(sharingURL)
	if sharingURL == "" {
		return EnrichOutput{Status: ticket.AttachSkipped}
	}

	html, err := fetcher.FetchPage(ctx, sharingURL)
	if err != nil {
		return failed(errors.NewScrapeFailed(errors.ReasonPageFetch, err))
	}

	imageURL, ok := scrape.ExtractImage(html, sharingURL)
	if !ok {
		return failed(errors.NewScrapeFailed(errors.ReasonNoImage, nil))
	}

	if _, err := api.AddAttachment(ctx, cardID, imageURL, ticket.AttachmentName); err != nil {
		out := failed(errors.NewExternalAPI(errors.ReasonUploadFailed, err))
		out.ImageURL = imageURL
		return out
	}
	return EnrichOutput{Status: ticket.AttachAttached, ImageURL: imageURL}
}

func failed(err *errors.CardbotError) EnrichOutput {
	return EnrichOutput{Status: ticket.AttachFailed, Reason: err.Message, Err: err}
}
