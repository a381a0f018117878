package ops

import (
	"context"

	"github.com/hpungsan/cardbot/internal/board"
	"github.com/hpungsan/cardbot/internal/errors"
	"github.com/hpungsan/cardbot/internal/resolve"
	"github.com/hpungsan/cardbot/internal/ticket"
)

// CreateCardInput contains parameters for the CreateCard operation.
type CreateCardInput struct {
	Fields     ticket.Fields
	Vocabulary Vocabulary
	Threshold  float64 // default: resolve.DefaultThreshold
}

// Resolutions reports how each free-text field was resolved.
type Resolutions struct {
	Column   resolve.Result `json:"column"`
	Assignee resolve.Result `json:"assignee"`
	Label    resolve.Result `json:"label"`
}

// CreateCardOutput contains the result of the CreateCard operation.
type CreateCardOutput struct {
	CardID      string        `json:"ticket_id"`
	CardURL     string        `json:"ticket_url"`
	Details     ticket.Fields `json:"details"`
	Resolutions Resolutions   `json:"resolutions"`
}

// CreateCard resolves the destination column, assignee and label, then
// creates exactly one card.
//
// The column is required: if it does not resolve, COLUMN_NOT_FOUND is
// returned and the board is never called. Assignee and label are
// best-effort and are simply left off the card when they do not resolve.
func CreateCard(ctx context.Context, api board.CardCreator, input CreateCardInput) (*CreateCardOutput, error) {
	r := resolve.Resolver{Threshold: input.Threshold}
	f := input.Fields

	var res Resolutions
	res.Column = r.Resolve(f.Column, input.Vocabulary.Columns)
	if !res.Column.Matched {
		return nil, errors.NewColumnNotFound(f.Column)
	}
	if !f.IsUnassigned() {
		res.Assignee = r.Resolve(f.Assignee, input.Vocabulary.Members)
	}
	res.Label = r.Resolve(f.Label, input.Vocabulary.Labels)

	params := board.CardParams{
		ListID:      res.Column.ID,
		Name:        f.Title,
		Description: f.Description,
	}
	if res.Assignee.Matched {
		params.MemberIDs = []string{res.Assignee.ID}
	}
	if res.Label.Matched {
		params.LabelIDs = []string{res.Label.ID}
	}

	card, err := api.CreateCard(ctx, params)
	if err != nil {
		return nil, errors.NewExternalAPI(errors.ReasonCardFailed, err)
	}

	cardURL := card.ShortURL
	if cardURL == "" {
		cardURL = card.URL
	}
	return &CreateCardOutput{
		CardID:      card.ID,
		CardURL:     cardURL,
		Details:     f,
		Resolutions: res,
	}, nil
}
