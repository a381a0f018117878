package ops

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/hpungsan/cardbot/internal/errors"
	"github.com/hpungsan/cardbot/internal/resolve"
	"github.com/hpungsan/cardbot/internal/ticket"
)

// ListVocabularyInput contains parameters for the ListVocabulary operation.
type ListVocabularyInput struct {
	Category string // columns, members or labels
}

// ListVocabularyOutput contains the result of the ListVocabulary operation.
type ListVocabularyOutput struct {
	Category string          `json:"category"`
	Entries  []resolve.Entry `json:"entries"`
	Count    int             `json:"count"`
}

// ListVocabulary returns the ordered entries of one vocabulary category.
func ListVocabulary(ctx context.Context, p resolve.Provider, input ListVocabularyInput) (*ListVocabularyOutput, error) {
	category, err := validateCategory(input.Category)
	if err != nil {
		return nil, err
	}

	m, err := vocabulary(ctx, p, category)
	if err != nil {
		return nil, err
	}
	return &ListVocabularyOutput{
		Category: category,
		Entries:  m.Entries(),
		Count:    m.Len(),
	}, nil
}

// ResolveFieldInput contains parameters for the ResolveField operation.
type ResolveFieldInput struct {
	Category  string
	Candidate string
	Threshold float64 // default: resolve.DefaultThreshold
}

// ResolveFieldOutput contains the result of the ResolveField operation.
type ResolveFieldOutput struct {
	Category   string         `json:"category"`
	Candidate  string         `json:"candidate"`
	Normalized string         `json:"normalized"`
	Result     resolve.Result `json:"result"`
}

// ResolveField resolves one free-text value the way card creation would.
// An unmatched value is a normal result, not an error.
func ResolveField(ctx context.Context, p resolve.Provider, input ResolveFieldInput) (*ResolveFieldOutput, error) {
	category, err := validateCategory(input.Category)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Candidate) == "" {
		return nil, errors.NewInvalidRequest("candidate is required")
	}
	if input.Threshold < 0 || input.Threshold > 1 {
		return nil, errors.NewInvalidRequest("threshold must be between 0 and 1")
	}

	m, err := vocabulary(ctx, p, category)
	if err != nil {
		return nil, err
	}
	return &ResolveFieldOutput{
		Category:   category,
		Candidate:  input.Candidate,
		Normalized: ticket.Normalize(input.Candidate),
		Result:     resolve.Resolver{Threshold: input.Threshold}.Resolve(input.Candidate, m),
	}, nil
}

// Invalidator drops cached vocabulary snapshots.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// InvalidateVocabularyOutput contains the result of the InvalidateVocabulary operation.
type InvalidateVocabularyOutput struct {
	Invalidated bool `json:"invalidated"`
}

// InvalidateVocabulary clears cached snapshots so the next request reads
// the board again. A nil cache is not an error.
func InvalidateVocabulary(ctx context.Context, cache Invalidator) (*InvalidateVocabularyOutput, error) {
	if cache == nil {
		return &InvalidateVocabularyOutput{Invalidated: false}, nil
	}
	if err := cache.Invalidate(ctx); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &InvalidateVocabularyOutput{Invalidated: true}, nil
}

func validateCategory(category string) (string, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return "", errors.NewInvalidRequest("category is required")
	}
	if !ticket.IsKnownCategory(category) {
		return "", errors.NewNotFound("category " + category)
	}
	return category, nil
}

func vocabulary(ctx context.Context, p resolve.Provider, category string) (resolve.Map, error) {
	m, err := p.Vocabulary(ctx, category)
	if err != nil {
		if stderrors.Is(err, resolve.ErrUnknownCategory) {
			return resolve.Map{}, errors.NewNotFound("category " + category)
		}
		e := errors.NewExternalAPI(errors.ReasonVocabulary, err)
		e.Details["category"] = category
		return resolve.Map{}, e
	}
	return m, nil
}
