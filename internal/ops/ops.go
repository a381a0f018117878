package ops

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/cardbot/internal/errors"
	"github.com/hpungsan/cardbot/internal/resolve"
	"github.com/hpungsan/cardbot/internal/ticket"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Vocabulary holds the resolution maps one request resolves against.
type Vocabulary struct {
	Columns resolve.Map
	Members resolve.Map
	Labels  resolve.Map
}

// LoadVocabulary reads all three categories from p.
// A provider failure is reported as EXTERNAL_API.
func LoadVocabulary(ctx context.Context, p resolve.Provider) (Vocabulary, error) {
	var v Vocabulary
	for _, category := range ticket.Categories {
		m, err := p.Vocabulary(ctx, category)
		if err != nil {
			e := errors.NewExternalAPI(errors.ReasonVocabulary, err)
			e.Details["category"] = category
			return Vocabulary{}, e
		}
		switch category {
		case ticket.CategoryColumns:
			v.Columns = m
		case ticket.CategoryMembers:
			v.Members = m
		case ticket.CategoryLabels:
			v.Labels = m
		}
	}
	return v, nil
}

// newULID returns a new ULID string.
func newULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// clampLimit applies list defaults and bounds.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
