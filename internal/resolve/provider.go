package resolve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hpungsan/cardbot/internal/board"
	"github.com/hpungsan/cardbot/internal/ticket"
)

// ErrUnknownCategory is returned for a category other than columns, members or labels.
var ErrUnknownCategory = errors.New("unknown vocabulary category")

// Provider supplies the resolution map for a vocabulary category.
type Provider interface {
	Vocabulary(ctx context.Context, category string) (Map, error)
}

// StaticProvider serves maps loaded from configuration.
type StaticProvider struct {
	maps map[string]Map
}

// NewStaticProvider creates a provider over fixed maps keyed by category.
func NewStaticProvider(maps map[string]Map) *StaticProvider {
	cp := make(map[string]Map, len(maps))
	for k, v := range maps {
		cp[k] = v
	}
	return &StaticProvider{maps: cp}
}

// LoadStatic reads a vocabulary YAML file:
//
//	columns:
//	  On Hold/Backlog: 6413b12ddd0200ded879904f
//	members:
//	  Jane Doe: 5a1b...
//	labels:
//	  General: 60ec...
//
// Entry order in the file is preserved.
func LoadStatic(path string) (*StaticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary file: %w", err)
	}
	return ParseStatic(data)
}

// ParseStatic parses vocabulary YAML (see LoadStatic).
func ParseStatic(data []byte) (*StaticProvider, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	maps := make(map[string]Map)
	if len(doc.Content) == 0 {
		return NewStaticProvider(maps), nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse vocabulary: top level must be a mapping")
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		category := root.Content[i].Value
		if !ticket.IsKnownCategory(category) {
			return nil, fmt.Errorf("parse vocabulary: %w: %q", ErrUnknownCategory, category)
		}
		body := root.Content[i+1]
		if body.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("parse vocabulary: %s must map names to ids", category)
		}
		entries := make([]Entry, 0, len(body.Content)/2)
		for j := 0; j+1 < len(body.Content); j += 2 {
			entries = append(entries, Entry{Name: body.Content[j].Value, ID: body.Content[j+1].Value})
		}
		maps[category] = NewMap(entries...)
	}
	return NewStaticProvider(maps), nil
}

// EncodeStatic renders maps in the format ParseStatic reads, categories in
// resolution order and entries in map order. comment, if set, becomes a
// leading YAML comment.
func EncodeStatic(maps map[string]Map, comment string) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, category := range ticket.Categories {
		m, ok := maps[category]
		if !ok {
			continue
		}
		body := &yaml.Node{Kind: yaml.MappingNode}
		for _, e := range m.entries {
			body.Content = append(body.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Name},
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.ID},
			)
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: category},
			body,
		)
	}
	doc := &yaml.Node{Kind: yaml.DocumentNode, HeadComment: comment, Content: []*yaml.Node{root}}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode vocabulary: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode vocabulary: %w", err)
	}
	return buf.Bytes(), nil
}

// Vocabulary implements Provider.
func (p *StaticProvider) Vocabulary(_ context.Context, category string) (Map, error) {
	if !ticket.IsKnownCategory(category) {
		return Map{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return p.maps[category], nil
}

// BoardReader is the part of the board API the live provider needs.
type BoardReader interface {
	ListColumns(ctx context.Context) ([]board.List, error)
	ListMembers(ctx context.Context) ([]board.Member, error)
	ListLabels(ctx context.Context) ([]board.Label, error)
}

// LiveProvider queries the board for its current vocabulary.
type LiveProvider struct {
	board BoardReader
}

// NewLiveProvider creates a provider backed by live board queries.
func NewLiveProvider(b BoardReader) *LiveProvider {
	return &LiveProvider{board: b}
}

// Vocabulary implements Provider.
// Members are listed under their full name, then their username.
// Colour-only labels (no name) are skipped.
func (p *LiveProvider) Vocabulary(ctx context.Context, category string) (Map, error) {
	switch category {
	case ticket.CategoryColumns:
		lists, err := p.board.ListColumns(ctx)
		if err != nil {
			return Map{}, err
		}
		entries := make([]Entry, 0, len(lists))
		for _, l := range lists {
			entries = append(entries, Entry{Name: l.Name, ID: l.ID})
		}
		return NewMap(entries...), nil

	case ticket.CategoryMembers:
		members, err := p.board.ListMembers(ctx)
		if err != nil {
			return Map{}, err
		}
		entries := make([]Entry, 0, 2*len(members))
		for _, m := range members {
			entries = append(entries, Entry{Name: m.FullName, ID: m.ID})
			if m.Username != "" && m.Username != m.FullName {
				entries = append(entries, Entry{Name: m.Username, ID: m.ID})
			}
		}
		return NewMap(entries...), nil

	case ticket.CategoryLabels:
		labels, err := p.board.ListLabels(ctx)
		if err != nil {
			return Map{}, err
		}
		entries := make([]Entry, 0, len(labels))
		for _, l := range labels {
			entries = append(entries, Entry{Name: l.Name, ID: l.ID})
		}
		return NewMap(entries...), nil
	}
	return Map{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
}

// Mux routes each category to its own provider.
type Mux map[string]Provider

// Vocabulary implements Provider.
func (m Mux) Vocabulary(ctx context.Context, category string) (Map, error) {
	p, ok := m[category]
	if !ok || p == nil {
		return Map{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return p.Vocabulary(ctx, category)
}
