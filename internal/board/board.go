// Package board is a client for the Trello REST API, limited to what card
// intake needs: reading a board's vocabulary, creating cards and attaching
// links to them.
package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxErrorBody bounds how much of a failed response is kept for diagnostics.
const maxErrorBody = 2048

// List is a board column.
type List struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
}

// Member is a board member.
type Member struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Username string `json:"username"`
}

// Label is a board label.
type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Card is a created card.
type Card struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ShortURL string `json:"shortUrl"`
	URL      string `json:"url"`
}

// Attachment is a link attached to a card.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CardParams describes a card to create.
type CardParams struct {
	ListID      string
	Name        string
	Description string
	LabelIDs    []string
	MemberIDs   []string
}

// CardCreator creates cards on the board.
type CardCreator interface {
	CreateCard(ctx context.Context, p CardParams) (*Card, error)
}

// Attacher attaches links to existing cards.
type Attacher interface {
	AddAttachment(ctx context.Context, cardID, link, name string) (*Attachment, error)
}

// APIError is a non-2xx response from the board API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("board %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Token   string
	BoardID string
	Timeout time.Duration
}

// Client talks to the Trello REST API.
type Client struct {
	baseURL string
	key     string
	token   string
	boardID string
	http    *http.Client
}

// NewClient creates a new board client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		key:     cfg.APIKey,
		token:   cfg.Token,
		boardID: cfg.BoardID,
		http:    &http.Client{Timeout: timeout},
	}
}

// ListColumns returns the open lists of the board in board order.
func (c *Client) ListColumns(ctx context.Context) ([]List, error) {
	var lists []List
	q := url.Values{"filter": {"open"}, "fields": {"id,name,closed"}}
	if err := c.do(ctx, "list columns", http.MethodGet, "/boards/"+url.PathEscape(c.boardID)+"/lists", q, &lists); err != nil {
		return nil, err
	}
	open := lists[:0]
	for _, l := range lists {
		if !l.Closed {
			open = append(open, l)
		}
	}
	return open, nil
}

// ListMembers returns the members of the board.
func (c *Client) ListMembers(ctx context.Context) ([]Member, error) {
	var members []Member
	q := url.Values{"fields": {"id,fullName,username"}}
	if err := c.do(ctx, "list members", http.MethodGet, "/boards/"+url.PathEscape(c.boardID)+"/members", q, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// ListLabels returns the labels defined on the board.
func (c *Client) ListLabels(ctx context.Context) ([]Label, error) {
	var labels []Label
	q := url.Values{"fields": {"id,name,color"}, "limit": {"1000"}}
	if err := c.do(ctx, "list labels", http.MethodGet, "/boards/"+url.PathEscape(c.boardID)+"/labels", q, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// CreateCard creates a card in one call.
func (c *Client) CreateCard(ctx context.Context, p CardParams) (*Card, error) {
	q := url.Values{
		"idList": {p.ListID},
		"name":   {p.Name},
		"desc":   {p.Description},
	}
	if len(p.LabelIDs) > 0 {
		q.Set("idLabels", strings.Join(p.LabelIDs, ","))
	}
	if len(p.MemberIDs) > 0 {
		q.Set("idMembers", strings.Join(p.MemberIDs, ","))
	}

	var card Card
	if err := c.do(ctx, "create card", http.MethodPost, "/cards", q, &card); err != nil {
		return nil, err
	}
	if card.ID == "" {
		return nil, fmt.Errorf("board create card: response has no card id")
	}
	return &card, nil
}

// AddAttachment attaches a URL to a card under the given name.
func (c *Client) AddAttachment(ctx context.Context, cardID, link, name string) (*Attachment, error) {
	q := url.Values{"url": {link}}
	if name != "" {
		q.Set("name", name)
	}
	var att Attachment
	if err := c.do(ctx, "add attachment", http.MethodPost, "/cards/"+url.PathEscape(cardID)+"/attachments", q, &att); err != nil {
		return nil, err
	}
	return &att, nil
}

// do sends one authenticated request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, out any) error {
	if q == nil {
		q = url.Values{}
	}
	q.Set("key", c.key)
	q.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("board %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("board %s: %w", op, redact(err, c.key, c.token))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("board %s: decode response: %w", op, err)
	}
	return nil
}

// redact strips credentials from transport errors, which embed the request URL.
func redact(err error, secrets ...string) error {
	msg := err.Error()
	changed := false
	for _, s := range secrets {
		if s != "" && strings.Contains(msg, s) {
			msg = strings.ReplaceAll(msg, s, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return err
	}
	return errors.New(msg)
}
