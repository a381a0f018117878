package extract

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/cardbot/internal/errors"
	"github.com/hpungsan/cardbot/internal/ticket"
)

type stubCompleter struct {
	text    string
	err     error
	calls   int
	prompts []string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.prompts = append(s.prompts, prompt)
	return s.text, s.err
}

func TestExtract_Success(t *testing.T) {
	stub := &stubCompleter{text: `{"title": "Fix login issue", "description": "Login fails for ACME", "assignee": "Jane", "column": "Backlog", "label": "Bug", "client": "ACME"}`}
	e := New(stub, []string{"Bug", "Feature"})

	got, err := e.Extract(context.Background(), "ACME needs a fix for login, assign to Jane, put in Backlog")
	require.NoError(t, err)
	require.Equal(t, ticket.Fields{
		Title:       "Fix login issue",
		Description: "Login fails for ACME",
		Label:       "Bug",
		Assignee:    "Jane",
		Column:      "Backlog",
		Client:      "ACME",
	}, got)
	require.Equal(t, 1, stub.calls)
}

func TestExtract_Defaults(t *testing.T) {
	stub := &stubCompleter{text: `{"title": "Fix login issue", "column": "Backlog"}`}
	got, err := New(stub, nil).Extract(context.Background(), "  please fix login  ")
	require.NoError(t, err)

	require.Equal(t, ticket.DefaultLabel, got.Label)
	require.Equal(t, ticket.DefaultAssignee, got.Assignee)
	require.Equal(t, "please fix login", got.Description)
	require.True(t, got.IsUnassigned())
}

func TestExtract_MissingTitleDefaults(t *testing.T) {
	stub := &stubCompleter{text: `{"description": "Login fails", "column": "Backlog"}`}
	got, err := New(stub, nil).Extract(context.Background(), "login fails")
	require.NoError(t, err)
	require.Equal(t, ticket.DefaultTitle, got.Title)
	require.Equal(t, "Login fails", got.Description)
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name   string
		stub   *stubCompleter
		reason string
	}{
		{"non-json text", &stubCompleter{text: "Sure! Here is your ticket."}, errors.ReasonUnparsable},
		{"truncated json", &stubCompleter{text: `{"title": "x"`}, errors.ReasonUnparsable},
		{"service error", &stubCompleter{err: stderrors.New("rate limited")}, errors.ReasonServiceFailed},
		{"array payload", &stubCompleter{text: `["title"]`}, errors.ReasonMissingFields},
		{"no title or description", &stubCompleter{text: `{"column": "Backlog"}`}, errors.ReasonMissingFields},
		{"blank title and description", &stubCompleter{text: `{"title": " ", "description": ""}`}, errors.ReasonMissingFields},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.stub, nil).Extract(context.Background(), "fix login")
			require.True(t, errors.Is(err, errors.ErrExtractionFailed), "got %v", err)
			require.Equal(t, tt.reason, errors.As(err).Message)
		})
	}
}

func TestExtract_EmptyMessage(t *testing.T) {
	stub := &stubCompleter{text: `{}`}
	_, err := New(stub, nil).Extract(context.Background(), "   ")
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	require.Equal(t, 0, stub.calls)
}

func TestParse_CodeFence(t *testing.T) {
	text := "```json\n{\"title\": \"Fenced\", \"description\": \"d\", \"column\": \"Done\"}\n```"
	got, err := Parse(text, "msg")
	require.NoError(t, err)
	require.Equal(t, "Fenced", got.Title)
	require.Equal(t, "Done", got.Column)
}

func TestParse_SharingURLKeys(t *testing.T) {
	got, err := Parse(`{"title": "t", "zight_url": "https://share.zight.com/abc"}`, "m")
	require.NoError(t, err)
	require.Equal(t, "https://share.zight.com/abc", got.SharingURL)

	got, err = Parse(`{"title": "t", "sharing_url": "https://a", "zight_url": "https://b"}`, "m")
	require.NoError(t, err)
	require.Equal(t, "https://a", got.SharingURL)
	require.True(t, got.HasSharingURL())
}

func TestParse_NonStringValues(t *testing.T) {
	got, err := Parse(`{"title": 42, "description": null, "assignee": ["x"]}`, "raw message")
	require.NoError(t, err)
	require.Equal(t, "42", got.Title)
	require.Equal(t, "raw message", got.Description)
	require.Equal(t, ticket.DefaultAssignee, got.Assignee)
}

func TestPrompt_Deterministic(t *testing.T) {
	e := New(&stubCompleter{}, []string{"Bug", " Feature ", "Bug", ""})
	p1 := e.Prompt("fix login")
	p2 := e.Prompt("fix login")
	require.Equal(t, p1, p2)

	require.Contains(t, p1, `User Message: "fix login"`)
	require.Contains(t, p1, `"Bug", "Feature", "General"`)
	require.Contains(t, p1, `"Unassigned"`)
	require.Equal(t, 1, strings.Count(p1, `"Bug", `))
}

func TestPrompt_QuotesMessage(t *testing.T) {
	p := New(&stubCompleter{}, nil).Prompt(`say "hi"`)
	require.Contains(t, p, `User Message: "say \"hi\""`)
}
