// Package extract turns a free-text request into ticket fields using a
// language model.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/hpungsan/cardbot/internal/errors"
	"github.com/hpungsan/cardbot/internal/llm"
	"github.com/hpungsan/cardbot/internal/ticket"
)

// Extractor builds the instruction prompt, calls the completer and maps the
// answer to ticket.Fields.
type Extractor struct {
	completer llm.Completer
	labels    []string
}

// New creates an Extractor. labels is the fixed label vocabulary offered to
// the model; an empty list offers only the default label.
func New(c llm.Completer, labels []string) *Extractor {
	if c == nil {
		panic("extract.New: completer is nil")
	}
	return &Extractor{completer: c, labels: labelVocabulary(labels)}
}

// Extract parses message into ticket fields.
//
// Every failure of the completion call or of its answer is reported as
// EXTRACTION_FAILED with one of the reasons in internal/errors.
func (e *Extractor) Extract(ctx context.Context, message string) (ticket.Fields, error) {
	if strings.TrimSpace(message) == "" {
		return ticket.Fields{}, errors.NewInvalidRequest("message is required")
	}

	text, err := e.completer.Complete(ctx, e.Prompt(message))
	if err != nil {
		return ticket.Fields{}, errors.NewExtractionFailed(errors.ReasonServiceFailed, err)
	}
	return Parse(text, message)
}

// Prompt returns the instruction prompt for message. The same message and
// vocabulary always produce the same prompt.
func (e *Extractor) Prompt(message string) string {
	var b strings.Builder
	b.WriteString("Extract structured data from the following user message.\n")
	b.WriteString("The user is asking to create a ticket in a project management tool.\n\n")
	fmt.Fprintf(&b, "User Message: %q\n\n", message)
	b.WriteString("Return only a JSON object with:\n")
	b.WriteString("- title: The ticket title.\n")
	b.WriteString("- description: The ticket details.\n")
	fmt.Fprintf(&b, "- label: One of %s (or %q if none applies).\n", quoteList(e.labels), ticket.DefaultLabel)
	fmt.Fprintf(&b, "- assignee: The assignee's name (or %q if not specified).\n", ticket.DefaultAssignee)
	b.WriteString("- column: The project board column (e.g., \"Backlog\", \"In Progress\").\n")
	b.WriteString("- client: The client name, if mentioned.\n")
	b.WriteString("- sharing_url: A screenshot sharing link, if the message contains one.\n\n")
	b.WriteString("Example Output:\n")
	b.WriteString(exampleOutput)
	return b.String()
}

const exampleOutput = `{
  "title": "Fix Login Issue",
  "description": "Users are reporting login failures.",
  "label": "Bug",
  "assignee": "JohnDoe",
  "column": "Backlog",
  "client": "ACME Corp",
  "sharing_url": "https://share.zight.com/abc123"
}
`

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n?(.*?)\\n?```$")

// Parse maps a completion answer to ticket fields. message is the original
// request, used as the description when the model omits one.
func Parse(text, message string) (ticket.Fields, error) {
	body := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(body); m != nil {
		body = strings.TrimSpace(m[1])
	}

	var payload any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return ticket.Fields{}, errors.NewExtractionFailed(errors.ReasonUnparsable, err)
	}
	raw, ok := payload.(map[string]any)
	if !ok {
		return ticket.Fields{}, errors.NewExtractionFailed(errors.ReasonMissingFields, nil)
	}

	title := stringField(raw, "title")
	description := stringField(raw, "description")
	if title == "" && description == "" {
		return ticket.Fields{}, errors.NewExtractionFailed(errors.ReasonMissingFields, nil)
	}

	return ticket.Fields{
		Title:       orDefault(title, ticket.DefaultTitle),
		Description: orDefault(description, strings.TrimSpace(message)),
		Label:       orDefault(stringField(raw, "label"), ticket.DefaultLabel),
		Assignee:    orDefault(stringField(raw, "assignee"), ticket.DefaultAssignee),
		Column:      stringField(raw, "column"),
		Client:      stringField(raw, "client"),
		SharingURL:  stringField(raw, "sharing_url", "zight_url"),
	}, nil
}

// stringField returns the first non-empty string value among keys.
// Numbers are formatted; other types count as absent.
func stringField(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return fmt.Sprint(v)
		}
	}
	return ""
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func labelVocabulary(labels []string) []string {
	out := make([]string, 0, len(labels)+1)
	seen := make(map[string]bool)
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	if !seen[ticket.DefaultLabel] {
		out = append(out, ticket.DefaultLabel)
	}
	return out
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}
