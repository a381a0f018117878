package web

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/hpungsan/cardbot/internal/ops"
	"github.com/hpungsan/cardbot/internal/resolve"
	"github.com/hpungsan/cardbot/internal/ticket"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "new", "attachments"
}

// FormPageData is the template data for the intake form.
type FormPageData struct {
	PageData
	Message string
}

// ResultPageData is the template data for a created card.
type ResultPageData struct {
	PageData
	Result          *ops.IntakeOutput
	DescriptionHTML template.HTML
}

// AttachmentsPageData is the template data for the attachment log.
type AttachmentsPageData struct {
	PageData
	Items  []ticket.Attachment
	CardID string
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer implements echo.Renderer over the embedded page templates.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS) *Renderer {
	funcMap := template.FuncMap{
		"formatTime":  formatTime,
		"formatScore": formatScore,
		"matchNote":   matchNote,
	}

	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"form":        "form.html",
		"result":      "result.html",
		"attachments": "attachments.html",
		"error":       "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{templates: templates}
}

// Render implements echo.Renderer. For htmx requests only the "content"
// block is rendered to avoid duplicating the layout.
func (r *Renderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	t, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}

	block := "layout"
	if c != nil && c.Request().Header.Get("HX-Request") == "true" {
		block = "content"
	}

	// Execute into a buffer so a template error never leaves a half-written page.
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		return fmt.Errorf("execute template %q: %w", name, err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// renderMarkdown converts a card description to HTML. Raw HTML in the
// source is dropped by goldmark's default (unsafe off) renderer.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

// formatScore renders a similarity score as a percentage.
func formatScore(score float64) string {
	return fmt.Sprintf("%.0f%%", score*100)
}

// matchNote describes how a field was resolved.
func matchNote(r resolve.Result) string {
	switch {
	case !r.Matched:
		return "not matched"
	case r.Kind == resolve.MatchExact:
		return "exact"
	default:
		return "fuzzy " + formatScore(r.Score)
	}
}
