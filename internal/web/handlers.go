package web

import (
	"database/sql"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/cardbot/internal/config"
	"github.com/hpungsan/cardbot/internal/errors"
	"github.com/hpungsan/cardbot/internal/ops"
	"github.com/hpungsan/cardbot/internal/resolve"
)

// Handlers contains the HTTP route handlers.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	pipeline *ops.Pipeline
	vocab    resolve.Provider
	cache    ops.Invalidator
	log      logrus.FieldLogger
	version  string
}

func newHandlers(deps Deps, version string) *Handlers {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	log := deps.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	vocab := deps.Vocabulary
	if vocab == nil && deps.Pipeline != nil {
		vocab = deps.Pipeline.Vocabulary
	}
	return &Handlers{
		db:       deps.DB,
		cfg:      cfg,
		pipeline: deps.Pipeline,
		vocab:    vocab,
		cache:    deps.Cache,
		log:      log,
		version:  version,
	}
}

// CreateTicket handles POST /api/tickets.
func (h *Handlers) CreateTicket(c echo.Context) error {
	var input ops.IntakeInput
	if err := c.Bind(&input); err != nil {
		return h.apiError(c, errors.NewInvalidRequest("request body must be JSON with a message field"))
	}
	out, err := h.intake(c, input.Message)
	if err != nil {
		return h.apiError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// GetVocabulary handles GET /api/vocabulary/:category.
func (h *Handlers) GetVocabulary(c echo.Context) error {
	out, err := ops.ListVocabulary(c.Request().Context(), h.vocab, ops.ListVocabularyInput{
		Category: c.Param("category"),
	})
	if err != nil {
		return h.apiError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ResolveField handles GET /api/resolve?category=&candidate=&threshold=.
func (h *Handlers) ResolveField(c echo.Context) error {
	threshold := h.cfg.FuzzyThreshold
	if s := c.QueryParam("threshold"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return h.apiError(c, errors.NewInvalidRequest("threshold must be a number"))
		}
		threshold = v
	}

	out, err := ops.ResolveField(c.Request().Context(), h.vocab, ops.ResolveFieldInput{
		Category:  c.QueryParam("category"),
		Candidate: c.QueryParam("candidate"),
		Threshold: threshold,
	})
	if err != nil {
		return h.apiError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// InvalidateVocabulary handles POST /api/vocabulary/invalidate.
func (h *Handlers) InvalidateVocabulary(c echo.Context) error {
	out, err := ops.InvalidateVocabulary(c.Request().Context(), h.cache)
	if err != nil {
		return h.apiError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ListAttachments handles GET /api/attachments?card_id=&limit=.
func (h *Handlers) ListAttachments(c echo.Context) error {
	out, err := ops.ListAttachments(c.Request().Context(), h.db, ops.ListAttachmentsInput{
		CardID: c.QueryParam("card_id"),
		Limit:  parseIntParam(c, "limit", ops.DefaultListLimit),
	})
	if err != nil {
		return h.apiError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// GetAttachment handles GET /api/attachments/:id.
func (h *Handlers) GetAttachment(c echo.Context) error {
	out, err := ops.GetAttachment(c.Request().Context(), h.db, c.Param("id"))
	if err != nil {
		return h.apiError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Healthz handles GET /healthz. It reports 503 when the local database is unreachable.
func (h *Handlers) Healthz(c echo.Context) error {
	if h.db != nil {
		if err := h.db.PingContext(c.Request().Context()); err != nil {
			h.log.WithError(err).Warn("health check: database unreachable")
			return c.JSON(http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "version": h.version})
}

// Form handles GET / with an empty intake form.
func (h *Handlers) Form(c echo.Context) error {
	return c.Render(http.StatusOK, "form", FormPageData{
		PageData: h.page("New ticket", "new"),
	})
}

// SubmitForm handles POST /tickets from the intake form.
func (h *Handlers) SubmitForm(c echo.Context) error {
	message := c.FormValue("message")
	out, err := h.intake(c, message)
	if err != nil {
		return h.renderError(c, err)
	}

	if wantsJSON(c) {
		return c.JSON(http.StatusCreated, out)
	}
	return c.Render(http.StatusCreated, "result", ResultPageData{
		PageData:        h.page(out.Details.Title, "new"),
		Result:          out,
		DescriptionHTML: renderMarkdown(out.Details.Description),
	})
}

// AttachmentsPage handles GET /attachments.
func (h *Handlers) AttachmentsPage(c echo.Context) error {
	cardID := c.QueryParam("card_id")
	out, err := ops.ListAttachments(c.Request().Context(), h.db, ops.ListAttachmentsInput{
		CardID: cardID,
		Limit:  parseIntParam(c, "limit", ops.DefaultListLimit),
	})
	if err != nil {
		return h.renderError(c, err)
	}
	return c.Render(http.StatusOK, "attachments", AttachmentsPageData{
		PageData: h.page("Screenshots", "attachments"),
		Items:    out.Items,
		CardID:   cardID,
	})
}

func (h *Handlers) intake(c echo.Context, message string) (*ops.IntakeOutput, error) {
	if h.pipeline == nil {
		return nil, errors.NewInternal(fmt.Errorf("intake pipeline not configured"))
	}
	return h.pipeline.Intake(c.Request().Context(), ops.IntakeInput{Message: message})
}

func (h *Handlers) page(title, nav string) PageData {
	return PageData{Title: title, Version: h.version, Nav: nav}
}

// renderError renders an error with content negotiation: JSON for API
// clients, an HTML fragment for htmx, a full error page otherwise.
func (h *Handlers) renderError(c echo.Context, err error) error {
	cErr := toCardbotError(err)
	if cErr.Code == errors.ErrInternal {
		h.log.WithError(err).Error("request failed")
	}

	if wantsJSON(c) {
		return c.JSON(cErr.Status, errorPayload(cErr))
	}
	message := publicMessage(cErr)
	if c.Request().Header.Get("HX-Request") == "true" {
		return c.HTML(cErr.Status, `<div class="error-message">`+template.HTMLEscapeString(message)+`</div>`)
	}
	return c.Render(cErr.Status, "error", ErrorPageData{
		PageData:   h.page(fmt.Sprintf("Error %d", cErr.Status), ""),
		StatusCode: cErr.Status,
		Message:    message,
	})
}

// handleHTTPError is the echo error handler for errors no route handled
// itself: unknown routes, wrong methods, oversized bodies, panics.
func (h *Handlers) handleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var cErr *errors.CardbotError
	if he, ok := err.(*echo.HTTPError); ok {
		code := errors.ErrInvalidRequest
		switch {
		case he.Code == http.StatusNotFound:
			code = errors.ErrNotFound
		case he.Code >= http.StatusInternalServerError:
			code = errors.ErrInternal
		}
		cErr = &errors.CardbotError{Code: code, Status: he.Code, Message: fmt.Sprint(he.Message)}
	} else {
		cErr = toCardbotError(err)
	}

	var werr error
	if strings.HasPrefix(c.Path(), "/api/") || strings.HasPrefix(c.Request().URL.Path, "/api/") {
		werr = c.JSON(cErr.Status, errorPayload(cErr))
	} else {
		werr = h.renderError(c, cErr)
	}
	if werr != nil {
		h.log.WithError(werr).Error("write error response")
	}
}

// apiError writes the JSON error envelope.
func (h *Handlers) apiError(c echo.Context, err error) error {
	cErr := toCardbotError(err)
	if cErr.Code == errors.ErrInternal {
		h.log.WithError(err).Error("request failed")
	}
	return c.JSON(cErr.Status, errorPayload(cErr))
}

func toCardbotError(err error) *errors.CardbotError {
	if cErr := errors.As(err); cErr != nil {
		return cErr
	}
	return errors.NewInternal(err)
}

// errorPayload builds {"error": {code, message, status, details}}.
// INTERNAL errors expose neither their message nor details.
func errorPayload(cErr *errors.CardbotError) map[string]any {
	obj := map[string]any{
		"code":    cErr.Code,
		"message": publicMessage(cErr),
		"status":  cErr.Status,
	}
	if cErr.Code != errors.ErrInternal && cErr.Details != nil {
		obj["details"] = cErr.Details
	}
	return map[string]any{"error": obj}
}

func publicMessage(cErr *errors.CardbotError) string {
	if cErr.Code == errors.ErrInternal {
		return "an internal error occurred"
	}
	return cErr.Message
}

func wantsJSON(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(c echo.Context, name string, defaultVal int) int {
	s := c.QueryParam(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
