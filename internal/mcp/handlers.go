package mcp

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/cardbot/internal/config"
	"github.com/hpungsan/cardbot/internal/errors"
	"github.com/hpungsan/cardbot/internal/ops"
	"github.com/hpungsan/cardbot/internal/resolve"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db         *sql.DB
	cfg        *config.Config
	pipeline   *ops.Pipeline
	vocab      resolve.Provider
	cache      ops.Invalidator
	exportsDir string
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps) *Handlers {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	vocab := deps.Vocabulary
	if vocab == nil && deps.Pipeline != nil {
		vocab = deps.Pipeline.Vocabulary
	}
	return &Handlers{
		db:         deps.DB,
		cfg:        cfg,
		pipeline:   deps.Pipeline,
		vocab:      vocab,
		cache:      deps.Cache,
		exportsDir: deps.ExportsDir,
	}
}

// Request types for each tool

// TicketCreateRequest represents the arguments for ticket_create.
type TicketCreateRequest struct {
	Message string `json:"message"`
}

// FieldResolveRequest represents the arguments for field_resolve.
type FieldResolveRequest struct {
	Category  string   `json:"category"`
	Candidate string   `json:"candidate"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// BoardVocabularyRequest represents the arguments for board_vocabulary.
type BoardVocabularyRequest struct {
	Category string `json:"category"`
}

// VocabularyExportRequest represents the arguments for vocabulary_export.
type VocabularyExportRequest struct {
	Path string `json:"path,omitempty"`
}

// AttachmentsListRequest represents the arguments for attachments_list.
type AttachmentsListRequest struct {
	CardID string `json:"card_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// AttachmentGetRequest represents the arguments for attachment_get.
type AttachmentGetRequest struct {
	ID string `json:"id"`
}

// Handler implementations

// HandleTicketCreate handles the ticket_create tool call.
func (h *Handlers) HandleTicketCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TicketCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if h.pipeline == nil {
		return errorResult(errors.NewInternal(nil)), nil
	}

	result, err := h.pipeline.Intake(ctx, ops.IntakeInput{Message: input.Message})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleFieldResolve handles the field_resolve tool call.
func (h *Handlers) HandleFieldResolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FieldResolveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	threshold := h.cfg.FuzzyThreshold
	if input.Threshold != nil {
		threshold = *input.Threshold
	}

	result, err := ops.ResolveField(ctx, h.vocab, ops.ResolveFieldInput{
		Category:  input.Category,
		Candidate: input.Candidate,
		Threshold: threshold,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleBoardVocabulary handles the board_vocabulary tool call.
func (h *Handlers) HandleBoardVocabulary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BoardVocabularyRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListVocabulary(ctx, h.vocab, ops.ListVocabularyInput{Category: input.Category})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleVocabularyInvalidate handles the vocabulary_invalidate tool call.
func (h *Handlers) HandleVocabularyInvalidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.InvalidateVocabulary(ctx, h.cache)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleVocabularyExport handles the vocabulary_export tool call.
func (h *Handlers) HandleVocabularyExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[VocabularyExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ExportVocabulary(ctx, h.vocab, h.cfg, ops.ExportVocabularyInput{
		Path:       input.Path,
		ExportsDir: h.exportsDir,
		BoardID:    h.cfg.BoardID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleAttachmentsList handles the attachments_list tool call.
func (h *Handlers) HandleAttachmentsList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AttachmentsListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListAttachments(ctx, h.db, ops.ListAttachmentsInput{
		CardID: input.CardID,
		Limit:  input.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleAttachmentGet handles the attachment_get tool call.
func (h *Handlers) HandleAttachmentGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AttachmentGetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.GetAttachment(ctx, h.db, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed; they may carry file paths or credentials.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if cErr := errors.As(err); cErr != nil {
		msg := cErr.Message
		if cErr.Code == errors.ErrInternal {
			msg = "an internal error occurred"
		} else if err != error(cErr) {
			// Keep context added by wrapping.
			msg = err.Error()
		}
		errorObj := map[string]any{
			"code":    cErr.Code,
			"message": msg,
			"status":  cErr.Status,
		}
		if cErr.Code != errors.ErrInternal && cErr.Details != nil {
			errorObj["details"] = cErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
