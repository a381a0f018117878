package mcp

import (
	"context"
	"database/sql"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/cardbot/internal/config"
	"github.com/hpungsan/cardbot/internal/ops"
	"github.com/hpungsan/cardbot/internal/resolve"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"ticket_create": {
		def:     ticketCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTicketCreate },
	},
	"field_resolve": {
		def:     fieldResolveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFieldResolve },
	},
	"board_vocabulary": {
		def:     boardVocabularyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBoardVocabulary },
	},
	"vocabulary_invalidate": {
		def:     vocabularyInvalidateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleVocabularyInvalidate },
	},
	"vocabulary_export": {
		def:     vocabularyExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleVocabularyExport },
	},
	"attachments_list": {
		def:     attachmentsListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAttachmentsList },
	},
	"attachment_get": {
		def:     attachmentGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAttachmentGet },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// Deps are the collaborators the tools operate on.
type Deps struct {
	DB         *sql.DB
	Config     *config.Config
	Pipeline   *ops.Pipeline
	Vocabulary resolve.Provider
	Cache      ops.Invalidator // nil when vocabulary is not cached
	ExportsDir string
}

// NewServer creates a new MCP server with the cardbot tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"cardbot",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(deps)

	disabled := make(map[string]bool)
	if deps.Config != nil {
		for _, name := range deps.Config.DisabledTools {
			disabled[name] = true
		}
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run serves the tools over stdio until stdin closes. Transport errors go
// to logger; stdout carries only the protocol stream.
func Run(deps Deps, version string, logger *logrus.Logger) error {
	s := NewServer(deps, version)
	errLog := log.New(logger.WriterLevel(logrus.ErrorLevel), "", 0)
	return server.ServeStdio(s, server.WithErrorLogger(errLog))
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
