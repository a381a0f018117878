package mcp

import "github.com/mark3labs/mcp-go/mcp"

var ticketCreateToolDef = mcp.NewTool("ticket_create",
	mcp.WithDescription("Turn a free-text support request into a Trello card. "+
		"Extracts title, description, client, assignee, column and label with the language model, "+
		"resolves them against the board vocabulary and creates the card. "+
		"A Zight sharing link in the message is scraped and its screenshot attached."),
	mcp.WithString("message",
		mcp.Required(),
		mcp.Description("The support request text"),
	),
)

var fieldResolveToolDef = mcp.NewTool("field_resolve",
	mcp.WithDescription("Resolve one free-text value against a vocabulary category the way card creation would, "+
		"showing whether it matched exactly, fuzzily or not at all."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("category",
		mcp.Required(),
		mcp.Description("Vocabulary category"),
		mcp.Enum("columns", "members", "labels"),
	),
	mcp.WithString("candidate",
		mcp.Required(),
		mcp.Description("Free-text value to resolve, e.g. \"Backlog\""),
	),
	mcp.WithNumber("threshold",
		mcp.Description("Minimum fuzzy score in [0,1]; defaults to the configured threshold"),
		mcp.Min(0),
		mcp.Max(1),
	),
)

var boardVocabularyToolDef = mcp.NewTool("board_vocabulary",
	mcp.WithDescription("List the names and ids of one vocabulary category in board order."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("category",
		mcp.Required(),
		mcp.Description("Vocabulary category"),
		mcp.Enum("columns", "members", "labels"),
	),
)

var vocabularyInvalidateToolDef = mcp.NewTool("vocabulary_invalidate",
	mcp.WithDescription("Drop cached vocabulary snapshots so the next request reads the board again."),
	mcp.WithDestructiveHintAnnotation(false),
)

var vocabularyExportToolDef = mcp.NewTool("vocabulary_export",
	mcp.WithDescription("Write the current vocabulary of every category to a YAML mappings file "+
		"usable as a static vocabulary source."),
	mcp.WithString("path",
		mcp.Description("Destination .yml file; defaults to a timestamped file in the exports directory"),
	),
)

var attachmentsListToolDef = mcp.NewTool("attachments_list",
	mcp.WithDescription("List recorded screenshot attachment outcomes, newest first."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("card_id",
		mcp.Description("Only outcomes for this card"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum items (default 20, max 100)"),
	),
)

var attachmentGetToolDef = mcp.NewTool("attachment_get",
	mcp.WithDescription("Fetch one attachment outcome by job id, e.g. to poll a pending enrichment."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Attachment job id returned by ticket_create"),
	),
)
