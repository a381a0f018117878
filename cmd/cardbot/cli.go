package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/cardbot/internal/errors"
	"github.com/hpungsan/cardbot/internal/ops"
	"github.com/hpungsan/cardbot/internal/web"
)

// maxMessageBytes bounds a message read from stdin.
const maxMessageBytes = 64 * 1024

// newCLIApp creates the CLI application with all commands.
// d may be nil when only help or version output is needed.
func newCLIApp(d *deps) *cli.App {
	app := &cli.App{
		Name:    "cardbot",
		Usage:   "Turn support requests into Trello cards",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging", EnvVars: []string{"CARDBOT_DEBUG"}},
		},
		Before: func(c *cli.Context) error {
			if d != nil && c.Bool("debug") {
				d.log.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			serveCmd(d),
			mcpCmd(d),
			createCmd(d),
			resolveCmd(d),
			vocabCmd(d),
			cacheCmd(d),
			attachmentsCmd(d),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd creates the serve command.
func serveCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and web form",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Usage: "Listen address (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			if err := d.cfg.Validate(); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			e, err := web.NewServer(d.webDeps(), Version)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			addr := d.cfg.Listen
			if l := c.String("listen"); l != "" {
				addr = l
			}
			return web.Run(e, addr, d.log)
		},
	}
}

// mcpCmd creates the mcp command. Piped stdin without a command does the same.
func mcpCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve MCP tools over stdio",
		Action: func(_ *cli.Context) error {
			return runMCP(d)
		},
	}
}

// createCmd creates the create command.
func createCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a card from a message (argument or stdin)",
		ArgsUsage: "[message]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "async", Usage: "Return before the screenshot is attached"},
		},
		Action: func(c *cli.Context) error {
			if err := d.cfg.Validate(); err != nil {
				return cli.Exit(err.Error(), 1)
			}

			message := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if message == "" && stdinHasData() {
				text, err := readStdin(maxMessageBytes)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				message = text
			}
			if message == "" {
				return outputError(errors.NewInvalidRequest("message is required"))
			}

			// A one-shot process exits after printing, so enrich inline
			// unless asked otherwise. close() waits for detached jobs.
			d.pipeline.Async = c.Bool("async")

			output, err := d.pipeline.Intake(c.Context, ops.IntakeInput{Message: message})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// resolveCmd creates the resolve command.
func resolveCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve a value against a vocabulary category",
		ArgsUsage: "<category> <candidate>",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "threshold", Usage: "Fuzzy match threshold (default from config)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return outputError(errors.NewInvalidRequest("category and candidate are required"))
			}
			threshold := d.cfg.FuzzyThreshold
			if c.IsSet("threshold") {
				threshold = c.Float64("threshold")
			}

			output, err := ops.ResolveField(c.Context, d.vocab, ops.ResolveFieldInput{
				Category:  c.Args().Get(0),
				Candidate: strings.Join(c.Args().Slice()[1:], " "),
				Threshold: threshold,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// vocabCmd creates the vocab command group.
func vocabCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "vocab",
		Usage: "Inspect and export the board vocabulary",
		Subcommands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List the entries of a category (columns, members, labels)",
				ArgsUsage: "<category>",
				Action: func(c *cli.Context) error {
					output, err := ops.ListVocabulary(c.Context, d.vocab, ops.ListVocabularyInput{
						Category: c.Args().First(),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:  "export",
				Usage: "Write the current vocabulary to a mappings file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output path (default: ~/.cardbot/exports/vocabulary-<timestamp>.yml)"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ExportVocabulary(c.Context, d.vocab, d.cfg, ops.ExportVocabularyInput{
						Path:       c.String("path"),
						ExportsDir: d.exportsDir,
						BoardID:    d.cfg.BoardID,
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
		},
	}
}

// cacheCmd creates the cache command group.
func cacheCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage cached vocabulary snapshots",
		Subcommands: []*cli.Command{
			{
				Name:  "clear",
				Usage: "Drop cached snapshots so the next request reads the board",
				Action: func(c *cli.Context) error {
					output, err := ops.InvalidateVocabulary(c.Context, d.cache)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
		},
	}
}

// attachmentsCmd creates the attachments command group.
func attachmentsCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "attachments",
		Usage: "Inspect screenshot attachment jobs",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent attachment jobs, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "card", Aliases: []string{"c"}, Usage: "Filter by card id"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum jobs to return"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ListAttachments(c.Context, d.db, ops.ListAttachmentsInput{
						CardID: c.String("card"),
						Limit:  c.Int("limit"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:      "get",
				Usage:     "Show one attachment job",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					output, err := ops.GetAttachment(c.Context, d.db, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
		},
	}
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if cErr := errors.As(err); cErr != nil {
		msg := fmt.Sprintf("[%s] %s", cErr.Code, cErr.Message)
		if column, ok := cErr.Details["column"]; ok {
			msg += fmt.Sprintf(" (%v)", column)
		}
		return cli.Exit(msg, 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("input exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}
