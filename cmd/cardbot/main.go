package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/cardbot/internal/config"
	"github.com/hpungsan/cardbot/internal/db"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"serve": true, "mcp": true, "create": true, "resolve": true,
	"vocab": true, "cache": true, "attachments": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	switch arg {
	case "--help", "-h", "--version", "-v", "--debug":
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
                  _ _           _
   ___ __ _ _ __ __| | |__   ___ | |_
  / __/ _' | '__/ _' | '_ \ / _ \| __|
 | (_| (_| | | | (_| | |_) | (_) | |_
  \___\__,_|_|  \__,_|_.__/ \___/ \__|

  Support requests to Trello cards

  Usage: cardbot <command> [options]
         cardbot --help

  MCP server mode requires piped input.`)
}

// baseDir returns CARDBOT_HOME or ~/.cardbot.
func baseDir() (string, error) {
	if dir := os.Getenv("CARDBOT_HOME"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".cardbot"), nil
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && !isCLIMode() && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'cardbot --help' for usage.\n")
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	dir, err := baseDir()
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("could not determine working directory: %w", err)
	}
	cfg, err := config.LoadWithRepo(dir, cwd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	database, err := db.Init(dir)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	log := newLogger(cfg, os.Getenv("CARDBOT_DEBUG") != "")

	d, err := wire(context.Background(), dir, cfg, database, log)
	if err != nil {
		return err
	}
	defer d.close()

	// CLI mode: known subcommand
	if isCLIMode() {
		return newCLIApp(d).Run(os.Args)
	}

	// MCP server mode (default)
	return runMCP(d)
}
