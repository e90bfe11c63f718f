// Package cmd provides the finsight CLI commands.
//
// Commands:
//   - chat: interactive question-answering session
//   - ask: answer a single question and exit
//   - serve: HTTP API server
//   - ingest: build the press-release and SEC filing corpora
//   - migrate: apply database migrations
//
// Signal handling and graceful shutdown are implemented for all long-running
// commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/finsight/finsight/internal/log"
)

// Execute is the main entry point for the finsight CLI.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level}))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "chat":
		return runChat()
	case "ask":
		return runAsk()
	case "serve":
		return runServe()
	case "ingest":
		return runIngest()
	case "migrate":
		return runMigrate()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("finsight - Financial document Q&A for an industrial REIT")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  finsight chat                 Start interactive chat mode")
	fmt.Println("  finsight ask <question>       Answer one question and exit")
	fmt.Println("  finsight serve [addr]         Start HTTP API server (default: 127.0.0.1:8080)")
	fmt.Println("  finsight ingest press         Crawl and index press releases")
	fmt.Println("  finsight ingest sec           Extract and index SEC filing PDFs")
	fmt.Println("  finsight migrate              Apply database migrations")
	fmt.Println("  finsight --version            Show version information")
	fmt.Println("  finsight --help               Show this help")
	fmt.Println()
	fmt.Println("Chat commands (in interactive mode):")
	fmt.Println("  /help              Show available commands")
	fmt.Println("  /clear             Start a fresh session")
	fmt.Println("  /exit, /quit       Exit")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  GEMINI_API_KEY     Required: Gemini API key")
	fmt.Println("  DATABASE_URL       Optional: overrides postgres_* config values")
	fmt.Println("  DEBUG              Optional: enable debug logging")
}
