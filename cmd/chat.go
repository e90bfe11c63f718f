package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/finsight/finsight/internal/app"
	"github.com/finsight/finsight/internal/config"
)

// runChat starts the interactive question-answering loop.
func runChat() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	sess, err := a.Sessions.CreateSession(ctx, "")
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	fmt.Printf("finsight %s - ask about press releases, SEC filings, or property financials\n", Version)
	fmt.Println("Type /help for commands, /exit to quit.")
	fmt.Printf("Session: %s\n\n", sess.ID)

	scanner := bufio.NewScanner(os.Stdin)
	sessionID := sess.ID
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			// EOF (Ctrl+D)
			fmt.Println("\nGoodbye!")
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			done, newID, err := handleChatCommand(ctx, a, input, sessionID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			if done {
				return nil
			}
			sessionID = newID
			continue
		}

		answer, err := a.Assistant.Ask(ctx, sessionID, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		fmt.Printf("\n%s\n[source: %s]\n\n", answer.Text, answer.Route)
	}
}

// handleChatCommand processes slash commands. Returns done=true to exit, and
// the session ID to use from here on (changes after /clear).
func handleChatCommand(ctx context.Context, a *app.App, input string, current uuid.UUID) (done bool, sessionID uuid.UUID, err error) {
	switch input {
	case "/exit", "/quit":
		fmt.Println("Goodbye!")
		return true, current, nil
	case "/clear":
		sess, err := a.Sessions.CreateSession(ctx, "")
		if err != nil {
			return false, current, fmt.Errorf("creating session: %w", err)
		}
		fmt.Printf("Started fresh session: %s\n", sess.ID)
		return false, sess.ID, nil
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /help              Show this help")
		fmt.Println("  /clear             Start a fresh session")
		fmt.Println("  /exit, /quit       Exit")
		return false, current, nil
	default:
		return false, current, fmt.Errorf("unknown command %q, try /help", input)
	}
}
