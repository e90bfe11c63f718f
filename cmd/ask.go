package cmd

import (
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

// runAsk answers a single question and exits. The exchange is not recorded.
func runAsk() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: finsight ask <question>")
	}
	question := strings.TrimSpace(strings.Join(os.Args[2:], " "))
	if question == "" {
		return fmt.Errorf("usage: finsight ask <question>")
	}

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

	answer, err := a.Assistant.Ask(ctx, uuid.Nil, question)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Printf("%s\n[source: %s]\n", answer.Text, answer.Route)
	return nil
}
