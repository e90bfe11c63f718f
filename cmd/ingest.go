package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/finsight/finsight/internal/app"
	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/ingest"
)

// runIngest dispatches to one of the two corpus builders.
func runIngest() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: finsight ingest <press|sec>")
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

	logger := slog.Default()
	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	switch os.Args[2] {
	case "press":
		ing, err := ingest.NewPressIngestor(ingest.PressConfig{
			BaseURL:         cfg.Ingest.PressBaseURL,
			Pages:           cfg.Ingest.PressPages,
			Workers:         cfg.Ingest.Workers,
			EmbedRatePerSec: cfg.Ingest.EmbedRatePerSec,
		}, a.Pool, a.PressEmbedder, logger)
		if err != nil {
			return fmt.Errorf("creating press ingestor: %w", err)
		}
		stats, err := ing.Run(ctx)
		if err != nil {
			return fmt.Errorf("press ingestion: %w", err)
		}
		fmt.Printf("Press ingestion complete: %s\n", stats)
		return nil

	case "sec":
		ing, err := ingest.NewSECIngestor(ingest.SECConfig{
			DataDir:         cfg.Ingest.SECDataDir,
			Workers:         cfg.Ingest.Workers,
			EmbedRatePerSec: cfg.Ingest.EmbedRatePerSec,
		}, a.Pool, a.SECEmbedder, logger)
		if err != nil {
			return fmt.Errorf("creating sec ingestor: %w", err)
		}
		stats, err := ing.Run(ctx)
		if err != nil {
			return fmt.Errorf("sec ingestion: %w", err)
		}
		fmt.Printf("SEC ingestion complete: %s\n", stats)
		return nil

	default:
		return fmt.Errorf("unknown ingest target %q (want press or sec)", os.Args[2])
	}
}
