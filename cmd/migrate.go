package cmd

import (
	"fmt"

	"github.com/finsight/finsight/db"
	"github.com/finsight/finsight/internal/config"
)

// runMigrate applies pending database migrations and exits.
func runMigrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	fmt.Println("Migrations applied.")
	return nil
}
