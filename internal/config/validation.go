package config

import (
	"fmt"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// Model configuration
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	// Temperature range: 0.0 (deterministic) to 2.0 (maximum creativity).
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	// Embedder configuration: two independent spaces, both required.
	if c.PressEmbedderModel == "" {
		return fmt.Errorf("%w: press_embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}
	if c.SECEmbedderModel == "" {
		return fmt.Errorf("%w: sec_embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// Retrieval limits
	if c.PressResultLimit < 1 || c.PressResultLimit > 100 {
		return fmt.Errorf("%w: press_result_limit must be between 1 and 100, got %d",
			ErrInvalidRetrievalLimit, c.PressResultLimit)
	}
	if c.SECResultLimit < 1 || c.SECResultLimit > 100 {
		return fmt.Errorf("%w: sec_result_limit must be between 1 and 100, got %d",
			ErrInvalidRetrievalLimit, c.SECResultLimit)
	}

	// PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// Modern SSL modes only; allow/prefer are deprecated (MITM vulnerable).
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	// Ingestion configuration
	if c.Ingest.PressPages < 1 {
		return fmt.Errorf("%w: press_pages must be at least 1, got %d",
			ErrInvalidIngestConfig, c.Ingest.PressPages)
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d",
			ErrInvalidIngestConfig, c.Ingest.Workers)
	}
	if c.Ingest.EmbedRatePerSec <= 0 {
		return fmt.Errorf("%w: embed_rate_per_sec must be positive, got %g",
			ErrInvalidIngestConfig, c.Ingest.EmbedRatePerSec)
	}

	return nil
}
