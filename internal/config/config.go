// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.finsight/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: chat model, temperature, per-corpus embedder models
//   - Storage: PostgreSQL connection (see storage.go)
//   - Ingest: press-release crawler and SEC filing directory settings
//   - Tracing: optional OTLP trace export
//
// Sensitive data (passwords) is never logged; see MarshalJSON.
// Validation is fail-fast with sentinel errors usable via errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidEmbedderModel indicates an embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidRetrievalLimit indicates a retrieval result limit is out of range.
	ErrInvalidRetrievalLimit = errors.New("invalid retrieval limit")

	// ErrInvalidIngestConfig indicates the ingestion settings are unusable.
	ErrInvalidIngestConfig = errors.New("invalid ingest configuration")
)

const (
	// DefaultChatModel is the Gemini model used for routing, SQL generation
	// and answer synthesis.
	DefaultChatModel = "gemini-2.5-flash"

	// DefaultPressEmbedderModel embeds press-release chunks and queries.
	// Truncated to 768 dimensions via OutputDimensionality; the
	// press_releases.embedding column is vector(768).
	DefaultPressEmbedderModel = "text-embedding-004"

	// DefaultSECEmbedderModel embeds SEC filing chunks and queries.
	// Truncated to 1536 dimensions; sec_reports.embedding is vector(1536).
	// The two embedding spaces are NOT interchangeable.
	DefaultSECEmbedderModel = "gemini-embedding-001"

	// PressVectorDim is the press-release embedding dimensionality.
	PressVectorDim int32 = 768

	// SECVectorDim is the SEC filing embedding dimensionality.
	SECVectorDim int32 = 1536

	// DefaultPressResultLimit caps press-release chunks per search.
	DefaultPressResultLimit = 20

	// DefaultSECResultLimit caps SEC filing chunks per search.
	DefaultSECResultLimit = 10
)

// IngestConfig holds settings for the offline ingestion commands.
type IngestConfig struct {
	// PressBaseURL is the investor-relations site hosting the paginated
	// press-release listing (e.g. https://ir.example.com).
	PressBaseURL string `mapstructure:"press_base_url" json:"press_base_url"`

	// PressPages is how many listing pages to crawl.
	PressPages int `mapstructure:"press_pages" json:"press_pages"`

	// SECDataDir is the local directory containing SEC filing PDFs.
	SECDataDir string `mapstructure:"sec_data_dir" json:"sec_data_dir"`

	// Workers bounds concurrent document processing.
	Workers int `mapstructure:"workers" json:"workers"`

	// EmbedRatePerSec caps embedding API calls per second (token bucket).
	EmbedRatePerSec float64 `mapstructure:"embed_rate_per_sec" json:"embed_rate_per_sec"`
}

// TracingConfig holds optional OTLP trace export settings.
// Tracing is disabled when Endpoint is empty.
type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI configuration
	ModelName   string  `mapstructure:"model_name" json:"model_name"`
	Temperature float32 `mapstructure:"temperature" json:"temperature"`

	// Embedding configuration (two independent spaces)
	PressEmbedderModel string `mapstructure:"press_embedder_model" json:"press_embedder_model"`
	SECEmbedderModel   string `mapstructure:"sec_embedder_model" json:"sec_embedder_model"`

	// Retrieval configuration
	PressResultLimit int `mapstructure:"press_result_limit" json:"press_result_limit"`
	SECResultLimit   int `mapstructure:"sec_result_limit" json:"sec_result_limit"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Ingestion configuration
	Ingest IngestConfig `mapstructure:"ingest" json:"ingest"`

	// Tracing configuration
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".finsight")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL takes precedence over individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("model_name", DefaultChatModel)
	viper.SetDefault("temperature", 0.1)

	viper.SetDefault("press_embedder_model", DefaultPressEmbedderModel)
	viper.SetDefault("sec_embedder_model", DefaultSECEmbedderModel)

	viper.SetDefault("press_result_limit", DefaultPressResultLimit)
	viper.SetDefault("sec_result_limit", DefaultSECResultLimit)

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "finsight")
	viper.SetDefault("postgres_password", "finsight_dev_password")
	viper.SetDefault("postgres_db_name", "finsight")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("ingest.press_pages", 20)
	viper.SetDefault("ingest.sec_data_dir", "data")
	viper.SetDefault("ingest.workers", 4)
	viper.SetDefault("ingest.embed_rate_per_sec", 2.0)

	viper.SetDefault("tracing.service_name", "finsight")
	viper.SetDefault("tracing.environment", "dev")
}

// bindEnvVariables binds environment variables explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via viper; its presence is
// checked in cmd before initialization.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a failure here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "FINSIGHT_MODEL_NAME")
	mustBind("ingest.press_base_url", "FINSIGHT_PRESS_BASE_URL")
	mustBind("ingest.sec_data_dir", "FINSIGHT_SEC_DATA_DIR")
	mustBind("tracing.endpoint", "FINSIGHT_OTLP_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8 characters
// or fewer are fully masked to prevent substring matching; longer secrets
// keep the first and last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
