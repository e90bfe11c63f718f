package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/finsight/finsight/db"
	"github.com/finsight/finsight/internal/assistant"
	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/database"
	"github.com/finsight/finsight/internal/llm"
	"github.com/finsight/finsight/internal/retrieval"
	"github.com/finsight/finsight/internal/router"
	"github.com/finsight/finsight/internal/session"
	"github.com/finsight/finsight/internal/sqlgen"
)

// Setup creates and initializes the application. On error, everything
// already initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	a.PressEmbedder = googlegenai.GoogleAIEmbedder(g, cfg.PressEmbedderModel)
	a.SECEmbedder = googlegenai.GoogleAIEmbedder(g, cfg.SECEmbedderModel)
	if a.PressEmbedder == nil || a.SECEmbedder == nil {
		return nil, fmt.Errorf("embedder lookup failed (press=%q, sec=%q)",
			cfg.PressEmbedderModel, cfg.SECEmbedderModel)
	}

	client, err := llm.New(llm.Config{
		Genkit:      g,
		ModelName:   "googleai/" + cfg.ModelName,
		Temperature: cfg.Temperature,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	a.Sessions, err = session.NewStore(pool, logger)
	if err != nil {
		return nil, err
	}

	a.Assistant, err = provideAssistant(cfg, pool, a.PressEmbedder, a.SECEmbedder, client, a.Sessions, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("application initialized", "model", cfg.ModelName)
	return a, nil
}

// provideGenkit initializes Genkit with the Gemini plugin. The plugin reads
// GEMINI_API_KEY from the environment.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with gemini provider")
	}
	return g, nil
}

// provideAssistant builds the question-answering pipeline.
func provideAssistant(cfg *config.Config, pool *pgxpool.Pool, pressEmbedder, secEmbedder ai.Embedder,
	client *llm.Client, sessions *session.Store, logger *slog.Logger) (*assistant.Assistant, error) {

	rt, err := router.New(client, logger)
	if err != nil {
		return nil, err
	}

	press, err := retrieval.NewPressStore(pool, pressEmbedder, cfg.PressResultLimit, logger)
	if err != nil {
		return nil, err
	}
	sec, err := retrieval.NewSECStore(pool, secEmbedder, cfg.SECResultLimit, logger)
	if err != nil {
		return nil, err
	}

	translator, err := sqlgen.New(client, logger)
	if err != nil {
		return nil, err
	}
	executor, err := database.NewExecutor(pool, logger)
	if err != nil {
		return nil, err
	}

	return assistant.New(assistant.Config{
		Router:     rt,
		Press:      press,
		SEC:        sec,
		Translator: translator,
		Executor:   executor,
		Generator:  client,
		Transcript: sessions,
		Logger:     logger,
	})
}

// provideOtelShutdown exports traces over OTLP HTTP when an endpoint is
// configured. Genkit instruments the model and flow spans; this registers a
// processor that ships them out. Returns a shutdown func (no-op when
// tracing is disabled).
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	tc := cfg.Tracing
	if tc.Endpoint == "" {
		return func() {}
	}

	// Genkit's TracerProvider reads service identity from OTEL env vars.
	// Called once during startup, before any goroutines exist.
	if tc.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", tc.ServiceName)
	}
	if tc.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+tc.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(tc.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled", "endpoint", tc.Endpoint, "service", tc.ServiceName)

	shutdown := tracing.TracerProvider().Shutdown
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}
