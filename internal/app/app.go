// Package app wires the application together: configuration, tracing,
// database, Genkit, the two retrieval stores, the SQL pipeline and the
// assistant.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finsight/finsight/internal/assistant"
	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/session"
)

// App is the application container. Build one with Setup and release its
// resources with Close.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit        *genkit.Genkit
	Pool          *pgxpool.Pool
	PressEmbedder ai.Embedder
	SECEmbedder   ai.Embedder

	Assistant *assistant.Assistant
	Sessions  *session.Store

	otelCleanup func()
}

// Close releases all resources. Safe to call on a partially built App.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
