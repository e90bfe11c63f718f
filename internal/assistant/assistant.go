// Package assistant orchestrates the question-answering pipeline: route the
// question, gather context from the chosen data source, and synthesize an
// answer grounded in that context.
package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/finsight/finsight/internal/database"
	"github.com/finsight/finsight/internal/retrieval"
	"github.com/finsight/finsight/internal/router"
	"github.com/finsight/finsight/internal/session"
)

// Router classifies a question into a data source.
type Router interface {
	Route(ctx context.Context, question string) router.Route
}

// ChunkSearcher retrieves document chunks relevant to a query.
// Satisfied by *retrieval.PressStore and *retrieval.SECStore.
type ChunkSearcher interface {
	Search(ctx context.Context, query string) ([]retrieval.Chunk, error)
}

// Translator converts a question into a validated SELECT statement.
type Translator interface {
	Translate(ctx context.Context, question string) (string, error)
}

// SQLExecutor runs a read-only statement and returns its rows.
type SQLExecutor interface {
	Execute(ctx context.Context, sql string) (*database.ResultSet, error)
}

// Generator produces a text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Transcript persists conversation turns. Satisfied by *session.Store.
type Transcript interface {
	AppendMessage(ctx context.Context, sessionID uuid.UUID, role, content, route string) (*session.Message, error)
}

// Answer is a synthesized response and the data source that produced it.
type Answer struct {
	Text  string
	Route router.Route
}

// Config wires an Assistant's collaborators. Transcript is optional; when
// nil, answers are not persisted.
type Config struct {
	Router     Router
	Press      ChunkSearcher
	SEC        ChunkSearcher
	Translator Translator
	Executor   SQLExecutor
	Generator  Generator
	Transcript Transcript
	Logger     *slog.Logger
}

func (c *Config) validate() error {
	if c.Router == nil {
		return fmt.Errorf("router is required")
	}
	if c.Press == nil || c.SEC == nil {
		return fmt.Errorf("press and sec searchers are required")
	}
	if c.Translator == nil {
		return fmt.Errorf("translator is required")
	}
	if c.Executor == nil {
		return fmt.Errorf("executor is required")
	}
	if c.Generator == nil {
		return fmt.Errorf("generator is required")
	}
	return nil
}

// Assistant answers questions about company press releases, SEC filings and
// property financials.
//
// Assistant is safe for concurrent use by multiple goroutines.
type Assistant struct {
	router     Router
	press      ChunkSearcher
	sec        ChunkSearcher
	translator Translator
	executor   SQLExecutor
	gen        Generator
	transcript Transcript
	logger     *slog.Logger
}

// New creates an Assistant.
func New(cfg Config) (*Assistant, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("assistant config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		router:     cfg.Router,
		press:      cfg.Press,
		sec:        cfg.SEC,
		translator: cfg.Translator,
		executor:   cfg.Executor,
		gen:        cfg.Generator,
		transcript: cfg.Transcript,
		logger:     logger,
	}, nil
}

// Ask answers question and records the exchange in the session transcript
// when one is configured. sessionID may be uuid.Nil for a one-off question.
//
// Failures inside the pipeline degrade rather than abort: a dead retrieval
// backend or a rejected generated query produces an empty context, and the
// caller still gets an answer explaining that nothing relevant was found.
// Ask returns an error only when the exchange cannot be recorded.
func (a *Assistant) Ask(ctx context.Context, sessionID uuid.UUID, question string) (*Answer, error) {
	route := a.router.Route(ctx, question)
	a.logger.Info("question routed", "route", route)

	answer := &Answer{Text: a.answerFor(ctx, route, question), Route: route}
	if err := a.record(ctx, sessionID, question, answer); err != nil {
		return nil, err
	}
	return answer, nil
}

// answerFor gathers source material from the routed backend and synthesizes
// the reply. A retrieval path that finds nothing (or fails) answers directly
// with a "no relevant documents" message, without a model call.
func (a *Assistant) answerFor(ctx context.Context, route router.Route, question string) string {
	switch route {
	case router.RoutePressReleases:
		chunks := a.search(ctx, a.press, question)
		if len(chunks) == 0 {
			return noPressResultsAnswer
		}
		return a.synthesize(ctx, route, question, assembleChunks(chunks))
	case router.RouteSECReports:
		chunks := a.search(ctx, a.sec, question)
		if len(chunks) == 0 {
			return noSECResultsAnswer
		}
		return a.synthesize(ctx, route, question, assembleChunks(chunks))
	case router.RouteStructuredData:
		return a.synthesize(ctx, route, question, a.structuredContext(ctx, question))
	default:
		a.logger.Warn("unknown route, no context gathered", "route", route)
		return a.synthesize(ctx, route, question, "")
	}
}

// search runs a retrieval backend, treating failure as an empty result.
func (a *Assistant) search(ctx context.Context, searcher ChunkSearcher, question string) []retrieval.Chunk {
	chunks, err := searcher.Search(ctx, question)
	if err != nil {
		a.logger.Warn("retrieval failed, continuing without context", "error", err)
		return nil
	}
	return chunks
}

func (a *Assistant) structuredContext(ctx context.Context, question string) string {
	sql, err := a.translator.Translate(ctx, question)
	if err != nil {
		a.logger.Warn("sql translation failed, continuing with empty context", "error", err)
		return ""
	}

	result, err := a.executor.Execute(ctx, sql)
	if err != nil {
		a.logger.Warn("sql execution failed, continuing with empty context",
			"error", err, "sql", sql)
		return ""
	}
	return formatResultSet(sql, result)
}

// record persists the user question and the assistant answer as one exchange.
func (a *Assistant) record(ctx context.Context, sessionID uuid.UUID, question string, answer *Answer) error {
	if a.transcript == nil || sessionID == uuid.Nil {
		return nil
	}
	if _, err := a.transcript.AppendMessage(ctx, sessionID, session.RoleUser, question, ""); err != nil {
		return fmt.Errorf("recording question: %w", err)
	}
	if _, err := a.transcript.AppendMessage(ctx, sessionID, session.RoleAssistant, answer.Text, string(answer.Route)); err != nil {
		return fmt.Errorf("recording answer: %w", err)
	}
	return nil
}
