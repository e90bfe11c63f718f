// Package ingest builds the two document corpora: it crawls investor-relations
// press releases into press_releases and extracts SEC filing PDFs into
// sec_reports, chunking and embedding both along the way.
//
// Ingestion is offline batch work. Failures skip the affected document and
// continue; the returned Stats say how much survived.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Stats summarizes one ingestion run.
type Stats struct {
	// Documents is how many source documents were fully processed.
	Documents int

	// Chunks is how many chunks were embedded and stored.
	Chunks int

	// Skipped is how many source documents failed and were passed over.
	Skipped int
}

func (s Stats) String() string {
	return fmt.Sprintf("%d documents, %d chunks, %d skipped", s.Documents, s.Chunks, s.Skipped)
}

// embedBatch embeds a batch of chunk texts at the given dimensionality,
// pacing calls through the limiter so sustained ingestion stays inside the
// embedding API quota. taskType distinguishes document embeddings from the
// query embeddings used at search time.
func embedBatch(ctx context.Context, embedder ai.Embedder, limiter *rate.Limiter,
	texts []string, dim int32, taskType string) ([]pgvector.Vector, error) {

	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for embed slot: %w", err)
	}

	docs := make([]*ai.Document, len(texts))
	for i, text := range texts {
		docs[i] = ai.DocumentFromText(text, nil)
	}

	resp, err := embedder.Embed(ctx, &ai.EmbedRequest{
		Input: docs,
		Options: &genai.EmbedContentConfig{
			OutputDimensionality: &dim,
			TaskType:             taskType,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding batch of %d: %w", len(texts), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d",
			len(resp.Embeddings), len(texts))
	}

	vectors := make([]pgvector.Vector, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		vectors[i] = pgvector.NewVector(emb.Embedding)
	}
	return vectors, nil
}

// newLimiter builds the embed-call pacer. ratePerSec at or below zero
// disables pacing.
func newLimiter(ratePerSec float64) *rate.Limiter {
	if ratePerSec <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(ratePerSec), 1)
}

// embedMaxAttempts bounds retries for one batch. Embedding APIs shed load
// with transient errors under sustained ingestion.
const embedMaxAttempts = 3

// embedBackoffBase is the unit of linear backoff between attempts.
// Variable for tests.
var embedBackoffBase = 2 * time.Second

// embedWithRetry runs embedBatch with linear backoff between attempts.
func embedWithRetry(ctx context.Context, embedder ai.Embedder, limiter *rate.Limiter,
	texts []string, dim int32, taskType string) ([]pgvector.Vector, error) {

	var lastErr error
	for attempt := 0; attempt < embedMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * embedBackoffBase):
			}
		}
		vectors, err := embedBatch(ctx, embedder, limiter, texts, dim, taskType)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after %d attempts: %w", embedMaxAttempts, lastErr)
}
