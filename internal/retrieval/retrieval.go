// Package retrieval performs vector similarity search over the two document
// corpora: press-release chunks and SEC filing chunks.
//
// The corpora live in separate tables with different embedding dimensions
// (press releases at 768, SEC filings at 1536) and are queried by separate
// stores. The vectors are not interchangeable: a query embedded for one
// corpus is meaningless against the other.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// MinSimilarity is the relevance floor for returned chunks. Cosine
// similarity at or below this value is indistinguishable from noise.
const MinSimilarity = 0.02

// Chunk is one retrieved document fragment with its provenance.
type Chunk struct {
	// Content is the chunk text.
	Content string

	// Similarity is the cosine similarity to the query, in (MinSimilarity, 1].
	Similarity float64

	// Source identifies the corpus: "press_release" or "sec_report".
	Source string

	// Title is the document title. Press releases only.
	Title string

	// Reference locates the chunk within its origin: the source URL for a
	// press release, "file p.N" for a filing page.
	Reference string
}

// embedQuery produces the query vector for one corpus. The dimensionality is
// pinned per corpus so the vector matches the table's column type.
func embedQuery(ctx context.Context, embedder ai.Embedder, query string, dim int32) (pgvector.Vector, error) {
	resp, err := embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(query, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding query: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

func logResults(logger *slog.Logger, source string, chunks []Chunk) {
	top := 0.0
	if len(chunks) > 0 {
		top = chunks[0].Similarity
	}
	logger.Debug("vector search complete",
		"source", source, "chunks", len(chunks), "top_similarity", top)
}
