package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finsight/finsight/internal/config"
)

// PressStore searches press-release chunks by vector similarity.
//
// PressStore is safe for concurrent use by multiple goroutines.
type PressStore struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	limit    int
	logger   *slog.Logger
}

// NewPressStore creates a press-release search store. limit caps how many
// chunks a single search returns; zero or negative uses the default.
func NewPressStore(pool *pgxpool.Pool, embedder ai.Embedder, limit int, logger *slog.Logger) (*PressStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if limit <= 0 {
		limit = config.DefaultPressResultLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PressStore{pool: pool, embedder: embedder, limit: limit, logger: logger}, nil
}

// Search returns the press-release chunks most similar to query, best first.
// Chunks at or below the similarity floor are dropped. An empty result with
// a nil error means nothing relevant was found.
func (s *PressStore) Search(ctx context.Context, query string) ([]Chunk, error) {
	vec, err := embedQuery(ctx, s.embedder, query, config.PressVectorDim)
	if err != nil {
		return nil, fmt.Errorf("press search: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT title, source_url, published_at, content,
		        1 - (embedding <=> $1) AS similarity
		 FROM press_releases
		 WHERE 1 - (embedding <=> $1) > $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		vec, MinSimilarity, s.limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying press releases: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var (
			title, url, content string
			publishedAt         *time.Time
			similarity          float64
		)
		if err := rows.Scan(&title, &url, &publishedAt, &content, &similarity); err != nil {
			return nil, fmt.Errorf("scanning press release row: %w", err)
		}
		chunks = append(chunks, Chunk{
			Content:    content,
			Similarity: similarity,
			Source:     "press_release",
			Title:      title,
			Reference:  url,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading press release rows: %w", err)
	}

	logResults(s.logger, "press_release", chunks)
	return chunks, nil
}
