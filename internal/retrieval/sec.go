package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finsight/finsight/internal/config"
)

// SECStore searches SEC filing chunks by vector similarity.
//
// SECStore is safe for concurrent use by multiple goroutines.
type SECStore struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	limit    int
	logger   *slog.Logger
}

// NewSECStore creates a filing search store. limit caps how many chunks a
// single search returns; zero or negative uses the default.
func NewSECStore(pool *pgxpool.Pool, embedder ai.Embedder, limit int, logger *slog.Logger) (*SECStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if limit <= 0 {
		limit = config.DefaultSECResultLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SECStore{pool: pool, embedder: embedder, limit: limit, logger: logger}, nil
}

// Search returns the filing chunks most similar to query, best first.
// Chunks at or below the similarity floor are dropped.
func (s *SECStore) Search(ctx context.Context, query string) ([]Chunk, error) {
	vec, err := embedQuery(ctx, s.embedder, query, config.SECVectorDim)
	if err != nil {
		return nil, fmt.Errorf("sec search: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT source_file, page, content,
		        1 - (embedding <=> $1) AS similarity
		 FROM sec_reports
		 WHERE 1 - (embedding <=> $1) > $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		vec, MinSimilarity, s.limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sec reports: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var (
			sourceFile, content string
			page                int
			similarity          float64
		)
		if err := rows.Scan(&sourceFile, &page, &content, &similarity); err != nil {
			return nil, fmt.Errorf("scanning sec report row: %w", err)
		}
		chunks = append(chunks, Chunk{
			Content:    content,
			Similarity: similarity,
			Source:     "sec_report",
			Reference:  fmt.Sprintf("%s p.%d", sourceFile, page),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading sec report rows: %w", err)
	}

	logResults(s.logger, "sec_report", chunks)
	return chunks, nil
}
