package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ledongthuc/pdf"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"github.com/finsight/finsight/internal/config"
)

const secEmbedBatchSize = 20

// SECConfig configures the SEC filing ingestor.
type SECConfig struct {
	// DataDir is the local directory holding filing PDFs.
	DataDir string

	// Workers bounds concurrent filing processing.
	Workers int

	// EmbedRatePerSec paces embedding API calls.
	EmbedRatePerSec float64
}

func (c *SECConfig) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: sec data directory is required", config.ErrInvalidIngestConfig)
	}
	if c.Workers < 1 {
		c.Workers = 4
	}
	return nil
}

// secChunk is one embedding unit with its page provenance.
type secChunk struct {
	page  int
	index int
	text  string
}

// SECIngestor extracts filing PDFs page by page, chunks the page text,
// embeds the chunks and stores them in sec_reports.
type SECIngestor struct {
	cfg      SECConfig
	pool     *pgxpool.Pool
	embedder ai.Embedder
	splitter *Splitter
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewSECIngestor creates a filing ingestor.
func NewSECIngestor(cfg SECConfig, pool *pgxpool.Pool, embedder ai.Embedder, logger *slog.Logger) (*SECIngestor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SECIngestor{
		cfg:      cfg,
		pool:     pool,
		embedder: embedder,
		splitter: NewSECSplitter(),
		limiter:  newLimiter(cfg.EmbedRatePerSec),
		logger:   logger,
	}, nil
}

// Run ingests every PDF under the data directory. Filings that fail to parse
// or embed are skipped.
func (s *SECIngestor) Run(ctx context.Context) (Stats, error) {
	files, err := s.listPDFs()
	if err != nil {
		return Stats{}, err
	}
	if len(files) == 0 {
		return Stats{}, fmt.Errorf("no PDF files under %s", s.cfg.DataDir)
	}
	s.logger.Info("found filings", "count", len(files), "dir", s.cfg.DataDir)

	workerPool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		return Stats{}, fmt.Errorf("creating worker pool: %w", err)
	}
	defer workerPool.Release()

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		stats Stats
	)
	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		submitErr := workerPool.Submit(func() {
			defer wg.Done()
			chunks, err := s.ingestOne(ctx, file)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("skipping filing", "file", file, "error", err)
				stats.Skipped++
				return
			}
			stats.Documents++
			stats.Chunks += chunks
		})
		if submitErr != nil {
			wg.Done()
			s.logger.Warn("skipping filing", "file", file, "error", submitErr)
			mu.Lock()
			stats.Skipped++
			mu.Unlock()
		}
	}
	wg.Wait()

	s.logger.Info("sec ingestion finished", "stats", stats.String())
	return stats, ctx.Err()
}

func (s *SECIngestor) listPDFs() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("reading data directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			files = append(files, filepath.Join(s.cfg.DataDir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// ingestOne extracts, chunks, embeds and stores a single filing.
// Returns the number of chunks stored.
func (s *SECIngestor) ingestOne(ctx context.Context, path string) (int, error) {
	chunks, err := s.extractChunks(path)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no text extracted")
	}

	sourceFile := filepath.Base(path)
	stored := 0
	for start := 0; start < len(chunks); start += secEmbedBatchSize {
		end := min(start+secEmbedBatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.text
		}
		vectors, err := embedWithRetry(ctx, s.embedder, s.limiter, texts,
			config.SECVectorDim, "RETRIEVAL_DOCUMENT")
		if err != nil {
			return stored, err
		}

		for i, c := range batch {
			_, err := s.pool.Exec(ctx,
				`INSERT INTO sec_reports (source_file, page, chunk_index, content, embedding)
				 VALUES ($1, $2, $3, $4, $5)
				 ON CONFLICT (source_file, page, chunk_index) DO NOTHING`,
				sourceFile, c.page, c.index, c.text, vectors[i],
			)
			if err != nil {
				return stored, fmt.Errorf("storing page %d chunk %d: %w", c.page, c.index, err)
			}
			stored++
		}
	}
	return stored, nil
}

// extractChunks pulls plain text out of each PDF page and splits it.
// Pages that fail to extract are skipped individually; scanned-image pages
// commonly yield no text.
func (s *SECIngestor) extractChunks(path string) ([]secChunk, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	var chunks []secChunk
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			s.logger.Debug("page text extraction failed", "file", path, "page", pageNum, "error", err)
			continue
		}
		for i, piece := range s.splitter.Split(text) {
			chunks = append(chunks, secChunk{page: pageNum, index: i, text: piece})
		}
	}
	return chunks, nil
}
