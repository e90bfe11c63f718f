package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/firebase/genkit/go/ai"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"github.com/finsight/finsight/internal/config"
)

const pressEmbedBatchSize = 5

// contentSelectors are tried in order on a press-release detail page before
// falling back to readability extraction.
var contentSelectors = []string{
	".press-release-content",
	".news-content",
	"article",
	"main",
	".content",
}

// pressRelease is one crawled document before chunking.
type pressRelease struct {
	URL         string
	Title       string
	PublishedAt *time.Time
	Body        string
}

// PressConfig configures the press-release crawler.
type PressConfig struct {
	// BaseURL is the investor-relations site root, e.g. "https://ir.example.com".
	BaseURL string

	// Pages is how many listing pages to crawl, starting at page 1.
	Pages int

	// Workers bounds concurrent detail-page processing.
	Workers int

	// EmbedRatePerSec paces embedding API calls.
	EmbedRatePerSec float64
}

func (c *PressConfig) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: press base URL is required", config.ErrInvalidIngestConfig)
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("%w: bad press base URL: %v", config.ErrInvalidIngestConfig, err)
	}
	if c.Pages < 1 {
		c.Pages = 1
	}
	if c.Workers < 1 {
		c.Workers = 4
	}
	return nil
}

// PressIngestor crawls press releases, chunks them, embeds the chunks and
// stores them in press_releases.
type PressIngestor struct {
	cfg      PressConfig
	pool     *pgxpool.Pool
	embedder ai.Embedder
	splitter *Splitter
	limiter  *rate.Limiter
	client   *http.Client
	logger   *slog.Logger
}

// NewPressIngestor creates a press-release ingestor.
func NewPressIngestor(cfg PressConfig, pool *pgxpool.Pool, embedder ai.Embedder, logger *slog.Logger) (*PressIngestor, error) {
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
	return &PressIngestor{
		cfg:      cfg,
		pool:     pool,
		embedder: embedder,
		splitter: NewPressSplitter(),
		limiter:  newLimiter(cfg.EmbedRatePerSec),
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}, nil
}

// Run crawls the configured listing pages and ingests every press release
// found. Individual documents that fail to fetch, parse or embed are skipped.
func (p *PressIngestor) Run(ctx context.Context) (Stats, error) {
	links, err := p.collectLinks(ctx)
	if err != nil {
		return Stats{}, err
	}
	if len(links) == 0 {
		return Stats{}, fmt.Errorf("no press release links found under %s", p.cfg.BaseURL)
	}
	p.logger.Info("press crawl found releases", "count", len(links))

	workerPool, err := ants.NewPool(p.cfg.Workers)
	if err != nil {
		return Stats{}, fmt.Errorf("creating worker pool: %w", err)
	}
	defer workerPool.Release()

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		stats Stats
	)
	for _, link := range links {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		submitErr := workerPool.Submit(func() {
			defer wg.Done()
			chunks, err := p.ingestOne(ctx, link)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.logger.Warn("skipping press release", "url", link, "error", err)
				stats.Skipped++
				return
			}
			stats.Documents++
			stats.Chunks += chunks
		})
		if submitErr != nil {
			wg.Done()
			p.logger.Warn("skipping press release", "url", link, "error", submitErr)
			mu.Lock()
			stats.Skipped++
			mu.Unlock()
		}
	}
	wg.Wait()

	p.logger.Info("press ingestion finished", "stats", stats.String())
	return stats, ctx.Err()
}

// collectLinks crawls the paginated listing and returns detail-page URLs in
// discovery order, deduplicated.
func (p *PressIngestor) collectLinks(ctx context.Context) ([]string, error) {
	c := colly.NewCollector(
		colly.AllowedDomains(hostOf(p.cfg.BaseURL)),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(30 * time.Second)

	var (
		links []string
		seen  = make(map[string]bool)
	)
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := e.Request.AbsoluteURL(e.Attr("href"))
		if !strings.Contains(href, "/press-releases/detail/") || seen[href] {
			return
		}
		seen[href] = true
		links = append(links, href)
	})
	c.OnError(func(r *colly.Response, err error) {
		p.logger.Warn("listing page fetch failed", "url", r.Request.URL.String(), "error", err)
	})

	for page := 1; page <= p.cfg.Pages; page++ {
		if ctx.Err() != nil {
			return links, ctx.Err()
		}
		listURL := fmt.Sprintf("%s/press-releases?page=%d", strings.TrimSuffix(p.cfg.BaseURL, "/"), page)
		if err := c.Visit(listURL); err != nil {
			p.logger.Warn("listing page visit failed", "url", listURL, "error", err)
		}
	}
	c.Wait()

	return links, nil
}

// ingestOne fetches, parses, chunks, embeds and stores a single release.
// Returns the number of chunks stored.
func (p *PressIngestor) ingestOne(ctx context.Context, link string) (int, error) {
	release, err := p.fetchRelease(ctx, link)
	if err != nil {
		return 0, err
	}

	chunks := p.splitter.Split(release.Body)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no content extracted")
	}

	stored := 0
	for start := 0; start < len(chunks); start += pressEmbedBatchSize {
		end := min(start+pressEmbedBatchSize, len(chunks))
		batch := chunks[start:end]

		vectors, err := embedWithRetry(ctx, p.embedder, p.limiter, batch,
			config.PressVectorDim, "RETRIEVAL_DOCUMENT")
		if err != nil {
			return stored, err
		}

		for i, text := range batch {
			_, err := p.pool.Exec(ctx,
				`INSERT INTO press_releases (source_url, published_at, title, chunk_index, content, embedding)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 ON CONFLICT (source_url, chunk_index) DO NOTHING`,
				release.URL, release.PublishedAt, release.Title, start+i, text, vectors[i],
			)
			if err != nil {
				return stored, fmt.Errorf("storing chunk %d: %w", start+i, err)
			}
			stored++
		}
	}
	return stored, nil
}

// fetchRelease downloads and parses one detail page.
func (p *PressIngestor) fetchRelease(ctx context.Context, link string) (*pressRelease, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	release := &pressRelease{URL: link}

	release.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	if release.Title == "" {
		release.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	if stamp, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		if t, err := parseTimestamp(stamp); err == nil {
			release.PublishedAt = &t
		}
	}

	release.Body = extractBody(doc, link)
	return release, nil
}

// extractBody tries the known content selectors, then falls back to
// readability extraction on the full document.
func extractBody(doc *goquery.Document, link string) string {
	for _, selector := range contentSelectors {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if len(text) > 100 {
			return text
		}
	}

	html, err := doc.Html()
	if err != nil {
		return ""
	}
	pageURL, err := url.Parse(link)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// hostOf returns the hostname without any port, which is what colly
// compares allowed domains against.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
