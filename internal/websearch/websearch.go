package websearch

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/young1lin/websearch/internal/models"
	"github.com/young1lin/websearch/internal/search"
	"github.com/young1lin/websearch/pkg/logger"
)

// DefaultFetchConcurrency bounds how many candidate pages are fetched at once
const DefaultFetchConcurrency = 5

// ContentFetcher downloads a page and returns its readable text,
// truncated to maxChars characters
type ContentFetcher interface {
	Fetch(ctx context.Context, rawURL string, maxChars int) (string, error)
}

// Client orchestrates a search call: one provider query, then an optional
// concurrent content fetch for each candidate
type Client struct {
	provider    search.Provider
	fetcher     ContentFetcher
	concurrency int
}

// Option configures a Client
type Option func(*Client)

// WithFetchConcurrency sets the per-search fetch concurrency limit
func WithFetchConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// New creates a search client. fetcher may be nil when content fetching
// is never requested.
func New(provider search.Provider, fetcher ContentFetcher, opts ...Option) *Client {
	c := &Client{
		provider:    provider,
		fetcher:     fetcher,
		concurrency: DefaultFetchConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// generateSearchID creates a short correlation ID for one search call
func generateSearchID() string {
	return "ws_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}

// Search performs one search call. The provider is queried exactly once;
// when opts.FetchContent is set each candidate page is fetched concurrently
// and per-URL failures degrade to FetchError entries instead of failing the
// whole call. Only context cancellation or a provider failure aborts the call.
func (c *Client) Search(ctx context.Context, opts models.SearchOptions) (*models.SearchResults, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, &InvalidOptionsError{Err: err}
	}

	searchID := generateSearchID()
	ctx = logger.ContextWithSearchID(ctx, searchID)
	log := logger.WithSearchID(searchID)

	log.Info("search started",
		zap.String("query", opts.Query),
		zap.Int("max_results", opts.MaxResults),
		zap.Bool("fetch_content", opts.FetchContent),
	)

	candidates, err := c.provider.Search(ctx, opts.Query, opts.MaxResults)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ProviderError{Provider: c.provider.Name(), Err: err}
	}

	// Providers are asked for at most MaxResults but may over-return
	if len(candidates) > opts.MaxResults {
		candidates = candidates[:opts.MaxResults]
	}

	results := &models.SearchResults{
		Query: opts.Query,
		Data:  make([]models.SearchResult, len(candidates)),
	}
	for i, cand := range candidates {
		results.Data[i] = models.SearchResult{
			Title:   cand.Title,
			URL:     cand.URL,
			Snippet: cand.Snippet,
		}
	}

	if opts.FetchContent && c.fetcher != nil {
		if err := c.fetchAll(ctx, log, results.Data, opts.FetchContentMaxChars); err != nil {
			return nil, err
		}
	} else {
		// Without fetching, content mirrors the provider snippet
		for i := range results.Data {
			results.Data[i].Content = results.Data[i].Snippet
		}
	}

	results.Count = len(results.Data)

	log.Info("search completed",
		zap.Int("result_count", results.Count),
	)

	return results, nil
}

// fetchAll fetches every candidate page concurrently, writing into
// disjoint slots so input order is preserved. A failed fetch records the
// error on its own result; only cancellation aborts the group.
func (c *Client) fetchAll(ctx context.Context, log *zap.Logger, data []models.SearchResult, maxChars int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i := range data {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			content, err := c.fetcher.Fetch(gctx, data[i].URL, maxChars)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Debug("content fetch failed",
					zap.String("url", data[i].URL),
					zap.Error(err),
				)
				data[i].FetchError = err.Error()
				return nil
			}

			data[i].Content = content
			return nil
		})
	}

	return g.Wait()
}

// AsyncResult carries the outcome of SearchAsync
type AsyncResult struct {
	Results *models.SearchResults
	Err     error
}

// SearchAsync runs Search in a goroutine and delivers the outcome on the
// returned channel. The channel is buffered so the worker never blocks,
// and it receives exactly one value.
func (c *Client) SearchAsync(ctx context.Context, opts models.SearchOptions) <-chan AsyncResult {
	ch := make(chan AsyncResult, 1)
	go func() {
		results, err := c.Search(ctx, opts)
		ch <- AsyncResult{Results: results, Err: err}
		close(ch)
	}()
	return ch
}

// Provider returns the name of the underlying search provider
func (c *Client) Provider() string {
	return c.provider.Name()
}
