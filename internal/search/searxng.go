package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/young1lin/websearch/internal/config"
	"github.com/young1lin/websearch/internal/models"
	"github.com/young1lin/websearch/pkg/logger"
)

const searxngMaxBodySize = 512 * 1024 // 512KB

// SearXNGProvider implements the Provider interface using a SearXNG instance
type SearXNGProvider struct {
	name    string
	baseURL string
	timeout int
	client  *http.Client
}

// searxngResponse models the relevant portion of the SearXNG JSON response
type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
		Engine  string `json:"engine"`
	} `json:"results"`
	NumberOfResults int `json:"number_of_results"`
}

// NewSearXNGProvider creates a new SearXNG provider
func NewSearXNGProvider(name string, cfg *config.ProviderConfig) *SearXNGProvider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15
	}

	return &SearXNGProvider{
		name:    name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		client: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

// Name returns the provider name
func (p *SearXNGProvider) Name() string {
	return p.name
}

// IsAvailable returns true if an instance URL is configured.
// SearXNG instances need no API key.
func (p *SearXNGProvider) IsAvailable() bool {
	return p.baseURL != ""
}

// Search performs a search query against the SearXNG JSON API
func (p *SearXNGProvider) Search(ctx context.Context, query string, maxResults int) ([]models.Candidate, error) {
	log := logger.Log

	if !p.IsAvailable() {
		return nil, fmt.Errorf("%s provider not configured: missing instance URL", p.name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/search", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	q := req.URL.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("pageno", "1")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, searxngMaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searxng search failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var searxResp searxngResponse
	if err := json.Unmarshal(body, &searxResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	candidates := make([]models.Candidate, 0, len(searxResp.Results))
	for _, r := range searxResp.Results {
		if len(candidates) >= maxResults {
			break
		}
		candidates = append(candidates, models.Candidate{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
		})
	}

	log.Info("searxng search completed",
		zap.String("provider", p.name),
		zap.String("query", query),
		zap.Int("result_count", len(candidates)),
	)

	return candidates, nil
}
