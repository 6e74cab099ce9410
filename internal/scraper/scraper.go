package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/young1lin/websearch/internal/config"
	"github.com/young1lin/websearch/pkg/logger"
)

// Fetch failure sentinels. All of them mark the URL as unfetchable,
// never the whole search.
var (
	ErrNoContent              = errors.New("no readable content extracted")
	ErrUnsupportedContentType = errors.New("unsupported content type")
)

// StatusError reports a non-2xx HTTP response from the target page
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
}

// Scraper fetches web pages and extracts their readable text content
type Scraper struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
}

// New creates a scraper from fetcher configuration
func New(cfg *config.FetcherConfig) *Scraper {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody == 0 {
		maxBody = 2 << 20
	}
	maxRedirects := cfg.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = 5
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; WebSearchBot/1.0; +https://websearch.local/bot)"
	}

	return &Scraper{
		client: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent:    userAgent,
		maxBodyBytes: maxBody,
	}
}

// Fetch downloads the page at rawURL and returns its readable text,
// truncated to maxChars runes. maxChars <= 0 means no truncation.
func (s *Scraper) Fetch(ctx context.Context, rawURL string, maxChars int) (string, error) {
	log := logger.Log

	target, err := normalizeURL(rawURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{URL: target, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", target, err)
	}

	contentType := resp.Header.Get("Content-Type")
	var content string
	switch {
	case strings.Contains(contentType, "text/html"),
		strings.Contains(contentType, "application/xhtml"),
		contentType == "":
		content = extractContent(body, target)
	case strings.Contains(contentType, "text/plain"),
		strings.Contains(contentType, "text/markdown"):
		content = normalizeContent(string(body))
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}

	if content == "" {
		return "", fmt.Errorf("%w from %s", ErrNoContent, target)
	}

	content = truncateRunes(content, maxChars)

	log.Debug("page fetched",
		zap.String("url", target),
		zap.Int("content_chars", len(content)),
	)

	return content, nil
}

// normalizeURL validates the URL and defaults the scheme to https
func normalizeURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", errors.New("empty URL")
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: missing host", rawURL)
	}
	return u.String(), nil
}

// truncateRunes caps s at maxChars runes without splitting a character
func truncateRunes(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
