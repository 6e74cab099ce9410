package models

import "errors"

// Validation errors for SearchOptions
var (
	ErrEmptyQuery        = errors.New("query must not be empty")
	ErrInvalidMaxResults = errors.New("max_results must be at least 1")
)

// Default option values applied when the caller leaves a field unset
const (
	DefaultMaxResults           = 10
	DefaultFetchContentMaxChars = 10000
)

// SearchOptions describes a single search invocation. Immutable per call.
type SearchOptions struct {
	Query                string `json:"query"`
	MaxResults           int    `json:"max_results,omitempty"`
	FetchContent         bool   `json:"fetch_content,omitempty"`
	FetchContentMaxChars int    `json:"fetch_content_max_chars,omitempty"`
}

// WithDefaults returns a copy with zero-valued bounds replaced by defaults.
// Negative values are left as-is so Validate can reject them.
func (o SearchOptions) WithDefaults() SearchOptions {
	if o.MaxResults == 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.FetchContentMaxChars == 0 {
		o.FetchContentMaxChars = DefaultFetchContentMaxChars
	}
	return o
}

// Validate checks the options before any provider call is made
func (o SearchOptions) Validate() error {
	if o.Query == "" {
		return ErrEmptyQuery
	}
	if o.MaxResults < 1 {
		return ErrInvalidMaxResults
	}
	return nil
}

// Candidate represents a single raw result from a search provider,
// before any content fetching. Read-only to the orchestrator.
type Candidate struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchResult represents a single enriched search result.
// Content holds the snippet when fetching is disabled, the extracted page
// text when fetching succeeded, and is empty when the fetch failed.
type SearchResult struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Snippet    string `json:"snippet,omitempty"`
	Content    string `json:"content"`
	FetchError string `json:"fetch_error,omitempty"`
}

// SearchResults is the top-level return value of a search.
// Count always equals len(Data).
type SearchResults struct {
	Query string         `json:"query"`
	Count int            `json:"count"`
	Data  []SearchResult `json:"data"`
}
