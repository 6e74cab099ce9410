package search

import (
	"context"

	"github.com/young1lin/websearch/internal/models"
)

// Provider defines the interface for search providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Search performs a search query and returns at most maxResults candidates
	Search(ctx context.Context, query string, maxResults int) ([]models.Candidate, error)

	// IsAvailable returns true if the provider is properly configured
	IsAvailable() bool
}
