package websearch

import "fmt"

// ProviderError wraps a failure of the underlying search provider.
// Provider failures are fatal: no partial results are returned.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("search provider %s failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// InvalidOptionsError wraps a validation failure. The provider is never
// called when options are invalid.
type InvalidOptionsError struct {
	Err error
}

func (e *InvalidOptionsError) Error() string {
	return fmt.Sprintf("invalid search options: %v", e.Err)
}

func (e *InvalidOptionsError) Unwrap() error {
	return e.Err
}
