package websearch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/young1lin/websearch/internal/models"
	"github.com/young1lin/websearch/pkg/logger"
)

func init() {
	logger.Init("error", "console")
}

// stubProvider returns canned candidates and counts calls
type stubProvider struct {
	candidates []models.Candidate
	err        error
	calls      int32
}

func (s *stubProvider) Name() string      { return "stub" }
func (s *stubProvider) IsAvailable() bool { return true }

func (s *stubProvider) Search(ctx context.Context, query string, maxResults int) ([]models.Candidate, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

// stubFetcher returns per-URL content or errors, with optional per-URL delay
type stubFetcher struct {
	mu      sync.Mutex
	content map[string]string
	errs    map[string]error
	delays  map[string]time.Duration
	calls   int32
	seen    []string
}

func (f *stubFetcher) Fetch(ctx context.Context, rawURL string, maxChars int) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.seen = append(f.seen, rawURL)
	delay := f.delays[rawURL]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err, ok := f.errs[rawURL]; ok {
		return "", err
	}
	if content, ok := f.content[rawURL]; ok {
		return content, nil
	}
	return "", fmt.Errorf("unknown url: %s", rawURL)
}

func threeCandidates() []models.Candidate {
	return []models.Candidate{
		{Title: "First", URL: "https://a.example/1", Snippet: "snippet one"},
		{Title: "Second", URL: "https://b.example/2", Snippet: "snippet two"},
		{Title: "Third", URL: "https://c.example/3", Snippet: "snippet three"},
	}
}

func TestClient_Search_Validation(t *testing.T) {
	provider := &stubProvider{candidates: threeCandidates()}
	client := New(provider, nil)

	t.Run("empty query", func(t *testing.T) {
		_, err := client.Search(context.Background(), models.SearchOptions{})
		var invalid *InvalidOptionsError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidOptionsError, got %v", err)
		}
		if !errors.Is(err, models.ErrEmptyQuery) {
			t.Errorf("expected ErrEmptyQuery in chain, got %v", err)
		}
		if got := atomic.LoadInt32(&provider.calls); got != 0 {
			t.Errorf("provider must not be called on invalid options, got %d calls", got)
		}
	})

	t.Run("negative max results", func(t *testing.T) {
		_, err := client.Search(context.Background(), models.SearchOptions{Query: "q", MaxResults: -1})
		if !errors.Is(err, models.ErrInvalidMaxResults) {
			t.Fatalf("expected ErrInvalidMaxResults, got %v", err)
		}
	})
}

func TestClient_Search_SnippetOnly(t *testing.T) {
	provider := &stubProvider{candidates: threeCandidates()}
	fetcher := &stubFetcher{}
	client := New(provider, fetcher)

	results, err := client.Search(context.Background(), models.SearchOptions{Query: "golang"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if results.Count != 3 || len(results.Data) != 3 {
		t.Fatalf("expected 3 results, got count=%d len=%d", results.Count, len(results.Data))
	}
	for i, r := range results.Data {
		if r.Content != r.Snippet {
			t.Errorf("result %d: content should mirror snippet, got %q vs %q", i, r.Content, r.Snippet)
		}
	}
	if got := atomic.LoadInt32(&fetcher.calls); got != 0 {
		t.Errorf("fetcher must not be called without fetch_content, got %d calls", got)
	}
	if got := atomic.LoadInt32(&provider.calls); got != 1 {
		t.Errorf("provider must be called exactly once, got %d calls", got)
	}
}

func TestClient_Search_FetchContent(t *testing.T) {
	t.Run("order preserved under varied latencies", func(t *testing.T) {
		provider := &stubProvider{candidates: threeCandidates()}
		fetcher := &stubFetcher{
			content: map[string]string{
				"https://a.example/1": "content one",
				"https://b.example/2": "content two",
				"https://c.example/3": "content three",
			},
			delays: map[string]time.Duration{
				"https://a.example/1": 30 * time.Millisecond,
				"https://b.example/2": 1 * time.Millisecond,
				"https://c.example/3": 10 * time.Millisecond,
			},
		}
		client := New(provider, fetcher)

		results, err := client.Search(context.Background(), models.SearchOptions{
			Query:        "golang",
			FetchContent: true,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		wantTitles := []string{"First", "Second", "Third"}
		wantContent := []string{"content one", "content two", "content three"}
		for i := range results.Data {
			if results.Data[i].Title != wantTitles[i] {
				t.Errorf("result %d: title %q, want %q", i, results.Data[i].Title, wantTitles[i])
			}
			if results.Data[i].Content != wantContent[i] {
				t.Errorf("result %d: content %q, want %q", i, results.Data[i].Content, wantContent[i])
			}
		}
	})

	t.Run("single fetch failure degrades that item only", func(t *testing.T) {
		provider := &stubProvider{candidates: threeCandidates()}
		fetcher := &stubFetcher{
			content: map[string]string{
				"https://a.example/1": "content one",
				"https://c.example/3": "content three",
			},
			errs: map[string]error{
				"https://b.example/2": errors.New("connection refused"),
			},
		}
		client := New(provider, fetcher)

		results, err := client.Search(context.Background(), models.SearchOptions{
			Query:        "golang",
			FetchContent: true,
		})
		if err != nil {
			t.Fatalf("one failed fetch must not fail the call: %v", err)
		}
		if results.Count != 3 {
			t.Fatalf("expected 3 results, got %d", results.Count)
		}

		failed := results.Data[1]
		if failed.Content != "" {
			t.Errorf("failed item content should be empty, got %q", failed.Content)
		}
		if failed.FetchError == "" {
			t.Error("failed item should carry a fetch error")
		}
		if failed.Snippet != "snippet two" {
			t.Errorf("failed item keeps its snippet, got %q", failed.Snippet)
		}
		if results.Data[0].Content != "content one" || results.Data[2].Content != "content three" {
			t.Error("successful items should keep their fetched content")
		}
	})

	t.Run("all fetches fail, call still succeeds", func(t *testing.T) {
		provider := &stubProvider{candidates: threeCandidates()}
		fetcher := &stubFetcher{
			errs: map[string]error{
				"https://a.example/1": errors.New("timeout"),
				"https://b.example/2": errors.New("timeout"),
				"https://c.example/3": errors.New("timeout"),
			},
		}
		client := New(provider, fetcher)

		results, err := client.Search(context.Background(), models.SearchOptions{
			Query:        "golang",
			FetchContent: true,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i, r := range results.Data {
			if r.FetchError == "" {
				t.Errorf("result %d should carry a fetch error", i)
			}
		}
	})

	t.Run("max chars forwarded to fetcher", func(t *testing.T) {
		provider := &stubProvider{candidates: threeCandidates()[:1]}
		var gotMaxChars int32
		fetcher := fetcherFunc(func(ctx context.Context, rawURL string, maxChars int) (string, error) {
			atomic.StoreInt32(&gotMaxChars, int32(maxChars))
			return "c", nil
		})
		client := New(provider, fetcher)

		_, err := client.Search(context.Background(), models.SearchOptions{
			Query:                "golang",
			FetchContent:         true,
			FetchContentMaxChars: 1234,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := atomic.LoadInt32(&gotMaxChars); got != 1234 {
			t.Errorf("expected maxChars 1234, got %d", got)
		}
	})
}

type fetcherFunc func(ctx context.Context, rawURL string, maxChars int) (string, error)

func (f fetcherFunc) Fetch(ctx context.Context, rawURL string, maxChars int) (string, error) {
	return f(ctx, rawURL, maxChars)
}

func TestClient_Search_ProviderError(t *testing.T) {
	wantErr := errors.New("upstream down")
	provider := &stubProvider{err: wantErr}
	client := New(provider, nil)

	results, err := client.Search(context.Background(), models.SearchOptions{Query: "golang"})
	if results != nil {
		t.Error("no partial results on provider failure")
	}
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.Provider != "stub" {
		t.Errorf("unexpected provider name: %s", provErr.Provider)
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
}

func TestClient_Search_CapsOverReturningProvider(t *testing.T) {
	many := make([]models.Candidate, 20)
	for i := range many {
		many[i] = models.Candidate{Title: fmt.Sprintf("t%d", i), URL: fmt.Sprintf("https://x/%d", i)}
	}
	provider := &stubProvider{candidates: many}
	client := New(provider, nil)

	results, err := client.Search(context.Background(), models.SearchOptions{Query: "q", MaxResults: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results.Count != 5 || len(results.Data) != 5 {
		t.Fatalf("expected 5 results, got count=%d len=%d", results.Count, len(results.Data))
	}
	if results.Data[0].Title != "t0" || results.Data[4].Title != "t4" {
		t.Error("capping must keep the first MaxResults candidates in order")
	}
}

func TestClient_Search_Cancellation(t *testing.T) {
	provider := &stubProvider{candidates: threeCandidates()}
	fetcher := &stubFetcher{
		content: map[string]string{
			"https://a.example/1": "one",
			"https://b.example/2": "two",
			"https://c.example/3": "three",
		},
		delays: map[string]time.Duration{
			"https://a.example/1": 5 * time.Second,
			"https://b.example/2": 5 * time.Second,
			"https://c.example/3": 5 * time.Second,
		},
	}
	client := New(provider, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	results, err := client.Search(ctx, models.SearchOptions{
		Query:        "golang",
		FetchContent: true,
	})
	if results != nil {
		t.Error("no partial results on cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestClient_SearchAsync(t *testing.T) {
	t.Run("matches sync result", func(t *testing.T) {
		provider := &stubProvider{candidates: threeCandidates()}
		client := New(provider, nil)
		opts := models.SearchOptions{Query: "golang"}

		syncResults, syncErr := client.Search(context.Background(), opts)
		if syncErr != nil {
			t.Fatalf("unexpected sync error: %v", syncErr)
		}

		res := <-client.SearchAsync(context.Background(), opts)
		if res.Err != nil {
			t.Fatalf("unexpected async error: %v", res.Err)
		}
		if !reflect.DeepEqual(syncResults, res.Results) {
			t.Errorf("async results differ from sync:\nsync:  %+v\nasync: %+v", syncResults, res.Results)
		}
	})

	t.Run("delivers errors", func(t *testing.T) {
		provider := &stubProvider{err: errors.New("down")}
		client := New(provider, nil)

		res := <-client.SearchAsync(context.Background(), models.SearchOptions{Query: "golang"})
		var provErr *ProviderError
		if !errors.As(res.Err, &provErr) {
			t.Fatalf("expected ProviderError, got %v", res.Err)
		}
	})

	t.Run("does not block without receiver", func(t *testing.T) {
		provider := &stubProvider{candidates: threeCandidates()}
		client := New(provider, nil)

		ch := client.SearchAsync(context.Background(), models.SearchOptions{Query: "golang"})
		// Buffered channel: the worker completes even if we receive late
		time.Sleep(10 * time.Millisecond)
		res := <-ch
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
	})
}

func TestClient_Search_EmptyProviderResults(t *testing.T) {
	provider := &stubProvider{candidates: nil}
	client := New(provider, nil)

	results, err := client.Search(context.Background(), models.SearchOptions{Query: "nothing"})
	if err != nil {
		t.Fatalf("empty provider results are not an error: %v", err)
	}
	if results.Count != 0 || len(results.Data) != 0 {
		t.Errorf("expected empty results, got count=%d len=%d", results.Count, len(results.Data))
	}
}

func TestConcurrencyLimit(t *testing.T) {
	candidates := make([]models.Candidate, 12)
	for i := range candidates {
		candidates[i] = models.Candidate{Title: fmt.Sprintf("t%d", i), URL: fmt.Sprintf("https://x/%d", i)}
	}
	provider := &stubProvider{candidates: candidates}

	var inFlight, maxInFlight int32
	fetcher := fetcherFunc(func(ctx context.Context, rawURL string, maxChars int) (string, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			prev := atomic.LoadInt32(&maxInFlight)
			if cur <= prev || atomic.CompareAndSwapInt32(&maxInFlight, prev, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return "c", nil
	})

	client := New(provider, fetcher, WithFetchConcurrency(3))
	_, err := client.Search(context.Background(), models.SearchOptions{
		Query:        "q",
		MaxResults:   12,
		FetchContent: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&maxInFlight); got > 3 {
		t.Errorf("fetch concurrency exceeded limit: %d > 3", got)
	}
}
