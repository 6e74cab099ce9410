package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/young1lin/websearch/internal/config"
)

func TestMCPProvider_Search(t *testing.T) {
	t.Run("successful search with session", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req mcpRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("failed to decode request: %v", err)
			}

			switch req.Method {
			case "initialize":
				w.Header().Set("Mcp-Session-Id", "session-123")
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"jsonrpc":"2.0","result":{},"id":1}`)
			case "tools/call":
				if got := r.Header.Get("Mcp-Session-Id"); got != "session-123" {
					t.Errorf("expected session header, got %q", got)
				}
				// Double-encoded results, delivered as SSE frame
				inner := `[{"title":"Result One","link":"https://example.com/1","content":"first snippet"},{"title":"Result Two","link":"https://example.com/2","content":"second snippet"}]`
				innerJSON, _ := json.Marshal(inner)
				result := map[string]interface{}{
					"content": []map[string]string{{"type": "text", "text": string(innerJSON)}},
				}
				resultJSON, _ := json.Marshal(result)
				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprintf(w, "id:1\nevent:message\ndata:{\"jsonrpc\":\"2.0\",\"result\":%s,\"id\":2}\n", resultJSON)
			default:
				t.Errorf("unexpected method: %s", req.Method)
			}
		}))
		defer server.Close()

		p := NewMCPProvider("zhipu", &config.ProviderConfig{
			BaseURL:    server.URL,
			APIKey:     "test-key",
			ToolName:   "webSearchPrime",
			QueryParam: "search_query",
		})

		candidates, err := p.Search(context.Background(), "golang", 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(candidates) != 2 {
			t.Fatalf("expected 2 candidates, got %d", len(candidates))
		}
		if candidates[0].URL != "https://example.com/1" {
			t.Errorf("unexpected url: %s", candidates[0].URL)
		}
		if candidates[1].Snippet != "second snippet" {
			t.Errorf("unexpected snippet: %s", candidates[1].Snippet)
		}
	})

	t.Run("caps results at maxResults", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req mcpRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Method == "initialize" {
				w.Header().Set("Mcp-Session-Id", "s1")
				fmt.Fprint(w, `{"jsonrpc":"2.0","result":{},"id":1}`)
				return
			}
			inner := `[{"title":"A","link":"https://a"},{"title":"B","link":"https://b"},{"title":"C","link":"https://c"}]`
			innerJSON, _ := json.Marshal(inner)
			fmt.Fprintf(w, `{"jsonrpc":"2.0","result":{"content":[{"type":"text","text":%s}]},"id":2}`, innerJSON)
		}))
		defer server.Close()

		p := NewMCPProvider("zhipu", &config.ProviderConfig{
			BaseURL: server.URL,
			APIKey:  "test-key",
		})

		candidates, err := p.Search(context.Background(), "golang", 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(candidates) != 2 {
			t.Fatalf("expected 2 candidates, got %d", len(candidates))
		}
	})

	t.Run("tool error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req mcpRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Method == "initialize" {
				w.Header().Set("Mcp-Session-Id", "s1")
				fmt.Fprint(w, `{"jsonrpc":"2.0","result":{},"id":1}`)
				return
			}
			fmt.Fprint(w, `{"jsonrpc":"2.0","error":{"code":-32000,"message":"tool failed"},"id":2}`)
		}))
		defer server.Close()

		p := NewMCPProvider("zhipu", &config.ProviderConfig{
			BaseURL: server.URL,
			APIKey:  "test-key",
		})

		if _, err := p.Search(context.Background(), "golang", 5); err == nil {
			t.Fatal("expected error, got nil")
		}
	})
}

func TestMCPProvider_parseSSEResponse(t *testing.T) {
	p := &MCPProvider{}

	t.Run("sse frame", func(t *testing.T) {
		body := "id:1\nevent:message\ndata:{\"jsonrpc\":\"2.0\"}"
		if got := p.parseSSEResponse(body); got != `{"jsonrpc":"2.0"}` {
			t.Errorf("unexpected result: %s", got)
		}
	})

	t.Run("plain json passthrough", func(t *testing.T) {
		body := `{"jsonrpc":"2.0"}`
		if got := p.parseSSEResponse(body); got != body {
			t.Errorf("unexpected result: %s", got)
		}
	})
}
