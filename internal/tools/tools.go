// Package tools exposes search and fetch operations as MCP tools so
// agent runtimes can call them over the Model Context Protocol.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/young1lin/websearch/internal/models"
	"github.com/young1lin/websearch/internal/websearch"
)

// Version is reported in the MCP server implementation info
const Version = "1.0.0"

// WebSearchInput represents input for the web_search tool
type WebSearchInput struct {
	Query                string `json:"query" jsonschema:"required" jsonschema_description:"The search query"`
	MaxResults           int    `json:"max_results,omitempty" jsonschema_description:"Maximum number of results to return (default 10)"`
	FetchContent         bool   `json:"fetch_content,omitempty" jsonschema_description:"Fetch and extract the full text of each result page"`
	FetchContentMaxChars int    `json:"fetch_content_max_chars,omitempty" jsonschema_description:"Truncate fetched content to this many characters (default 10000)"`
}

// WebFetchInput represents input for the web_fetch tool
type WebFetchInput struct {
	URL      string `json:"url" jsonschema:"required" jsonschema_description:"The URL to fetch"`
	MaxChars int    `json:"max_chars,omitempty" jsonschema_description:"Truncate extracted content to this many characters (default 10000)"`
}

// NewServer creates an MCP server exposing the web_search and web_fetch tools.
// fetcher may be nil, which disables the web_fetch tool.
func NewServer(client *websearch.Client, fetcher websearch.ContentFetcher) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "websearch",
		Version: Version,
	}, nil)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "web_search",
			Description: "Search the web and return a list of results with title, URL, and snippet. Optionally fetch the full page content of each result.",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, args WebSearchInput) (*mcp.CallToolResult, any, error) {
			return handleWebSearch(ctx, args, client)
		},
	)

	if fetcher != nil {
		mcp.AddTool(server,
			&mcp.Tool{
				Name:        "web_fetch",
				Description: "Fetch a single web page and return its readable text content.",
			},
			func(ctx context.Context, req *mcp.CallToolRequest, args WebFetchInput) (*mcp.CallToolResult, any, error) {
				return handleWebFetch(ctx, args, fetcher)
			},
		)
	}

	return server
}

// NewHTTPHandler returns a stateless streamable HTTP handler for the server
func NewHTTPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server {
			return server
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)
}

func handleWebSearch(ctx context.Context, args WebSearchInput, client *websearch.Client) (*mcp.CallToolResult, any, error) {
	results, err := client.Search(ctx, models.SearchOptions{
		Query:                args.Query,
		MaxResults:           args.MaxResults,
		FetchContent:         args.FetchContent,
		FetchContentMaxChars: args.FetchContentMaxChars,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return toolError(fmt.Sprintf("Search failed: %v", err))
	}

	return toolSuccessJSON(results)
}

func handleWebFetch(ctx context.Context, args WebFetchInput, fetcher websearch.ContentFetcher) (*mcp.CallToolResult, any, error) {
	if args.URL == "" {
		return toolError("Missing required field: url")
	}

	maxChars := args.MaxChars
	if maxChars == 0 {
		maxChars = models.DefaultFetchContentMaxChars
	}

	content, err := fetcher.Fetch(ctx, args.URL, maxChars)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return toolError(fmt.Sprintf("Fetch failed: %v", err))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: content},
		},
	}, content, nil
}

// toolError returns an error result for a tool call
func toolError(message string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: message},
		},
		IsError: true,
	}, nil, nil
}

// toolSuccessJSON returns a success result with the payload rendered as JSON
func toolSuccessJSON(result interface{}) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("Failed to format result: %v", err))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, result, nil
}
