package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/young1lin/websearch/internal/config"
	"github.com/young1lin/websearch/internal/handler"
	"github.com/young1lin/websearch/internal/models"
	"github.com/young1lin/websearch/internal/scraper"
	"github.com/young1lin/websearch/internal/search"
	"github.com/young1lin/websearch/internal/storage"
	"github.com/young1lin/websearch/internal/tools"
	"github.com/young1lin/websearch/internal/websearch"
	"github.com/young1lin/websearch/pkg/logger"
)

var (
	Version   = "dev"
	BuildDate = "unknown"
)

var (
	cfgFile string
	port    int

	// search command flags
	maxResults   int
	fetchContent bool
	providerName string
	noHistory    bool

	// history command flags
	historyCount int
	historyClear bool
)

var rootCmd = &cobra.Command{
	Use:   "websearch",
	Short: "Web search with optional page content extraction",
	Long: `A search convenience layer that queries a configurable search
provider (SearXNG, Firecrawl, or any MCP search service) and
optionally fetches and extracts the readable text of each result.

Runs as a one-shot CLI, an HTTP API, or an MCP tool server.`,
	Version: fmt.Sprintf("%s (built %s)", Version, BuildDate),
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a one-shot search and print the results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := setup()
		defer logger.Sync()

		client, _, err := buildClient(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		results, err := client.Search(ctx, models.SearchOptions{
			Query:        args[0],
			MaxResults:   maxResults,
			FetchContent: fetchContent,
		})
		if err != nil {
			return err
		}

		fmt.Print(search.FormatResults(results))

		if !noHistory {
			recordHistory(cfg, results, client.Provider())
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := setup()
		defer logger.Sync()

		if port > 0 {
			cfg.Server.Port = port
		}

		client, manager, err := buildClient(cfg)
		if err != nil {
			return err
		}

		store, err := storage.NewHistoryStore(cfg.Storage.Path)
		if err != nil {
			logger.Warn("history disabled", zap.Error(err))
			store = nil
		} else {
			defer store.Close()
		}

		searchHandler := handler.NewSearchHandler(client, manager, store)
		runServer(cfg, searchHandler)
		return nil
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP tool server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := setup()
		defer logger.Sync()

		if port > 0 {
			cfg.Server.Port = port
		}

		client, _, err := buildClient(cfg)
		if err != nil {
			return err
		}

		fetcher := scraper.New(&cfg.Fetcher)
		server := tools.NewServer(client, fetcher)
		runServer(cfg, tools.NewHTTPHandler(server))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent search history",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := setup()
		defer logger.Sync()

		store, err := storage.NewHistoryStore(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to open history store: %w", err)
		}
		defer store.Close()

		if historyClear {
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Println("History cleared.")
			return nil
		}

		entries, err := store.Recent(historyCount)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No search history.")
			return nil
		}

		for _, e := range entries {
			fmt.Printf("%s  %-10s  %3d results  %s\n",
				e.Timestamp.Format("2006-01-02 15:04:05"), e.Provider, e.ResultCount, e.Query)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")

	searchCmd.Flags().IntVarP(&maxResults, "max-results", "n", 0, "maximum number of results")
	searchCmd.Flags().BoolVarP(&fetchContent, "fetch-content", "f", false, "fetch full page content for each result")
	searchCmd.Flags().StringVar(&providerName, "provider", "", "search provider to use (overrides config)")
	searchCmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record this search in history")

	historyCmd.Flags().IntVarP(&historyCount, "count", "n", 20, "number of entries to show")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "delete all history entries")

	rootCmd.AddCommand(searchCmd, serveCmd, mcpCmd, historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads config and initializes the global logger
func setup() *config.Config {
	cfg := config.Load(cfgFile)
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	return cfg
}

// buildClient wires the provider manager, scraper, and search client
func buildClient(cfg *config.Config) (*websearch.Client, *search.Manager, error) {
	if providerName != "" {
		cfg.WebSearch.Default = providerName
	}

	manager := search.NewManager(&cfg.WebSearch)
	if !manager.IsAvailable() {
		return nil, nil, fmt.Errorf("no available search provider (configured: %v)", manager.Providers())
	}

	fetcher := scraper.New(&cfg.Fetcher)
	client := websearch.New(manager, fetcher,
		websearch.WithFetchConcurrency(cfg.WebSearch.FetchConcurrency))

	return client, manager, nil
}

// recordHistory saves invocation metadata, never result payloads
func recordHistory(cfg *config.Config, results *models.SearchResults, provider string) {
	store, err := storage.NewHistoryStore(cfg.Storage.Path)
	if err != nil {
		logger.Debug("history disabled", zap.Error(err))
		return
	}
	defer store.Close()

	if err := store.Record(storage.Entry{
		Query:       results.Query,
		Provider:    provider,
		ResultCount: results.Count,
	}); err != nil {
		logger.Warn("failed to record search history", zap.Error(err))
	}
}

func runServer(cfg *config.Config, h http.Handler) {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
