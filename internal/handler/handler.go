package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/young1lin/websearch/internal/models"
	"github.com/young1lin/websearch/internal/search"
	"github.com/young1lin/websearch/internal/storage"
	"github.com/young1lin/websearch/internal/websearch"
	"github.com/young1lin/websearch/pkg/logger"
)

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail holds the error type and message
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// SearchHandler handles the HTTP API requests
type SearchHandler struct {
	client  *websearch.Client
	manager *search.Manager
	store   *storage.HistoryStore
}

// NewSearchHandler creates a new search handler. store may be nil to
// disable history recording.
func NewSearchHandler(client *websearch.Client, manager *search.Manager, store *storage.HistoryStore) *SearchHandler {
	return &SearchHandler{
		client:  client,
		manager: manager,
		store:   store,
	}
}

// ServeHTTP handles all HTTP requests
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// Extract or generate trace ID
	traceID := r.Header.Get("X-Trace-ID")
	if traceID == "" {
		traceID = "trace-" + uuid.New().String()[:8]
	}

	ctx := logger.ContextWithSearchID(r.Context(), traceID)
	r = r.WithContext(ctx)

	log := logger.WithSearchID(traceID)
	log.Info("request received",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
	)

	w.Header().Set("X-Trace-ID", traceID)

	// Route request
	switch {
	case r.URL.Path == "/health":
		h.handleHealth(w, r)
	case r.URL.Path == "/providers":
		h.handleProviders(w, r)
	case strings.HasSuffix(r.URL.Path, "/v1/search"):
		h.handleSearch(w, r, log)
	case r.URL.Path == "/v1/history":
		h.handleHistory(w, r, log)
	default:
		h.handleError(w, http.StatusNotFound, "not_found", "Endpoint not found", log)
	}

	duration := time.Since(start).Milliseconds()
	log.Info("request completed",
		zap.Int64("duration_ms", duration),
	)
}

// handleHealth handles health check requests
func (h *SearchHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

// handleProviders handles provider list requests
func (h *SearchHandler) handleProviders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"providers": h.manager.Providers(),
		"default":   h.manager.Name(),
	})
}

// handleSearch handles POST /v1/search requests
func (h *SearchHandler) handleSearch(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	if r.Method != http.MethodPost {
		h.handleError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only POST method is allowed", log)
		return
	}

	var opts models.SearchOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		h.handleError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body: "+err.Error(), log)
		return
	}
	defer r.Body.Close()

	results, err := h.client.Search(r.Context(), opts)
	if err != nil {
		h.writeSearchError(w, err, log)
		return
	}

	if h.store != nil {
		if recordErr := h.store.Record(storage.Entry{
			ID:          logger.SearchIDFromContext(r.Context()),
			Query:       results.Query,
			Provider:    h.client.Provider(),
			ResultCount: results.Count,
		}); recordErr != nil {
			log.Warn("failed to record search history", zap.Error(recordErr))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// handleHistory handles GET /v1/history requests
func (h *SearchHandler) handleHistory(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	if r.Method != http.MethodGet {
		h.handleError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only GET method is allowed", log)
		return
	}
	if h.store == nil {
		h.handleError(w, http.StatusNotFound, "not_found", "History is disabled", log)
		return
	}

	n := 20
	entries, err := h.store.Recent(n)
	if err != nil {
		h.handleError(w, http.StatusInternalServerError, "storage_error", "Failed to read history", log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// writeSearchError maps orchestrator errors to HTTP status codes
func (h *SearchHandler) writeSearchError(w http.ResponseWriter, err error, log *zap.Logger) {
	var invalid *websearch.InvalidOptionsError
	var provErr *websearch.ProviderError

	switch {
	case errors.As(err, &invalid):
		h.handleError(w, http.StatusBadRequest, "invalid_request", err.Error(), log)
	case errors.Is(err, context.DeadlineExceeded):
		h.handleError(w, http.StatusGatewayTimeout, "timeout", "Search timed out", log)
	case errors.Is(err, context.Canceled):
		h.handleError(w, 499, "cancelled", "Search was cancelled", log)
	case errors.As(err, &provErr):
		h.handleError(w, http.StatusBadGateway, "provider_error", err.Error(), log)
	default:
		h.handleError(w, http.StatusInternalServerError, "internal_error", err.Error(), log)
	}
}

// handleError writes a JSON error response
func (h *SearchHandler) handleError(w http.ResponseWriter, status int, errType, message string, log *zap.Logger) {
	log.Error("request error",
		zap.String("error_type", errType),
		zap.String("message", message),
		zap.Int("status", status),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{
			Type:    errType,
			Message: message,
		},
	})
}
