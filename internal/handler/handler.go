package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"crawlscope/internal/adapter"
	"crawlscope/internal/codec"
	"crawlscope/internal/domain"
	"crawlscope/internal/service"
)

// StreamStatus reports the crawler connection state
type StreamStatus interface {
	Connected() bool
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// CrawlStatusResponse is the body of GET /api/crawl
type CrawlStatusResponse struct {
	domain.CrawlStatus
	Connected bool `json:"connected"`
	Pending   int  `json:"pending_relationships"`
}

// StopResponse is the body of POST /api/crawl/stop
type StopResponse struct {
	Sent bool `json:"sent"`
	domain.CrawlStatus
}

// ToggleResponse is the body of POST /api/branches/toggle
type ToggleResponse struct {
	Key      string `json:"key"`
	Expanded bool   `json:"expanded"`
}

// CrawlHandler serves the aggregator state and crawl controls
type CrawlHandler struct {
	agg      *service.Aggregator
	stream   StreamStatus
	exports  *codec.Registry
	validate *validator.Validate
	logger   *zap.Logger
}

// NewCrawlHandler creates a new crawl handler
func NewCrawlHandler(agg *service.Aggregator, stream StreamStatus, exports *codec.Registry, logger *zap.Logger) *CrawlHandler {
	return &CrawlHandler{
		agg:      agg,
		stream:   stream,
		exports:  exports,
		validate: validator.New(),
		logger:   logger.Named("http"),
	}
}

// GetGraph returns the current graph snapshot with its flush sequence
func (h *CrawlHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, h.agg.Graph(), http.StatusOK)
}

// Export writes the graph in the format named by the path
func (h *CrawlHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	exporter, err := h.exports.Lookup(format)
	if err != nil {
		writeError(w, h.logger, "Unsupported export format", err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", "attachment; filename=graph."+exporter.Format())
	if err := exporter.Export(h.agg.Graph().Snapshot, w); err != nil {
		// Headers are already out; nothing useful to send.
		h.logger.Error("Export failed", zap.String("format", format), zap.Error(err))
	}
}

// ListBranches returns the branch view filtered by ?q=
func (h *CrawlHandler) ListBranches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, h.agg.Branches(r.URL.Query().Get("q")), http.StatusOK)
}

// ToggleBranch flips the expanded flag of ?key=
func (h *CrawlHandler) ToggleBranch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if !query.Has("key") {
		writeError(w, h.logger, "Missing branch key", "query parameter 'key' is required", http.StatusBadRequest)
		return
	}
	key := query.Get("key")

	expanded, err := h.agg.ToggleBranch(key)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownBranch) {
			writeError(w, h.logger, "Not found", err.Error(), http.StatusNotFound)
			return
		}
		writeError(w, h.logger, "Failed to toggle branch", err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, ToggleResponse{Key: key, Expanded: expanded}, http.StatusOK)
}

// ListMessages returns the raw message log
func (h *CrawlHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs := h.agg.Messages()
	if msgs == nil {
		msgs = []string{}
	}
	writeJSON(w, h.logger, msgs, http.StatusOK)
}

// ListNotifications returns the live notifications
func (h *CrawlHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	notes := h.agg.Notifications()
	if notes == nil {
		notes = []domain.Notification{}
	}
	writeJSON(w, h.logger, notes, http.StatusOK)
}

// GetCrawl returns crawl control and stream status
func (h *CrawlHandler) GetCrawl(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, CrawlStatusResponse{
		CrawlStatus: h.agg.Crawl().Status(),
		Connected:   h.stream.Connected(),
		Pending:     h.agg.PendingRelationships(),
	}, http.StatusOK)
}

// StartCrawl seeds a new crawl
func (h *CrawlHandler) StartCrawl(w http.ResponseWriter, r *http.Request) {
	var req service.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	req.Domain = strings.TrimSpace(req.Domain)

	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.logger, "Validation failed", validationDetails(err), http.StatusBadRequest)
		return
	}

	if err := h.agg.Crawl().Start(r.Context(), req); err != nil {
		h.writeCrawlError(w, "Failed to start crawl", err)
		return
	}

	writeJSON(w, h.logger, h.agg.Crawl().Status(), http.StatusAccepted)
}

// StopCrawl requests the crawler to stop
func (h *CrawlHandler) StopCrawl(w http.ResponseWriter, r *http.Request) {
	sent, err := h.agg.Crawl().Stop(r.Context())
	if err != nil {
		h.writeCrawlError(w, "Failed to stop crawl", err)
		return
	}

	writeJSON(w, h.logger, StopResponse{Sent: sent, CrawlStatus: h.agg.Crawl().Status()}, http.StatusAccepted)
}

// Clear empties the graph, branches and message log
func (h *CrawlHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.agg.Clear(r.Context())
	writeJSON(w, h.logger, map[string]string{"status": "cleared"}, http.StatusOK)
}

// Health reports liveness
func (h *CrawlHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, map[string]any{
		"status":    "healthy",
		"connected": h.stream.Connected(),
	}, http.StatusOK)
}

func (h *CrawlHandler) writeCrawlError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrCrawlActive):
		writeError(w, h.logger, msg, err.Error(), http.StatusConflict)
	case errors.Is(err, adapter.ErrNotConnected):
		writeError(w, h.logger, msg, err.Error(), http.StatusServiceUnavailable)
	default:
		h.logger.Error(msg, zap.Error(err))
		writeError(w, h.logger, msg, err.Error(), http.StatusBadGateway)
	}
}

// Helper functions

func validationDetails(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+" failed "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, error, details string, statusCode int) {
	writeJSON(w, logger, ErrorResponse{Error: error, Details: details}, statusCode)
}
