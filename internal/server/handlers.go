package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/pageindex/internal/models"
	"github.com/hyperjump/pageindex/internal/storage"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query))
	response, err := s.search.Query(r.Context(), &query)
	if err != nil {
		s.respondErr(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

type reindexResponse struct {
	Summary *models.IndexingRunSummary `json:"summary"`
	Error   string                     `json:"error,omitempty"`
}

func (s *Server) handleReindexAll(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ReindexAll(r.Context())
	switch {
	case errors.Is(err, ErrReindexRunning):
		s.respondError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, ErrStopped):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		s.logger.Error("reindex failed", zap.Error(err))
		s.respondJSON(w, http.StatusInternalServerError, reindexResponse{Summary: summary, Error: err.Error()})
		return
	}
	s.respondJSON(w, http.StatusOK, reindexResponse{Summary: summary})
}

func (s *Server) handleReindexOne(w http.ResponseWriter, r *http.Request) {
	// ids may contain slashes, which clients send escaped.
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil || id == "" {
		s.respondError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	s.logger.Debug("reindex document request", zap.String("id", id))
	if err := s.indexer.ReindexOne(r.Context(), id); err != nil {
		s.respondErr(w, "reindex document failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"document_id": id, "status": "indexed"})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev models.DocumentEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("document event", zap.String("type", string(ev.Type)), zap.String("id", ev.DocumentID))
	if err := s.indexer.HandleEvent(r.Context(), ev); err != nil {
		s.respondErr(w, "event failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"document_id": ev.DocumentID, "status": "applied"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.search.Stats(r.Context())
	if err != nil {
		s.respondErr(w, "stats failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.search.Stats(r.Context())
	if err != nil {
		s.respondErr(w, "status: stats failed", err)
		return
	}
	reindexing := !s.reindexMu.TryLock()
	if !reindexing {
		s.reindexMu.Unlock()
	}
	resp := map[string]interface{}{
		"vectors":    stats,
		"reindexing": reindexing,
	}

	cfg := s.config
	resp["config"] = map[string]interface{}{
		"primary_store":        cfg.Storage.PrimaryKind,
		"vector_store":         cfg.Storage.VectorKind,
		"embedding_provider":   cfg.Embedding.Provider,
		"embedding_model":      cfg.Embedding.Model,
		"embedding_dimensions": cfg.Embedding.Dimensions,
		"workers":              cfg.Indexer.Workers,
		"default_top_k":        s.search.DefaultTopK(),
		"max_top_k":            cfg.Search.MaxTopK,
	}
	diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.VectorPath)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps sentinel errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrTimeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) respondErr(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
