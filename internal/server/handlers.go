package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/hyperjump/regclause/internal/models"
	"github.com/hyperjump/regclause/internal/storage"
	"go.uber.org/zap"
)

// errInvalidParam marks a query parameter rejected at the boundary.
var errInvalidParam = errors.New("invalid query parameter")

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Current()
	resp := map[string]interface{}{"status": "ok"}
	for _, doc := range s.config.Documents {
		_, err := os.Stat(doc.Path)
		resp[doc.Key] = err == nil
	}
	resp["count"] = snap.Count()
	resp["embeddings_ready"] = snap.EmbeddingsReady()
	s.respondJSON(w, http.StatusOK, resp)
}

type indexPreview struct {
	Count   int             `json:"count"`
	Preview []models.Clause `json:"preview"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query(), "limit", s.config.Search.PreviewLimit, 1, s.config.Search.MaxPreviewLimit)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	snap, err := s.catalog.EnsureIndex(r.Context())
	if err != nil {
		s.logger.Error("ensure index failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	preview := snap.Clauses
	if len(preview) > limit {
		preview = preview[:limit]
	}
	if preview == nil {
		preview = []models.Clause{}
	}
	s.respondJSON(w, http.StatusOK, indexPreview{Count: snap.Count(), Preview: preview})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query, err := s.parseSearchQuery(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.logger.Debug("search request",
		zap.String("query", query.Query),
		zap.String("method", string(query.Method)),
		zap.Int("top_k", query.TopK))
	response, err := s.engine.Search(r.Context(), query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) parseSearchQuery(v url.Values) (*models.SearchQuery, error) {
	if !v.Has("query") {
		return nil, fmt.Errorf("%w: query is required", errInvalidParam)
	}
	maxTopK := s.config.Search.MaxTopK
	if maxTopK <= 0 || maxTopK > models.MaxTopK {
		maxTopK = models.MaxTopK
	}
	topK, err := intParam(v, "top_k", s.config.Search.DefaultTopK, models.MinTopK, maxTopK)
	if err != nil {
		return nil, err
	}
	method, err := models.ParseMethod(v.Get("method"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidParam, err)
	}
	alpha := s.config.Search.DefaultAlpha
	if raw := v.Get("alpha"); raw != "" {
		alpha, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: alpha must be a number", errInvalidParam)
		}
	}
	q := &models.SearchQuery{Query: v.Get("query"), TopK: topK, Method: method, Alpha: alpha}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidParam, err)
	}
	return q, nil
}

// intParam parses an optional integer parameter bounded to [lo, hi].
func intParam(v url.Values, name string, def, lo, hi int) (int, error) {
	raw := v.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errInvalidParam, name)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%w: %s must be between %d and %d, got %d", errInvalidParam, name, lo, hi, n)
	}
	return n, nil
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	count, err := s.catalog.Reindex(r.Context())
	if err != nil {
		s.logger.Error("reindex failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "count": count})
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Count               int        `json:"count"`
	Generation          string     `json:"generation"`
	BuiltAt             *time.Time `json:"built_at,omitempty"`
	EmbeddingsReady     bool       `json:"embeddings_ready"`
	EmbeddingsBuilding  bool       `json:"embeddings_building"`
	EmbeddingRows       int        `json:"embedding_rows"`
	EmbeddingDimensions int        `json:"embedding_dimensions"`
	EmbeddingProvider   string     `json:"embedding_provider"`
	IndexBackend        string     `json:"index_backend"`
	IndexPath           string     `json:"index_path"`
	EmbeddingsPath      string     `json:"embeddings_path"`
	DiskUsageBytes      int64      `json:"disk_usage_bytes"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Current()
	resp := StatusResponse{
		Count:              snap.Count(),
		EmbeddingsReady:    snap.EmbeddingsReady(),
		EmbeddingsBuilding: s.catalog.Building(),
		IndexBackend:       s.config.Storage.Backend,
		IndexPath:          s.config.Storage.IndexPath,
		EmbeddingsPath:     s.config.Storage.EmbeddingsPath,
	}
	if snap != nil {
		resp.Generation = snap.Generation
		builtAt := snap.BuiltAt
		resp.BuiltAt = &builtAt
		resp.EmbeddingRows = snap.Embeddings.Rows()
	}
	if emb := s.catalog.Embedder(); emb != nil {
		resp.EmbeddingProvider = emb.Name()
		resp.EmbeddingDimensions = emb.Dimensions()
	}
	if n, err := storage.DiskUsageBytes(s.config.Storage.IndexPath, s.config.Storage.EmbeddingsPath); err == nil {
		resp.DiskUsageBytes = n
	} else {
		s.logger.Debug("disk usage unavailable", zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
