package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/querytube/querytube/internal/errors"
	"github.com/querytube/querytube/internal/models"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.runSearch(w, r, &query)
}

// handleSearchGet serves the same search through query parameters so the
// endpoint is curl- and browser-friendly.
func (s *Server) handleSearchGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := models.SearchQuery{
		Query:  q.Get("q"),
		Metric: q.Get("metric"),
	}
	if v := q.Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "top_k must be an integer")
			return
		}
		query.TopK = n
	}
	if v := q.Get("min_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "min_score must be a number")
			return
		}
		query.MinScore = &f
	}
	s.runSearch(w, r, &query)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, query *models.SearchQuery) {
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("top_k", query.TopK))
	response, err := s.engine.Search(r.Context(), query)
	if err != nil {
		s.respondAppError(w, err, "search failed")
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("q")
	if prefix == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	suggestions, err := s.engine.Autocomplete(r.Context(), prefix, limit)
	if err != nil {
		s.respondAppError(w, err, "autocomplete failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	var req models.CollectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := s.pipeline.Collect(r.Context(), &req)
	if err != nil {
		s.respondAppError(w, err, "collect failed")
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTranscripts(w http.ResponseWriter, r *http.Request) {
	var req models.TranscriptsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := s.pipeline.FetchTranscripts(r.Context(), &req)
	if err != nil {
		s.respondAppError(w, err, "transcript fetch failed")
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var req models.EmbedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := s.pipeline.BuildIndex(r.Context(), &req)
	if err != nil {
		s.respondAppError(w, err, "index build failed")
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	video, err := s.catalog.GetVideo(r.Context(), id)
	if err != nil {
		s.respondAppError(w, err, "get video failed")
		return
	}
	s.respondJSON(w, http.StatusOK, video)
}

func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.catalog.GetTranscript(r.Context(), id)
	if err != nil {
		s.respondAppError(w, err, "get transcript failed")
		return
	}
	if rec == nil {
		s.respondError(w, http.StatusNotFound, "transcript not fetched yet")
		return
	}
	if rec.Unavailable {
		s.respondError(w, http.StatusNotFound, "transcript unavailable: "+rec.Error)
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	total, err := s.catalog.CountVideos(ctx)
	if err != nil {
		s.respondAppError(w, err, "status failed")
		return
	}
	counts, err := s.catalog.CountByStatus(ctx)
	if err != nil {
		s.respondAppError(w, err, "status failed")
		return
	}

	status := models.SystemStatus{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: time.Since(s.started).Seconds(),
		TotalVideos:   total,
		StageCounts:   counts,
	}
	if snap := s.engine.Snapshot(); snap != nil {
		status.IndexLoaded = true
		status.IndexSize = snap.Len()
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleReloadIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Reload(r.Context()); err != nil {
		s.respondAppError(w, err, "index reload failed")
		return
	}
	snap := s.engine.Snapshot()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "reloaded",
		"index_size": snap.Len(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusForCode maps application error codes to HTTP status codes.
func statusForCode(code string) int {
	switch code {
	case apperrors.CodeInvalidSelector, apperrors.CodeInvalidArg:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeMetricMismatch, apperrors.CodeModelMismatch:
		return http.StatusConflict
	case apperrors.CodeIndexNotFound, apperrors.CodeMetadataNotFound:
		return http.StatusServiceUnavailable
	case apperrors.CodeTransientUpstream, apperrors.CodePermanentUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondAppError(w http.ResponseWriter, err error, logMsg string) {
	code := apperrors.Code(err)
	status := statusForCode(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error(logMsg, zap.Error(err))
	} else {
		s.logger.Debug(logMsg, zap.Error(err))
	}
	s.respondJSON(w, status, map[string]string{"error": err.Error(), "code": code})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
