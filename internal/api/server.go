// Package api exposes the HTTP interface of the discovery service: the
// full-text query endpoint and the operational counters.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tubedex/tubedex/internal/crawl"
)

// DefaultPageSize is the fixed result page size.
const DefaultPageSize = 10

// Depther reports the fetch scheduler's pending queue depth.
type Depther interface {
	Depth() int
}

// Config controls API behavior.
type Config struct {
	// RecordQueries persists submitted query strings for later discovery.
	RecordQueries bool
}

// Server wires HTTP handlers to the store and the shared crawl state.
type Server struct {
	router chi.Router
	store  crawl.Store
	state  *crawl.State
	depth  Depther
	clock  crawl.Clock
	cfg    Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(store crawl.Store, state *crawl.State, depth Depther, clock crawl.Clock, cfg Config, logger *zap.Logger) *Server {
	s := &Server{
		store:  store,
		state:  state,
		depth:  depth,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/search", s.search)
		r.Get("/stats", s.stats)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type searchResponse struct {
	Query   string      `json:"query"`
	Page    int         `json:"page"`
	Total   int         `json:"total"`
	Results []searchHit `json:"results"`
}

type searchHit struct {
	URI           string `json:"uri"`
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
	AuthorName    string `json:"author_name,omitempty"`
	AuthorURL     string `json:"author_url,omitempty"`
	LengthSeconds int64  `json:"length_seconds,omitempty"`
	ViewCount     int64  `json:"view_count,omitempty"`
	Category      string `json:"category,omitempty"`
	UploadDate    string `json:"upload_date,omitempty"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = parsed
	}

	result, err := s.store.SearchVideos(r.Context(), query, page, DefaultPageSize)
	if err != nil {
		s.logger.Error("search failed", zap.String("query", query), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	// Persisting the query feeds the platform-search driver. A failure here
	// never fails the user's request.
	if s.cfg.RecordQueries {
		if err := s.store.RecordQuery(r.Context(), query, s.clock.Now()); err != nil {
			s.logger.Warn("record query failed", zap.String("query", query), zap.Error(err))
		}
	}

	resp := searchResponse{Query: query, Page: page, Total: result.Total, Results: make([]searchHit, 0, len(result.Hits))}
	for _, rec := range result.Hits {
		resp.Results = append(resp.Results, searchHit{
			URI:           rec.URI,
			Title:         rec.Title,
			Description:   rec.Description,
			AuthorName:    rec.AuthorName,
			AuthorURL:     rec.AuthorURL,
			LengthSeconds: rec.LengthSeconds,
			ViewCount:     rec.ViewCount,
			Category:      rec.Category,
			UploadDate:    rec.UploadDate,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	Seen       uint64 `json:"seen"`
	QueueDepth int    `json:"queue_depth"`
	Indexed    uint64 `json:"indexed"`
	Failed     uint64 `json:"failed"`
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	counters := s.state.Snapshot()
	writeJSON(w, http.StatusOK, statsResponse{
		Seen:       counters.Seen,
		QueueDepth: s.depth.Depth(),
		Indexed:    counters.Indexed,
		Failed:     counters.Failed,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
