// Package api exposes the review service over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/beartec-jpg/Ai-Peer-review/internal/common/config"
	apperrors "github.com/beartec-jpg/Ai-Peer-review/internal/common/errors"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/logger"
	"github.com/beartec-jpg/Ai-Peer-review/internal/models"
	"github.com/beartec-jpg/Ai-Peer-review/internal/review/followup"
	peerreview "github.com/beartec-jpg/Ai-Peer-review/internal/review/peer-review"
)

const maxBodyBytes = 1 << 20

// CacheAdmin is the administrative surface of the result cache.
type CacheAdmin interface {
	Stats(ctx context.Context) models.CacheStats
	ClearAll(ctx context.Context) error
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type Deps struct {
	Reviews   *peerreview.Service
	Followups *followup.Engine
	History   models.HistoryRepository
	Cache     CacheAdmin
	Checks    map[string]ReadinessCheck
}

type Server struct {
	deps   Deps
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewServer(deps Deps, log logger.Logger) *Server {
	log = log.WithFields(map[string]interface{}{"component": "api"})
	return &Server{
		deps:   deps,
		errors: apperrors.NewErrorHandler(log),
		logger: log,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/review", s.handleReview)

		r.Post("/followup", s.handleFollowup)
		r.Get("/followup", s.handleFollowupCost)

		r.Get("/history", s.handleListHistory)
		r.Delete("/history", s.handleClearHistory)
		r.Get("/history/{id}", s.handleGetHistory)
		r.Delete("/history/{id}", s.handleDeleteHistory)

		r.Get("/cache/stats", s.handleCacheStats)
		r.Delete("/cache/stats", s.handleClearCache)
	})
	return r
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.Routes(),
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", map[string]interface{}{"addr": srv.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down", nil)
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request served", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"durationMs": time.Since(start).Milliseconds(),
			"requestId":  middleware.GetReqID(r.Context()),
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	apperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	failing := map[string]string{}
	for name, check := range s.deps.Checks {
		if err := check(r.Context()); err != nil {
			failing[name] = err.Error()
		}
	}
	if len(failing) > 0 {
		apperrors.WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not ready",
			"checks": failing,
		})
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// userID prefers an explicit value over the X-User-ID header.
func userID(r *http.Request, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if id := r.URL.Query().Get("userId"); id != "" {
		return id
	}
	return r.Header.Get("X-User-ID")
}
