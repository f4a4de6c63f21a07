package peerreview

import (
	"context"
	"strings"
	"time"

	"github.com/beartec-jpg/Ai-Peer-review/internal/common/logger"
	"github.com/beartec-jpg/Ai-Peer-review/internal/models"
)

// ResultCache is the best-effort cache in front of the pipeline. Backend
// failures surface as misses and are never returned.
type ResultCache interface {
	Get(ctx context.Context, query string) (*models.Result, bool)
	Set(ctx context.Context, query string, result *models.Result, ttl time.Duration)
}

// Ledger records every completed query.
type Ledger interface {
	Append(ctx context.Context, userID, query string, result *models.Result, cacheHit bool) (*models.HistoryEntry, error)
}

// Service answers review submissions: cache first, pipeline on a miss, and
// a ledger entry either way.
type Service struct {
	pipeline *Pipeline
	cache    ResultCache
	ledger   Ledger
	ttl      time.Duration
	logger   logger.Logger
}

func NewService(pipeline *Pipeline, cache ResultCache, ledger Ledger, ttl time.Duration, log logger.Logger) *Service {
	return &Service{
		pipeline: pipeline,
		cache:    cache,
		ledger:   ledger,
		ttl:      ttl,
		logger:   log.WithFields(map[string]interface{}{"component": "review-service"}),
	}
}

// Pipeline exposes the underlying pipeline.
func (s *Service) Pipeline() *Pipeline {
	return s.pipeline
}

// Submit validates the query, serves it from cache when possible, runs the
// pipeline otherwise and records the outcome. A ledger failure is returned
// even though the result itself was produced.
func (s *Service) Submit(ctx context.Context, req models.ReviewRequest) (*models.Result, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	if cached, ok := s.cache.Get(ctx, query); ok {
		cached.FromCache = true
		if _, err := s.ledger.Append(ctx, req.UserID, query, cached, true); err != nil {
			return nil, err
		}
		s.logger.Info("review served from cache", map[string]interface{}{
			"userId":       req.UserID,
			"bestProvider": cached.BestProvider,
		})
		return cached, nil
	}

	start := time.Now()
	result, err := s.pipeline.Run(ctx, query)
	if err != nil {
		s.logger.Error("review failed", map[string]interface{}{
			"userId": req.UserID,
			"error":  err,
		})
		return nil, err
	}

	s.cache.Set(ctx, query, result, s.ttl)

	if _, err := s.ledger.Append(ctx, req.UserID, query, result, false); err != nil {
		return nil, err
	}

	s.logger.Info("review completed", map[string]interface{}{
		"userId":       req.UserID,
		"bestProvider": result.BestProvider,
		"bestScore":    result.BestScore(),
		"durationMs":   time.Since(start).Milliseconds(),
	})
	return result, nil
}
