// Package followup continues a finished review with the provider that won
// it, carrying the prior conversation in every prompt.
package followup

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/beartec-jpg/Ai-Peer-review/internal/common/errors"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/logger"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/metrics"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/retry"
	"github.com/beartec-jpg/Ai-Peer-review/internal/models"
	"github.com/beartec-jpg/Ai-Peer-review/internal/providers/roster"
)

var (
	ErrInvalidFollowup  = apperrors.Sentinel(apperrors.ErrCodeInvalidFollowup, "Invalid follow-up")
	ErrFollowupLimit    = apperrors.Sentinel(apperrors.ErrCodeFollowupLimit, "Follow-up limit reached")
	ErrInvocationFailed = apperrors.Sentinel(apperrors.ErrCodeInvocationFailed, "Follow-up failed")
	ErrEmptyResponse    = apperrors.Sentinel(apperrors.ErrCodeEmptyResponse, "empty response")
)

type Engine struct {
	config *Config
	roster *roster.Roster
	retry  *retry.Executor
	logger logger.Logger
	now    func() time.Time
}

func NewEngine(config *Config, r *roster.Roster, log logger.Logger) *Engine {
	config = config.withDefaults()
	return &Engine{
		config: config,
		roster: r,
		retry:  config.executor(),
		logger: log.WithFields(map[string]interface{}{"component": "followup"}),
		now:    time.Now,
	}
}

// EstimateCost is a fixed fraction of a full review run.
func (e *Engine) EstimateCost() float64 {
	return e.config.FullRunCost * e.config.CostMultiplier
}

// MaxChain is the number of follow-ups allowed per review.
func (e *Engine) MaxChain() int {
	return e.config.MaxChain
}

// NewContext starts a follow-up chain from a finished review.
func NewContext(result *models.Result) models.FollowupContext {
	return models.NewFollowupContext(result)
}

// Validate checks question and context without invoking anything.
func (e *Engine) Validate(question string, fctx models.FollowupContext) error {
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("%w: follow-up query cannot be empty", ErrInvalidFollowup)
	}
	if fctx.OriginalQuery == "" || fctx.ChosenAnswer == "" || fctx.ChosenProvider == "" {
		return fmt.Errorf("%w: context is missing required fields", ErrInvalidFollowup)
	}
	if len(fctx.FollowupChain) >= e.config.MaxChain {
		return fmt.Errorf("%w (max %d per query)", ErrFollowupLimit, e.config.MaxChain)
	}
	return nil
}

// Process asks the chosen provider the next question. The returned context
// is a new value with one more turn; fctx is left untouched.
func (e *Engine) Process(ctx context.Context, question string, fctx models.FollowupContext) (result *models.FollowupResult, err error) {
	defer func() {
		metrics.Followups.WithLabelValues(metrics.Status(err)).Inc()
	}()

	if err := e.Validate(question, fctx); err != nil {
		return nil, err
	}

	member, _, err := e.roster.Lookup(fctx.ChosenProvider)
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(fctx, question)
	answer, err := retry.Value(ctx, e.retry, "followup "+member.Key(), func(ctx context.Context) (string, error) {
		out, err := member.Invoker.Invoke(ctx, prompt)
		if err == nil && strings.TrimSpace(out) == "" {
			err = fmt.Errorf("%w from %s", ErrEmptyResponse, member.Name)
		}
		return out, err
	})
	if err != nil {
		e.logger.Error("follow-up failed", map[string]interface{}{
			"provider": member.Key(),
			"error":    err,
		})
		return nil, fmt.Errorf("%w: %w", ErrInvocationFailed, apperrors.NewInvocationFailedError(member.Name, err))
	}

	now := e.now().UTC()
	next := fctx.Clone()
	next.FollowupChain = append(next.FollowupChain, models.FollowupHistoryItem{
		Question:  question,
		Answer:    answer,
		Timestamp: now,
	})

	e.logger.Info("follow-up completed", map[string]interface{}{
		"provider":    member.Key(),
		"chainLength": len(next.FollowupChain),
	})

	return &models.FollowupResult{
		FollowupQuery: question,
		Answer:        answer,
		Provider:      fctx.ChosenProvider,
		EstimatedCost: e.EstimateCost(),
		Timestamp:     now,
		Context:       next,
	}, nil
}
