package peerreview

import (
	"context"
	"time"

	apperrors "github.com/beartec-jpg/Ai-Peer-review/internal/common/errors"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/logger"
)

const (
	StagePipeline    = "pipeline"
	StageGenerate    = "generate"
	StageCrossReview = "cross-review"
	StageRate        = "rate"
	StageAggregate   = "aggregate"
)

// Observer receives stage events. provider is empty for stage-level events
// and set for single provider calls. StageFinished receives the context
// returned by the matching StageStarted.
type Observer interface {
	StageStarted(ctx context.Context, stage, provider string) context.Context
	StageFinished(ctx context.Context, stage, provider string, d time.Duration, err error)
}

// RatingObserver is an optional extension for observers that want to know
// when a rater's reply fell back to raw text.
type RatingObserver interface {
	RatingUnparsed(ctx context.Context, rater string, err error)
}

type NopObserver struct{}

func (NopObserver) StageStarted(ctx context.Context, _, _ string) context.Context { return ctx }
func (NopObserver) StageFinished(context.Context, string, string, time.Duration, error) {}

// Observers fans events out to each observer in order.
type Observers []Observer

func (o Observers) StageStarted(ctx context.Context, stage, provider string) context.Context {
	for _, obs := range o {
		ctx = obs.StageStarted(ctx, stage, provider)
	}
	return ctx
}

func (o Observers) StageFinished(ctx context.Context, stage, provider string, d time.Duration, err error) {
	for i := len(o) - 1; i >= 0; i-- {
		o[i].StageFinished(ctx, stage, provider, d, err)
	}
}

func (o Observers) RatingUnparsed(ctx context.Context, rater string, err error) {
	for _, obs := range o {
		if ro, ok := obs.(RatingObserver); ok {
			ro.RatingUnparsed(ctx, rater, err)
		}
	}
}

// LogObserver writes stage events to a structured logger.
type LogObserver struct {
	logger logger.Logger
}

func NewLogObserver(log logger.Logger) *LogObserver {
	return &LogObserver{logger: log.WithFields(map[string]interface{}{"component": "peer-review"})}
}

func (l *LogObserver) StageStarted(ctx context.Context, stage, provider string) context.Context {
	l.logger.Debug("stage started", stageFields(stage, provider))
	return ctx
}

func (l *LogObserver) StageFinished(ctx context.Context, stage, provider string, d time.Duration, err error) {
	fields := stageFields(stage, provider)
	fields["durationMs"] = d.Milliseconds()
	if err != nil {
		fields["error"] = err
		l.logger.Warn("stage failed", fields)
		return
	}
	if provider == "" {
		l.logger.Info("stage completed", fields)
		return
	}
	l.logger.Debug("provider call completed", fields)
}

func (l *LogObserver) RatingUnparsed(ctx context.Context, rater string, err error) {
	l.logger.Warn("rating kept as raw text", map[string]interface{}{
		"stage":     StageRate,
		"provider":  rater,
		"errorCode": string(apperrors.CodeOf(err)),
		"error":     err,
	})
}

func stageFields(stage, provider string) map[string]interface{} {
	fields := map[string]interface{}{"stage": stage}
	if provider != "" {
		fields["provider"] = provider
	}
	return fields
}
