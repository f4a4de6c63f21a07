// internal/common/metrics/metrics.go
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/beartec-jpg/Ai-Peer-review/internal/common/errors"
)

var (
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peer_review_pipeline_runs_total",
			Help: "Total number of review pipeline runs by outcome",
		},
		[]string{"status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "peer_review_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"stage"},
	)

	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peer_review_provider_calls_total",
			Help: "Total number of provider invocations by outcome",
		},
		[]string{"provider", "status"},
	)

	RatingsUnparsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peer_review_ratings_unparsed_total",
			Help: "Rater replies kept as raw text",
		},
		[]string{"provider", "code"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peer_review_cache_lookups_total",
			Help: "Result cache lookups by outcome",
		},
		[]string{"result"},
	)

	HistoryWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peer_review_history_writes_total",
			Help: "History ledger writes by outcome",
		},
		[]string{"status"},
	)

	Followups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peer_review_followups_total",
			Help: "Follow-up questions processed by outcome",
		},
		[]string{"status"},
	)

	StagesActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "peer_review_stages_active",
			Help: "Number of in-flight stage calls",
		},
		[]string{"stage"},
	)
)

// Status returns "success" or "error" for err.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// StageObserver records pipeline stage events into the Prometheus vectors.
type StageObserver struct{}

func (StageObserver) StageStarted(ctx context.Context, stage, provider string) context.Context {
	StagesActive.WithLabelValues(stage).Inc()
	return ctx
}

func (StageObserver) StageFinished(ctx context.Context, stage, provider string, d time.Duration, err error) {
	StagesActive.WithLabelValues(stage).Dec()
	if provider != "" {
		ProviderCalls.WithLabelValues(provider, Status(err)).Inc()
		return
	}
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if stage == "pipeline" {
		PipelineRuns.WithLabelValues(Status(err)).Inc()
	}
}

func (StageObserver) RatingUnparsed(ctx context.Context, rater string, err error) {
	RatingsUnparsed.WithLabelValues(rater, string(apperrors.CodeOf(err))).Inc()
}
