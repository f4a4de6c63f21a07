// Package peerreview runs the generate, cross-review, rate and aggregate
// stages over a model roster.
package peerreview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/beartec-jpg/Ai-Peer-review/internal/common/errors"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/retry"
	"github.com/beartec-jpg/Ai-Peer-review/internal/models"
	"github.com/beartec-jpg/Ai-Peer-review/internal/providers/roster"
)

var (
	ErrEmptyQuery       = apperrors.Sentinel(apperrors.ErrCodeEmptyQuery, "Query cannot be empty")
	ErrInvocationFailed = apperrors.Sentinel(apperrors.ErrCodeInvocationFailed, "AI sequence error")
	ErrPipelineTimeout  = apperrors.Sentinel(apperrors.ErrCodePipelineTimeout, "AI sequence timed out")
	ErrEmptyResponse    = apperrors.Sentinel(apperrors.ErrCodeEmptyResponse, "empty response")
	ErrRatingParse      = apperrors.Sentinel(apperrors.ErrCodeRatingParseFailed, "rating reply not well-formed")
)

type Pipeline struct {
	config   *Config
	roster   *roster.Roster
	retry    *retry.Executor
	observer Observer
}

func NewPipeline(config *Config, r *roster.Roster, observer Observer) *Pipeline {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Pipeline{
		config:   config,
		roster:   r,
		retry:    config.executor(),
		observer: observer,
	}
}

// Roster returns the roster the pipeline runs over.
func (p *Pipeline) Roster() *roster.Roster {
	return p.roster
}

// Run executes all four stages for query. Any fatal error is returned as a
// single error and no partial Result is produced.
func (p *Pipeline) Run(ctx context.Context, query string) (result *models.Result, err error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	runCtx := ctx
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	runCtx, finish := p.stage(runCtx, StagePipeline)
	defer func() { finish(err) }()

	initials, err := p.generate(runCtx, query)
	if err != nil {
		return nil, p.fail(runCtx, err)
	}

	finals, err := p.crossReview(runCtx, query, initials)
	if err != nil {
		return nil, p.fail(runCtx, err)
	}

	ratings, err := p.rate(runCtx, query, finals)
	if err != nil {
		return nil, p.fail(runCtx, err)
	}

	_, finishAgg := p.stage(runCtx, StageAggregate)
	agg := aggregate(p.roster.Keys(), finals, ratings)
	finishAgg(nil)

	return &models.Result{
		Query:            query,
		Initials:         initials,
		Finals:           finals,
		Ratings:          ratings,
		AggregatedScores: agg.Scores,
		BestAnswer:       agg.BestAnswer,
		BestProvider:     agg.BestProvider,
	}, nil
}

// fail classifies a stage error. A run whose deadline passed reports
// ErrPipelineTimeout regardless of which call noticed it first.
func (p *Pipeline) fail(runCtx context.Context, err error) error {
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrPipelineTimeout, apperrors.NewPipelineTimeoutError(err))
	}
	if errors.Is(runCtx.Err(), context.Canceled) {
		return fmt.Errorf("review cancelled: %w", err)
	}
	return fmt.Errorf("%w: %w", ErrInvocationFailed, err)
}

func (p *Pipeline) stage(ctx context.Context, name string) (context.Context, func(error)) {
	start := time.Now()
	ctx = p.observer.StageStarted(ctx, name, "")
	return ctx, func(err error) {
		p.observer.StageFinished(ctx, name, "", time.Since(start), err)
	}
}

// invoke calls one member through the retry executor. Blank replies count
// as failures and are retried. A member that exhausts its attempts while ctx
// is still live is reported as an INVOCATION_FAILED error naming it.
func (p *Pipeline) invoke(ctx context.Context, stage string, m roster.Member, prompt string) (string, error) {
	name := fmt.Sprintf("%s %s", stage, m.Key())
	out, err := retry.Value(ctx, p.retry, name, func(ctx context.Context) (string, error) {
		start := time.Now()
		callCtx := p.observer.StageStarted(ctx, stage, m.Key())
		out, err := m.Invoker.Invoke(callCtx, prompt)
		if err == nil && strings.TrimSpace(out) == "" {
			err = fmt.Errorf("%w from %s", ErrEmptyResponse, m.Name)
		}
		p.observer.StageFinished(callCtx, stage, m.Key(), time.Since(start), err)
		return out, err
	})
	if err != nil && ctx.Err() == nil {
		return "", apperrors.NewInvocationFailedError(m.Name, err)
	}
	return out, err
}

// fanOut runs fn for every roster position concurrently and collects the
// results in roster order. The first error cancels the rest.
func (p *Pipeline) fanOut(ctx context.Context, stage string, fn func(ctx context.Context, i int, m roster.Member) (string, error)) (out []string, err error) {
	ctx, finish := p.stage(ctx, stage)
	defer func() { finish(err) }()

	out = make([]string, p.roster.Size())
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.roster.Size(); i++ {
		i, m := i, p.roster.Member(i)
		g.Go(func() error {
			v, err := fn(gctx, i, m)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) generate(ctx context.Context, query string) ([]models.Answer, error) {
	prompt := initialPrompt(query)
	contents, err := p.fanOut(ctx, StageGenerate, func(ctx context.Context, _ int, m roster.Member) (string, error) {
		return p.invoke(ctx, StageGenerate, m, prompt)
	})
	if err != nil {
		return nil, err
	}
	return p.answers(contents), nil
}

func (p *Pipeline) crossReview(ctx context.Context, query string, initials []models.Answer) ([]models.Answer, error) {
	contents, err := p.fanOut(ctx, StageCrossReview, func(ctx context.Context, i int, m roster.Member) (string, error) {
		peers := p.roster.PeersOf(i)
		peerContents := make([]string, len(peers))
		for j, peer := range peers {
			_, idx, _ := p.roster.Lookup(peer.Name)
			peerContents[j] = initials[idx].Content
		}
		return p.invoke(ctx, StageCrossReview, m, peerReviewPrompt(query, initials[i].Content, peerContents))
	})
	if err != nil {
		return nil, err
	}
	return p.answers(contents), nil
}

func (p *Pipeline) rate(ctx context.Context, query string, finals []models.Answer) ([]models.Rating, error) {
	prompt := ratingPrompt(query, finals)
	raws, err := p.fanOut(ctx, StageRate, func(ctx context.Context, _ int, m roster.Member) (string, error) {
		return p.invoke(ctx, StageRate, m, prompt)
	})
	if err != nil {
		return nil, err
	}

	keys := p.roster.Keys()
	ratings := make([]models.Rating, len(raws))
	for i, raw := range raws {
		decoded := decodeRating(raw)
		if decoded.Err != nil {
			p.ratingUnparsed(ctx, p.roster.Member(i).Key(), decoded.Err)
		}
		scores := decoded.Scores
		if decoded.Outcome == ratingWellFormed {
			scores = completeScores(scores, keys)
		}
		ratings[i] = models.Rating{
			FromProvider: p.roster.Member(i).Name,
			Scores:       scores,
			Feedback:     decoded.Feedback,
		}
	}
	return ratings, nil
}

func (p *Pipeline) ratingUnparsed(ctx context.Context, rater string, err error) {
	if ro, ok := p.observer.(RatingObserver); ok {
		ro.RatingUnparsed(ctx, rater, err)
	}
}

func (p *Pipeline) answers(contents []string) []models.Answer {
	out := make([]models.Answer, len(contents))
	for i, c := range contents {
		out[i] = models.Answer{Provider: p.roster.Member(i).Name, Content: c}
	}
	return out
}
