package peerreview

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beartec-jpg/Ai-Peer-review/internal/common/logger"
	"github.com/beartec-jpg/Ai-Peer-review/internal/models"
	historyledger "github.com/beartec-jpg/Ai-Peer-review/internal/storage/history-ledger"
	resultcache "github.com/beartec-jpg/Ai-Peer-review/internal/storage/result-cache"
)

type failingLedger struct {
	appends int
}

func (f *failingLedger) Append(context.Context, string, string, *models.Result, bool) (*models.HistoryEntry, error) {
	f.appends++
	return nil, errors.New("disk full")
}

func newTestService(t *testing.T, ledger Ledger, fakes ...*fakeModel) (*Service, *resultcache.Cache) {
	t.Helper()
	log := logger.NewTestLogger(t)
	cache := resultcache.New(resultcache.NewMemoryBackend(), resultcache.Config{}, log)
	pipeline := newTestPipeline(t, createTestConfig(), fakes...)
	return NewService(pipeline, cache, ledger, 0, log), cache
}

func totalCalls(fakes ...*fakeModel) int {
	n := 0
	for _, f := range fakes {
		n += f.callCount(StageGenerate) + f.callCount(StageCrossReview) + f.callCount(StageRate)
	}
	return n
}

func TestSubmit_CacheHitSkipsPipeline(t *testing.T) {
	ctx := context.Background()
	a, b, c := newFakeModel("A", uniformRating), newFakeModel("B", uniformRating), newFakeModel("C", uniformRating)
	ledger := historyledger.New(historyledger.NewMemoryStore(), 0, logger.NewTestLogger(t))
	svc, cache := newTestService(t, ledger, a, b, c)

	first, err := svc.Submit(ctx, models.ReviewRequest{Query: "Implement a binary search", UserID: "alice"})
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, "b", first.BestProvider)
	assert.Equal(t, 9, totalCalls(a, b, c))

	second, err := svc.Submit(ctx, models.ReviewRequest{Query: "  implement a BINARY search ", UserID: "alice"})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.AggregatedScores, second.AggregatedScores)
	assert.Equal(t, first.BestAnswer, second.BestAnswer)
	assert.Equal(t, 9, totalCalls(a, b, c), "cache hit must not invoke any provider")

	entries, err := ledger.List(ctx, "alice", nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].CacheHit)
	assert.False(t, entries[1].CacheHit)

	stats := cache.Stats(ctx)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
}

func TestSubmit_EmptyQuery(t *testing.T) {
	a, b := newFakeModel("A", uniformRating), newFakeModel("B", uniformRating)
	ledger := historyledger.New(historyledger.NewMemoryStore(), 0, logger.NewTestLogger(t))
	svc, cache := newTestService(t, ledger, a, b)

	_, err := svc.Submit(context.Background(), models.ReviewRequest{Query: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Equal(t, 0, totalCalls(a, b))
	assert.Equal(t, int64(0), cache.Stats(context.Background()).TotalQueries)
}

func TestSubmit_PipelineFailureIsNotCachedOrRecorded(t *testing.T) {
	ctx := context.Background()
	a, b := newFakeModel("A", uniformRating), newFakeModel("B", uniformRating)
	b.override = func(_ context.Context, stage string, _ int) (string, error, bool) {
		if stage == StageCrossReview {
			return "", errors.New("503 overloaded"), true
		}
		return "", nil, false
	}
	ledger := historyledger.New(historyledger.NewMemoryStore(), 0, logger.NewTestLogger(t))
	svc, cache := newTestService(t, ledger, a, b)

	_, err := svc.Submit(ctx, models.ReviewRequest{Query: "q", UserID: "u"})
	require.ErrorIs(t, err, ErrInvocationFailed)

	entries, err := ledger.List(ctx, "u", nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 0, cache.Stats(ctx).CacheSize)
}

func TestSubmit_LedgerFailurePropagates(t *testing.T) {
	a, b := newFakeModel("A", uniformRating), newFakeModel("B", uniformRating)
	ledger := &failingLedger{}
	svc, _ := newTestService(t, ledger, a, b)

	result, err := svc.Submit(context.Background(), models.ReviewRequest{Query: "q"})
	assert.Nil(t, result)
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 1, ledger.appends)
}
