package resultcache

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/beartec-jpg/Ai-Peer-review/internal/common/errors"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/logger"
	"github.com/beartec-jpg/Ai-Peer-review/internal/models"
)

func sampleResult(query string) *models.Result {
	return &models.Result{
		Query:            query,
		Initials:         []models.Answer{{Provider: "A", Content: "a1"}, {Provider: "B", Content: "b1"}},
		Finals:           []models.Answer{{Provider: "A", Content: "a2"}, {Provider: "B", Content: "b2"}},
		Ratings:          []models.Rating{{FromProvider: "A", Scores: map[string]float64{"a": 8, "b": 9}, Feedback: "ok"}},
		AggregatedScores: map[string]float64{"a": 8, "b": 9},
		BestAnswer:       "b2",
		BestProvider:     "b",
	}
}

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newMemoryCache(t *testing.T) (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	backend := NewMemoryBackend().WithClock(clock.Now)
	return New(backend, Config{}, logger.NewTestLogger(t)), clock
}

func TestCache_KeyNormalizesQuery(t *testing.T) {
	c, _ := newMemoryCache(t)

	assert.Equal(t, c.Key("What is Go?"), c.Key("  what is go?\n"))
	assert.NotEqual(t, c.Key("what is go?"), c.Key("what is rust?"))
	assert.Contains(t, c.Key("x"), DefaultPrefix)
	assert.Len(t, c.Key("x"), len(DefaultPrefix)+64)
}

func TestCache_SetThenGet(t *testing.T) {
	ctx := context.Background()
	c, _ := newMemoryCache(t)

	_, ok := c.Get(ctx, "What is Go?")
	assert.False(t, ok)

	c.Set(ctx, "What is Go?", sampleResult("What is Go?"), 0)

	got, ok := c.Get(ctx, "  WHAT IS GO?  ")
	require.True(t, ok)
	assert.Equal(t, "b", got.BestProvider)
	assert.Equal(t, 9.0, got.AggregatedScores["b"])
	assert.False(t, got.FromCache)

	stats := c.Stats(ctx)
	assert.Equal(t, int64(2), stats.TotalQueries)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
	assert.Equal(t, 50.0, stats.HitRate)
	assert.Equal(t, 1, stats.CacheSize)
}

func TestCache_StoredResultIsIsolated(t *testing.T) {
	ctx := context.Background()
	c, _ := newMemoryCache(t)

	result := sampleResult("q")
	c.Set(ctx, "q", result, 0)
	result.AggregatedScores["a"] = 100

	first, ok := c.Get(ctx, "q")
	require.True(t, ok)
	first.Finals[0].Content = "mutated"

	second, ok := c.Get(ctx, "q")
	require.True(t, ok)
	assert.Equal(t, 8.0, second.AggregatedScores["a"])
	assert.Equal(t, "a2", second.Finals[0].Content)
}

func TestCache_MemoryExpiry(t *testing.T) {
	ctx := context.Background()
	c, clock := newMemoryCache(t)

	c.Set(ctx, "q", sampleResult("q"), time.Minute)

	clock.Advance(59 * time.Second)
	_, ok := c.Get(ctx, "q")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get(ctx, "q")
	assert.False(t, ok)

	stats := c.Stats(ctx)
	assert.Equal(t, 0, stats.CacheSize)
	assert.Equal(t, int64(2), stats.TotalQueries)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
}

func TestCache_DefaultTTL(t *testing.T) {
	ctx := context.Background()
	c, clock := newMemoryCache(t)

	c.Set(ctx, "q", sampleResult("q"), -1)

	clock.Advance(DefaultTTL - time.Second)
	_, ok := c.Get(ctx, "q")
	assert.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = c.Get(ctx, "q")
	assert.False(t, ok)
}

func TestCache_ClearAndClearAll(t *testing.T) {
	ctx := context.Background()
	c, _ := newMemoryCache(t)

	c.Set(ctx, "one", sampleResult("one"), 0)
	c.Set(ctx, "two", sampleResult("two"), 0)
	_, _ = c.Get(ctx, "one")

	require.NoError(t, c.Clear(ctx, "ONE"))
	_, ok := c.Get(ctx, "one")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Stats(ctx).CacheSize)

	require.NoError(t, c.ClearAll(ctx))
	stats := c.Stats(ctx)
	assert.Equal(t, models.CacheStats{}, stats)
}

func TestCache_HitRateRounding(t *testing.T) {
	ctx := context.Background()
	c, _ := newMemoryCache(t)

	c.Set(ctx, "q", sampleResult("q"), 0)
	_, _ = c.Get(ctx, "q")
	_, _ = c.Get(ctx, "missing")
	_, _ = c.Get(ctx, "missing")

	assert.Equal(t, 33.33, c.Stats(ctx).HitRate)
}

func TestCache_Redis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := New(NewRedisBackend(client), Config{Prefix: "test:"}, logger.NewTestLogger(t))

	c.Set(ctx, "What is Go?", sampleResult("What is Go?"), 10*time.Second)
	assert.True(t, mr.Exists(c.Key("what is go?")))
	assert.Equal(t, 10*time.Second, mr.TTL(c.Key("what is go?")))

	got, ok := c.Get(ctx, "what is go?")
	require.True(t, ok)
	assert.Equal(t, "b2", got.BestAnswer)

	require.NoError(t, mr.Set("other:key", "untouched"))
	assert.Equal(t, 1, c.Stats(ctx).CacheSize)

	mr.FastForward(11 * time.Second)
	_, ok = c.Get(ctx, "what is go?")
	assert.False(t, ok)

	c.Set(ctx, "a", sampleResult("a"), 0)
	c.Set(ctx, "b", sampleResult("b"), 0)
	require.NoError(t, c.ClearAll(ctx))
	assert.Equal(t, 0, c.Stats(ctx).CacheSize)
	assert.True(t, mr.Exists("other:key"))
}

func TestCache_RedisFailuresAreMisses(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	c := New(NewRedisBackend(db), Config{}, logger.NewTestLogger(t))
	key := c.Key("q")

	mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	_, ok := c.Get(ctx, "q")
	assert.False(t, ok)

	mock.ExpectGet(key).SetVal("{not json")
	_, ok = c.Get(ctx, "q")
	assert.False(t, ok)

	mock.Regexp().ExpectSet(key, `.*`, DefaultTTL).SetErr(errors.New("read only"))
	assert.NotPanics(t, func() { c.Set(ctx, "q", sampleResult("q"), 0) })

	mock.ExpectScan(0, DefaultPrefix+"*", 100).SetErr(errors.New("scan failed"))
	err := c.ClearAll(ctx)
	assert.ErrorIs(t, err, ErrCacheUnavailable)
	assert.Equal(t, apperrors.ErrCodeCacheUnavailable, apperrors.CodeOf(err))
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.HTTPStatus(apperrors.CodeOf(err)))

	mock.ExpectDel(key).SetErr(errors.New("read only"))
	assert.ErrorIs(t, c.Clear(ctx, "q"), ErrCacheUnavailable)

	stats := c.Stats(ctx)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, 0.0, stats.HitRate)
}
