// Package historyledger records completed queries per user, newest first,
// with a per-user cap.
package historyledger

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/beartec-jpg/Ai-Peer-review/internal/common/errors"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/logger"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/metrics"
	"github.com/beartec-jpg/Ai-Peer-review/internal/models"
)

const (
	DefaultMaxPerUser = 100
	DefaultUserID     = "default"
)

var ErrNotFound = apperrors.Sentinel(apperrors.ErrCodeHistoryNotFound, "History entry not found")

var _ models.HistoryRepository = (*Ledger)(nil)

// Ledger serializes every read-modify-write against its Store. The mirror
// holds the last successfully persisted state and is dropped when a save
// fails so the next access reloads from the store.
type Ledger struct {
	store      Store
	maxPerUser int
	logger     logger.Logger
	now        func() time.Time

	mu     sync.Mutex
	mirror []models.HistoryEntry
	loaded bool
}

func New(store Store, maxPerUser int, log logger.Logger) *Ledger {
	if maxPerUser <= 0 {
		maxPerUser = DefaultMaxPerUser
	}
	return &Ledger{
		store:      store,
		maxPerUser: maxPerUser,
		logger:     log.WithFields(map[string]interface{}{"component": "history-ledger"}),
		now:        time.Now,
	}
}

// WithClock replaces the timestamp source.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func normalizeUser(userID string) string {
	if userID == "" {
		return DefaultUserID
	}
	return userID
}

// load must be called with mu held.
func (l *Ledger) load(ctx context.Context) ([]models.HistoryEntry, error) {
	if l.loaded {
		return l.mirror, nil
	}
	entries, err := l.store.LoadAll(ctx)
	if err != nil {
		l.logger.Error("history load failed", map[string]interface{}{"error": err})
		return nil, apperrors.NewLedgerLoadFailedError(err)
	}
	l.mirror = entries
	l.loaded = true
	return l.mirror, nil
}

// save must be called with mu held.
func (l *Ledger) save(ctx context.Context, entries []models.HistoryEntry) error {
	if err := l.store.SaveAll(ctx, entries); err != nil {
		l.mirror = nil
		l.loaded = false
		metrics.HistoryWrites.WithLabelValues("error").Inc()
		l.logger.Error("history save failed", map[string]interface{}{"error": err})
		return apperrors.NewLedgerSaveFailedError(err)
	}
	l.mirror = entries
	l.loaded = true
	metrics.HistoryWrites.WithLabelValues("success").Inc()
	return nil
}

// Append inserts a new entry at the head and drops the user's oldest
// entries beyond the cap.
func (l *Ledger) Append(ctx context.Context, userID, query string, result *models.Result, cacheHit bool) (*models.HistoryEntry, error) {
	userID = normalizeUser(userID)

	l.mu.Lock()
	defer l.mu.Unlock()

	current, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	entry := models.HistoryEntry{
		ID:        uuid.NewString(),
		Query:     query,
		Result:    result.Clone(),
		UserID:    userID,
		Timestamp: l.now().UTC(),
		CacheHit:  cacheHit,
	}

	next := make([]models.HistoryEntry, 0, len(current)+1)
	next = append(next, entry)
	kept := 1
	for _, e := range current {
		if e.UserID == userID {
			if kept >= l.maxPerUser {
				continue
			}
			kept++
		}
		next = append(next, e)
	}

	if err := l.save(ctx, next); err != nil {
		return nil, err
	}

	out := entry.Clone()
	return &out, nil
}

// List returns the user's entries matching every predicate in filter.
func (l *Ledger) List(ctx context.Context, userID string, filter *models.HistoryFilter) ([]models.HistoryEntry, error) {
	userID = normalizeUser(userID)

	l.mu.Lock()
	defer l.mu.Unlock()

	current, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	out := []models.HistoryEntry{}
	for _, e := range current {
		if e.UserID == userID && matches(e, filter) {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func matches(e models.HistoryEntry, f *models.HistoryFilter) bool {
	if f == nil {
		return true
	}
	if f.StartDate != nil && e.Timestamp.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && e.Timestamp.After(*f.EndDate) {
		return false
	}
	if f.MinScore != nil || f.MaxScore != nil {
		score := e.Result.MaxScore()
		if f.MinScore != nil && score < *f.MinScore {
			return false
		}
		if f.MaxScore != nil && score > *f.MaxScore {
			return false
		}
	}
	if f.SearchQuery != "" {
		needle := strings.ToLower(f.SearchQuery)
		if !strings.Contains(strings.ToLower(e.Query), needle) &&
			!strings.Contains(strings.ToLower(e.Result.BestAnswer), needle) {
			return false
		}
	}
	return true
}

// Get returns ErrNotFound when the entry is absent or owned by another user.
func (l *Ledger) Get(ctx context.Context, id, userID string) (*models.HistoryEntry, error) {
	userID = normalizeUser(userID)

	l.mu.Lock()
	defer l.mu.Unlock()

	current, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range current {
		if e.ID == id && e.UserID == userID {
			out := e.Clone()
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// Delete reports whether an entry was removed.
func (l *Ledger) Delete(ctx context.Context, id, userID string) (bool, error) {
	userID = normalizeUser(userID)

	l.mu.Lock()
	defer l.mu.Unlock()

	current, err := l.load(ctx)
	if err != nil {
		return false, err
	}

	next := make([]models.HistoryEntry, 0, len(current))
	for _, e := range current {
		if e.ID == id && e.UserID == userID {
			continue
		}
		next = append(next, e)
	}
	if len(next) == len(current) {
		return false, nil
	}
	if err := l.save(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// Clear removes every entry of userID.
func (l *Ledger) Clear(ctx context.Context, userID string) error {
	userID = normalizeUser(userID)

	l.mu.Lock()
	defer l.mu.Unlock()

	current, err := l.load(ctx)
	if err != nil {
		return err
	}

	next := make([]models.HistoryEntry, 0, len(current))
	for _, e := range current {
		if e.UserID != userID {
			next = append(next, e)
		}
	}
	return l.save(ctx, next)
}

func (l *Ledger) Stats(ctx context.Context, userID string) (*models.HistoryStats, error) {
	entries, err := l.List(ctx, userID, nil)
	if err != nil {
		return nil, err
	}

	stats := &models.HistoryStats{
		TotalQueries:        len(entries),
		ProviderPerformance: map[string]models.ProviderPerformance{},
	}

	var scoreSum float64
	sums := map[string]float64{}
	for _, e := range entries {
		if e.CacheHit {
			stats.CacheHits++
		}
		scoreSum += e.Result.MaxScore()
		for provider, score := range e.Result.AggregatedScores {
			perf := stats.ProviderPerformance[provider]
			perf.Count++
			stats.ProviderPerformance[provider] = perf
			sums[provider] += score
		}
	}
	stats.CacheMisses = stats.TotalQueries - stats.CacheHits

	for provider, perf := range stats.ProviderPerformance {
		perf.AvgScore = sums[provider] / float64(perf.Count)
		stats.ProviderPerformance[provider] = perf
	}

	if stats.TotalQueries > 0 {
		stats.CacheHitRate = float64(stats.CacheHits) / float64(stats.TotalQueries) * 100
		stats.AvgScore = math.Round(scoreSum/float64(stats.TotalQueries)*100) / 100
	}
	return stats, nil
}
