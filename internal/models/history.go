package models

import (
	"context"
	"time"
)

// HistoryEntry is one completed query recorded in the ledger.
type HistoryEntry struct {
	ID        string    `json:"id" db:"id"`
	Query     string    `json:"query" db:"query"`
	Result    *Result   `json:"result" db:"result"`
	UserID    string    `json:"userId" db:"user_id"`
	Timestamp time.Time `json:"timestamp" db:"created_at"`
	CacheHit  bool      `json:"cacheHit" db:"cache_hit"`
}

// Clone returns a deep copy of the entry.
func (e HistoryEntry) Clone() HistoryEntry {
	e.Result = e.Result.Clone()
	return e
}

// HistoryFilter narrows a user's history. Nil fields are not applied.
type HistoryFilter struct {
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	MinScore    *float64   `json:"minScore,omitempty"`
	MaxScore    *float64   `json:"maxScore,omitempty"`
	SearchQuery string     `json:"searchQuery,omitempty"`
}

// ProviderPerformance folds the aggregated scores one provider received.
type ProviderPerformance struct {
	Count    int     `json:"count"`
	AvgScore float64 `json:"avgScore"`
}

// HistoryStats summarises a user's history.
type HistoryStats struct {
	TotalQueries        int                            `json:"totalQueries"`
	CacheHits           int                            `json:"cacheHits"`
	CacheMisses         int                            `json:"cacheMisses"`
	CacheHitRate        float64                        `json:"cacheHitRate"`
	AvgScore            float64                        `json:"avgScore"`
	ProviderPerformance map[string]ProviderPerformance `json:"providerPerformance"`
}

// CacheStats reports result cache counters.
type CacheStats struct {
	TotalQueries int64   `json:"totalQueries"`
	CacheHits    int64   `json:"cacheHits"`
	CacheMisses  int64   `json:"cacheMisses"`
	HitRate      float64 `json:"hitRate"`
	CacheSize    int     `json:"cacheSize"`
}

// HistoryRepository defines ledger access scoped by user.
type HistoryRepository interface {
	Append(ctx context.Context, userID, query string, result *Result, cacheHit bool) (*HistoryEntry, error)
	List(ctx context.Context, userID string, filter *HistoryFilter) ([]HistoryEntry, error)
	Get(ctx context.Context, id, userID string) (*HistoryEntry, error)
	Delete(ctx context.Context, id, userID string) (bool, error)
	Clear(ctx context.Context, userID string) error
	Stats(ctx context.Context, userID string) (*HistoryStats, error)
}
