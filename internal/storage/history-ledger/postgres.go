package historyledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/beartec-jpg/Ai-Peer-review/internal/models"
)

// Schema creates the ledger table. position preserves ledger order,
// newest first.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS history_entries (
		id         TEXT PRIMARY KEY,
		position   INTEGER NOT NULL,
		user_id    TEXT NOT NULL,
		query      TEXT NOT NULL,
		result     JSONB NOT NULL,
		cache_hit  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_history_entries_user ON history_entries (user_id, position)`,
}

const (
	selectEntriesSQL = `SELECT id, user_id, query, result, cache_hit, created_at FROM history_entries ORDER BY position`
	deleteEntriesSQL = `DELETE FROM history_entries`
	insertEntrySQL   = `INSERT INTO history_entries (id, position, user_id, query, result, cache_hit, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

// PostgresStore keeps the ledger in a single table and rewrites it inside
// one transaction per save.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) LoadAll(ctx context.Context) ([]models.HistoryEntry, error) {
	rows, err := p.db.QueryContext(ctx, selectEntriesSQL)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := []models.HistoryEntry{}
	for rows.Next() {
		var (
			e   models.HistoryEntry
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Query, &raw, &e.CacheHit, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if err := json.Unmarshal(raw, &e.Result); err != nil {
			return nil, fmt.Errorf("decode result %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (p *PostgresStore) SaveAll(ctx context.Context, entries []models.HistoryEntry) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteEntriesSQL); err != nil {
		return fmt.Errorf("truncate history: %w", err)
	}

	if len(entries) > 0 {
		stmt, err := tx.PrepareContext(ctx, insertEntrySQL)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for i, e := range entries {
			raw, err := json.Marshal(e.Result)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, e.ID, i, e.UserID, e.Query, raw, e.CacheHit, e.Timestamp); err != nil {
				return fmt.Errorf("insert %s: %w", e.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
