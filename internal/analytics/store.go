package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/phakpoomachalanan/WebIR/pkg/postgres"
)

// Store persists aggregate snapshots to Postgres so search statistics survive
// process restarts.
type Store struct {
	client *postgres.Client
}

// NewStore wraps a Postgres client.
func NewStore(client *postgres.Client) *Store {
	return &Store{client: client}
}

// EnsureSchema creates the snapshot table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.client.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS search_snapshots (
			id             BIGSERIAL PRIMARY KEY,
			captured_at    TIMESTAMPTZ NOT NULL,
			total_searches BIGINT NOT NULL,
			cache_hits     BIGINT NOT NULL,
			zero_hit_rate  DOUBLE PRECISION NOT NULL,
			top_queries    JSONB NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("creating snapshot table: %w", err)
	}
	return nil
}

// SaveSnapshot writes one snapshot row.
func (s *Store) SaveSnapshot(ctx context.Context, summary Summary, top []QueryStats) error {
	topJSON, err := json.Marshal(top)
	if err != nil {
		return fmt.Errorf("marshaling top queries: %w", err)
	}
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO search_snapshots
				(captured_at, total_searches, cache_hits, zero_hit_rate, top_queries)
			VALUES ($1, $2, $3, $4, $5)`,
			time.Now().UTC(), summary.TotalSearches, summary.CacheHits,
			summary.ZeroHitRate, topJSON)
		return err
	})
}

// Snapshot is one persisted row.
type Snapshot struct {
	ID            int64        `json:"id"`
	CapturedAt    time.Time    `json:"captured_at"`
	TotalSearches int64        `json:"total_searches"`
	CacheHits     int64        `json:"cache_hits"`
	ZeroHitRate   float64      `json:"zero_hit_rate"`
	TopQueries    []QueryStats `json:"top_queries"`
}

// LatestSnapshot returns the most recent persisted snapshot, or nil when none
// has been written yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	row := s.client.DB.QueryRowContext(ctx, `
		SELECT id, captured_at, total_searches, cache_hits, zero_hit_rate, top_queries
		FROM search_snapshots ORDER BY captured_at DESC LIMIT 1`)
	var snap Snapshot
	var topJSON []byte
	err := row.Scan(&snap.ID, &snap.CapturedAt, &snap.TotalSearches,
		&snap.CacheHits, &snap.ZeroHitRate, &topJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading latest snapshot: %w", err)
	}
	if err := json.Unmarshal(topJSON, &snap.TopQueries); err != nil {
		return nil, fmt.Errorf("parsing top queries: %w", err)
	}
	return &snap, nil
}
