// Package analytics records what users search for: events flow from the
// serve path through Kafka into an in-memory aggregate, with periodic
// snapshots persisted to Postgres.
package analytics

import (
	"time"

	"github.com/google/uuid"
)

// SearchEvent describes one executed search.
type SearchEvent struct {
	EventID    string    `json:"event_id"`
	Query      string    `json:"query"`
	Field      string    `json:"field"`
	TotalHits  int       `json:"total_hits"`
	Returned   int       `json:"returned"`
	CacheHit   bool      `json:"cache_hit"`
	DurationMs float64   `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewSearchEvent stamps a search execution with an id and the current time.
func NewSearchEvent(query, field string, totalHits, returned int, cacheHit bool, duration time.Duration) SearchEvent {
	return SearchEvent{
		EventID:    uuid.NewString(),
		Query:      query,
		Field:      field,
		TotalHits:  totalHits,
		Returned:   returned,
		CacheHit:   cacheHit,
		DurationMs: float64(duration.Microseconds()) / 1000,
		Timestamp:  time.Now().UTC(),
	}
}
