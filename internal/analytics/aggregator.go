package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/phakpoomachalanan/WebIR/pkg/kafka"
	"github.com/phakpoomachalanan/WebIR/pkg/logger"
)

// QueryStats accumulates the behaviour of one query string.
type QueryStats struct {
	Query         string  `json:"query"`
	Count         int64   `json:"count"`
	TotalHits     int64   `json:"total_hits"`
	ZeroHitCount  int64   `json:"zero_hit_count"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// Summary is the collection-wide view of search activity.
type Summary struct {
	TotalSearches int64     `json:"total_searches"`
	CacheHits     int64     `json:"cache_hits"`
	ZeroHitRate   float64   `json:"zero_hit_rate"`
	DistinctQuery int       `json:"distinct_queries"`
	Since         time.Time `json:"since"`
}

// Aggregator folds the search-event stream into per-query statistics. Handle
// is a kafka MessageHandler; reads take a shared lock so the stats endpoint
// never blocks consumption for long.
type Aggregator struct {
	mu       sync.RWMutex
	byQuery  map[string]*QueryStats
	total    int64
	cacheHit int64
	zeroHit  int64
	since    time.Time
	log      *slog.Logger
}

// NewAggregator creates an empty aggregate starting now.
func NewAggregator() *Aggregator {
	return &Aggregator{
		byQuery: make(map[string]*QueryStats),
		since:   time.Now().UTC(),
		log:     logger.WithComponent("analytics.aggregator"),
	}
}

// Handle consumes one search event message.
func (a *Aggregator) Handle(ctx context.Context, key, value []byte) error {
	event, err := kafka.DecodeJSON[SearchEvent](value)
	if err != nil {
		// A malformed event is logged and skipped; one bad producer must
		// not wedge the consumer group.
		a.log.Warn("skipping undecodable event", "error", err)
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total++
	if event.CacheHit {
		a.cacheHit++
	}
	if event.TotalHits == 0 {
		a.zeroHit++
	}
	stats, ok := a.byQuery[event.Query]
	if !ok {
		stats = &QueryStats{Query: event.Query}
		a.byQuery[event.Query] = stats
	}
	stats.AvgDurationMs = (stats.AvgDurationMs*float64(stats.Count) + event.DurationMs) / float64(stats.Count+1)
	stats.Count++
	stats.TotalHits += int64(event.TotalHits)
	if event.TotalHits == 0 {
		stats.ZeroHitCount++
	}
	return nil
}

// Summary returns the collection-wide counters.
func (a *Aggregator) Summary() Summary {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := Summary{
		TotalSearches: a.total,
		CacheHits:     a.cacheHit,
		DistinctQuery: len(a.byQuery),
		Since:         a.since,
	}
	if a.total > 0 {
		s.ZeroHitRate = float64(a.zeroHit) / float64(a.total)
	}
	return s
}

// TopQueries returns the n most frequent queries, most frequent first.
func (a *Aggregator) TopQueries(n int) []QueryStats {
	a.mu.RLock()
	out := make([]QueryStats, 0, len(a.byQuery))
	for _, stats := range a.byQuery {
		out = append(out, *stats)
	}
	a.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Query < out[j].Query
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// RunSnapshots persists the aggregate to the store every interval until ctx
// is cancelled, writing one final snapshot on the way out.
func (a *Aggregator) RunSnapshots(ctx context.Context, store *Store, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := store.SaveSnapshot(ctx, a.Summary(), a.TopQueries(100)); err != nil {
				a.log.Error("snapshot failed", "error", err)
			}
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := store.SaveSnapshot(flushCtx, a.Summary(), a.TopQueries(100)); err != nil {
				a.log.Error("final snapshot failed", "error", err)
			}
			cancel()
			return
		}
	}
}
