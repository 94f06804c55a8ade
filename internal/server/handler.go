package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/phakpoomachalanan/WebIR/internal/analysis"
	"github.com/phakpoomachalanan/WebIR/internal/analytics"
	"github.com/phakpoomachalanan/WebIR/internal/cache"
	"github.com/phakpoomachalanan/WebIR/internal/highlight"
	"github.com/phakpoomachalanan/WebIR/internal/search"
	"github.com/phakpoomachalanan/WebIR/pkg/config"
	pkgerrors "github.com/phakpoomachalanan/WebIR/pkg/errors"
	"github.com/phakpoomachalanan/WebIR/pkg/logger"
	"github.com/phakpoomachalanan/WebIR/pkg/metrics"
)

// Hit is one rendered search result.
type Hit struct {
	Doc        int     `json:"doc"`
	Score      float64 `json:"score"`
	Path       string  `json:"path"`
	URL        string  `json:"url,omitempty"`
	Title      string  `json:"title,omitempty"`
	Prefecture string  `json:"prefecture,omitempty"`
	Snippet    string  `json:"snippet,omitempty"`
}

// SearchResponse is the JSON body of the search endpoint.
type SearchResponse struct {
	Query     string  `json:"query"`
	Field     string  `json:"field"`
	TotalHits int     `json:"total_hits"`
	Hits      []Hit   `json:"hits"`
	Partial   bool    `json:"partial,omitempty"`
	TookMs    float64 `json:"took_ms"`
}

// SearchHandler serves GET /search.
type SearchHandler struct {
	cfg         config.SearchConfig
	view        *IndexView
	analyzers   *analysis.Selector
	cache       *cache.QueryCache
	collector   *analytics.Collector
	metrics     *metrics.Metrics
	highlighter *highlight.Highlighter
	log         *slog.Logger
}

// NewSearchHandler wires the serve-path search pipeline. collector may be
// nil when analytics is disabled.
func NewSearchHandler(
	cfg config.SearchConfig,
	view *IndexView,
	analyzers *analysis.Selector,
	queryCache *cache.QueryCache,
	collector *analytics.Collector,
	m *metrics.Metrics,
) *SearchHandler {
	return &SearchHandler{
		cfg:         cfg,
		view:        view,
		analyzers:   analyzers,
		cache:       queryCache,
		collector:   collector,
		metrics:     m,
		highlighter: highlight.New(),
		log:         logger.WithComponent("server.search"),
	}
}

func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	field := r.URL.Query().Get("field")
	if field == "" {
		field = h.cfg.DefaultField
	}
	limit := h.cfg.PageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	if limit > h.cfg.MaxHits {
		limit = h.cfg.MaxHits
	}

	query, err := search.Parse(q, field, h.analyzers)
	if err != nil {
		var syntaxErr *pkgerrors.SyntaxError
		if errors.As(err, &syntaxErr) {
			writeError(w, http.StatusBadRequest, syntaxErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "query parsing failed")
		return
	}

	start := time.Now()
	key := h.cache.Key(q, field, strconv.Itoa(limit),
		strconv.FormatInt(h.view.Generation(), 10))

	var partialPayload []byte
	payload, cacheHit, err := h.cache.GetOrCompute(r.Context(), key, func(ctx context.Context) ([]byte, error) {
		resp, err := h.execute(ctx, query, q, field, limit)
		if err != nil {
			if errors.Is(err, pkgerrors.ErrPartialResults) {
				resp.Partial = true
				resp.TookMs = msSince(start)
				if data, mErr := json.Marshal(resp); mErr == nil {
					partialPayload = data
				}
			}
			return nil, err
		}
		resp.TookMs = msSince(start)
		return json.Marshal(resp)
	})

	took := time.Since(start)
	switch {
	case err == nil:
		h.observe(resultType(payload), cacheHit, took)
		h.record(q, field, payload, cacheHit, took)
		writeJSON(w, http.StatusOK, payload)
	case partialPayload != nil:
		h.metrics.SearchQueriesTotal.WithLabelValues("partial").Inc()
		h.metrics.SearchLatency.WithLabelValues("miss").Observe(took.Seconds())
		writeJSON(w, http.StatusOK, partialPayload)
	default:
		h.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		h.log.Error("search failed",
			"query", q,
			"request_id", logger.RequestIDFromContext(r.Context()),
			"error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
	}
}

// execute runs the query against the current snapshot and renders hits with
// stored fields and snippets.
func (h *SearchHandler) execute(ctx context.Context, query search.Query, q, field string, limit int) (SearchResponse, error) {
	searcher := h.view.Searcher()
	top, searchErr := searcher.Search(ctx, query, limit)

	resp := SearchResponse{Query: q, Field: field, TotalHits: top.TotalHits}
	stored := searcher.Reader().StoredFields()
	for _, sd := range top.Hits {
		fields, err := stored.Fetch(sd.Doc)
		if err != nil {
			return resp, err
		}
		hit := Hit{
			Doc:        sd.Doc,
			Score:      sd.Score,
			Path:       fields["path"],
			URL:        fields["url"],
			Title:      fields["title"],
			Prefecture: fields["prefecture"],
		}
		if text := fields[field]; text != "" {
			hit.Snippet = h.highlighter.BestSnippet(query, field, text, h.analyzers.ForField(field))
			if hit.Snippet == "" {
				h.metrics.SnippetFailuresTotal.Inc()
			}
		}
		resp.Hits = append(resp.Hits, hit)
	}
	return resp, searchErr
}

func (h *SearchHandler) observe(result string, cacheHit bool, took time.Duration) {
	h.metrics.SearchQueriesTotal.WithLabelValues(result).Inc()
	status := "miss"
	if cacheHit {
		status = "hit"
	}
	h.metrics.SearchLatency.WithLabelValues(status).Observe(took.Seconds())
}

func (h *SearchHandler) record(q, field string, payload []byte, cacheHit bool, took time.Duration) {
	var resp SearchResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return
	}
	h.metrics.SearchHitsCount.Observe(float64(len(resp.Hits)))
	if h.collector != nil {
		h.collector.Record(analytics.NewSearchEvent(
			q, field, resp.TotalHits, len(resp.Hits), cacheHit, took))
	}
}

// resultType classifies a rendered response for the queries-total counter.
func resultType(payload []byte) string {
	var resp SearchResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return "hit"
	}
	if resp.TotalHits == 0 {
		return "zero_result"
	}
	return "hit"
}

// StatsHandler serves GET /stats from the in-process aggregate, falling back
// to the latest persisted snapshot when no live aggregate exists.
type StatsHandler struct {
	aggregator *analytics.Aggregator
	store      *analytics.Store
}

// NewStatsHandler builds the stats endpoint; either source may be nil.
func NewStatsHandler(aggregator *analytics.Aggregator, store *analytics.Store) *StatsHandler {
	return &StatsHandler{aggregator: aggregator, store: store}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	top := 10
	if v := r.URL.Query().Get("top"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			top = n
		}
	}
	if h.aggregator != nil {
		body, err := json.Marshal(map[string]interface{}{
			"summary":     h.aggregator.Summary(),
			"top_queries": h.aggregator.TopQueries(top),
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "rendering stats failed")
			return
		}
		writeJSON(w, http.StatusOK, body)
		return
	}
	if h.store != nil {
		snap, err := h.store.LatestSnapshot(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "loading snapshot failed")
			return
		}
		if snap == nil {
			writeError(w, http.StatusNotFound, "no analytics snapshot available")
			return
		}
		body, _ := json.Marshal(snap)
		writeJSON(w, http.StatusOK, body)
		return
	}
	writeError(w, http.StatusServiceUnavailable, "analytics disabled")
}

func writeJSON(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
