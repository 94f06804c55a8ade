package search

import "context"

// Pager serves fixed-size pages of one query's results for interactive use.
// It collects a multiple of the page size up front and re-executes the query
// for the full hit list only when the caller pages past what was collected,
// keeping the common first-pages path cheap.
type Pager struct {
	searcher  *Searcher
	query     Query
	pageSize  int
	collected TopDocs
}

// NewPager runs the query once, collecting pageSize*multiplier hits, and
// returns a pager over the result.
func NewPager(ctx context.Context, s *Searcher, q Query, pageSize, multiplier int) (*Pager, error) {
	if pageSize <= 0 {
		pageSize = 10
	}
	if multiplier <= 0 {
		multiplier = 5
	}
	top, err := s.Search(ctx, q, pageSize*multiplier)
	if err != nil {
		return nil, err
	}
	return &Pager{searcher: s, query: q, pageSize: pageSize, collected: top}, nil
}

// TotalHits returns the full candidate count of the query.
func (p *Pager) TotalHits() int {
	return p.collected.TotalHits
}

// Collected returns how many hits are currently held.
func (p *Pager) Collected() int {
	return len(p.collected.Hits)
}

// PageSize returns the page length.
func (p *Pager) PageSize() int {
	return p.pageSize
}

// NeedsCollect reports whether showing the page at start requires collecting
// more hits than are currently held.
func (p *Pager) NeedsCollect(start int) bool {
	if start+p.pageSize <= len(p.collected.Hits) {
		return false
	}
	return len(p.collected.Hits) < p.collected.TotalHits
}

// CollectAll re-executes the query for every hit. Interactive callers invoke
// this after confirming with the user.
func (p *Pager) CollectAll(ctx context.Context) error {
	top, err := p.searcher.Search(ctx, p.query, p.collected.TotalHits)
	if err != nil {
		return err
	}
	p.collected = top
	return nil
}

// Page returns the hits in [start, start+pageSize), clamped to what has been
// collected. A start beyond the collected hits yields an empty page.
func (p *Pager) Page(start int) []ScoreDoc {
	if start < 0 {
		start = 0
	}
	if start >= len(p.collected.Hits) {
		return nil
	}
	end := start + p.pageSize
	if end > len(p.collected.Hits) {
		end = len(p.collected.Hits)
	}
	return p.collected.Hits[start:end]
}
