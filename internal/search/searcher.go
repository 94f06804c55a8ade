package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/phakpoomachalanan/WebIR/internal/engine"
	"github.com/phakpoomachalanan/WebIR/internal/index"
	pkgerrors "github.com/phakpoomachalanan/WebIR/pkg/errors"
	"github.com/phakpoomachalanan/WebIR/pkg/logger"
)

// ScoreDoc is one hit: a snapshot document id and its BM25 score.
type ScoreDoc struct {
	Doc   int     `json:"doc"`
	Score float64 `json:"score"`
}

// TopDocs is the result of one search: the full candidate count and the
// best hits up to the requested limit, descending by score with ascending
// doc id breaking ties.
type TopDocs struct {
	TotalHits int        `json:"total_hits"`
	Hits      []ScoreDoc `json:"hits"`
}

// Searcher executes queries against one snapshot. It is safe for concurrent
// use; collection statistics are captured once at construction.
type Searcher struct {
	reader *engine.Reader
	params rankParams
	log    *slog.Logger
}

// NewSearcher wraps a snapshot for query execution.
func NewSearcher(reader *engine.Reader) *Searcher {
	return &Searcher{
		reader: reader,
		params: rankParams{
			totalDocs:    reader.NumDocs(),
			avgDocLength: reader.AvgDocLen(),
		},
		log: logger.WithComponent("search"),
	}
}

// Reader returns the snapshot this searcher executes against.
func (s *Searcher) Reader() *engine.Reader {
	return s.reader
}

// Search evaluates the query and returns the best maxHits hits. TotalHits
// always counts the full candidate set, so maxHits zero is a cheap way to
// count matches. When ctx is cancelled mid-evaluation the hits gathered so
// far come back alongside an error wrapping ErrPartialResults.
func (s *Searcher) Search(ctx context.Context, q Query, maxHits int) (TopDocs, error) {
	ev := &evaluator{
		ctx:      ctx,
		reader:   s.reader,
		params:   s.params,
		postings: make(map[string]index.PostingList),
	}
	scores, err := ev.eval(q)
	top := newTopK(maxHits)
	for doc, score := range scores {
		top.add(ScoreDoc{Doc: doc, Score: math.Round(score*10000) / 10000})
	}
	result := TopDocs{TotalHits: len(scores), Hits: top.drain()}
	s.log.Debug("query executed",
		"query", q.String(),
		"total_hits", result.TotalHits,
		"returned", len(result.Hits))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return result, fmt.Errorf("%w: %v", pkgerrors.ErrPartialResults, err)
		}
		return TopDocs{}, err
	}
	return result, nil
}

// Explain recomputes the score of one document for one query, returning the
// per-term contributions in descending order. Diagnostics only.
func (s *Searcher) Explain(ctx context.Context, q Query, docID int) ([]TermScore, error) {
	var out []TermScore
	var firstErr error
	Visit(q, func(tq *TermQuery) {
		if firstErr != nil {
			return
		}
		postings, err := s.reader.Postings(ctx, tq.Field, tq.Term)
		if err != nil {
			firstErr = err
			return
		}
		for _, p := range postings {
			if p.Doc != docID {
				continue
			}
			idf := computeIDF(s.params.totalDocs, len(postings))
			tf := computeTFNorm(float64(p.Freq), float64(s.reader.DocLen(docID)), s.params.avgDocLength)
			out = append(out, TermScore{Field: tq.Field, Term: tq.Term, Score: idf * tf})
		}
	})
	if firstErr != nil {
		return nil, firstErr
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// TermScore is one term's contribution to a document's score.
type TermScore struct {
	Field string  `json:"field"`
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// evaluator walks a query tree bottom-up, producing per-document score maps.
// Postings are fetched once per (field, term) and cached for the evaluation.
type evaluator struct {
	ctx      context.Context
	reader   *engine.Reader
	params   rankParams
	postings map[string]index.PostingList
}

func (ev *evaluator) fetch(field, term string) (index.PostingList, error) {
	key := index.TermKey(field, term)
	if cached, ok := ev.postings[key]; ok {
		return cached, nil
	}
	postings, err := ev.reader.Postings(ev.ctx, field, term)
	if err != nil {
		return nil, err
	}
	ev.postings[key] = postings
	return postings, nil
}

// eval returns the matching documents with their accumulated scores. On
// error the partially built map is still returned so cancellation can
// surface partial hits.
func (ev *evaluator) eval(q Query) (map[int]float64, error) {
	switch t := q.(type) {
	case *TermQuery:
		postings, err := ev.fetch(t.Field, t.Term)
		if err != nil {
			return map[int]float64{}, err
		}
		idf := computeIDF(ev.params.totalDocs, len(postings))
		scores := make(map[int]float64, len(postings))
		for _, p := range postings {
			tf := computeTFNorm(float64(p.Freq), float64(ev.reader.DocLen(p.Doc)), ev.params.avgDocLength)
			scores[p.Doc] = idf * tf
		}
		return scores, nil
	case *BooleanQuery:
		return ev.evalBoolean(t)
	default:
		return nil, fmt.Errorf("unsupported query type %T", q)
	}
}

func (ev *evaluator) evalBoolean(q *BooleanQuery) (map[int]float64, error) {
	var mustSets, shouldSets, notSets []map[int]float64
	for _, clause := range q.Clauses {
		scores, err := ev.eval(clause.Query)
		if err != nil {
			return combineBoolean(mustSets, shouldSets, notSets, len(mustSets) > 0), err
		}
		switch clause.Occur {
		case Must:
			mustSets = append(mustSets, scores)
		case MustNot:
			notSets = append(notSets, scores)
		default:
			shouldSets = append(shouldSets, scores)
		}
	}
	hasMust := false
	for _, clause := range q.Clauses {
		if clause.Occur == Must {
			hasMust = true
		}
	}
	return combineBoolean(mustSets, shouldSets, notSets, hasMust), nil
}

// combineBoolean intersects the must sets, folds in should scores (as the
// candidate set itself when there are no musts), and strips excluded docs.
func combineBoolean(mustSets, shouldSets, notSets []map[int]float64, hasMust bool) map[int]float64 {
	result := make(map[int]float64)
	if hasMust {
		if len(mustSets) == 0 {
			return result
		}
		for doc, score := range mustSets[0] {
			result[doc] = score
		}
		for _, set := range mustSets[1:] {
			for doc := range result {
				score, ok := set[doc]
				if !ok {
					delete(result, doc)
					continue
				}
				result[doc] += score
			}
		}
		for _, set := range shouldSets {
			for doc := range result {
				if score, ok := set[doc]; ok {
					result[doc] += score
				}
			}
		}
	} else {
		for _, set := range shouldSets {
			for doc, score := range set {
				result[doc] += score
			}
		}
	}
	for _, set := range notSets {
		for doc := range set {
			delete(result, doc)
		}
	}
	return result
}
