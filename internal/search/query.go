// Package search parses, plans, and executes queries against an index
// snapshot, ranking hits with BM25.
package search

import (
	"fmt"
	"strings"
)

// Occur states how a clause participates in a boolean query.
type Occur int

const (
	// Should clauses contribute score; at least one must match when the
	// query has no Must clauses.
	Should Occur = iota
	// Must clauses are required and contribute score.
	Must
	// MustNot clauses exclude documents and never contribute score.
	MustNot
)

func (o Occur) String() string {
	switch o {
	case Must:
		return "+"
	case MustNot:
		return "-"
	default:
		return ""
	}
}

// Query is the executable form of a parsed query string.
type Query interface {
	fmt.Stringer
}

// TermQuery matches documents containing one analyzed term in one field.
type TermQuery struct {
	Field string
	Term  string
}

func (q *TermQuery) String() string {
	return q.Field + ":" + q.Term
}

// Clause is one child of a boolean query.
type Clause struct {
	Occur Occur
	Query Query
}

// BooleanQuery combines clauses: a document matches when it satisfies every
// Must clause, none of the MustNot clauses, and (absent Must clauses) at
// least one Should clause.
type BooleanQuery struct {
	Clauses []Clause
}

func (q *BooleanQuery) String() string {
	parts := make([]string, 0, len(q.Clauses))
	for _, c := range q.Clauses {
		s := c.Query.String()
		if _, ok := c.Query.(*BooleanQuery); ok {
			s = "(" + s + ")"
		}
		parts = append(parts, c.Occur.String()+s)
	}
	return strings.Join(parts, " ")
}

// Visit walks the query tree depth-first, calling fn for every term query it
// reaches. Subtrees under a MustNot clause are skipped: excluded terms play
// no part in scoring or highlighting.
func Visit(q Query, fn func(*TermQuery)) {
	switch t := q.(type) {
	case *TermQuery:
		fn(t)
	case *BooleanQuery:
		for _, c := range t.Clauses {
			if c.Occur == MustNot {
				continue
			}
			Visit(c.Query, fn)
		}
	}
}

// FieldTerms collects the distinct positive terms the query holds for one
// field, in first-seen order.
func FieldTerms(q Query, field string) []string {
	seen := make(map[string]struct{})
	var terms []string
	Visit(q, func(tq *TermQuery) {
		if tq.Field != field {
			return
		}
		if _, dup := seen[tq.Term]; dup {
			return
		}
		seen[tq.Term] = struct{}{}
		terms = append(terms, tq.Term)
	})
	return terms
}
