package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phakpoomachalanan/WebIR/internal/analysis"
	pkgerrors "github.com/phakpoomachalanan/WebIR/pkg/errors"
)

func testAnalyzers() *analysis.Selector {
	sel := analysis.NewSelector(analysis.Simple{})
	return &sel
}

func TestParseSingleTerm(t *testing.T) {
	q, err := Parse("Tokyo", "contents", testAnalyzers())
	require.NoError(t, err)
	tq, ok := q.(*TermQuery)
	require.True(t, ok)
	assert.Equal(t, "contents", tq.Field)
	assert.Equal(t, "tokyo", tq.Term) // analyzed, so lowercased
}

func TestParseFieldQualifier(t *testing.T) {
	q, err := Parse("title:Sapporo", "contents", testAnalyzers())
	require.NoError(t, err)
	tq, ok := q.(*TermQuery)
	require.True(t, ok)
	assert.Equal(t, "title", tq.Field)
	assert.Equal(t, "sapporo", tq.Term)
}

func TestParseOccurMarkers(t *testing.T) {
	q, err := Parse("+cold -warm snow", "contents", testAnalyzers())
	require.NoError(t, err)
	bq, ok := q.(*BooleanQuery)
	require.True(t, ok)
	require.Len(t, bq.Clauses, 3)
	assert.Equal(t, Must, bq.Clauses[0].Occur)
	assert.Equal(t, MustNot, bq.Clauses[1].Occur)
	assert.Equal(t, Should, bq.Clauses[2].Occur)
}

func TestParseConnectives(t *testing.T) {
	q, err := Parse("cold AND north NOT tropical", "contents", testAnalyzers())
	require.NoError(t, err)
	bq, ok := q.(*BooleanQuery)
	require.True(t, ok)
	require.Len(t, bq.Clauses, 3)
	assert.Equal(t, Should, bq.Clauses[0].Occur)
	assert.Equal(t, Must, bq.Clauses[1].Occur)
	assert.Equal(t, MustNot, bq.Clauses[2].Occur)
}

func TestParseMultiWordTermSplits(t *testing.T) {
	// A qualified term that analyzes into several tokens becomes several
	// clauses with the same occur.
	q, err := Parse("+title:snow-festival", "contents", testAnalyzers())
	require.NoError(t, err)
	bq, ok := q.(*BooleanQuery)
	require.True(t, ok)
	require.Len(t, bq.Clauses, 2)
	for _, c := range bq.Clauses {
		assert.Equal(t, Must, c.Occur)
		assert.Equal(t, "title", c.Query.(*TermQuery).Field)
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	cases := []string{
		"",
		"   ",
		":term",
		"field:",
		"+",
		"-",
	}
	for _, input := range cases {
		_, err := Parse(input, "contents", testAnalyzers())
		assert.Error(t, err, "input %q", input)
		assert.True(t, pkgerrors.IsSyntax(err), "input %q should be a syntax error", input)
	}
}

func TestParseQueryWithOnlyPunctuation(t *testing.T) {
	_, err := Parse("!!! ...", "contents", testAnalyzers())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsSyntax(err))
}

func TestVisitSkipsMustNot(t *testing.T) {
	q, err := Parse("cold -warm title:snow", "contents", testAnalyzers())
	require.NoError(t, err)

	var seen []string
	Visit(q, func(tq *TermQuery) { seen = append(seen, tq.Term) })
	assert.ElementsMatch(t, []string{"cold", "snow"}, seen)

	assert.Equal(t, []string{"cold"}, FieldTerms(q, "contents"))
	assert.Equal(t, []string{"snow"}, FieldTerms(q, "title"))
}
