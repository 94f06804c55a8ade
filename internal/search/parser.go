package search

import (
	"strings"

	"github.com/phakpoomachalanan/WebIR/internal/analysis"
	pkgerrors "github.com/phakpoomachalanan/WebIR/pkg/errors"
)

// Parse turns a query string into an executable query. The syntax is flat
// boolean: whitespace-separated terms, optional `field:` prefixes falling
// back to defaultField, `+`/`-` markers for required and excluded terms, and
// the connectives AND, OR, and NOT applying to the term that follows them.
// Each term runs through the analyzer of its target field, so queries match
// the way documents were indexed; a term the analyzer drops entirely (a
// stopword under an analyzer that removes them) drops its clause.
func Parse(input, defaultField string, analyzers *analysis.Selector) (Query, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &pkgerrors.SyntaxError{Input: input, Pos: 0, Msg: "empty query"}
	}

	bq := &BooleanQuery{}
	pos := 0
	pending := Should
	for pos < len(input) {
		for pos < len(input) && (input[pos] == ' ' || input[pos] == '\t') {
			pos++
		}
		if pos >= len(input) {
			break
		}
		start := pos
		for pos < len(input) && input[pos] != ' ' && input[pos] != '\t' {
			pos++
		}
		word := input[start:pos]

		switch word {
		case "AND":
			pending = Must
			continue
		case "OR":
			pending = Should
			continue
		case "NOT":
			pending = MustNot
			continue
		}

		occur := pending
		pending = Should
		switch {
		case strings.HasPrefix(word, "+"):
			occur = Must
			word = word[1:]
		case strings.HasPrefix(word, "-"):
			occur = MustNot
			word = word[1:]
		}
		if word == "" {
			return nil, &pkgerrors.SyntaxError{Input: input, Pos: start, Msg: "operator with no term"}
		}

		field := defaultField
		if i := strings.IndexByte(word, ':'); i >= 0 {
			if i == 0 {
				return nil, &pkgerrors.SyntaxError{Input: input, Pos: start, Msg: "missing field name before ':'"}
			}
			if i == len(word)-1 {
				return nil, &pkgerrors.SyntaxError{Input: input, Pos: start, Msg: "missing term after ':'"}
			}
			field = word[:i]
			word = word[i+1:]
		}

		tokens, err := analyzers.ForField(field).Analyze(field, word)
		if err != nil {
			return nil, &pkgerrors.SyntaxError{Input: input, Pos: start, Msg: "unanalyzable term: " + err.Error()}
		}
		for _, tok := range tokens {
			bq.Clauses = append(bq.Clauses, Clause{
				Occur: occur,
				Query: &TermQuery{Field: field, Term: tok.Term},
			})
		}
	}

	if len(bq.Clauses) == 0 {
		return nil, &pkgerrors.SyntaxError{Input: input, Pos: 0, Msg: "query has no searchable terms"}
	}
	if len(bq.Clauses) == 1 && bq.Clauses[0].Occur == Should {
		return bq.Clauses[0].Query, nil
	}
	return bq, nil
}
