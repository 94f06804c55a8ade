// Package analysis turns raw field text into normalised terms with byte
// offsets and token positions. Analysis is deterministic: the same input
// always yields the same token stream, which the highlighter relies on when
// it re-tokenizes stored text at display time.
package analysis

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token is a single normalised term. Start and End are byte offsets into the
// original text; Position is the token's ordinal in the stream.
type Token struct {
	Term     string
	Start    int
	End      int
	Position int
}

// Analyzer converts field text into a finite token stream. Implementations
// must be deterministic and safe for concurrent use.
type Analyzer interface {
	Name() string
	Analyze(field, text string) ([]Token, error)
}

// Simple lower-cases input and splits on non-letter/non-digit boundaries.
// Every token is kept; there is no stop-word removal or stemming, so a query
// for any word that appears in the text will match.
type Simple struct{}

func (Simple) Name() string { return "simple" }

func (Simple) Analyze(field, text string) ([]Token, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("field %q: text is not valid UTF-8", field)
	}
	var tokens []Token
	pos := 0
	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, Token{
				Term:     strings.ToLower(text[start:i]),
				Start:    start,
				End:      i,
				Position: pos,
			})
			pos++
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{
			Term:     strings.ToLower(text[start:]),
			Start:    start,
			End:      len(text),
			Position: pos,
		})
	}
	return tokens, nil
}

// Selector chooses an analyzer per field. The zero value is unusable; use
// NewSelector. Selection is an explicit configuration value so that indexing
// and highlighting always agree on the analysis chain.
type Selector struct {
	fallback Analyzer
	perField map[string]Analyzer
}

// NewSelector creates a Selector with the given default analyzer.
func NewSelector(fallback Analyzer) Selector {
	return Selector{fallback: fallback, perField: make(map[string]Analyzer)}
}

// With registers a field-specific analyzer and returns the Selector for
// chaining.
func (s Selector) With(field string, a Analyzer) Selector {
	s.perField[field] = a
	return s
}

// ForField returns the analyzer configured for the field, or the default.
func (s Selector) ForField(field string) Analyzer {
	if a, ok := s.perField[field]; ok {
		return a
	}
	return s.fallback
}
