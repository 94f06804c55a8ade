// Package highlight builds query-focused snippets from stored field text by
// re-analyzing it and scoring fixed-size fragments against the query's terms.
package highlight

import (
	"strings"

	"github.com/phakpoomachalanan/WebIR/internal/analysis"
	"github.com/phakpoomachalanan/WebIR/internal/search"
)

// Highlighter extracts the best-matching fragments of a stored text. The zero
// value is not usable; construct with New.
type Highlighter struct {
	// MaxFragments caps how many fragments the snippet joins together.
	MaxFragments int
	// FragmentSize is the target fragment length in bytes. Fragments align
	// to token boundaries, so actual lengths vary around it.
	FragmentSize int
	// Separator joins the selected fragments.
	Separator string
	// PreTag and PostTag wrap each matched term occurrence.
	PreTag, PostTag string
}

// New returns a Highlighter with the conventional defaults: two fragments of
// about a hundred bytes, joined by an ellipsis, with <b> markup.
func New() *Highlighter {
	return &Highlighter{
		MaxFragments: 2,
		FragmentSize: 100,
		Separator:    "...",
		PreTag:       "<b>",
		PostTag:      "</b>",
	}
}

type fragment struct {
	start, end int
	score      int
	matches    []analysis.Token
}

// BestSnippet re-analyzes text with the field's analyzer, scores fragments by
// how many of the query's positive terms for the field they contain, and
// returns the top fragments in document order with matches wrapped in the
// configured tags. A text with no matching fragment, an analysis failure, or
// offsets that do not fit the text all yield the empty string; snippets are
// presentation, never an error.
func (h *Highlighter) BestSnippet(q search.Query, field, text string, analyzer analysis.Analyzer) string {
	terms := make(map[string]struct{})
	for _, t := range search.FieldTerms(q, field) {
		terms[t] = struct{}{}
	}
	if len(terms) == 0 || text == "" {
		return ""
	}
	tokens, err := analyzer.Analyze(field, text)
	if err != nil {
		return ""
	}

	var fragments []fragment
	i := 0
	for i < len(tokens) {
		frag := fragment{start: tokens[i].Start, end: tokens[i].End}
		for i < len(tokens) {
			tok := tokens[i]
			// The opening token always joins its fragment, even when it
			// alone exceeds the target size.
			if tok.Start != frag.start && tok.End > frag.start+h.FragmentSize {
				break
			}
			if _, hit := terms[tok.Term]; hit {
				frag.score++
				frag.matches = append(frag.matches, tok)
			}
			if tok.End > frag.end {
				frag.end = tok.End
			}
			i++
		}
		fragments = append(fragments, frag)
	}

	best := pickBest(fragments, h.MaxFragments)
	if len(best) == 0 {
		return ""
	}
	parts := make([]string, 0, len(best))
	for _, frag := range best {
		parts = append(parts, h.render(text, frag))
	}
	return strings.Join(parts, h.Separator)
}

// pickBest selects up to max fragments with a positive score, keeping them in
// document order.
func pickBest(fragments []fragment, max int) []fragment {
	scored := make([]fragment, 0, len(fragments))
	for _, f := range fragments {
		if f.score > 0 {
			scored = append(scored, f)
		}
	}
	if len(scored) <= max {
		return scored
	}
	// Drop the weakest until max remain, preserving order among survivors.
	for len(scored) > max {
		worst := 0
		for i := range scored {
			if scored[i].score < scored[worst].score {
				worst = i
			}
		}
		scored = append(scored[:worst], scored[worst+1:]...)
	}
	return scored
}

// render cuts the fragment out of text with every match wrapped. Offsets that
// fall outside the text produce the fragment unwrapped rather than a panic.
func (h *Highlighter) render(text string, frag fragment) string {
	if frag.start < 0 || frag.end > len(text) || frag.start >= frag.end {
		return ""
	}
	var sb strings.Builder
	pos := frag.start
	for _, m := range frag.matches {
		if m.Start < pos || m.End > frag.end || m.Start >= m.End {
			return text[frag.start:frag.end]
		}
		sb.WriteString(text[pos:m.Start])
		sb.WriteString(h.PreTag)
		sb.WriteString(text[m.Start:m.End])
		sb.WriteString(h.PostTag)
		pos = m.End
	}
	sb.WriteString(text[pos:frag.end])
	return sb.String()
}
