package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleAnalyze(t *testing.T) {
	tokens, err := Simple{}.Analyze("contents", "Hokkaido is COLD.")
	require.NoError(t, err)
	require.Len(t, tokens, 3)

	assert.Equal(t, "hokkaido", tokens[0].Term)
	assert.Equal(t, "is", tokens[1].Term)
	assert.Equal(t, "cold", tokens[2].Term)

	// Byte offsets point into the original text.
	assert.Equal(t, "Hokkaido", "Hokkaido is COLD."[tokens[0].Start:tokens[0].End])
	assert.Equal(t, "COLD", "Hokkaido is COLD."[tokens[2].Start:tokens[2].End])

	for i, tok := range tokens {
		assert.Equal(t, i, tok.Position)
	}
}

func TestSimpleSplitsOnPunctuationAndDigitsStay(t *testing.T) {
	tokens, err := Simple{}.Analyze("contents", "v1.2-beta,done")
	require.NoError(t, err)
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	assert.Equal(t, []string{"v1", "2", "beta", "done"}, terms)
}

func TestSimpleEmptyAndWhitespace(t *testing.T) {
	for _, text := range []string{"", "   ", "--- !!!"} {
		tokens, err := Simple{}.Analyze("contents", text)
		require.NoError(t, err)
		assert.Empty(t, tokens)
	}
}

func TestSimpleRejectsInvalidUTF8(t *testing.T) {
	_, err := Simple{}.Analyze("contents", string([]byte{0xff, 0xfe}))
	assert.Error(t, err)
}

func TestEnglishDropsStopwordsAndStems(t *testing.T) {
	tokens, err := English{}.Analyze("contents", "the jumping dogs are national")
	require.NoError(t, err)

	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	assert.NotContains(t, terms, "the")
	assert.NotContains(t, terms, "are")
	assert.Contains(t, terms, "jump")
	assert.Contains(t, terms, "dog")

	// Positions are renumbered over the kept tokens.
	for i, tok := range tokens {
		assert.Equal(t, i, tok.Position)
	}
}

func TestSelectorPerField(t *testing.T) {
	sel := NewSelector(Simple{}).With("contents", English{})
	assert.Equal(t, "english", sel.ForField("contents").Name())
	assert.Equal(t, "simple", sel.ForField("title").Name())
	assert.Equal(t, "simple", sel.ForField("unknown").Name())
}
