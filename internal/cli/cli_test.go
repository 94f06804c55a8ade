package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDocs(t *testing.T) string {
	t.Helper()
	docs := t.TempDir()
	files := map[string]string{
		"hokkaido.html": `<html><head><title>Hokkaido</title></head><body>Hokkaido is cold in winter.</body></html>`,
		"tokyo.html":    `<html><head><title>Tokyo</title></head><body>Tokyo is warm in summer.</body></html>`,
		"robots.txt":    "User-agent: *",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(docs, name), []byte(content), 0644))
	}
	return docs
}

func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestIndexThenSearch(t *testing.T) {
	docs := writeDocs(t)
	idx := t.TempDir()

	out, err := runCommand(t, "",
		"index", "--docs", docs, "--index", idx, "--create",
		"--base-url", "https://example.jp")
	require.NoError(t, err)
	assert.Contains(t, out, "adding")
	assert.Contains(t, out, "2 documents total")

	out, err = runCommand(t, "",
		"search", "--index", idx, "--query", "contents:cold")
	require.NoError(t, err)
	assert.Contains(t, out, "1 total matching documents")
	assert.Contains(t, out, "https://example.jp/hokkaido.html")
	assert.Contains(t, out, "Title: Hokkaido")
	assert.Contains(t, out, "<b>cold</b>")
	assert.Contains(t, out, "Prefecture: Hokkaido")
}

func TestSearchRawOutput(t *testing.T) {
	docs := writeDocs(t)
	idx := t.TempDir()
	_, err := runCommand(t, "", "index", "--docs", docs, "--index", idx, "--create")
	require.NoError(t, err)

	out, err := runCommand(t, "",
		"search", "--index", idx, "--query", "contents:is", "--raw")
	require.NoError(t, err)
	assert.Contains(t, out, "2 total matching documents")
	assert.Contains(t, out, "doc=0")
	assert.Contains(t, out, "doc=1")
	assert.Contains(t, out, "score=")
}

func TestIndexUpdateReplacesDocument(t *testing.T) {
	docs := writeDocs(t)
	idx := t.TempDir()
	_, err := runCommand(t, "", "index", "--docs", docs, "--index", idx, "--create")
	require.NoError(t, err)

	// Re-index the same tree without --create: same paths, so documents are
	// replaced rather than duplicated.
	out, err := runCommand(t, "", "index", "--docs", docs, "--index", idx)
	require.NoError(t, err)
	assert.Contains(t, out, "updating")
	assert.Contains(t, out, "2 documents total")

	out, err = runCommand(t, "", "search", "--index", idx, "--query", "contents:cold", "--raw")
	require.NoError(t, err)
	assert.Contains(t, out, "1 total matching documents")
}

func TestSearchInteractiveSession(t *testing.T) {
	docs := writeDocs(t)
	idx := t.TempDir()
	_, err := runCommand(t, "", "index", "--docs", docs, "--index", idx, "--create")
	require.NoError(t, err)

	stdin := "contents:is\nq\n\n"
	out, err := runCommand(t, stdin, "search", "--index", idx)
	require.NoError(t, err)
	assert.Contains(t, out, "Query: ")
	assert.Contains(t, out, "2 total matching documents")
}

func TestSearchBatchQueriesFile(t *testing.T) {
	docs := writeDocs(t)
	idx := t.TempDir()
	_, err := runCommand(t, "", "index", "--docs", docs, "--index", idx, "--create")
	require.NoError(t, err)

	queries := filepath.Join(t.TempDir(), "queries.txt")
	require.NoError(t, os.WriteFile(queries, []byte("contents:cold\n\ncontents:warm\n"), 0644))

	out, err := runCommand(t, "", "search", "--index", idx, "--queries", queries)
	require.NoError(t, err)
	assert.Contains(t, out, "Query: contents:cold")
	assert.Contains(t, out, "Query: contents:warm")
}

func TestSearchRepeatRequiresQuery(t *testing.T) {
	idx := t.TempDir()
	_, err := runCommand(t, "", "search", "--index", idx, "--repeat", "5")
	assert.Error(t, err)
}

func TestSearchRepeatBenchmarks(t *testing.T) {
	docs := writeDocs(t)
	idx := t.TempDir()
	_, err := runCommand(t, "", "index", "--docs", docs, "--index", idx, "--create")
	require.NoError(t, err)

	out, err := runCommand(t, "",
		"search", "--index", idx, "--query", "contents:is", "--repeat", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "3 runs")
}

func TestUnknownAnalyzerRejected(t *testing.T) {
	_, err := runCommand(t, "", "search", "--analyzer", "klingon", "--query", "x")
	assert.Error(t, err)
}

func TestMergeCompactsIndex(t *testing.T) {
	docs := writeDocs(t)
	idx := t.TempDir()
	_, err := runCommand(t, "", "index", "--docs", docs, "--index", idx, "--create")
	require.NoError(t, err)
	_, err = runCommand(t, "", "index", "--docs", docs, "--index", idx)
	require.NoError(t, err)

	out, err := runCommand(t, "", "merge", "--index", idx)
	require.NoError(t, err)
	assert.Contains(t, out, "merged to 2 documents")

	out, err = runCommand(t, "", "search", "--index", idx, "--query", "contents:is", "--raw")
	require.NoError(t, err)
	assert.Contains(t, out, "2 total matching documents")
}

func TestIndexRequiresDocsFlag(t *testing.T) {
	_, err := runCommand(t, "", "index")
	assert.Error(t, err)
}

func TestIndexSkipsUnanalyzableDocuments(t *testing.T) {
	docs := writeDocs(t)
	require.NoError(t, os.WriteFile(filepath.Join(docs, "binary.txt"),
		[]byte{0xff, 0xfe, 'b', 'a', 'd'}, 0644))
	idx := t.TempDir()

	out, err := runCommand(t, "", "index", "--docs", docs, "--index", idx, "--create")
	require.NoError(t, err)
	assert.Contains(t, out, "skipping")
	assert.Contains(t, out, "binary.txt")
	assert.Contains(t, out, "1 skipped")
	assert.Contains(t, out, "2 documents total")

	// The good documents made it in and are searchable.
	out, err = runCommand(t, "", "search", "--index", idx, "--query", "contents:is", "--raw")
	require.NoError(t, err)
	assert.Contains(t, out, "2 total matching documents")
}

func TestIndexFailFastAbortsOnAnalysisError(t *testing.T) {
	docs := writeDocs(t)
	require.NoError(t, os.WriteFile(filepath.Join(docs, "binary.txt"),
		[]byte{0xff, 0xfe, 'b', 'a', 'd'}, 0644))
	idx := t.TempDir()

	_, err := runCommand(t, "", "index", "--docs", docs, "--index", idx, "--create", "--fail-fast")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binary.txt")
}
