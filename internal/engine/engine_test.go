package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phakpoomachalanan/WebIR/internal/analysis"
	"github.com/phakpoomachalanan/WebIR/internal/index"
	"github.com/phakpoomachalanan/WebIR/pkg/config"
	pkgerrors "github.com/phakpoomachalanan/WebIR/pkg/errors"
)

func testIndexConfig(dir string) config.IndexConfig {
	return config.IndexConfig{
		Dir:           dir,
		BufferMaxSize: 16 * 1024 * 1024,
		KeyField:      "path",
	}
}

func testSelector() *analysis.Selector {
	sel := analysis.NewSelector(analysis.Simple{})
	return &sel
}

func pageDoc(path, contents string) index.Document {
	var doc index.Document
	doc.Add(index.NewKeywordField("path", path, true))
	doc.Add(index.NewTextField("contents", contents, true))
	return doc
}

func openCreate(t *testing.T, dir string) *Writer {
	t.Helper()
	w, err := OpenWriter(dir, testIndexConfig(dir), testSelector(), ModeCreate)
	require.NoError(t, err)
	return w
}

func TestAddCommitAndRead(t *testing.T) {
	dir := t.TempDir()
	w := openCreate(t, dir)
	require.NoError(t, w.AddDocument(pageDoc("a.html", "Hokkaido is cold")))
	require.NoError(t, w.AddDocument(pageDoc("b.html", "Tokyo is warm")))
	require.NoError(t, w.Commit())
	require.NoError(t, w.Close())

	r, err := OpenReader(dir)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 2, r.NumDocs())
	assert.InDelta(t, 3.0, r.AvgDocLen(), 0.001)

	postings, err := r.Postings(context.Background(), "contents", "cold")
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, 0, postings[0].Doc)

	postings, err = r.Postings(context.Background(), "contents", "is")
	require.NoError(t, err)
	assert.Len(t, postings, 2)

	fields, err := r.StoredFields().Fetch(postings[0].Doc)
	require.NoError(t, err)
	assert.Equal(t, "a.html", fields["path"])
	assert.Equal(t, "Hokkaido is cold", fields["contents"])

	// Unknown ids come back empty without error.
	fields, err = r.StoredFields().Fetch(12345)
	require.NoError(t, err)
	assert.Nil(t, fields)
}

func TestUncommittedChangesInvisible(t *testing.T) {
	dir := t.TempDir()
	w := openCreate(t, dir)
	require.NoError(t, w.AddDocument(pageDoc("a.html", "snow country")))

	r, err := OpenReader(dir)
	require.NoError(t, err)
	assert.Zero(t, r.NumDocs())
	r.Close()

	require.NoError(t, w.Commit())
	require.NoError(t, w.Close())

	r, err = OpenReader(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, r.NumDocs())
	r.Close()
}

func TestSnapshotIsolation(t *testing.T) {
	dir := t.TempDir()
	w := openCreate(t, dir)
	require.NoError(t, w.AddDocument(pageDoc("a.html", "first wave")))
	require.NoError(t, w.Commit())

	old, err := OpenReader(dir)
	require.NoError(t, err)
	defer old.Close()

	require.NoError(t, w.AddDocument(pageDoc("b.html", "second wave")))
	_, err = w.DeleteDocuments("path", "a.html")
	require.NoError(t, err)
	require.NoError(t, w.Commit())
	require.NoError(t, w.Close())

	// The old snapshot still sees the first commit only.
	assert.Equal(t, 1, old.NumDocs())
	postings, err := old.Postings(context.Background(), "contents", "first")
	require.NoError(t, err)
	assert.Len(t, postings, 1)

	fresh, err := OpenReader(dir)
	require.NoError(t, err)
	defer fresh.Close()
	assert.Equal(t, 1, fresh.NumDocs())
	postings, err = fresh.Postings(context.Background(), "contents", "first")
	require.NoError(t, err)
	assert.Empty(t, postings)
	postings, err = fresh.Postings(context.Background(), "contents", "second")
	require.NoError(t, err)
	assert.Len(t, postings, 1)
}

func TestUpdateReplacesByKey(t *testing.T) {
	dir := t.TempDir()
	w := openCreate(t, dir)
	require.NoError(t, w.AddDocument(pageDoc("a.html", "old text")))
	require.NoError(t, w.Commit())

	require.NoError(t, w.UpdateDocument("path", "a.html", pageDoc("a.html", "new text")))
	require.NoError(t, w.Commit())
	require.NoError(t, w.Close())

	r, err := OpenReader(dir)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 1, r.NumDocs())
	postings, err := r.Postings(context.Background(), "contents", "old")
	require.NoError(t, err)
	assert.Empty(t, postings)
	postings, err = r.Postings(context.Background(), "contents", "new")
	require.NoError(t, err)
	require.Len(t, postings, 1)
}

func TestUpdateWithinOneBuffer(t *testing.T) {
	dir := t.TempDir()
	w := openCreate(t, dir)
	require.NoError(t, w.AddDocument(pageDoc("a.html", "first version")))
	require.NoError(t, w.UpdateDocument("path", "a.html", pageDoc("a.html", "second version")))
	require.NoError(t, w.Commit())
	require.NoError(t, w.Close())

	r, err := OpenReader(dir)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 1, r.NumDocs())
	postings, err := r.Postings(context.Background(), "contents", "second")
	require.NoError(t, err)
	assert.Len(t, postings, 1)
	postings, err = r.Postings(context.Background(), "contents", "first")
	require.NoError(t, err)
	assert.Empty(t, postings)
}

func TestDeleteNonexistentKeyIsNoop(t *testing.T) {
	dir := t.TempDir()
	w := openCreate(t, dir)
	require.NoError(t, w.AddDocument(pageDoc("a.html", "text")))
	require.NoError(t, w.Commit())

	n, err := w.DeleteDocuments("path", "missing.html")
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, w.Close())
}

func TestEmptyCommitIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := openCreate(t, dir)
	require.NoError(t, w.AddDocument(pageDoc("a.html", "text")))
	require.NoError(t, w.Commit())

	gen := w.Generation()
	require.NoError(t, w.Commit())
	require.NoError(t, w.Commit())
	assert.Equal(t, gen, w.Generation())
	require.NoError(t, w.Close())
}

func TestWriteLockConflict(t *testing.T) {
	dir := t.TempDir()
	w := openCreate(t, dir)
	defer w.Close()

	_, err := OpenWriter(dir, testIndexConfig(dir), testSelector(), ModeAppend)
	assert.ErrorIs(t, err, pkgerrors.ErrLockConflict)
}

func TestLockReleasedOnClose(t *testing.T) {
	dir := t.TempDir()
	w := openCreate(t, dir)
	require.NoError(t, w.Close())

	w2, err := OpenWriter(dir, testIndexConfig(dir), testSelector(), ModeAppend)
	require.NoError(t, err)
	require.NoError(t, w2.Close())
}

func TestCreateModeDropsExistingDocs(t *testing.T) {
	dir := t.TempDir()
	w := openCreate(t, dir)
	require.NoError(t, w.AddDocument(pageDoc("a.html", "doomed")))
	require.NoError(t, w.Close())

	w = openCreate(t, dir)
	require.NoError(t, w.AddDocument(pageDoc("b.html", "kept")))
	require.NoError(t, w.Close())

	r, err := OpenReader(dir)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 1, r.NumDocs())
	postings, err := r.Postings(context.Background(), "contents", "doomed")
	require.NoError(t, err)
	assert.Empty(t, postings)
}

func TestAppendModeKeepsDocsAcrossSessions(t *testing.T) {
	dir := t.TempDir()
	w := openCreate(t, dir)
	require.NoError(t, w.AddDocument(pageDoc("a.html", "one")))
	require.NoError(t, w.Close())

	w, err := OpenWriter(dir, testIndexConfig(dir), testSelector(), ModeAppend)
	require.NoError(t, err)
	require.NoError(t, w.AddDocument(pageDoc("b.html", "two")))
	require.NoError(t, w.Close())

	r, err := OpenReader(dir)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 2, r.NumDocs())
	assert.Equal(t, 2, r.SegmentCount())
}

func TestSmallBufferFlushesMultipleSegments(t *testing.T) {
	dir := t.TempDir()
	cfg := testIndexConfig(dir)
	cfg.BufferMaxSize = 1 // every add flushes
	w, err := OpenWriter(dir, cfg, testSelector(), ModeCreate)
	require.NoError(t, err)
	require.NoError(t, w.AddDocument(pageDoc("a.html", "alpha")))
	require.NoError(t, w.AddDocument(pageDoc("b.html", "beta")))
	require.NoError(t, w.AddDocument(pageDoc("c.html", "gamma")))
	require.NoError(t, w.Close())

	r, err := OpenReader(dir)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 3, r.NumDocs())
	assert.Equal(t, 3, r.SegmentCount())

	// Doc ids are rebased per segment in manifest order.
	for i, term := range []string{"alpha", "beta", "gamma"} {
		postings, err := r.Postings(context.Background(), "contents", term)
		require.NoError(t, err)
		require.Len(t, postings, 1)
		assert.Equal(t, i, postings[0].Doc)
	}
}

func TestForceMergeCompacts(t *testing.T) {
	dir := t.TempDir()
	cfg := testIndexConfig(dir)
	cfg.BufferMaxSize = 1
	w, err := OpenWriter(dir, cfg, testSelector(), ModeCreate)
	require.NoError(t, err)
	require.NoError(t, w.AddDocument(pageDoc("a.html", "alpha common")))
	require.NoError(t, w.AddDocument(pageDoc("b.html", "beta common")))
	require.NoError(t, w.AddDocument(pageDoc("c.html", "gamma common")))
	require.NoError(t, w.Commit())
	_, err = w.DeleteDocuments("path", "b.html")
	require.NoError(t, err)
	require.NoError(t, w.ForceMerge())
	require.NoError(t, w.Close())

	r, err := OpenReader(dir)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 1, r.SegmentCount())
	assert.Equal(t, 2, r.NumDocs())

	postings, err := r.Postings(context.Background(), "contents", "common")
	require.NoError(t, err)
	require.Len(t, postings, 2)
	// Survivors are renumbered densely.
	assert.Equal(t, 0, postings[0].Doc)
	assert.Equal(t, 1, postings[1].Doc)

	postings, err = r.Postings(context.Background(), "contents", "beta")
	require.NoError(t, err)
	assert.Empty(t, postings)
}

func TestAnalysisErrorNamesDocumentKey(t *testing.T) {
	dir := t.TempDir()
	w := openCreate(t, dir)
	defer w.Close()

	var doc index.Document
	doc.Add(index.NewKeywordField("path", "bad.html", true))
	doc.Add(index.NewTextField("contents", string([]byte{0xff, 0xfe}), true))

	err := w.AddDocument(doc)
	require.Error(t, err)
	var analysisErr *pkgerrors.AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, "bad.html", analysisErr.Key)
	assert.Equal(t, "contents", analysisErr.Field)
}

func TestFailedUpdateKeepsExistingDocument(t *testing.T) {
	dir := t.TempDir()
	w := openCreate(t, dir)
	require.NoError(t, w.AddDocument(pageDoc("a.html", "Hokkaido is cold")))
	require.NoError(t, w.Commit())

	var bad index.Document
	bad.Add(index.NewKeywordField("path", "a.html", true))
	bad.Add(index.NewTextField("contents", string([]byte{0xff, 0xfe}), true))
	err := w.UpdateDocument("path", "a.html", bad)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsAnalysis(err))

	// The old version must survive the failed replacement.
	require.NoError(t, w.Commit())
	require.NoError(t, w.Close())

	r, err := OpenReader(dir)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 1, r.NumDocs())
	postings, err := r.Postings(context.Background(), "contents", "cold")
	require.NoError(t, err)
	assert.Len(t, postings, 1)
}

func TestClosedWriterRejectsOperations(t *testing.T) {
	dir := t.TempDir()
	w := openCreate(t, dir)
	require.NoError(t, w.Close())

	assert.ErrorIs(t, w.AddDocument(pageDoc("a.html", "x")), pkgerrors.ErrWriterClosed)
	assert.ErrorIs(t, w.Commit(), pkgerrors.ErrWriterClosed)
	_, err := w.DeleteDocuments("path", "a.html")
	assert.ErrorIs(t, err, pkgerrors.ErrWriterClosed)
}

func TestReaderOnEmptyDirectory(t *testing.T) {
	r, err := OpenReader(t.TempDir())
	require.NoError(t, err)
	defer r.Close()
	assert.Zero(t, r.NumDocs())
	postings, err := r.Postings(context.Background(), "contents", "anything")
	require.NoError(t, err)
	assert.Empty(t, postings)
}
