package crawl

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestWalkStreamsFilesAndSkipsRobots(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.html", "<html></html>")
	writeFile(t, dir, "sub/b.txt", "text")
	writeFile(t, dir, "robots.txt", "User-agent: *")
	writeFile(t, dir, "sub/robots.txt", "User-agent: *")

	var paths []string
	for entry := range Walk(context.Background(), dir) {
		require.NoError(t, entry.Err)
		require.False(t, entry.ModTime.IsZero())
		paths = append(paths, filepath.Base(entry.Path))
	}
	assert.ElementsMatch(t, []string{"a.html", "b.txt"}, paths)
}

func TestWalkCancellation(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFile(t, dir, filepath.Join("d", string(rune('a'+i))+".txt"), "x")
	}
	ctx, cancel := context.WithCancel(context.Background())
	ch := Walk(ctx, dir)
	<-ch
	cancel()
	// The channel closes after cancellation instead of blocking forever.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("walk did not stop after cancellation")
		}
	}
}

func TestParseHTML(t *testing.T) {
	title, body, err := ParseHTML(strings.NewReader(`
		<html><head><title> Sapporo  Guide </title>
		<style>body { color: red }</style></head>
		<body><h1>Welcome</h1><script>var x = 1;</script>
		<p>Snow   festival  every   winter.</p></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Sapporo Guide", title)
	assert.Contains(t, body, "Welcome Snow festival every winter.")
	assert.NotContains(t, body, "color: red")
	assert.NotContains(t, body, "var x")
}

func TestExtractFileHTML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hokkaido/guide.html",
		`<html><head><title>Hokkaido Guide</title></head><body>Ski resorts.</body></html>`)
	mod := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	ex := &Extractor{Root: dir, BaseURL: "https://example.jp"}
	fd, err := ex.ExtractFile(path, mod)
	require.NoError(t, err)

	assert.Equal(t, "Hokkaido Guide", fd.Title)
	assert.Equal(t, "Ski resorts.", fd.Body)
	assert.Equal(t, "https://example.jp/hokkaido/guide.html", fd.URL)
	assert.Equal(t, "Hokkaido", fd.Prefecture)

	doc := ex.Document(fd)
	assert.Equal(t, path, doc.Get("path"))
	assert.Equal(t, "Hokkaido Guide", doc.Get("title"))
	assert.Equal(t, "Ski resorts.", doc.Get("contents"))
	assert.Equal(t, "https://example.jp/hokkaido/guide.html", doc.Get("url"))
	assert.Equal(t, "1709251200", doc.Get("modified"))
}

func TestExtractFilePlainTextAndTitleFallback(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "plain   text\n\ncontent")
	ex := &Extractor{Root: dir, BaseURL: "https://example.jp"}
	fd, err := ex.ExtractFile(path, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", fd.Title)
	assert.Equal(t, "plain text content", fd.Body)
}

func TestDeriveURLStripsDummyComponents(t *testing.T) {
	ex := &Extractor{Root: "/crawl", BaseURL: "https://example.jp/"}
	fd := FileDoc{Path: "/crawl/dummy/pages/dummyindex.html"}
	assert.Equal(t, "https://example.jp/pages/index.html", ex.deriveURL(fd.Path))
}

func TestEnricherRuns(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "content")
	ex := &Extractor{
		Root:    dir,
		BaseURL: "https://example.jp",
		Enrichers: []Enricher{
			func(fd *FileDoc) { fd.Title = "overridden" },
		},
	}
	fd, err := ex.ExtractFile(path, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "overridden", fd.Title)
}

func TestDetectPrefecture(t *testing.T) {
	cases := []struct {
		name              string
		path, title, body string
		want              string
	}{
		{"from path", "/crawl/okinawa/beach.html", "Beaches", "sand and sea", "Okinawa"},
		{"from title", "/crawl/page.html", "Kyoto temples", "many temples", "Kyoto"},
		{"from body", "/crawl/page.html", "Travel", "a trip through Nara last spring", "Nara"},
		{"none found", "/crawl/page.html", "Guide", "nothing regional here", "-"},
		{"ambiguous path falls through", "/crawl/tokyo-osaka/page.html", "Rail", "the Tokaido line", "-"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectPrefecture(tc.path, tc.title, tc.body))
		})
	}
}

func TestDetectPrefectureListingPage(t *testing.T) {
	var b strings.Builder
	for _, p := range prefectures[:20] {
		b.WriteString(p)
		b.WriteString(" ")
	}
	assert.Equal(t, "-", DetectPrefecture("/crawl/all.html", "All regions", b.String()))
}
