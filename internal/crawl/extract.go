package crawl

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/phakpoomachalanan/WebIR/internal/index"
)

// FileDoc is the intermediate form between a crawled file and an index
// document.
type FileDoc struct {
	Path       string
	URL        string
	Title      string
	Body       string
	Prefecture string
	Modified   time.Time
}

// Enricher lets callers derive extra metadata for a file before it becomes a
// document. Enrichers run after the built-in extraction.
type Enricher func(*FileDoc)

// Extractor converts crawled files into documents. Root anchors the relative
// paths that become URLs; BaseURL is prefixed onto them.
type Extractor struct {
	Root      string
	BaseURL   string
	Enrichers []Enricher
}

// ExtractFile reads and parses one file into a FileDoc. HTML gives a title
// and tag-stripped body; anything else is indexed as plain text.
func (e *Extractor) ExtractFile(path string, modTime time.Time) (FileDoc, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileDoc{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	fd := FileDoc{Path: path, Modified: modTime, URL: e.deriveURL(path)}
	if isHTMLPath(path) {
		fd.Title, fd.Body, err = ParseHTML(f)
		if err != nil {
			return FileDoc{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else {
		data, err := io.ReadAll(f)
		if err != nil {
			return FileDoc{}, fmt.Errorf("reading %s: %w", path, err)
		}
		fd.Body = collapseSpace(string(data))
	}
	if fd.Title == "" {
		fd.Title = filepath.Base(path)
	}
	fd.Prefecture = DetectPrefecture(fd.Path, fd.Title, fd.Body)
	for _, enrich := range e.Enrichers {
		enrich(&fd)
	}
	return fd, nil
}

// Document maps the FileDoc onto index fields. The path is the document key:
// a keyword field, indexed exactly so updates and deletes can find it, and
// stored for display. Title and body are analyzed text; the modification
// time is an indexed numeric field; URL and prefecture are display-only.
func (e *Extractor) Document(fd FileDoc) index.Document {
	var doc index.Document
	doc.Add(index.NewKeywordField("path", fd.Path, true))
	doc.Add(index.NewNumericField("modified", fd.Modified.Unix()))
	doc.Add(index.NewTextField("title", fd.Title, true))
	doc.Add(index.NewTextField("contents", fd.Body, true))
	doc.Add(index.NewStoredField("url", fd.URL))
	doc.Add(index.NewStoredField("prefecture", fd.Prefecture))
	return doc
}

// deriveURL rewrites a crawled file path into its public URL: the part below
// the crawl root, slash-normalised, with mirror-artifact "dummy" components
// removed, prefixed by BaseURL.
func (e *Extractor) deriveURL(path string) string {
	rel := path
	if e.Root != "" {
		if r, err := filepath.Rel(e.Root, path); err == nil {
			rel = r
		}
	}
	rel = strings.ReplaceAll(rel, "\\", "/")
	rel = strings.ReplaceAll(rel, "dummy", "")
	return strings.TrimSuffix(e.BaseURL, "/") + "/" + strings.TrimPrefix(rel, "/")
}

func isHTMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return false
}

// ParseHTML extracts the title and the visible body text of an HTML document,
// with script and style content dropped and whitespace collapsed.
func ParseHTML(r io.Reader) (title, body string, err error) {
	root, err := html.Parse(r)
	if err != nil {
		return "", "", err
	}
	var titleSB, bodySB strings.Builder
	var walk func(n *html.Node, inTitle bool)
	walk = func(n *html.Node, inTitle bool) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				inTitle = true
			}
		case html.TextNode:
			if inTitle {
				titleSB.WriteString(n.Data)
			} else {
				bodySB.WriteString(n.Data)
				bodySB.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inTitle)
		}
	}
	walk(root, false)
	return collapseSpace(titleSB.String()), collapseSpace(bodySB.String()), nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
