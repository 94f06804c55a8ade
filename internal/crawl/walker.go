// Package crawl turns a document tree on disk into indexable documents: a
// lazy directory walker, HTML text extraction, and field mapping.
package crawl

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// Entry is one file produced by the walk. A non-nil Err reports a path that
// could not be visited; the walk continues past it.
type Entry struct {
	Path    string
	ModTime time.Time
	Err     error
}

// Walk streams the regular files under root in lexical order. The channel
// closes when the walk finishes or ctx is cancelled. Files named robots.txt
// are crawler directives, not content, and are skipped.
func Walk(ctx context.Context, root string) <-chan Entry {
	out := make(chan Entry)
	go func() {
		defer close(out)
		filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				select {
				case out <- Entry{Path: path, Err: err}:
				case <-ctx.Done():
					return ctx.Err()
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if strings.EqualFold(d.Name(), "robots.txt") {
				return nil
			}
			info, err := d.Info()
			entry := Entry{Path: path}
			if err != nil {
				entry.Err = err
			} else {
				entry.ModTime = info.ModTime()
			}
			select {
			case out <- entry:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
	}()
	return out
}
