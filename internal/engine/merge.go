package engine

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/phakpoomachalanan/WebIR/internal/index"
	"github.com/phakpoomachalanan/WebIR/internal/index/segment"
	pkgerrors "github.com/phakpoomachalanan/WebIR/pkg/errors"
)

// ForceMerge compacts every segment into a single one, dropping deleted
// documents for good and renumbering the survivors. It publishes the merged
// segment as a commit, so pending buffered changes go out with it. Open
// readers keep their pre-merge snapshot.
func (w *Writer) ForceMerge() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return pkgerrors.ErrWriterClosed
	}
	if err := w.flushLocked(); err != nil {
		return err
	}

	all := append(w.segs, w.pending...)
	if len(all) == 0 {
		return nil
	}
	if len(all) == 1 && len(all[0].dead) == 0 && len(all[0].pendingDel) == 0 {
		return nil
	}

	// Renumber live documents in segment order.
	remap := make([]map[int]int, len(all))
	var stored []map[string]string
	var docLens []int
	next := 0
	for i, seg := range all {
		remap[i] = make(map[int]int)
		for ord := 0; ord < seg.rd.DocCount(); ord++ {
			if _, gone := seg.dead[ord]; gone {
				continue
			}
			if _, gone := seg.pendingDel[ord]; gone {
				continue
			}
			fields, err := seg.rd.StoredDoc(ord)
			if err != nil {
				return err
			}
			remap[i][ord] = next
			stored = append(stored, fields)
			docLens = append(docLens, seg.rd.DocLen(ord))
			next++
		}
	}

	merged := make(map[string]index.PostingList)
	for i, seg := range all {
		for _, entry := range seg.rd.Dict() {
			postings, err := seg.rd.Postings(entry.Field, entry.Term)
			if err != nil {
				return err
			}
			key := index.TermKey(entry.Field, entry.Term)
			for _, p := range postings {
				newID, alive := remap[i][p.Doc]
				if !alive {
					continue
				}
				p.Doc = newID
				merged[key] = append(merged[key], p)
			}
		}
	}

	entries := make([]index.TermEntry, 0, len(merged))
	for key, postings := range merged {
		if len(postings) == 0 {
			continue
		}
		sort.Slice(postings, func(a, b int) bool { return postings[a].Doc < postings[b].Doc })
		field, term := index.SplitTermKey(key)
		entries = append(entries, index.TermEntry{Field: field, Term: term, Postings: postings})
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].Field != entries[b].Field {
			return entries[a].Field < entries[b].Field
		}
		return entries[a].Term < entries[b].Term
	})

	gen := w.manifest.Generation + 1
	nextManifest := Manifest{Version: 1, Generation: gen}
	var newSegs []*writerSeg

	if len(stored) > 0 {
		w.seq++
		name := fmt.Sprintf("seg_%d_%d", time.Now().UnixNano(), w.seq)
		sw := segment.NewWriter(w.dir)
		if err := sw.Write(name, segment.Build{Entries: entries, Stored: stored, DocLens: docLens}); err != nil {
			return fmt.Errorf("writing merged segment: %w", err)
		}
		rd, err := segment.Open(filepath.Join(w.dir, name+segment.FileSuffix))
		if err != nil {
			return err
		}
		nextManifest.Segments = []SegmentRef{{Name: name}}
		newSegs = []*writerSeg{{
			ref:        SegmentRef{Name: name},
			rd:         rd,
			dead:       make(map[int]struct{}),
			pendingDel: make(map[int]struct{}),
		}}
	}

	if err := saveManifest(w.dir, nextManifest); err != nil {
		for _, seg := range newSegs {
			seg.rd.Close()
		}
		return err
	}

	for _, seg := range all {
		seg.rd.Close()
	}
	w.segs = newSegs
	w.pending = nil
	w.manifest = nextManifest
	w.removeStaleFiles(nextManifest)
	w.log.Info("merged segments",
		"generation", gen,
		"live_docs", len(stored))
	return nil
}
