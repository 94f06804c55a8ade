// Package engine ties the in-memory buffer, segment files, delete overlays,
// and the commit manifest into a durable single-writer index with
// snapshot-isolated readers.
package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/phakpoomachalanan/WebIR/internal/analysis"
	"github.com/phakpoomachalanan/WebIR/internal/index"
	"github.com/phakpoomachalanan/WebIR/internal/index/segment"
	"github.com/phakpoomachalanan/WebIR/pkg/config"
	pkgerrors "github.com/phakpoomachalanan/WebIR/pkg/errors"
	"github.com/phakpoomachalanan/WebIR/pkg/logger"
)

// OpenMode controls what OpenWriter does with existing index content.
type OpenMode int

const (
	// ModeCreate starts from an empty index, discarding committed segments.
	ModeCreate OpenMode = iota
	// ModeAppend keeps existing segments and adds to them.
	ModeAppend
)

// writerSeg is a committed segment as the writer sees it: its reader for
// delete-by-key lookups, the dead ordinals of the last commit, and the dead
// ordinals accumulated since.
type writerSeg struct {
	ref        SegmentRef
	rd         *segment.Reader
	dead       map[int]struct{}
	pendingDel map[int]struct{}
}

// Writer is the single mutator of an index directory. Adds, updates, and
// deletes accumulate in memory (spilling full buffers to segment files) and
// become visible to readers only when Commit advances the manifest. Exactly
// one Writer may hold a directory at a time.
type Writer struct {
	dir       string
	cfg       config.IndexConfig
	analyzers *analysis.Selector
	log       *slog.Logger

	mu       sync.Mutex
	lock     *writeLock
	manifest Manifest
	segs     []*writerSeg
	pending  []*writerSeg
	mem      *index.Memtable
	seq      int64
	closed   bool
}

// OpenWriter acquires the write lock on dir and prepares a Writer. In
// ModeCreate the previous contents are dropped by writing a fresh empty
// manifest; in ModeAppend the committed segments are opened so deletes can
// find documents in them.
func OpenWriter(dir string, cfg config.IndexConfig, analyzers *analysis.Selector, mode OpenMode) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	lock, err := acquireLock(dir)
	if err != nil {
		return nil, err
	}

	manifest, err := loadManifest(dir)
	if err != nil {
		lock.release()
		return nil, err
	}

	w := &Writer{
		dir:       dir,
		cfg:       cfg,
		analyzers: analyzers,
		log:       logger.WithComponent("index.writer"),
		lock:      lock,
		mem:       index.NewMemtable(),
	}

	if mode == ModeCreate {
		fresh := Manifest{Version: 1, Generation: manifest.Generation + 1}
		if err := saveManifest(dir, fresh); err != nil {
			lock.release()
			return nil, err
		}
		w.removeStaleFiles(fresh)
		w.manifest = fresh
		w.log.Info("opened index for create", "dir", dir)
		return w, nil
	}

	for _, ref := range manifest.Segments {
		rd, err := segment.Open(filepath.Join(dir, ref.Name+segment.FileSuffix))
		if err != nil {
			w.closeSegments()
			lock.release()
			return nil, err
		}
		dead, err := loadDeletes(dir, ref)
		if err != nil {
			rd.Close()
			w.closeSegments()
			lock.release()
			return nil, err
		}
		w.segs = append(w.segs, &writerSeg{
			ref:        ref,
			rd:         rd,
			dead:       dead,
			pendingDel: make(map[int]struct{}),
		})
	}
	w.manifest = manifest
	w.log.Info("opened index for append",
		"dir", dir,
		"segments", len(w.segs),
		"generation", manifest.Generation)
	return w, nil
}

// AddDocument buffers one document. Text fields run through the field
// analyzer, keyword fields index their value verbatim, and stored-only fields
// skip the postings entirely. Analysis failures identify the document by its
// key field.
func (w *Writer) AddDocument(doc index.Document) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return pkgerrors.ErrWriterClosed
	}
	return w.addLocked(doc)
}

func (w *Writer) addLocked(doc index.Document) error {
	stored, terms, docLen, err := w.analyzeDoc(doc)
	if err != nil {
		return err
	}
	return w.insertLocked(stored, terms, docLen)
}

// analyzeDoc runs every indexed field through its analyzer without touching
// writer state, so a failing document leaves the index unchanged.
func (w *Writer) analyzeDoc(doc index.Document) (map[string]string, []index.TermOccurrence, int, error) {
	stored := make(map[string]string)
	var terms []index.TermOccurrence
	docLen := 0

	for _, f := range doc.Fields {
		if f.Stored {
			stored[f.Name] = f.Value
		}
		if !f.Indexed {
			continue
		}
		switch f.Type {
		case index.TypeText:
			tokens, err := w.analyzers.ForField(f.Name).Analyze(f.Name, f.Value)
			if err != nil {
				return nil, nil, 0, &pkgerrors.AnalysisError{
					Key:   doc.Get(w.cfg.KeyField),
					Field: f.Name,
					Err:   err,
				}
			}
			for _, tok := range tokens {
				terms = append(terms, index.TermOccurrence{
					Field:    f.Name,
					Term:     tok.Term,
					Position: tok.Position,
				})
			}
			docLen += len(tokens)
		case index.TypeKeyword, index.TypeNumeric:
			terms = append(terms, index.TermOccurrence{
				Field: f.Name,
				Term:  f.Value,
			})
		}
	}
	return stored, terms, docLen, nil
}

func (w *Writer) insertLocked(stored map[string]string, terms []index.TermOccurrence, docLen int) error {
	w.mem.Add(stored, terms, docLen)
	if w.mem.Size() >= w.cfg.BufferMaxSize {
		return w.flushLocked()
	}
	return nil
}

// UpdateDocument replaces every document whose keyField carries keyValue with
// doc, in one logical step. The delete and the add become visible together at
// the next Commit.
func (w *Writer) UpdateDocument(keyField, keyValue string, doc index.Document) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return pkgerrors.ErrWriterClosed
	}
	// Analyze before deleting: a document that fails analysis must leave
	// the currently indexed version in place.
	stored, terms, docLen, err := w.analyzeDoc(doc)
	if err != nil {
		return err
	}
	if _, err := w.deleteLocked(keyField, keyValue); err != nil {
		return err
	}
	return w.insertLocked(stored, terms, docLen)
}

// DeleteDocuments marks every document whose keyField carries keyValue as
// deleted and returns how many were marked. Matching nothing is not an error.
func (w *Writer) DeleteDocuments(keyField, keyValue string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, pkgerrors.ErrWriterClosed
	}
	return w.deleteLocked(keyField, keyValue)
}

func (w *Writer) deleteLocked(keyField, keyValue string) (int, error) {
	marked := 0
	for _, seg := range append(w.segs, w.pending...) {
		postings, err := seg.rd.Postings(keyField, keyValue)
		if err != nil {
			return marked, err
		}
		for _, p := range postings {
			if _, gone := seg.dead[p.Doc]; gone {
				continue
			}
			if _, already := seg.pendingDel[p.Doc]; already {
				continue
			}
			seg.pendingDel[p.Doc] = struct{}{}
			marked++
		}
	}
	memDead := make(map[int]struct{})
	for _, ord := range w.mem.Dead() {
		memDead[ord] = struct{}{}
	}
	for _, ord := range w.mem.Lookup(keyField, keyValue) {
		if _, gone := memDead[ord]; gone {
			continue
		}
		w.mem.MarkDead(ord)
		marked++
	}
	return marked, nil
}

// flushLocked spills the buffer into a new segment file. The segment stays
// invisible to readers until the next Commit references it.
func (w *Writer) flushLocked() error {
	if w.mem.DocCount() == 0 {
		return nil
	}
	w.seq++
	name := fmt.Sprintf("seg_%d_%d", time.Now().UnixNano(), w.seq)
	sw := segment.NewWriter(w.dir)
	if err := sw.Write(name, segment.Build{
		Entries: w.mem.Snapshot(),
		Stored:  w.mem.StoredDocs(),
		DocLens: w.mem.DocLens(),
	}); err != nil {
		return fmt.Errorf("flushing buffer: %w", err)
	}
	rd, err := segment.Open(filepath.Join(w.dir, name+segment.FileSuffix))
	if err != nil {
		return err
	}

	pendingDel := make(map[int]struct{})
	for _, ord := range w.mem.Dead() {
		pendingDel[ord] = struct{}{}
	}
	w.pending = append(w.pending, &writerSeg{
		ref:        SegmentRef{Name: name},
		rd:         rd,
		dead:       make(map[int]struct{}),
		pendingDel: pendingDel,
	})
	w.log.Debug("flushed buffer to segment", "segment", name, "docs", rd.DocCount())
	w.mem.Reset()
	return nil
}

// Commit makes every buffered add, update, and delete durable and visible in
// one step: the buffer is flushed, delete files are written under a new
// generation, and the manifest rename publishes everything at once. A commit
// with nothing to publish is a no-op and leaves the generation unchanged.
func (w *Writer) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return pkgerrors.ErrWriterClosed
	}
	return w.commitLocked()
}

func (w *Writer) commitLocked() error {
	if err := w.flushLocked(); err != nil {
		return err
	}

	dirty := len(w.pending) > 0
	for _, seg := range w.segs {
		if len(seg.pendingDel) > 0 {
			dirty = true
		}
	}
	if !dirty {
		return nil
	}

	gen := w.manifest.Generation + 1
	next := Manifest{Version: 1, Generation: gen}

	for _, seg := range append(w.segs, w.pending...) {
		ref := seg.ref
		if len(seg.pendingDel) > 0 {
			merged := make(map[int]struct{}, len(seg.dead)+len(seg.pendingDel))
			for ord := range seg.dead {
				merged[ord] = struct{}{}
			}
			for ord := range seg.pendingDel {
				merged[ord] = struct{}{}
			}
			if err := saveDeletes(w.dir, seg.ref.Name, gen, merged); err != nil {
				return err
			}
			ref.DelGen = gen
		}
		next.Segments = append(next.Segments, ref)
	}

	if err := saveManifest(w.dir, next); err != nil {
		return err
	}

	for _, seg := range append(w.segs, w.pending...) {
		for ord := range seg.pendingDel {
			seg.dead[ord] = struct{}{}
		}
		seg.pendingDel = make(map[int]struct{})
		for i, ref := range next.Segments {
			if ref.Name == seg.ref.Name {
				seg.ref = next.Segments[i]
			}
		}
	}
	w.segs = append(w.segs, w.pending...)
	w.pending = nil
	w.manifest = next
	w.log.Info("committed",
		"generation", gen,
		"segments", len(w.segs),
		"live_docs", w.liveDocsLocked())
	return nil
}

// LiveDocs returns the number of live documents the writer currently tracks,
// including uncommitted buffered ones.
func (w *Writer) LiveDocs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.liveDocsLocked()
}

func (w *Writer) liveDocsLocked() int {
	n := 0
	for _, seg := range append(w.segs, w.pending...) {
		n += seg.rd.DocCount() - len(seg.dead) - len(seg.pendingDel)
	}
	n += w.mem.DocCount() - len(w.mem.Dead())
	return n
}

// SegmentCount returns the number of committed segments.
func (w *Writer) SegmentCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.segs)
}

// Generation returns the manifest generation of the last commit.
func (w *Writer) Generation() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.manifest.Generation
}

// Close commits any outstanding changes, closes segment readers, and releases
// the write lock. The lock is released even when the final commit fails.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	commitErr := w.commitLocked()
	w.closed = true
	w.closeSegments()
	if err := w.lock.release(); err != nil && commitErr == nil {
		commitErr = err
	}
	return commitErr
}

func (w *Writer) closeSegments() {
	for _, seg := range append(w.segs, w.pending...) {
		seg.rd.Close()
	}
	w.segs = nil
	w.pending = nil
}

// removeStaleFiles deletes segment and delete files not referenced by the
// manifest. Best effort; leftovers are harmless.
func (w *Writer) removeStaleFiles(m Manifest) {
	referenced := make(map[string]struct{}, len(m.Segments))
	for _, ref := range m.Segments {
		referenced[ref.Name+segment.FileSuffix] = struct{}{}
		if ref.DelGen > 0 {
			referenced[delFileName(ref.Name, ref.DelGen)] = struct{}{}
		}
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		stale := strings.HasSuffix(name, segment.FileSuffix) || strings.Contains(name, ".del.")
		if !stale {
			continue
		}
		if _, ok := referenced[name]; ok {
			continue
		}
		os.Remove(filepath.Join(w.dir, name))
	}
}
