package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/phakpoomachalanan/WebIR/internal/index"
	"github.com/phakpoomachalanan/WebIR/internal/index/segment"
	pkgerrors "github.com/phakpoomachalanan/WebIR/pkg/errors"
)

// readerSeg is one committed segment inside a snapshot. docBase offsets its
// local ordinals into the snapshot-wide document id space.
type readerSeg struct {
	rd      *segment.Reader
	dead    map[int]struct{}
	docBase int
}

// Reader is a point-in-time snapshot of an index directory. It captures the
// manifest at open time, so later commits by a concurrent writer never change
// what this reader sees. Document ids are stable for the life of the snapshot:
// each segment's ordinals are offset by the total document count of the
// segments before it, dead or alive.
type Reader struct {
	dir        string
	generation int64
	segs       []readerSeg
	numDocs    int
	totalLen   int64
	closed     bool
}

// OpenReader opens a snapshot of the index at dir. A directory with no
// manifest is a valid empty index.
func OpenReader(dir string) (*Reader, error) {
	manifest, err := loadManifest(dir)
	if err != nil {
		return nil, err
	}
	r := &Reader{dir: dir, generation: manifest.Generation}
	docBase := 0
	for _, ref := range manifest.Segments {
		rd, err := segment.Open(filepath.Join(dir, ref.Name+segment.FileSuffix))
		if err != nil {
			r.Close()
			return nil, err
		}
		dead, err := loadDeletes(dir, ref)
		if err != nil {
			rd.Close()
			r.Close()
			return nil, err
		}
		r.segs = append(r.segs, readerSeg{rd: rd, dead: dead, docBase: docBase})
		for ord := 0; ord < rd.DocCount(); ord++ {
			if _, gone := dead[ord]; gone {
				continue
			}
			r.numDocs++
			r.totalLen += int64(rd.DocLen(ord))
		}
		docBase += rd.DocCount()
	}
	return r, nil
}

// Postings returns the live postings for (field, term) across all segments,
// rebased to snapshot-wide document ids and sorted ascending. An absent term
// yields an empty list, not an error. Segments are consulted concurrently.
func (r *Reader) Postings(ctx context.Context, field, term string) (index.PostingList, error) {
	if r.closed {
		return nil, pkgerrors.ErrReaderClosed
	}
	perSeg := make([]index.PostingList, len(r.segs))
	g, ctx := errgroup.WithContext(ctx)
	for i, seg := range r.segs {
		i, seg := i, seg
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			postings, err := seg.rd.Postings(field, term)
			if err != nil {
				return err
			}
			live := make(index.PostingList, 0, len(postings))
			for _, p := range postings {
				if _, gone := seg.dead[p.Doc]; gone {
					continue
				}
				p.Doc += seg.docBase
				live = append(live, p)
			}
			perSeg[i] = live
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var merged index.PostingList
	for _, list := range perSeg {
		merged = append(merged, list...)
	}
	return merged, nil
}

// NumDocs returns the number of live documents in the snapshot.
func (r *Reader) NumDocs() int {
	return r.numDocs
}

// AvgDocLen returns the mean token count of live documents, or zero for an
// empty snapshot.
func (r *Reader) AvgDocLen() float64 {
	if r.numDocs == 0 {
		return 0
	}
	return float64(r.totalLen) / float64(r.numDocs)
}

// DocLen returns the token count of a document, or zero for an unknown id.
func (r *Reader) DocLen(docID int) int {
	seg := r.locate(docID)
	if seg == nil {
		return 0
	}
	return seg.rd.DocLen(docID - seg.docBase)
}

// Generation returns the manifest generation this snapshot was opened at.
func (r *Reader) Generation() int64 {
	return r.generation
}

// SegmentCount returns the number of segments in the snapshot.
func (r *Reader) SegmentCount() int {
	return len(r.segs)
}

// StoredFields gives access to the stored-field records of the snapshot.
func (r *Reader) StoredFields() *StoredFields {
	return &StoredFields{r: r}
}

// Close releases the snapshot's segment readers.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	var firstErr error
	for _, seg := range r.segs {
		if err := seg.rd.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Reader) locate(docID int) *readerSeg {
	for i := len(r.segs) - 1; i >= 0; i-- {
		if docID >= r.segs[i].docBase {
			if docID-r.segs[i].docBase >= r.segs[i].rd.DocCount() {
				return nil
			}
			return &r.segs[i]
		}
	}
	return nil
}

// StoredFields fetches stored-field records by snapshot document id.
type StoredFields struct {
	r *Reader
}

// Fetch returns the stored fields of a document. Unknown ids yield a nil map
// without error; a dead document's record is still readable, matching what a
// hit list captured before the delete would reference.
func (s *StoredFields) Fetch(docID int) (map[string]string, error) {
	if s.r.closed {
		return nil, pkgerrors.ErrReaderClosed
	}
	seg := s.r.locate(docID)
	if seg == nil {
		return nil, nil
	}
	fields, err := seg.rd.StoredDoc(docID - seg.docBase)
	if err != nil {
		return nil, fmt.Errorf("fetching stored doc %d: %w", docID, err)
	}
	return fields, nil
}
