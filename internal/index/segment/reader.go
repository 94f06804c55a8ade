package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sort"

	"github.com/phakpoomachalanan/WebIR/internal/index"
	pkgerrors "github.com/phakpoomachalanan/WebIR/pkg/errors"
)

// Reader provides random access into one committed segment file. The
// dictionary, offset table, and doc lengths are held in memory; postings and
// stored records are read on demand.
type Reader struct {
	file     *os.File
	filePath string
	hdr      header
	dict     []DictEntry
	spans    []docSpan
	docLens  []int
}

// Open maps a segment file for reading, validating its magic bytes, version,
// and section checksums. Structural mismatches surface as ErrCorruptSegment.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		f.Close()
		return nil, pkgerrors.Corrupt(path, "reading header: %v", err)
	}
	hdr := decodeHeader(headerBytes)
	if hdr.Magic != MagicBytes {
		f.Close()
		return nil, pkgerrors.Corrupt(path, "bad magic bytes %x", hdr.Magic)
	}
	if hdr.Version != FormatVersion {
		f.Close()
		return nil, pkgerrors.Corrupt(path, "unsupported format version %d", hdr.Version)
	}

	footer := make([]byte, FooterSize)
	footerOff := hdr.DictOff + hdr.DictSize
	if _, err := f.ReadAt(footer, footerOff); err != nil {
		f.Close()
		return nil, pkgerrors.Corrupt(path, "reading footer: %v", err)
	}

	dictData := make([]byte, hdr.DictSize)
	if _, err := f.ReadAt(dictData, hdr.DictOff); err != nil {
		f.Close()
		return nil, pkgerrors.Corrupt(path, "reading dictionary: %v", err)
	}
	if got, want := crc32.ChecksumIEEE(dictData), binary.LittleEndian.Uint32(footer[0:4]); got != want {
		f.Close()
		return nil, pkgerrors.Corrupt(path, "dictionary checksum mismatch: %08x != %08x", got, want)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictData, &dict); err != nil {
		f.Close()
		return nil, pkgerrors.Corrupt(path, "parsing dictionary: %v", err)
	}

	docTabData := make([]byte, hdr.DocTabSize)
	if _, err := f.ReadAt(docTabData, hdr.DocTabOff); err != nil {
		f.Close()
		return nil, pkgerrors.Corrupt(path, "reading doc offset table: %v", err)
	}
	if got, want := crc32.ChecksumIEEE(docTabData), binary.LittleEndian.Uint32(footer[4:8]); got != want {
		f.Close()
		return nil, pkgerrors.Corrupt(path, "doc offset table checksum mismatch: %08x != %08x", got, want)
	}
	var spans []docSpan
	if err := json.Unmarshal(docTabData, &spans); err != nil {
		f.Close()
		return nil, pkgerrors.Corrupt(path, "parsing doc offset table: %v", err)
	}
	if len(spans) != int(hdr.DocCount) {
		f.Close()
		return nil, pkgerrors.Corrupt(path, "offset table has %d entries for %d documents", len(spans), hdr.DocCount)
	}

	lensData := make([]byte, hdr.LensSize)
	if _, err := f.ReadAt(lensData, hdr.LensOff); err != nil {
		f.Close()
		return nil, pkgerrors.Corrupt(path, "reading doc lengths: %v", err)
	}
	var docLens []int
	if err := json.Unmarshal(lensData, &docLens); err != nil {
		f.Close()
		return nil, pkgerrors.Corrupt(path, "parsing doc lengths: %v", err)
	}

	return &Reader{
		file:     f,
		filePath: path,
		hdr:      hdr,
		dict:     dict,
		spans:    spans,
		docLens:  docLens,
	}, nil
}

// Postings returns the postings list for (field, term), or nil when the term
// is absent. Absence is not an error.
func (r *Reader) Postings(field, term string) (index.PostingList, error) {
	i := sort.Search(len(r.dict), func(i int) bool {
		e := r.dict[i]
		if e.Field != field {
			return e.Field >= field
		}
		return e.Term >= term
	})
	if i >= len(r.dict) || r.dict[i].Field != field || r.dict[i].Term != term {
		return nil, nil
	}
	entry := r.dict[i]
	data := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(data, r.hdr.PostOff+entry.PostOffset); err != nil {
		return nil, pkgerrors.Corrupt(r.filePath, "reading postings: %v", err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(data, &postings); err != nil {
		return nil, pkgerrors.Corrupt(r.filePath, "parsing postings: %v", err)
	}
	return postings, nil
}

// StoredDoc returns the stored-field record for the given ordinal.
func (r *Reader) StoredDoc(ordinal int) (map[string]string, error) {
	if ordinal < 0 || ordinal >= len(r.spans) {
		return nil, fmt.Errorf("ordinal %d out of range [0,%d)", ordinal, len(r.spans))
	}
	span := r.spans[ordinal]
	data := make([]byte, span.Len)
	if _, err := r.file.ReadAt(data, r.hdr.StoredOff+span.Offset); err != nil {
		return nil, pkgerrors.Corrupt(r.filePath, "reading stored doc %d: %v", ordinal, err)
	}
	var fields map[string]string
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, pkgerrors.Corrupt(r.filePath, "parsing stored doc %d: %v", ordinal, err)
	}
	return fields, nil
}

// DocLen returns the token count of the document at the given ordinal.
func (r *Reader) DocLen(ordinal int) int {
	if ordinal < 0 || ordinal >= len(r.docLens) {
		return 0
	}
	return r.docLens[ordinal]
}

// DocCount returns the number of documents in the segment, dead or alive.
func (r *Reader) DocCount() int {
	return int(r.hdr.DocCount)
}

// Dict returns the term dictionary in its serialised (field, term) order.
// Callers must not modify the returned slice.
func (r *Reader) Dict() []DictEntry {
	return r.dict
}

// Terms returns the number of distinct (field, term) pairs.
func (r *Reader) Terms() int {
	return len(r.dict)
}

// Path returns the file path this reader was opened from.
func (r *Reader) Path() string {
	return r.filePath
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}

func decodeHeader(buf []byte) header {
	return header{
		Magic:      binary.LittleEndian.Uint32(buf[0:4]),
		Version:    binary.LittleEndian.Uint32(buf[4:8]),
		TermCount:  binary.LittleEndian.Uint32(buf[8:12]),
		DocCount:   binary.LittleEndian.Uint32(buf[12:16]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(buf[16:24])),
		PostOff:    int64(binary.LittleEndian.Uint64(buf[24:32])),
		PostSize:   int64(binary.LittleEndian.Uint64(buf[32:40])),
		StoredOff:  int64(binary.LittleEndian.Uint64(buf[40:48])),
		StoredSize: int64(binary.LittleEndian.Uint64(buf[48:56])),
		DocTabOff:  int64(binary.LittleEndian.Uint64(buf[56:64])),
		DocTabSize: int64(binary.LittleEndian.Uint64(buf[64:72])),
		LensOff:    int64(binary.LittleEndian.Uint64(buf[72:80])),
		LensSize:   int64(binary.LittleEndian.Uint64(buf[80:88])),
		DictOff:    int64(binary.LittleEndian.Uint64(buf[88:96])),
		DictSize:   int64(binary.LittleEndian.Uint64(buf[96:104])),
	}
}
