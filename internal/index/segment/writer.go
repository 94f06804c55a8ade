package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/phakpoomachalanan/WebIR/internal/index"
)

// Build is the complete content of one segment: the sorted term entries plus
// the per-ordinal stored records and token counts. Stored and DocLens must
// both have one element per document.
type Build struct {
	Entries []index.TermEntry
	Stored  []map[string]string
	DocLens []int
}

// Writer serialises Builds into new segment files.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write atomically creates segment file <name>.seg containing the build. It
// writes to a .tmp file first and renames on success, so a crash mid-write
// never leaves a visible partial segment.
func (w *Writer) Write(name string, build Build) error {
	if len(build.Stored) == 0 {
		return fmt.Errorf("cannot write empty segment")
	}
	if len(build.DocLens) != len(build.Stored) {
		return fmt.Errorf("doc length table has %d entries for %d documents", len(build.DocLens), len(build.Stored))
	}
	finalPath := filepath.Join(w.dataDir, name+FileSuffix)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return fmt.Errorf("creating segment directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()

	hdr := header{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		TermCount: uint32(len(build.Entries)),
		DocCount:  uint32(len(build.Stored)),
		CreatedAt: time.Now().Unix(),
	}
	// Reserve the header; real offsets are patched in at the end.
	if _, err := f.Write(make([]byte, HeaderSize)); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	hdr.PostOff, _ = f.Seek(0, 1)
	dict := make([]DictEntry, 0, len(build.Entries))
	for _, entry := range build.Entries {
		offset, _ := f.Seek(0, 1)
		data, err := json.Marshal(entry.Postings)
		if err != nil {
			return fmt.Errorf("marshaling postings for term %q: %w", entry.Term, err)
		}
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
		}
		dict = append(dict, DictEntry{
			Field:      entry.Field,
			Term:       entry.Term,
			PostOffset: offset - hdr.PostOff,
			PostLen:    len(data),
			DocFreq:    len(entry.Postings),
		})
	}
	postEnd, _ := f.Seek(0, 1)
	hdr.PostSize = postEnd - hdr.PostOff

	hdr.StoredOff = postEnd
	spans := make([]docSpan, 0, len(build.Stored))
	for ordinal, fields := range build.Stored {
		offset, _ := f.Seek(0, 1)
		data, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("marshaling stored fields for doc %d: %w", ordinal, err)
		}
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("writing stored fields for doc %d: %w", ordinal, err)
		}
		spans = append(spans, docSpan{Offset: offset - hdr.StoredOff, Len: len(data)})
	}
	storedEnd, _ := f.Seek(0, 1)
	hdr.StoredSize = storedEnd - hdr.StoredOff

	docTabData, err := json.Marshal(spans)
	if err != nil {
		return fmt.Errorf("marshaling doc offset table: %w", err)
	}
	hdr.DocTabOff = storedEnd
	hdr.DocTabSize = int64(len(docTabData))
	if _, err := f.Write(docTabData); err != nil {
		return fmt.Errorf("writing doc offset table: %w", err)
	}

	lensData, err := json.Marshal(build.DocLens)
	if err != nil {
		return fmt.Errorf("marshaling doc lengths: %w", err)
	}
	hdr.LensOff = hdr.DocTabOff + hdr.DocTabSize
	hdr.LensSize = int64(len(lensData))
	if _, err := f.Write(lensData); err != nil {
		return fmt.Errorf("writing doc lengths: %w", err)
	}

	dictData, err := json.Marshal(dict)
	if err != nil {
		return fmt.Errorf("marshaling dictionary: %w", err)
	}
	hdr.DictOff = hdr.LensOff + hdr.LensSize
	hdr.DictSize = int64(len(dictData))
	if _, err := f.Write(dictData); err != nil {
		return fmt.Errorf("writing dictionary: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], crc32.ChecksumIEEE(docTabData))
	binary.LittleEndian.PutUint32(footer[8:12], hdr.DocCount)
	binary.LittleEndian.PutUint64(footer[16:24], uint64(hdr.DictOff))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(hdr.DictSize))
	if _, err := f.Write(footer); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}

	if _, err := f.WriteAt(encodeHeader(hdr), 0); err != nil {
		return fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming segment file: %w", err)
	}
	return nil
}

func encodeHeader(hdr header) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], hdr.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], hdr.Version)
	binary.LittleEndian.PutUint32(buf[8:12], hdr.TermCount)
	binary.LittleEndian.PutUint32(buf[12:16], hdr.DocCount)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(hdr.CreatedAt))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(hdr.PostOff))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(hdr.PostSize))
	binary.LittleEndian.PutUint64(buf[40:48], uint64(hdr.StoredOff))
	binary.LittleEndian.PutUint64(buf[48:56], uint64(hdr.StoredSize))
	binary.LittleEndian.PutUint64(buf[56:64], uint64(hdr.DocTabOff))
	binary.LittleEndian.PutUint64(buf[64:72], uint64(hdr.DocTabSize))
	binary.LittleEndian.PutUint64(buf[72:80], uint64(hdr.LensOff))
	binary.LittleEndian.PutUint64(buf[80:88], uint64(hdr.LensSize))
	binary.LittleEndian.PutUint64(buf[88:96], uint64(hdr.DictOff))
	binary.LittleEndian.PutUint64(buf[96:104], uint64(hdr.DictSize))
	return buf
}
