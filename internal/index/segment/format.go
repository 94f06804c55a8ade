// Package segment reads and writes immutable on-disk segment files. A
// segment file carries five sections between a fixed header and footer:
// postings lists, stored-field records, the stored-record offset table,
// per-document token counts, and the sorted term dictionary. Files are
// written once to a temp path and renamed into place; they are never
// modified afterwards.
package segment

// FileSuffix is the extension of segment files inside an index directory.
const FileSuffix = ".seg"

const (
	// MagicBytes identifies a valid segment file.
	MagicBytes    uint32 = 0x57495258
	FormatVersion uint32 = 1
	HeaderSize    int    = 128
	FooterSize    int    = 32
)

// header is the fixed-size block at the start of every segment file. All
// offsets are absolute except the postings offsets in the dictionary, which
// are relative to PostOff.
type header struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	CreatedAt  int64
	PostOff    int64
	PostSize   int64
	StoredOff  int64
	StoredSize int64
	DocTabOff  int64
	DocTabSize int64
	LensOff    int64
	LensSize   int64
	DictOff    int64
	DictSize   int64
}

// DictEntry maps a (field, term) pair to its postings slice in the file.
// Entries are serialised sorted by field, then term, with no duplicates.
type DictEntry struct {
	Field      string `json:"f"`
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

// docSpan locates one stored-field record inside the stored section.
type docSpan struct {
	Offset int64 `json:"o"`
	Len    int   `json:"l"`
}
