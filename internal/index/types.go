package index

// Posting records one document's occurrences of one term. Doc is the
// document's ordinal within its segment at build time; readers rebase it to
// a snapshot-wide id when merging segments.
type Posting struct {
	Doc       int   `json:"d"`
	Freq      int   `json:"f"`
	Positions []int `json:"p"`
}

// PostingList is a per-term list of postings, strictly increasing by Doc with
// no duplicates.
type PostingList []Posting

// TermEntry pairs a (field, term) with its postings list, the unit handed to
// the segment writer at flush time.
type TermEntry struct {
	Field    string
	Term     string
	Postings PostingList
}

// TermKey builds the composite key used to identify a term within one field.
// The NUL separator cannot appear in analyzed terms or field names.
func TermKey(field, term string) string {
	return field + "\x00" + term
}

// SplitTermKey is the inverse of TermKey.
func SplitTermKey(key string) (field, term string) {
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
