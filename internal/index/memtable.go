package index

import (
	"sort"
	"sync"
)

// TermOccurrence is one analyzed token occurrence handed to the memtable.
type TermOccurrence struct {
	Field    string
	Term     string
	Position int
}

// Memtable is the in-memory buffer for the segment under construction.
// Documents receive ordinals in insertion order, so every postings list is
// naturally sorted by ordinal. A memtable is flushed into exactly one
// immutable segment and then reset.
type Memtable struct {
	mu       sync.RWMutex
	postings map[string]PostingList
	stored   []map[string]string
	docLens  []int
	dead     map[int]struct{}
	docCount int
	size     int64
}

// NewMemtable creates an empty buffer.
func NewMemtable() *Memtable {
	return &Memtable{
		postings: make(map[string]PostingList),
		dead:     make(map[int]struct{}),
	}
}

// Add buffers one document and returns its ordinal. stored holds only the
// stored fields; terms holds every analyzed token occurrence of the indexed
// fields; docLen is the total token count used for length normalisation.
func (m *Memtable) Add(stored map[string]string, terms []TermOccurrence, docLen int) int {
	perTerm := make(map[string]*Posting)
	for _, occ := range terms {
		key := TermKey(occ.Field, occ.Term)
		p, ok := perTerm[key]
		if !ok {
			p = &Posting{Positions: make([]int, 0, 4)}
			perTerm[key] = p
		}
		p.Freq++
		p.Positions = append(p.Positions, occ.Position)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ordinal := m.docCount
	for key, posting := range perTerm {
		posting.Doc = ordinal
		m.postings[key] = append(m.postings[key], *posting)
		m.size += int64(len(key) + len(posting.Positions)*8 + 64)
	}
	for name, value := range stored {
		m.size += int64(len(name) + len(value))
	}
	m.stored = append(m.stored, stored)
	m.docLens = append(m.docLens, docLen)
	m.docCount++
	return ordinal
}

// Lookup returns the ordinals of buffered documents containing (field, term).
func (m *Memtable) Lookup(field, term string) []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list, ok := m.postings[TermKey(field, term)]
	if !ok {
		return nil
	}
	ordinals := make([]int, 0, len(list))
	for _, p := range list {
		ordinals = append(ordinals, p.Doc)
	}
	return ordinals
}

// MarkDead shadows a buffered document so the flushed segment starts with it
// already deleted. Used when a later update in the same buffer replaces an
// earlier add with the same key.
func (m *Memtable) MarkDead(ordinal int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ordinal >= 0 && ordinal < m.docCount {
		m.dead[ordinal] = struct{}{}
	}
}

// Dead returns the shadowed ordinals in ascending order.
func (m *Memtable) Dead() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int, 0, len(m.dead))
	for ord := range m.dead {
		out = append(out, ord)
	}
	sort.Ints(out)
	return out
}

// Snapshot returns every term entry sorted by (field, term), each postings
// list sorted by ordinal. This is the serialisation order of the segment
// dictionary.
func (m *Memtable) Snapshot() []TermEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.postings))
	for key, list := range m.postings {
		field, term := SplitTermKey(key)
		postings := make(PostingList, len(list))
		copy(postings, list)
		entries = append(entries, TermEntry{
			Field:    field,
			Term:     term,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Field != entries[j].Field {
			return entries[i].Field < entries[j].Field
		}
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// StoredDocs returns the stored-field records in ordinal order.
func (m *Memtable) StoredDocs() []map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]map[string]string, len(m.stored))
	copy(out, m.stored)
	return out
}

// DocLens returns the per-document token counts in ordinal order.
func (m *Memtable) DocLens() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int, len(m.docLens))
	copy(out, m.docLens)
	return out
}

// DocCount returns the number of buffered documents.
func (m *Memtable) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docCount
}

// Size returns the approximate heap footprint of the buffer in bytes.
func (m *Memtable) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// Reset clears the buffer after a flush.
func (m *Memtable) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postings = make(map[string]PostingList)
	m.stored = nil
	m.docLens = nil
	m.dead = make(map[int]struct{})
	m.docCount = 0
	m.size = 0
}
