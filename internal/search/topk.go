package search

import "container/heap"

// topK keeps the best k scored documents while candidates stream in. It is a
// min-heap on (score, then descending doc id) so the weakest hit sits at the
// root and falls out first.
type topK struct {
	limit int
	docs  scoreDocHeap
}

func newTopK(limit int) *topK {
	t := &topK{limit: limit}
	heap.Init(&t.docs)
	return t
}

func (t *topK) add(doc ScoreDoc) {
	if t.limit <= 0 {
		return
	}
	heap.Push(&t.docs, doc)
	if t.docs.Len() > t.limit {
		heap.Pop(&t.docs)
	}
}

// drain empties the heap into a slice ordered best-first: descending score,
// ascending doc id on ties.
func (t *topK) drain() []ScoreDoc {
	result := make([]ScoreDoc, t.docs.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&t.docs).(ScoreDoc)
	}
	return result
}

type scoreDocHeap []ScoreDoc

func (h scoreDocHeap) Len() int { return len(h) }

func (h scoreDocHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].Doc > h[j].Doc
}

func (h scoreDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoreDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ScoreDoc))
}

func (h *scoreDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
