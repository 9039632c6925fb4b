package ftmodel

import "container/heap"

// Prediction is one scored candidate: label id and its log-probability (or
// Huffman-path score).
type Prediction struct {
	Score float32
	ID    int32
}

// candidate adds an insertion sequence number so ties break by insertion
// order.
type candidate struct {
	Prediction
	seq int
}

// minCandHeap is a container/heap min-heap over candidate.Score, used as
// the backing store for kBestHeap: popping the root evicts the current
// worst entry, the opposite of the max-heap a typical top-k walk reaches
// for.
type minCandHeap []candidate

func (h minCandHeap) Len() int { return len(h) }
func (h minCandHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].seq > h[j].seq
}
func (h minCandHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *minCandHeap) Push(x interface{}) {
	*h = append(*h, x.(candidate))
}
func (h *minCandHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// kBestHeap is a bounded double-ended priority queue: holds at most k
// entries, ordered by descending score; once full, a candidate scoring
// below the current minimum is discarded outright.
type kBestHeap struct {
	k    int
	h    minCandHeap
	next int
}

// newKBestHeap returns an empty heap bounded to k entries (k<=0 means
// unbounded).
func newKBestHeap(k int) *kBestHeap {
	return &kBestHeap{k: k}
}

// Len reports the number of entries currently held.
func (kb *kBestHeap) Len() int { return kb.h.Len() }

// Push offers a new (score,id) pair. If the heap is already at capacity
// and score is no better than the current minimum, the entry is dropped.
func (kb *kBestHeap) Push(score float32, id int32) {
	c := candidate{Prediction: Prediction{Score: score, ID: id}, seq: kb.next}
	kb.next++
	if kb.k > 0 && kb.h.Len() >= kb.k {
		if score <= kb.h[0].Score {
			return
		}
		heap.Pop(&kb.h)
	}
	heap.Push(&kb.h, c)
}

// Min returns the current minimum score held, and whether the heap is at
// capacity (so callers can skip obviously-worse candidates early).
func (kb *kBestHeap) Min() (float32, bool) {
	if kb.k <= 0 || kb.h.Len() < kb.k {
		return 0, false
	}
	return kb.h[0].Score, true
}

// Drain empties the heap into a slice ordered by descending score (ties
// broken by insertion order).
func (kb *kBestHeap) Drain() []Prediction {
	n := kb.h.Len()
	out := make([]Prediction, n)
	for i := n - 1; i >= 0; i-- {
		c := heap.Pop(&kb.h).(candidate)
		out[i] = c.Prediction
	}
	return out
}
