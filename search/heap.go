// Package search implements top-k retrieval over one or more segments: a
// brute-force reference scan and a MaxScore-style pruning traversal that
// uses each queried dimension's cached maximum weight to skip postings
// that cannot enter the current top-k, plus the cross-segment heap merge
// that combines per-segment results into a single global top-k.
package search

import (
	"container/heap"
	"math"

	"github.com/hupe1980/sparsedex/model"
)

// topKHeap is a bounded min-heap of model.ScoredRow, keyed so the root is
// always the current weakest candidate: lower score first, and among
// equal scores, higher row id first (so Pop drops the "worse" tie,
// leaving the lower row id as the spec's deterministic tie-break winner).
type topKHeap []model.ScoredRow

func (h topKHeap) Len() int { return len(h) }
func (h topKHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].RowID > h[j].RowID
}
func (h topKHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *topKHeap) Push(x interface{}) { *h = append(*h, x.(model.ScoredRow)) }
func (h *topKHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// TopK accumulates the best k model.ScoredRow seen across one or more
// candidate streams.
type TopK struct {
	k int
	h topKHeap
}

// NewTopK creates a TopK bounded to k results. k<=0 means "keep nothing".
func NewTopK(k int) *TopK {
	return &TopK{k: k}
}

// Offer considers (row, score) for inclusion in the top-k, replacing the
// current weakest candidate if row scores higher (or ties with a lower
// row id).
func (t *TopK) Offer(row model.RowID, score float32) {
	if t.k <= 0 {
		return
	}
	if len(t.h) < t.k {
		heap.Push(&t.h, model.ScoredRow{RowID: row, Score: score})
		return
	}
	worst := t.h[0]
	if score > worst.Score || (score == worst.Score && row < worst.RowID) {
		t.h[0] = model.ScoredRow{RowID: row, Score: score}
		heap.Fix(&t.h, 0)
	}
}

// Threshold returns the current k-th best score, or negative infinity if
// fewer than k candidates have been offered (meaning every further
// candidate is still admissible). Used by the pruning engine to decide
// which dims remain essential.
func (t *TopK) Threshold() float32 {
	if len(t.h) < t.k || len(t.h) == 0 {
		return float32(math.Inf(-1))
	}
	return t.h[0].Score
}

// Len returns the number of candidates currently held.
func (t *TopK) Len() int { return len(t.h) }

// Results drains the heap into a slice sorted descending by score, ties
// broken by ascending row id (spec §4.8).
func (t *TopK) Results() []model.ScoredRow {
	out := make([]model.ScoredRow, len(t.h))
	cp := make(topKHeap, len(t.h))
	copy(cp, t.h)
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&cp).(model.ScoredRow)
	}
	return out
}
