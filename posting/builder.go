package posting

import (
	"fmt"
	"math"
	"sort"

	"github.com/hupe1980/sparsedex/model"
)

// Builder accumulates (row_id, weight) pairs for one dimension while a
// segment is being built. Row ids may arrive out of order across vectors
// (the caller only guarantees dim-ascending order *within* one vector), so
// Builder does not enforce ascending insertion; ordering and uniqueness are
// enforced once, at Seal.
type Builder struct {
	rowIDs  []model.RowID
	weights []float32
}

// Add appends one entry in arrival order. NaN weights must be rejected by
// the caller before reaching here (spec: NaN is an InvalidArgument at insert
// time, never silently stored).
func (b *Builder) Add(row model.RowID, weight float32) {
	b.rowIDs = append(b.rowIDs, row)
	b.weights = append(b.weights, weight)
}

// Len returns the number of accumulated entries (including any duplicates
// not yet rejected by Seal).
func (b *Builder) Len() int { return len(b.rowIDs) }

// BytesEstimate returns a rough in-memory size estimate used by the
// SegmentBuilder's resource threshold check.
func (b *Builder) BytesEstimate() int64 {
	return int64(len(b.rowIDs)) * (4 + 4)
}

// Sealed is the sorted, deduplicated, max-weight-annotated form of one
// dimension's posting list, ready to be written to disk either plain or
// bit-packed compressed.
type Sealed struct {
	RowIDs    []model.RowID
	Weights   []float32
	MaxWeight float32
}

// Seal sorts entries by row id, rejects duplicate row ids within the
// dimension, and computes the running maximum weight.
func (b *Builder) Seal() (*Sealed, error) {
	n := len(b.rowIDs)
	if n == 0 {
		return &Sealed{}, nil
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return b.rowIDs[idx[i]] < b.rowIDs[idx[j]] })

	s := &Sealed{
		RowIDs:  make([]model.RowID, n),
		Weights: make([]float32, n),
	}
	maxW := float32(math.Inf(-1))
	for out, i := range idx {
		row := b.rowIDs[i]
		if out > 0 && s.RowIDs[out-1] == row {
			return nil, fmt.Errorf("posting: duplicate row id %d in dimension", row)
		}
		s.RowIDs[out] = row
		w := b.weights[i]
		s.Weights[out] = w
		if w > maxW {
			maxW = w
		}
	}
	s.MaxWeight = maxW
	return s, nil
}

// Merge k-way merges already-sealed, sorted lists (from segments being
// merged) into one Sealed list sorted by row id. Row ids are unique within
// a single source segment by invariant; duplicates across sources are not
// checked.
func Merge(sources ...*Sealed) *Sealed {
	type cursor struct {
		s   *Sealed
		pos int
	}
	cursors := make([]*cursor, 0, len(sources))
	total := 0
	for _, s := range sources {
		if s != nil && len(s.RowIDs) > 0 {
			cursors = append(cursors, &cursor{s: s})
			total += len(s.RowIDs)
		}
	}

	out := &Sealed{
		RowIDs:  make([]model.RowID, 0, total),
		Weights: make([]float32, 0, total),
	}
	maxW := float32(math.Inf(-1))

	for len(cursors) > 0 {
		best := 0
		for i := 1; i < len(cursors); i++ {
			if cursors[i].s.RowIDs[cursors[i].pos] < cursors[best].s.RowIDs[cursors[best].pos] {
				best = i
			}
		}
		c := cursors[best]
		row := c.s.RowIDs[c.pos]
		w := c.s.Weights[c.pos]
		out.RowIDs = append(out.RowIDs, row)
		out.Weights = append(out.Weights, w)
		if w > maxW {
			maxW = w
		}
		c.pos++
		if c.pos >= len(c.s.RowIDs) {
			cursors = append(cursors[:best], cursors[best+1:]...)
		}
	}
	if len(out.RowIDs) > 0 {
		out.MaxWeight = maxW
	}
	return out
}
