// Package posting implements the per-dimension inverted-index posting list:
// a sorted sequence of (row_id, weight) entries in two physical encodings —
// plain (contiguous row-id and weight arrays) and compressed (row-ids
// delta-encoded and bit-packed in blocks of 128, weights kept contiguous).
//
// Builder-side accumulation happens in float32 regardless of the index's
// element type; the element-type encoding (f32/f16/u8) is applied once, at
// segment-seal time, when weights are written to their final byte width.
package posting

import "github.com/hupe1980/sparsedex/model"

// Cursor is a forward iterator over one dimension's posting list.
//
// Seek is O(log n) via binary search for large gaps and linear for small
// ones (galloping: exponential probe then binary search), so repeated small
// advances during a MaxScore-style traversal stay cheap.
type Cursor interface {
	// Done reports whether the cursor has exhausted the list.
	Done() bool

	// RowID returns the current entry's row id. Valid only if !Done().
	RowID() model.RowID

	// Weight returns the current entry's decoded weight. Valid only if !Done().
	Weight() float32

	// Next advances to the next entry, returning false if the list is now exhausted.
	Next() bool

	// SeekTo advances to the first entry with RowID >= target, returning
	// false if no such entry exists (the cursor is now Done()).
	SeekTo(target model.RowID) bool
}

// List is the common read-side interface satisfied by both physical
// encodings; MaxWeight is a cached field checked against the true maximum
// at seal time (spec invariant).
type List interface {
	Cursor() Cursor
	MaxWeight() float32
	Len() int
}

// gallopSeek performs exponential-probe-then-binary-search over [start, n)
// using at(i) to read the row id at index i. It returns the first index
// i >= start with at(i) >= target, or n if none.
func gallopSeek(start, n int, target model.RowID, at func(int) model.RowID) int {
	if start >= n {
		return n
	}
	if at(start) >= target {
		return start
	}

	step := 1
	prev := start
	cur := start + 1
	for cur < n && at(cur) < target {
		prev = cur
		step *= 2
		cur = start + step
	}
	if cur > n {
		cur = n
	}

	// Binary search within (prev, cur].
	lo, hi := prev, cur
	for lo < hi {
		mid := lo + (hi-lo)/2
		if at(mid) < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
