// Package filter implements model.RowFilter over a RoaringBitmap, letting a
// search restrict candidate generation to a caller-supplied row-id set
// without materializing per-segment intersections up front.
package filter

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/sparsedex/model"
)

// Bitmap is a RowFilter backed by a compressed roaring bitmap of row ids.
type Bitmap struct {
	bits *roaring.Bitmap
}

// New returns an empty Bitmap.
func New() *Bitmap {
	return &Bitmap{bits: roaring.New()}
}

// FromRowIDs builds a Bitmap containing exactly the given row ids.
func FromRowIDs(rows []model.RowID) *Bitmap {
	b := New()
	for _, r := range rows {
		b.Add(r)
	}
	return b
}

// Add inserts row into the filter.
func (b *Bitmap) Add(row model.RowID) {
	b.bits.Add(uint32(row))
}

// Remove deletes row from the filter, if present.
func (b *Bitmap) Remove(row model.RowID) {
	b.bits.Remove(uint32(row))
}

// Contains implements model.RowFilter.
func (b *Bitmap) Contains(row model.RowID) bool {
	return b.bits.Contains(uint32(row))
}

// Len returns the number of distinct row ids in the filter.
func (b *Bitmap) Len() int {
	return int(b.bits.GetCardinality())
}

// And intersects b with other, mutating b in place.
func (b *Bitmap) And(other *Bitmap) {
	b.bits.And(other.bits)
}

// Or unions b with other, mutating b in place.
func (b *Bitmap) Or(other *Bitmap) {
	b.bits.Or(other.bits)
}

var _ model.RowFilter = (*Bitmap)(nil)
