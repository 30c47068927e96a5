package posting

import (
	"encoding/binary"
	"unsafe"

	"github.com/hupe1980/sparsedex/model"
)

// WeightDecoder reads the float32 value of the weight stored at byte offset
// i*elemSize within a contiguous weight region. Bound, at segment-open
// time, to the index's element type (and, for u8, the segment's
// quantization parameters).
type WeightDecoder func(region []byte, i int) float32

// DecodeF32 reads a little-endian float32 at slot i.
func DecodeF32(region []byte, i int) float32 {
	bits := binary.LittleEndian.Uint32(region[i*4:])
	return *(*float32)(unsafe.Pointer(&bits))
}

// PlainList is the read-side view of a plain (contiguous) posting list: a
// row-id array plus a contiguous weight region, both zero-copy slices into
// a segment's mmap region.
type PlainList struct {
	RowIDs   []model.RowID // ascending
	Weights  []byte        // contiguous, ElemSize bytes per entry
	ElemSize int
	Decode   WeightDecoder
	maxW     float32
}

// NewPlainList wraps already-sliced mmap regions as a List. maxWeight is
// the value recorded in the segment's dim directory at seal time, trusted
// as-is rather than recomputed on every open.
func NewPlainList(rowIDs []model.RowID, weights []byte, elemSize int, decode WeightDecoder, maxWeight float32) *PlainList {
	return &PlainList{RowIDs: rowIDs, Weights: weights, ElemSize: elemSize, Decode: decode, maxW: maxWeight}
}

func (p *PlainList) Len() int             { return len(p.RowIDs) }
func (p *PlainList) MaxWeight() float32   { return p.maxW }

func (p *PlainList) Cursor() Cursor {
	return &plainCursor{list: p}
}

type plainCursor struct {
	list *PlainList
	pos  int
}

func (c *plainCursor) Done() bool { return c.pos >= len(c.list.RowIDs) }

func (c *plainCursor) RowID() model.RowID {
	return c.list.RowIDs[c.pos]
}

func (c *plainCursor) Weight() float32 {
	return c.list.Decode(c.list.Weights, c.pos)
}

func (c *plainCursor) Next() bool {
	c.pos++
	return !c.Done()
}

func (c *plainCursor) SeekTo(target model.RowID) bool {
	n := len(c.list.RowIDs)
	c.pos = gallopSeek(c.pos, n, target, func(i int) model.RowID { return c.list.RowIDs[i] })
	return !c.Done()
}

var _ List = (*PlainList)(nil)
