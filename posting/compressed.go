package posting

import (
	"github.com/hupe1980/sparsedex/model"
)

// BlockSize is the number of entries per bit-packed delta block (spec §4.3).
// The final, possibly-partial block is stored uncompressed in Tail instead
// of being padded, so a list's length need not be a multiple of BlockSize.
const BlockSize = 128

// BlockMeta describes one full, bit-packed block of BlockSize row ids.
type BlockMeta struct {
	MinRowID model.RowID // first (smallest) row id in the block
	BitWidth uint8       // bits needed to hold the largest delta in the block
	BitOffset uint64     // bit offset of this block's packed data within Packed
	Count    int         // always BlockSize for a full block
}

// CompressedList is the read-side view of a bit-packed, delta-encoded
// posting list: zero or more full blocks of BlockSize row ids packed into
// Packed, plus an uncompressed Tail holding the final partial block.
// Weights are kept contiguous regardless of row-id encoding (spec §4.3:
// "weights are never delta-encoded").
type CompressedList struct {
	Blocks  []BlockMeta
	Packed  []byte // bit-packed deltas for all full blocks, back to back
	Tail    []model.RowID
	Weights []byte
	ElemSize int
	TailOffset int // index of Weights/Decode where the tail begins
	Decode  WeightDecoder
	maxW    float32
}

func NewCompressedList(blocks []BlockMeta, packed []byte, tail []model.RowID, weights []byte, elemSize int, decode WeightDecoder, maxWeight float32) *CompressedList {
	return &CompressedList{
		Blocks:     blocks,
		Packed:     packed,
		Tail:       tail,
		Weights:    weights,
		ElemSize:   elemSize,
		TailOffset: len(blocks) * BlockSize,
		Decode:     decode,
		maxW:       maxWeight,
	}
}

func (c *CompressedList) Len() int {
	return len(c.Blocks)*BlockSize + len(c.Tail)
}

func (c *CompressedList) MaxWeight() float32 { return c.maxW }

func (c *CompressedList) Cursor() Cursor {
	return &compressedCursor{list: c, blockIdx: -1}
}

// rowIDAt decodes the row id at a global index by unpacking just the delta
// it needs; used by the cursor's SeekTo without materializing a whole
// block when only one value is required.
func (c *CompressedList) rowIDAt(i int) model.RowID {
	if i >= c.TailOffset {
		return c.Tail[i-c.TailOffset]
	}
	blockIdx := i / BlockSize
	within := i % BlockSize
	b := c.Blocks[blockIdx]
	if within == 0 {
		return b.MinRowID
	}
	delta := readBits(c.Packed, b.BitOffset, int(b.BitWidth), within)
	return b.MinRowID + model.RowID(delta)
}

// readBits reads the `within`-th bitWidth-bit value starting at bitOffset.
func readBits(packed []byte, bitOffset uint64, bitWidth, within int) uint32 {
	bitPos := bitOffset + uint64(bitWidth)*uint64(within-1)
	var v uint32
	for b := 0; b < bitWidth; b++ {
		bp := bitPos + uint64(b)
		byteIdx := bp / 8
		bitIdx := bp % 8
		if packed[byteIdx]&(1<<bitIdx) != 0 {
			v |= 1 << b
		}
	}
	return v
}

type compressedCursor struct {
	list     *CompressedList
	pos      int
	blockIdx int // cached decoded block, -1 if none cached
	scratch  [BlockSize]model.RowID
}

func (c *compressedCursor) Done() bool { return c.pos >= c.list.Len() }

func (c *compressedCursor) ensureBlock() {
	if c.pos >= c.list.TailOffset {
		return
	}
	idx := c.pos / BlockSize
	if idx == c.blockIdx {
		return
	}
	b := c.list.Blocks[idx]
	c.scratch[0] = b.MinRowID
	for i := 1; i < b.Count; i++ {
		delta := readBits(c.list.Packed, b.BitOffset, int(b.BitWidth), i)
		c.scratch[i] = b.MinRowID + model.RowID(delta)
	}
	c.blockIdx = idx
}

func (c *compressedCursor) RowID() model.RowID {
	if c.pos >= c.list.TailOffset {
		return c.list.Tail[c.pos-c.list.TailOffset]
	}
	c.ensureBlock()
	return c.scratch[c.pos%BlockSize]
}

func (c *compressedCursor) Weight() float32 {
	return c.list.Decode(c.list.Weights, c.pos)
}

func (c *compressedCursor) Next() bool {
	c.pos++
	return !c.Done()
}

// SeekTo skips whole blocks using their minimum row id before falling back
// to within-block linear/binary search, avoiding unpacking blocks that
// cannot contain the target (spec §4.3 rationale for storing block minima).
func (c *compressedCursor) SeekTo(target model.RowID) bool {
	n := c.list.Len()
	if c.pos >= n {
		return false
	}

	startBlock := c.pos / BlockSize
	for bi := startBlock; bi < len(c.list.Blocks); bi++ {
		b := c.list.Blocks[bi]
		lastIdx := bi*BlockSize + b.Count - 1
		if c.list.rowIDAt(lastIdx) >= target {
			lo := bi * BlockSize
			if lo < c.pos {
				lo = c.pos
			}
			c.pos = gallopSeek(lo, bi*BlockSize+b.Count, target, c.list.rowIDAt)
			return !c.Done()
		}
	}

	// Not found within any full block; search the tail.
	lo := len(c.list.Blocks) * BlockSize
	if lo < c.pos {
		lo = c.pos
	}
	c.pos = gallopSeek(lo, n, target, c.list.rowIDAt)
	return !c.Done()
}

var _ List = (*CompressedList)(nil)
