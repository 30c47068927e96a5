package segment

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"sort"

	"github.com/hupe1980/sparsedex/internal/hash"
	"github.com/hupe1980/sparsedex/internal/mmap"
	"github.com/hupe1980/sparsedex/model"
	"github.com/hupe1980/sparsedex/posting"
	"github.com/hupe1980/sparsedex/sdxerr"
	"github.com/hupe1980/sparsedex/weight"
)

// Reader is a mmap-backed, read-only view of one sealed segment file. The
// dim directory is parsed eagerly at Open (it is sorted, so a binary
// search over it is O(log num_dims)). Each Lookup builds its posting list
// anew: weights are sliced out of the mapping, while row ids are decoded
// into a freshly allocated slice (plain lists) or into a tail slice plus
// block metadata (compressed lists); nothing is cached between Lookups.
type Reader struct {
	id     model.SegmentID
	mapped *mmap.File
	header Header
	dirs   []DimEntry // sorted by DimID
	region []byte     // posting-list region, file-relative offset HeaderSize+dirSize
}

// Open mmaps the segment file at path, validates its header and crc32
// footer, and parses its dim directory.
func Open(id model.SegmentID, path string) (*Reader, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, sdxerr.IOError("segment mmap open failed", err)
	}

	data := m.Data
	if len(data) < HeaderSize+FooterSize {
		m.Close()
		return nil, sdxerr.Corruption("segment file too small", nil)
	}
	if !bytes.Equal(data[:8], Magic[:]) {
		m.Close()
		return nil, sdxerr.Corruption("segment bad magic", nil)
	}

	footerPos := len(data) - FooterSize
	want := binary.LittleEndian.Uint32(data[footerPos:])
	got := hash.CRC32C(data[:footerPos])
	if want != got {
		m.Close()
		return nil, sdxerr.Corruption("segment crc32 mismatch", nil)
	}

	pos := 8
	version := binary.LittleEndian.Uint32(data[pos:])
	pos += 4
	if version != FormatVersion {
		m.Close()
		return nil, sdxerr.Corruption("segment unsupported version", nil)
	}
	flags := binary.LittleEndian.Uint32(data[pos:])
	pos += 4
	elemType := weight.Type(data[pos])
	pos++
	compressed := data[pos] != 0
	pos++
	quantMin := math.Float32frombits(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4
	quantStep := math.Float32frombits(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4
	pos += 6 // padding
	numDims := binary.LittleEndian.Uint32(data[pos:])
	pos += 4
	numRows := binary.LittleEndian.Uint32(data[pos:])
	pos += 4

	dirs := make([]DimEntry, numDims)
	prevID := uint32(0)
	for i := uint32(0); i < numDims; i++ {
		d := DimEntry{
			DimID:      binary.LittleEndian.Uint32(data[pos:]),
			ListOffset: binary.LittleEndian.Uint64(data[pos+4:]),
			ListLen:    binary.LittleEndian.Uint32(data[pos+12:]),
			MaxWeight:  math.Float32frombits(binary.LittleEndian.Uint32(data[pos+16:])),
		}
		if i > 0 && d.DimID <= prevID {
			m.Close()
			return nil, sdxerr.Corruption("segment dim_directory out of order", nil)
		}
		prevID = d.DimID
		dirs[i] = d
		pos += DimEntrySize
	}

	region := data[pos:footerPos]

	return &Reader{
		id:     id,
		mapped: m,
		header: Header{
			Version:     version,
			Flags:       flags,
			ElementType: elemType,
			Compressed:  compressed,
			Quant:       weight.QuantParams{Min: quantMin, Step: quantStep},
			NumDims:     numDims,
			NumRows:     numRows,
		},
		dirs:   dirs,
		region: region,
	}, nil
}

// ID returns the segment's id.
func (r *Reader) ID() model.SegmentID { return r.id }

// Header returns the parsed fixed header.
func (r *Reader) Header() Header { return r.header }

// NumRows returns the row count recorded at seal time.
func (r *Reader) NumRows() uint32 { return r.header.NumRows }

// Close unmaps the segment file.
func (r *Reader) Close() error {
	if r == nil || r.mapped == nil {
		return nil
	}
	return r.mapped.Close()
}

// Lookup returns the posting.List for dim, or nil if the segment has no
// entries for that dimension.
func (r *Reader) Lookup(dim model.DimID) posting.List {
	i := sort.Search(len(r.dirs), func(i int) bool { return r.dirs[i].DimID >= uint32(dim) })
	if i >= len(r.dirs) || r.dirs[i].DimID != uint32(dim) {
		return nil
	}
	e := r.dirs[i]
	listBytes := r.region[e.ListOffset:]
	if i+1 < len(r.dirs) {
		listBytes = r.region[e.ListOffset:r.dirs[i+1].ListOffset]
	}

	decode := decoderFor(r.header.ElementType, r.header.Quant)
	elemSize := r.header.ElementType.BytesPerWeight()

	if !r.header.Compressed {
		rowBytes := listBytes[:4*e.ListLen]
		rowIDs := decodeRowIDs(rowBytes, int(e.ListLen))
		weights := listBytes[4*e.ListLen:]
		return posting.NewPlainList(rowIDs, weights, elemSize, decode, e.MaxWeight)
	}

	return decodeCompressedList(listBytes, int(e.ListLen), elemSize, decode, e.MaxWeight)
}

// Dimensions returns the sorted list of dimension ids present in the
// segment.
func (r *Reader) Dimensions() []model.DimID {
	out := make([]model.DimID, len(r.dirs))
	for i, d := range r.dirs {
		out[i] = model.DimID(d.DimID)
	}
	return out
}

func decodeRowIDs(b []byte, n int) []model.RowID {
	out := make([]model.RowID, n)
	for i := 0; i < n; i++ {
		out[i] = model.RowID(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func decodeCompressedList(region []byte, n, elemSize int, decode posting.WeightDecoder, maxWeight float32) *posting.CompressedList {
	numFull := n / posting.BlockSize
	tailCount := n % posting.BlockSize

	blocks := make([]posting.BlockMeta, numFull)
	pos := 0
	for bi := 0; bi < numFull; bi++ {
		minID := binary.LittleEndian.Uint32(region[pos:])
		bitWidth := region[pos+4]
		packedBits := int(bitWidth) * (posting.BlockSize - 1)
		packedBytes := (packedBits + 7) / 8
		blocks[bi] = posting.BlockMeta{
			MinRowID:  model.RowID(minID),
			BitWidth:  bitWidth,
			BitOffset: uint64(pos+5) * 8,
			Count:     posting.BlockSize,
		}
		pos += 5 + packedBytes
	}

	tail := make([]model.RowID, tailCount)
	for i := 0; i < tailCount; i++ {
		tail[i] = model.RowID(binary.LittleEndian.Uint32(region[pos:]))
		pos += 4
	}

	weights := region[pos:]
	return posting.NewCompressedList(blocks, region, tail, weights, elemSize, decode, maxWeight)
}

func decoderFor(elemType weight.Type, quant weight.QuantParams) posting.WeightDecoder {
	switch elemType {
	case weight.TypeF32:
		return posting.DecodeF32
	case weight.TypeF16:
		return func(region []byte, i int) float32 {
			b := binary.LittleEndian.Uint16(region[i*2:])
			return weight.DecodeF16(b)
		}
	case weight.TypeU8:
		return func(region []byte, i int) float32 {
			return quant.Dequantize(region[i])
		}
	default:
		return posting.DecodeF32
	}
}

// FileName joins an index directory and a segment's path relative to it.
func FileName(dir, relPath string) string {
	return filepath.Join(dir, relPath)
}
