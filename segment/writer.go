package segment

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/hupe1980/sparsedex/internal/fs"
	"github.com/hupe1980/sparsedex/internal/hash"
	"github.com/hupe1980/sparsedex/model"
	"github.com/hupe1980/sparsedex/posting"
	"github.com/hupe1980/sparsedex/resource"
	"github.com/hupe1980/sparsedex/sdxerr"
	"github.com/hupe1980/sparsedex/weight"
)

// WriteRequest is the sealed form of a SegmentBuilder's accumulated
// dimensions, ready to be written to disk.
type WriteRequest struct {
	ElementType weight.Type
	Compressed  bool
	Dims        map[model.DimID]*posting.Sealed
	NumRows     uint32
}

// Write seals req to a new segment file under dir, following the seal
// protocol of spec §4.5: write to a temp file, fsync, rename to its final
// name. id is the segment id the caller (the orchestrator, via its
// manifest's monotonic counter) has already assigned; the uuid in the
// returned file name is purely a collision-free name, not the segment's
// identity, so "oldest first" tier selection can rely on id ordering. rc
// may be nil; when set, the temp-file write is throttled against its IO
// budget so a large seal or merge output can't starve foreground reads
// (spec §5 resource controls).
func Write(ctx context.Context, fsys fs.FileSystem, dir string, id model.SegmentID, req WriteRequest, rc *resource.Controller) (string, error) {
	name := fmt.Sprintf("segment-%s.idx", uuid.New().String())
	path := filepath.Join(dir, name)
	tmpPath := path + ".tmp"

	data, err := encode(req)
	if err != nil {
		return "", sdxerr.InvalidArgument("segment encode failed", err)
	}

	f, err := fsys.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return "", sdxerr.IOError("segment temp file create failed", err)
	}

	var w io.Writer = f
	if rc != nil {
		w = resource.NewRateLimitedWriter(f, rc, ctx)
	}
	if _, err := w.Write(data); err != nil {
		f.Close()
		fsys.Remove(tmpPath)
		return "", sdxerr.IOError("segment write failed", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		fsys.Remove(tmpPath)
		return "", sdxerr.IOError("segment fsync failed", err)
	}
	if err := f.Close(); err != nil {
		fsys.Remove(tmpPath)
		return "", sdxerr.IOError("segment close failed", err)
	}
	if err := fsys.Rename(tmpPath, path); err != nil {
		fsys.Remove(tmpPath)
		return "", sdxerr.IOError("segment rename failed", err)
	}

	return name, nil
}

// encode produces the full byte image of a sealed segment per spec §4.4.
func encode(req WriteRequest) ([]byte, error) {
	dimIDs := make([]model.DimID, 0, len(req.Dims))
	for d := range req.Dims {
		dimIDs = append(dimIDs, d)
	}
	sort.Slice(dimIDs, func(i, j int) bool { return dimIDs[i] < dimIDs[j] })

	var quant weight.QuantParams
	if req.ElementType == weight.TypeU8 {
		var all []float32
		for _, d := range dimIDs {
			all = append(all, req.Dims[d].Weights...)
		}
		quant = weight.ComputeQuantParams(all)
	}

	dirSize := len(dimIDs) * DimEntrySize
	entries := make([]DimEntry, len(dimIDs))
	regions := make([][]byte, len(dimIDs))
	offset := uint64(0)

	for i, d := range dimIDs {
		sealed := req.Dims[d]
		region, err := encodeList(sealed, req.ElementType, req.Compressed, quant)
		if err != nil {
			return nil, err
		}
		regions[i] = region
		entries[i] = DimEntry{
			DimID:      uint32(d),
			ListOffset: offset,
			ListLen:    uint32(len(sealed.RowIDs)),
			MaxWeight:  sealed.MaxWeight,
		}
		offset += uint64(len(region))
	}

	total := HeaderSize + dirSize + int(offset) + FooterSize
	buf := make([]byte, total)

	pos := 0
	copy(buf[pos:], Magic[:])
	pos += 8
	binary.LittleEndian.PutUint32(buf[pos:], FormatVersion)
	pos += 4
	var flags uint32
	if req.Compressed {
		flags |= FlagCompressed
	}
	binary.LittleEndian.PutUint32(buf[pos:], flags)
	pos += 4
	buf[pos] = byte(req.ElementType)
	pos++
	if req.Compressed {
		buf[pos] = 1
	}
	pos++
	binary.LittleEndian.PutUint32(buf[pos:], math.Float32bits(quant.Min))
	pos += 4
	binary.LittleEndian.PutUint32(buf[pos:], math.Float32bits(quant.Step))
	pos += 4
	pos += 6 // padding
	binary.LittleEndian.PutUint32(buf[pos:], uint32(len(dimIDs)))
	pos += 4
	binary.LittleEndian.PutUint32(buf[pos:], req.NumRows)
	pos += 4

	for _, e := range entries {
		binary.LittleEndian.PutUint32(buf[pos:], e.DimID)
		pos += 4
		binary.LittleEndian.PutUint64(buf[pos:], e.ListOffset)
		pos += 8
		binary.LittleEndian.PutUint32(buf[pos:], e.ListLen)
		pos += 4
		binary.LittleEndian.PutUint32(buf[pos:], math.Float32bits(e.MaxWeight))
		pos += 4
	}

	for _, r := range regions {
		copy(buf[pos:], r)
		pos += len(r)
	}

	sum := hash.CRC32C(buf[:pos])
	binary.LittleEndian.PutUint32(buf[pos:], sum)

	return buf, nil
}

// encodeList produces one posting list's on-disk bytes.
//
// Plain layout: row-ids as little-endian u32 followed by contiguous
// weights (spec §4.2).
//
// Compressed layout (spec §4.3): for each full block of 128 row-ids,
// [min_row_id:4][bit_width:1][packed deltas, ceil(bit_width*127/8) bytes],
// followed by the uncompressed tail row-ids (u32 each), followed by
// contiguous weights for all entries (weights are never bit-packed). The
// number of full blocks and tail length are both derivable from the dim
// directory's list_len, so no extra count is stored in the region itself.
func encodeList(s *posting.Sealed, elemType weight.Type, compressed bool, quant weight.QuantParams) ([]byte, error) {
	n := len(s.RowIDs)
	weightsBytes, err := encodeWeights(s.Weights, elemType, quant)
	if err != nil {
		return nil, err
	}

	if !compressed {
		rowBytes := make([]byte, n*4)
		for i, r := range s.RowIDs {
			binary.LittleEndian.PutUint32(rowBytes[i*4:], uint32(r))
		}
		out := make([]byte, 0, len(rowBytes)+len(weightsBytes))
		out = append(out, rowBytes...)
		out = append(out, weightsBytes...)
		return out, nil
	}

	out := make([]byte, 0, n*4+len(weightsBytes))
	numFull := n / posting.BlockSize
	for bi := 0; bi < numFull; bi++ {
		block := s.RowIDs[bi*posting.BlockSize : (bi+1)*posting.BlockSize]
		minID, bitWidth, packed := packFullBlock(block)
		var hdr [5]byte
		binary.LittleEndian.PutUint32(hdr[:4], minID)
		hdr[4] = bitWidth
		out = append(out, hdr[:]...)
		out = append(out, packed...)
	}
	for _, r := range s.RowIDs[numFull*posting.BlockSize:] {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(r))
		out = append(out, b[:]...)
	}
	out = append(out, weightsBytes...)
	return out, nil
}

// packFullBlock bit-packs a full block of posting.BlockSize ascending row
// ids as (block-minimum, per-entry delta from the minimum), storing only
// the 127 deltas after the implicit first entry.
func packFullBlock(rowIDs []model.RowID) (minID uint32, bitWidth uint8, packed []byte) {
	min := rowIDs[0]
	var maxDelta model.RowID
	for _, r := range rowIDs[1:] {
		if d := r - min; d > maxDelta {
			maxDelta = d
		}
	}
	bw := bitsNeeded(uint32(maxDelta))
	totalBits := bw * (len(rowIDs) - 1)
	packed = make([]byte, (totalBits+7)/8)
	for i := 1; i < len(rowIDs); i++ {
		delta := uint32(rowIDs[i] - min)
		writeBitsAt(packed, uint64(bw)*uint64(i-1), bw, delta)
	}
	return uint32(min), uint8(bw), packed
}

func writeBitsAt(packed []byte, bitPos uint64, bitWidth int, v uint32) {
	for b := 0; b < bitWidth; b++ {
		if v&(1<<b) != 0 {
			bp := bitPos + uint64(b)
			packed[bp/8] |= 1 << (bp % 8)
		}
	}
}

func bitsNeeded(v uint32) int {
	n := 0
	for v > 0 {
		n++
		v >>= 1
	}
	if n == 0 {
		n = 1
	}
	return n
}

func encodeWeights(weights []float32, elemType weight.Type, quant weight.QuantParams) ([]byte, error) {
	switch elemType {
	case weight.TypeF32:
		out := make([]byte, len(weights)*4)
		for i, w := range weights {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(w))
		}
		return out, nil
	case weight.TypeF16:
		out := make([]byte, len(weights)*2)
		for i, w := range weights {
			binary.LittleEndian.PutUint16(out[i*2:], weight.EncodeF16(w))
		}
		return out, nil
	case weight.TypeU8:
		out := make([]byte, len(weights))
		for i, w := range weights {
			out[i] = quant.Quantize(w)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("segment: unknown element type %v", elemType)
	}
}
