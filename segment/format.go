// Package segment implements the immutable, mmap-backed on-disk segment
// format: a self-describing blob holding a sorted dimension directory and
// the concatenated per-dimension posting lists it indexes, sealed once by
// a SegmentBuilder and never rewritten afterward.
package segment

import "github.com/hupe1980/sparsedex/weight"

// Magic identifies a sparsedex segment file.
var Magic = [8]byte{'s', 'p', 's', 'e', 'g', 'm', 'n', 't'}

// FormatVersion is the on-disk format version written by this package.
const FormatVersion uint32 = 1

// Flag bits stored in the segment header.
const (
	FlagCompressed uint32 = 1 << 0
)

// Header mirrors the fixed-size portion of the on-disk layout (spec §4.4):
//
//	[magic:8][version:4][flags:4]
//	[element_type:1][compressed:1][quant_min:4][quant_step:4][_pad:6]
//	[num_dims:4][num_rows:4]
type Header struct {
	Version     uint32
	Flags       uint32
	ElementType weight.Type
	Compressed  bool
	Quant       weight.QuantParams
	NumDims     uint32
	NumRows     uint32
}

// HeaderSize is the fixed byte size of the header region, before the dim
// directory.
const HeaderSize = 8 + 4 + 4 + 1 + 1 + 4 + 4 + 6 + 4 + 4

// DimEntrySize is the byte size of one dim_directory record:
// dim_id:4, list_offset:8, list_len:4, max_weight:4.
const DimEntrySize = 4 + 8 + 4 + 4

// FooterSize is the trailing crc32 over every preceding byte.
const FooterSize = 4

// DimEntry is one record of the sorted dim directory.
type DimEntry struct {
	DimID     uint32
	ListOffset uint64 // relative to the start of the posting-list region
	ListLen    uint32 // number of entries in the list
	MaxWeight  float32
}
