package segment

import (
	"context"
	"sync"

	"github.com/hupe1980/sparsedex/internal/fs"
	"github.com/hupe1980/sparsedex/model"
	"github.com/hupe1980/sparsedex/posting"
	"github.com/hupe1980/sparsedex/resource"
	"github.com/hupe1980/sparsedex/sdxerr"
	"github.com/hupe1980/sparsedex/weight"
)

// Default seal thresholds (spec §4.5: "e.g., 1M entries or 64 MiB").
const (
	DefaultSealThresholdEntries = 1_000_000
	DefaultSealThresholdBytes   = 64 << 20
)

// BuilderConfig controls one Builder's seal thresholds and output format.
type BuilderConfig struct {
	ElementType     weight.Type
	Compressed      bool
	ThresholdEntries int64
	ThresholdBytes   int64
}

// Builder accumulates inserted sparse vectors into a per-dimension
// posting.Builder map. Safe for concurrent use: every method takes the
// builder's own mutex.
type Builder struct {
	cfg BuilderConfig

	mu      sync.Mutex
	dims    map[model.DimID]*posting.Builder
	numRows uint32
	entries int64
	bytes   int64
}

// NewBuilder creates an empty Builder.
func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.ThresholdEntries <= 0 {
		cfg.ThresholdEntries = DefaultSealThresholdEntries
	}
	if cfg.ThresholdBytes <= 0 {
		cfg.ThresholdBytes = DefaultSealThresholdBytes
	}
	return &Builder{cfg: cfg, dims: make(map[model.DimID]*posting.Builder)}
}

// Insert adds one sparse vector under row. The caller has already
// validated the vector (sorted, unique dims, finite weights); Insert
// itself does not re-validate, matching the orchestrator's boundary-check
// convention (validation happens once, at the public API edge).
func (b *Builder) Insert(row model.RowID, vec model.SparseVector) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range vec {
		pb, ok := b.dims[e.DimID]
		if !ok {
			pb = &posting.Builder{}
			b.dims[e.DimID] = pb
		}
		pb.Add(row, e.Weight)
	}
	b.numRows++
	b.entries += int64(len(vec))
	b.bytes += int64(len(vec)) * 8
}

// ShouldSeal reports whether the builder has crossed either resource
// threshold and should be sealed even without an explicit commit.
func (b *Builder) ShouldSeal() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entries >= b.cfg.ThresholdEntries || b.bytes >= b.cfg.ThresholdBytes
}

// Empty reports whether the builder has accumulated any rows.
func (b *Builder) Empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.numRows == 0
}

// Seal runs the full seal protocol (spec §4.5 steps 1-7, steps 4-6 handled
// by Write): sort each dim's entries, reject duplicate row ids, compute
// max weights, and
// write the sealed segment to dir, under the orchestrator-assigned id. On
// any failure the temp file is removed (handled inside Write) and no
// partial segment is registered. rc may be nil to skip IO throttling.
func (b *Builder) Seal(ctx context.Context, fsys fs.FileSystem, dir string, id model.SegmentID, rc *resource.Controller) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sealedDims := make(map[model.DimID]*posting.Sealed, len(b.dims))
	for d, pb := range b.dims {
		sealed, err := pb.Seal()
		if err != nil {
			return "", sdxerr.InvalidArgument("posting list seal failed", err)
		}
		sealedDims[d] = sealed
	}

	name, err := Write(ctx, fsys, dir, id, WriteRequest{
		ElementType: b.cfg.ElementType,
		Compressed:  b.cfg.Compressed,
		Dims:        sealedDims,
		NumRows:     b.numRows,
	}, rc)
	if err != nil {
		return "", err
	}

	b.dims = make(map[model.DimID]*posting.Builder)
	b.numRows = 0
	b.entries = 0
	b.bytes = 0
	return name, nil
}
