package merge

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/hupe1980/sparsedex/internal/fs"
	"github.com/hupe1980/sparsedex/manifest"
	"github.com/hupe1980/sparsedex/model"
	"github.com/hupe1980/sparsedex/posting"
	"github.com/hupe1980/sparsedex/resource"
	"github.com/hupe1980/sparsedex/sdxerr"
	"github.com/hupe1980/sparsedex/segment"
	"github.com/hupe1980/sparsedex/weight"
)

// Result describes the outcome of one merge run: the newly written
// segment and the source segments it supersedes. The caller (the
// orchestrator) publishes the new manifest and is responsible for
// deferring deletion of the superseded files until no search snapshot
// still references them (spec §4.7 step 5; §5 refcounted snapshots).
type Result struct {
	NewSegment manifest.SegmentInfo
	Superseded []manifest.SegmentInfo
}

// Merger executes the tiered merge policy against one index directory.
// At most one merge runs at a time; the caller serializes Run calls (the
// orchestrator does this with a single-flight background goroutine).
type Merger struct {
	FS          fs.FileSystem
	Dir         string
	Policy      TieredPolicy
	ElementType weight.Type
	Compressed  bool
	Resource    *resource.Controller
	Logger      *slog.Logger
}

// Plan selects the next merge, if any, without performing it.
func (m *Merger) Plan(segments []manifest.SegmentInfo) ([]manifest.SegmentInfo, int, bool) {
	return m.Policy.SelectMerge(segments)
}

// Run performs one merge: opens the selected source segments, k-way
// merges their posting lists dimension by dimension, writes the output
// via the SegmentBuilder seal protocol, and returns the result for the
// caller to publish. nextID is the segment id the caller's manifest
// counter has already reserved for the output.
func (m *Merger) Run(ctx context.Context, sources []manifest.SegmentInfo, outputTier int, nextID model.SegmentID) (*Result, error) {
	if m.Resource != nil {
		if err := m.Resource.AcquireBackground(ctx); err != nil {
			return nil, sdxerr.ResourceExhausted("merge worker slot unavailable", err)
		}
		defer m.Resource.ReleaseBackground()
	}

	readers := make([]*segment.Reader, 0, len(sources))
	defer func() {
		for _, r := range readers {
			r.Close()
		}
	}()

	for _, s := range sources {
		r, err := segment.Open(s.ID, filepath.Join(m.Dir, s.Path))
		if err != nil {
			return nil, fmt.Errorf("merge: open source segment %d: %w", s.ID, err)
		}
		readers = append(readers, r)
	}

	dimSet := make(map[model.DimID]struct{})
	for _, r := range readers {
		for _, d := range r.Dimensions() {
			dimSet[d] = struct{}{}
		}
	}

	merged := make(map[model.DimID]*posting.Sealed, len(dimSet))
	var totalRows uint32
	for dim := range dimSet {
		var parts []*posting.Sealed
		for _, r := range readers {
			list := r.Lookup(dim)
			if list == nil {
				continue
			}
			parts = append(parts, materialize(list))
		}
		merged[dim] = posting.Merge(parts...)
	}
	for _, r := range readers {
		totalRows += r.NumRows()
	}

	name, err := segment.Write(ctx, m.FS, m.Dir, nextID, segment.WriteRequest{
		ElementType: m.ElementType,
		Compressed:  m.Compressed,
		Dims:        merged,
		NumRows:     totalRows,
	}, m.Resource)
	if err != nil {
		return nil, fmt.Errorf("merge: write output segment: %w", err)
	}

	if m.Logger != nil {
		inputs := make([]uint64, len(sources))
		for i, s := range sources {
			inputs[i] = uint64(s.ID)
		}
		m.Logger.Info("merge completed", "inputs", inputs, "output_segment_id", uint64(nextID))
	}

	return &Result{
		NewSegment: manifest.SegmentInfo{ID: nextID, Tier: outputTier, RowCount: totalRows, Path: name},
		Superseded: sources,
	}, nil
}

// materialize decodes a posting.List fully into a sorted posting.Sealed,
// since posting.Merge operates on already-decoded weights rather than
// cursors directly (sources may mix plain and compressed physical
// encodings, so merge always happens in the decoded domain).
func materialize(list posting.List) *posting.Sealed {
	n := list.Len()
	rowIDs := make([]model.RowID, 0, n)
	weights := make([]float32, 0, n)
	cur := list.Cursor()
	for !cur.Done() {
		rowIDs = append(rowIDs, cur.RowID())
		weights = append(weights, cur.Weight())
		cur.Next()
	}
	return &posting.Sealed{RowIDs: rowIDs, Weights: weights, MaxWeight: list.MaxWeight()}
}
