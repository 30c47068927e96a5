package merge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sparsedex/internal/fs"
	"github.com/hupe1980/sparsedex/manifest"
	"github.com/hupe1980/sparsedex/model"
	"github.com/hupe1980/sparsedex/posting"
	"github.com/hupe1980/sparsedex/segment"
	"github.com/hupe1980/sparsedex/weight"
)

func writeFixtureSegment(t *testing.T, dir string, id model.SegmentID, dim model.DimID, rows []uint32, weights []float32) manifest.SegmentInfo {
	t.Helper()
	b := &posting.Builder{}
	for i, r := range rows {
		b.Add(model.RowID(r), weights[i])
	}
	sealed, err := b.Seal()
	require.NoError(t, err)

	name, err := segment.Write(context.Background(), fs.Default, dir, id, segment.WriteRequest{
		ElementType: weight.TypeF32,
		Compressed:  false,
		Dims:        map[model.DimID]*posting.Sealed{dim: sealed},
		NumRows:     uint32(len(rows)),
	}, nil)
	require.NoError(t, err)
	return manifest.SegmentInfo{ID: id, Tier: 0, RowCount: uint32(len(rows)), Path: name}
}

func TestMergerRunCombinesSourceSegments(t *testing.T) {
	dir := t.TempDir()

	s1 := writeFixtureSegment(t, dir, model.SegmentID(1), 1, []uint32{1, 3}, []float32{0.5, 0.2})
	s2 := writeFixtureSegment(t, dir, model.SegmentID(2), 1, []uint32{2, 4}, []float32{0.9, 0.1})

	m := &Merger{
		FS:          fs.Default,
		Dir:         dir,
		Policy:      NewTieredPolicy(2),
		ElementType: weight.TypeF32,
		Compressed:  false,
	}

	result, err := m.Run(context.Background(), []manifest.SegmentInfo{s1, s2}, 1, model.SegmentID(3))
	require.NoError(t, err)
	require.Equal(t, model.SegmentID(3), result.NewSegment.ID)
	require.Equal(t, 1, result.NewSegment.Tier)
	require.Equal(t, uint32(4), result.NewSegment.RowCount)
	require.ElementsMatch(t, []manifest.SegmentInfo{s1, s2}, result.Superseded)

	r, err := segment.Open(model.SegmentID(3), dir+"/"+result.NewSegment.Path)
	require.NoError(t, err)
	defer r.Close()

	list := r.Lookup(1)
	require.Equal(t, 4, list.Len())

	cur := list.Cursor()
	var gotRows []model.RowID
	for !cur.Done() {
		gotRows = append(gotRows, cur.RowID())
		cur.Next()
	}
	require.Equal(t, []model.RowID{1, 2, 3, 4}, gotRows)
}

func TestMergerRunUnionsDimensionsAcrossSources(t *testing.T) {
	dir := t.TempDir()

	s1 := writeFixtureSegment(t, dir, model.SegmentID(1), 1, []uint32{1}, []float32{0.5})
	s2 := writeFixtureSegment(t, dir, model.SegmentID(2), 2, []uint32{2}, []float32{0.7})

	m := &Merger{FS: fs.Default, Dir: dir, Policy: NewTieredPolicy(2), ElementType: weight.TypeF32}
	result, err := m.Run(context.Background(), []manifest.SegmentInfo{s1, s2}, 1, model.SegmentID(3))
	require.NoError(t, err)

	r, err := segment.Open(model.SegmentID(3), dir+"/"+result.NewSegment.Path)
	require.NoError(t, err)
	defer r.Close()
	require.ElementsMatch(t, []model.DimID{1, 2}, r.Dimensions())
}
