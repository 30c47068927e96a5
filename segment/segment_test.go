package segment

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sparsedex/internal/fs"
	"github.com/hupe1980/sparsedex/model"
	"github.com/hupe1980/sparsedex/posting"
	"github.com/hupe1980/sparsedex/weight"
)

func sealedFromPairs(pairs [][2]float32) *posting.Sealed {
	b := &posting.Builder{}
	for _, p := range pairs {
		b.Add(model.RowID(p[0]), p[1])
	}
	s, _ := b.Seal()
	return s
}

func TestWriteOpenRoundTripPlainF32(t *testing.T) {
	dir := t.TempDir()

	dims := map[model.DimID]*posting.Sealed{
		1: sealedFromPairs([][2]float32{{3, 0.5}, {1, 0.9}, {7, 0.2}}),
		2: sealedFromPairs([][2]float32{{1, 0.1}, {2, 0.4}}),
	}

	name, err := Write(context.Background(), fs.Default, dir, model.SegmentID(1), WriteRequest{
		ElementType: weight.TypeF32,
		Compressed:  false,
		Dims:        dims,
		NumRows:     3,
	}, nil)
	require.NoError(t, err)

	r, err := Open(model.SegmentID(1), dir+"/"+name)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, model.SegmentID(1), r.ID())
	require.Equal(t, uint32(3), r.NumRows())
	require.ElementsMatch(t, []model.DimID{1, 2}, r.Dimensions())

	list := r.Lookup(1)
	require.NotNil(t, list)
	require.Equal(t, 3, list.Len())
	require.InDelta(t, 0.9, list.MaxWeight(), 1e-6)

	cur := list.Cursor()
	require.False(t, cur.Done())
	require.Equal(t, model.RowID(1), cur.RowID())
	require.InDelta(t, 0.9, cur.Weight(), 1e-6)
	cur.Next()
	require.Equal(t, model.RowID(3), cur.RowID())
	cur.Next()
	require.Equal(t, model.RowID(7), cur.RowID())
	cur.Next()
	require.True(t, cur.Done())

	require.Nil(t, r.Lookup(99))
}

func TestWriteOpenRoundTripCompressed(t *testing.T) {
	dir := t.TempDir()

	pairs := make([][2]float32, 0, 300)
	for i := 0; i < 300; i++ {
		pairs = append(pairs, [2]float32{float32(i * 2), float32(i) / 300})
	}
	dims := map[model.DimID]*posting.Sealed{5: sealedFromPairs(pairs)}

	name, err := Write(context.Background(), fs.Default, dir, model.SegmentID(7), WriteRequest{
		ElementType: weight.TypeF32,
		Compressed:  true,
		Dims:        dims,
		NumRows:     300,
	}, nil)
	require.NoError(t, err)

	r, err := Open(model.SegmentID(7), dir+"/"+name)
	require.NoError(t, err)
	defer r.Close()

	list := r.Lookup(5)
	require.Equal(t, 300, list.Len())

	cur := list.Cursor()
	require.True(t, cur.SeekTo(model.RowID(400)))
	require.Equal(t, model.RowID(400), cur.RowID())

	// Tail block (rows 256..299) falls back to the uncompressed tail.
	require.True(t, cur.SeekTo(model.RowID(598)))
	require.Equal(t, model.RowID(598), cur.RowID())
}

func TestWriteOpenRoundTripU8Quantized(t *testing.T) {
	dir := t.TempDir()
	dims := map[model.DimID]*posting.Sealed{
		1: sealedFromPairs([][2]float32{{1, 0.0}, {2, 0.5}, {3, 1.0}}),
	}

	name, err := Write(context.Background(), fs.Default, dir, model.SegmentID(2), WriteRequest{
		ElementType: weight.TypeU8,
		Compressed:  false,
		Dims:        dims,
		NumRows:     3,
	}, nil)
	require.NoError(t, err)

	r, err := Open(model.SegmentID(2), dir+"/"+name)
	require.NoError(t, err)
	defer r.Close()

	cur := r.Lookup(1).Cursor()
	require.InDelta(t, 0.0, cur.Weight(), 0.01)
	cur.Next()
	require.InDelta(t, 0.5, cur.Weight(), 0.01)
	cur.Next()
	require.InDelta(t, 1.0, cur.Weight(), 0.01)
}

func TestOpenRejectsCorruptMagic(t *testing.T) {
	dir := t.TempDir()
	dims := map[model.DimID]*posting.Sealed{1: sealedFromPairs([][2]float32{{1, 0.5}})}
	name, err := Write(context.Background(), fs.Default, dir, model.SegmentID(1), WriteRequest{ElementType: weight.TypeF32, Dims: dims, NumRows: 1}, nil)
	require.NoError(t, err)

	path := dir + "/" + name
	f, err := os.OpenFile(path, os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("XXXXXXXX"), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Open(model.SegmentID(1), path)
	require.Error(t, err)
}

func TestBuilderSealAndWrite(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(BuilderConfig{ElementType: weight.TypeF32, Compressed: false})
	require.True(t, b.Empty())

	b.Insert(model.RowID(1), []model.Entry{{DimID: 1, Weight: 0.5}, {DimID: 2, Weight: 0.25}})
	b.Insert(model.RowID(2), []model.Entry{{DimID: 1, Weight: 0.75}})
	require.False(t, b.Empty())

	name, err := b.Seal(context.Background(), fs.Default, dir, model.SegmentID(1), nil)
	require.NoError(t, err)
	require.True(t, b.Empty())

	r, err := Open(model.SegmentID(1), dir+"/"+name)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, uint32(2), r.NumRows())
}
