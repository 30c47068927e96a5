package sparsedex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sparsedex/filter"
	"github.com/hupe1980/sparsedex/model"
)

func vec(entries ...model.Entry) model.SparseVector { return model.SparseVector(entries) }

func TestCreateInsertCommitSearch(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := Create(dir)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Insert(ctx, model.RowID(1), vec(model.Entry{DimID: 1, Weight: 1.0}, model.Entry{DimID: 2, Weight: 0.5})))
	require.NoError(t, idx.Insert(ctx, model.RowID(2), vec(model.Entry{DimID: 1, Weight: 0.2}, model.Entry{DimID: 3, Weight: 0.9})))
	require.NoError(t, idx.Insert(ctx, model.RowID(3), vec(model.Entry{DimID: 2, Weight: 0.7})))

	require.NoError(t, idx.Commit(ctx))

	query := vec(model.Entry{DimID: 1, Weight: 1.0}, model.Entry{DimID: 2, Weight: 1.0})
	result, err := idx.Search(ctx, query, model.SearchOptions{K: 10})
	require.NoError(t, err)
	require.False(t, result.Partial)
	require.NotEmpty(t, result.Rows)
	require.Equal(t, model.RowID(1), result.Rows[0].RowID)
}

func TestCreateRejectsExistingDirectory(t *testing.T) {
	dir := t.TempDir()
	idx, err := Create(dir)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(context.Background(), model.RowID(1), vec(model.Entry{DimID: 1, Weight: 1})))
	require.NoError(t, idx.Commit(context.Background()))
	require.NoError(t, idx.Close())

	_, err = Create(dir)
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestOpenReopensExistingSegments(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := Create(dir)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(ctx, model.RowID(1), vec(model.Entry{DimID: 5, Weight: 1})))
	require.NoError(t, idx.Commit(ctx))
	require.NoError(t, idx.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	result, err := reopened.Search(ctx, vec(model.Entry{DimID: 5, Weight: 1}), model.SearchOptions{K: 5})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.Equal(t, model.RowID(1), result.Rows[0].RowID)
}

func TestInsertRejectsDuplicateDimension(t *testing.T) {
	dir := t.TempDir()
	idx, err := Create(dir)
	require.NoError(t, err)
	defer idx.Close()

	err = idx.Insert(context.Background(), model.RowID(1), vec(model.Entry{DimID: 1, Weight: 0.1}, model.Entry{DimID: 1, Weight: 0.2}))
	require.Error(t, err)
	require.Equal(t, KindInvalidArgument, Kind(err))
}

func TestInsertRejectsNonFiniteWeight(t *testing.T) {
	dir := t.TempDir()
	idx, err := Create(dir)
	require.NoError(t, err)
	defer idx.Close()

	zero := float32(0)
	nan := float32(1) / zero * zero
	err = idx.Insert(context.Background(), model.RowID(1), vec(model.Entry{DimID: 1, Weight: nan}))
	require.Error(t, err)
}

func TestSearchAppliesFilter(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := Create(dir)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Insert(ctx, model.RowID(1), vec(model.Entry{DimID: 1, Weight: 1.0})))
	require.NoError(t, idx.Insert(ctx, model.RowID(2), vec(model.Entry{DimID: 1, Weight: 0.9})))
	require.NoError(t, idx.Commit(ctx))

	only2 := filter.FromRowIDs([]model.RowID{2})
	result, err := idx.Search(ctx, vec(model.Entry{DimID: 1, Weight: 1.0}), model.SearchOptions{K: 10, Filter: only2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.Equal(t, model.RowID(2), result.Rows[0].RowID)
}

func TestCommitTriggersBackgroundMerge(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := Create(dir, WithMergeThreshold(2))
	require.NoError(t, err)
	defer idx.Close()

	for i := 0; i < 2; i++ {
		require.NoError(t, idx.Insert(ctx, model.RowID(i+1), vec(model.Entry{DimID: 1, Weight: 1.0})))
		require.NoError(t, idx.Commit(ctx))
	}

	require.Eventually(t, func() bool {
		idx.manifestMu.Lock()
		defer idx.manifestMu.Unlock()
		return len(idx.manifestState.Segments) == 1
	}, 2e9, 1e7)

	result, err := idx.Search(ctx, vec(model.Entry{DimID: 1, Weight: 1.0}), model.SearchOptions{K: 10})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
}

func TestCloseRejectsFurtherOperations(t *testing.T) {
	dir := t.TempDir()
	idx, err := Create(dir)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	err = idx.Insert(context.Background(), model.RowID(1), vec(model.Entry{DimID: 1, Weight: 1}))
	require.ErrorIs(t, err, ErrClosed)
}
