package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sparsedex/model"
)

func TestBitmapContains(t *testing.T) {
	b := FromRowIDs([]model.RowID{1, 5, 9})
	require.True(t, b.Contains(5))
	require.False(t, b.Contains(6))
	require.Equal(t, 3, b.Len())
}

func TestBitmapAndOr(t *testing.T) {
	a := FromRowIDs([]model.RowID{1, 2, 3})
	b := FromRowIDs([]model.RowID{2, 3, 4})

	and := FromRowIDs([]model.RowID{1, 2, 3})
	and.And(b)
	require.Equal(t, 2, and.Len())
	require.True(t, and.Contains(2))
	require.False(t, and.Contains(1))

	or := FromRowIDs([]model.RowID{1, 2, 3})
	or.Or(b)
	require.Equal(t, 4, or.Len())

	_ = a
}
