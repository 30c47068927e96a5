package search

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sparsedex/model"
)

func TestTopKKeepsBestK(t *testing.T) {
	tk := NewTopK(2)
	tk.Offer(1, 0.1)
	tk.Offer(2, 0.9)
	tk.Offer(3, 0.5)

	results := tk.Results()
	require.Len(t, results, 2)
	require.Equal(t, model.RowID(2), results[0].RowID)
	require.Equal(t, model.RowID(3), results[1].RowID)
}

func TestTopKTieBreakLowerRowIDWins(t *testing.T) {
	tk := NewTopK(1)
	tk.Offer(5, 0.5)
	tk.Offer(2, 0.5)

	results := tk.Results()
	require.Len(t, results, 1)
	require.Equal(t, model.RowID(2), results[0].RowID)
}

func TestTopKThresholdRisesAsHeapFills(t *testing.T) {
	tk := NewTopK(2)
	require.True(t, tk.Threshold() < 0)
	tk.Offer(1, 0.3)
	require.True(t, tk.Threshold() < 0) // still below k
	tk.Offer(2, 0.6)
	require.Equal(t, float32(0.3), tk.Threshold())
	tk.Offer(3, 0.9)
	require.Equal(t, float32(0.6), tk.Threshold())
}
