package merge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sparsedex/manifest"
)

func TestTieredPolicySelectsOldestInQualifyingTier(t *testing.T) {
	p := NewTieredPolicy(4)
	segments := []manifest.SegmentInfo{
		{ID: 5, Tier: 0},
		{ID: 1, Tier: 0},
		{ID: 3, Tier: 0},
		{ID: 2, Tier: 0},
		{ID: 9, Tier: 1},
	}

	selected, outTier, ok := p.SelectMerge(segments)
	require.True(t, ok)
	require.Equal(t, 1, outTier)
	require.Len(t, selected, 4)
	require.Equal(t, []uint64{1, 2, 3, 5}, idsOf(selected))
}

func TestTieredPolicyNoTierQualifies(t *testing.T) {
	p := NewTieredPolicy(4)
	segments := []manifest.SegmentInfo{{ID: 1, Tier: 0}, {ID: 2, Tier: 0}}

	_, _, ok := p.SelectMerge(segments)
	require.False(t, ok)
}

func idsOf(segs []manifest.SegmentInfo) []uint64 {
	out := make([]uint64, len(segs))
	for i, s := range segs {
		out[i] = uint64(s.ID)
	}
	return out
}
