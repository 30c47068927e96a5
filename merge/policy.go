// Package merge implements the tiered background merge policy and the
// merge execution that k-way merges sealed segments into a single
// successor (spec §4.7).
package merge

import (
	"sort"

	"github.com/hupe1980/sparsedex/manifest"
)

// DefaultThreshold is the number of same-tier segments that triggers a
// merge (spec §4.7 default K=4).
const DefaultThreshold = 4

// TieredPolicy groups segments by SegmentInfo.Tier (0 for a freshly sealed
// segment, one more than its sources' tier for a merge output; segment size
// is not considered) and selects the oldest Threshold segments in any tier
// that has accumulated at least that many.
// Selection is deterministic: oldest first within the tier, where segment
// id order is age order (ids are assigned by a monotonic counter).
type TieredPolicy struct {
	Threshold int
}

// NewTieredPolicy returns a TieredPolicy with the given threshold, or
// DefaultThreshold if threshold <= 1 (a tier of 1 can never have "enough
// segments to merge" in any meaningful sense).
func NewTieredPolicy(threshold int) TieredPolicy {
	if threshold <= 1 {
		threshold = DefaultThreshold
	}
	return TieredPolicy{Threshold: threshold}
}

// SelectMerge returns the oldest Threshold segments from the first tier
// (lowest tier number first) that has accumulated at least Threshold
// segments, and the tier those segments belong to. ok is false if no tier
// currently qualifies.
func (p TieredPolicy) SelectMerge(segments []manifest.SegmentInfo) (selected []manifest.SegmentInfo, outputTier int, ok bool) {
	byTier := make(map[int][]manifest.SegmentInfo)
	for _, s := range segments {
		byTier[s.Tier] = append(byTier[s.Tier], s)
	}

	tiers := make([]int, 0, len(byTier))
	for t := range byTier {
		tiers = append(tiers, t)
	}
	sort.Ints(tiers)

	for _, t := range tiers {
		group := byTier[t]
		if len(group) < p.Threshold {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		return group[:p.Threshold], t + 1, true
	}
	return nil, 0, false
}
