package sparsedex

import (
	"sync/atomic"

	"github.com/hupe1980/sparsedex/model"
	"github.com/hupe1980/sparsedex/segment"
)

// snapshot is a reference-counted, immutable view of an index's live
// segment set as of one manifest generation. Searches hold a reference
// for their duration; the merger publishes a new snapshot without
// invalidating searches already using the old one (spec §5: "a search
// sees a snapshot of live segments as of its start time").
//
// Modeled on the IncRef/DecRef/TryIncRef pattern used for keeping mmap
// mappings alive across in-flight readers while a writer supersedes them.
type snapshot struct {
	generation uint64
	readers    map[model.SegmentID]*segment.Reader

	refs       atomic.Int64
	superseded atomic.Bool
	cleanedUp  atomic.Bool
	onRetire   func() // deletes files no longer referenced by any snapshot
}

func newSnapshot(generation uint64, readers map[model.SegmentID]*segment.Reader) *snapshot {
	return &snapshot{generation: generation, readers: readers}
}

// TryIncRef acquires a reference, returning false if the snapshot has
// already finished retiring (so the caller must re-fetch the current
// snapshot instead of using a dead one).
func (s *snapshot) TryIncRef() bool {
	if s.cleanedUp.Load() {
		return false
	}
	s.refs.Add(1)
	if s.cleanedUp.Load() {
		s.DecRef()
		return false
	}
	return true
}

// DecRef releases a reference acquired via TryIncRef.
func (s *snapshot) DecRef() {
	if s.refs.Add(-1) == 0 && s.superseded.Load() {
		s.retire()
	}
}

// markSuperseded flags the snapshot as no longer current; onRetire runs
// once every outstanding reference has been released (immediately, if
// there are none).
func (s *snapshot) markSuperseded(onRetire func()) {
	s.onRetire = onRetire
	s.superseded.Store(true)
	if s.refs.Load() == 0 {
		s.retire()
	}
}

func (s *snapshot) retire() {
	if !s.cleanedUp.CompareAndSwap(false, true) {
		return
	}
	for _, r := range s.readers {
		r.Close()
	}
	if s.onRetire != nil {
		s.onRetire()
	}
}
