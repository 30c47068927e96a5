package sparsedex

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/sparsedex/internal/fs"
	"github.com/hupe1980/sparsedex/manifest"
	"github.com/hupe1980/sparsedex/merge"
	"github.com/hupe1980/sparsedex/model"
	"github.com/hupe1980/sparsedex/resource"
	"github.com/hupe1980/sparsedex/search"
	"github.com/hupe1980/sparsedex/segment"
)

// builderPoolSize is the number of concurrently-writable SegmentBuilders
// an Index keeps, so inserts from different callers don't serialize on a
// single builder mutex (spec §5: "each SegmentBuilder is exclusively
// owned by its thread").
const builderPoolSize = 4

// Index is a single sparse vector collection rooted at one directory. It
// owns the directory lock, the pool of active SegmentBuilders, the durable
// manifest, and the refcounted snapshot of sealed segments that searches
// read against.
type Index struct {
	dir  string
	fs   fs.FileSystem
	lock *dirLock
	opts options

	manifestStore *manifest.Store
	manifestMu    sync.Mutex
	manifestState *manifest.Manifest

	commitMu sync.Mutex
	builders []*segment.Builder
	nextBldr atomic.Uint64
	resource *resource.Controller

	currentSnapshot atomic.Pointer[snapshot]

	merger       *merge.Merger
	mergeRunning atomic.Bool

	logger  *Logger
	metrics MetricsCollector

	closed atomic.Bool
}

// Create initializes a new, empty index at dir. It returns ErrAlreadyExists
// if dir already holds a manifest.
func Create(dir string, optFns ...Option) (*Index, error) {
	return openIndex(dir, true, optFns)
}

// Open opens an existing index at dir, or creates one if dir is empty.
func Open(dir string, optFns ...Option) (*Index, error) {
	return openIndex(dir, false, optFns)
}

func openIndex(dir string, requireFresh bool, optFns []Option) (*Index, error) {
	opts := applyOptions(optFns)
	fsys := fs.Default

	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return nil, IOError("create index directory", err)
	}

	lock, err := acquireDirLock(dir)
	if err != nil {
		return nil, err
	}

	store := manifest.NewStore(fsys, dir)
	m, err := store.Load()
	if err != nil {
		lock.Release()
		return nil, IOError("load manifest", err)
	}
	fresh := m.Generation == 0 && len(m.Segments) == 0 && m.NextSegmentID == 0
	if requireFresh && !fresh {
		lock.Release()
		return nil, ErrAlreadyExists
	}

	readers := make(map[model.SegmentID]*segment.Reader, len(m.Segments))
	for _, s := range m.Segments {
		r, err := segment.Open(s.ID, filepath.Join(dir, s.Path))
		if err != nil {
			for _, rr := range readers {
				rr.Close()
			}
			lock.Release()
			return nil, IOError(fmt.Sprintf("open segment %d", s.ID), err)
		}
		readers[s.ID] = r
	}

	// An existing index keeps the element type its segments were written
	// with; segments that disagree with each other are rejected.
	first := true
	for _, r := range readers {
		if t := r.Header().ElementType; first {
			opts.elementType, first = t, false
		} else if t != opts.elementType {
			for _, rr := range readers {
				rr.Close()
			}
			lock.Release()
			return nil, InvalidArgument("segments disagree on element type", nil)
		}
	}

	builders := make([]*segment.Builder, builderPoolSize)
	for i := range builders {
		builders[i] = segment.NewBuilder(segment.BuilderConfig{
			ElementType: opts.elementType,
			Compressed:  true,
		})
	}

	resourceCtl := resource.NewController(opts.resourceConfig)

	idx := &Index{
		dir:           dir,
		fs:            fsys,
		lock:          lock,
		opts:          opts,
		manifestStore: store,
		manifestState: m,
		builders:      builders,
		resource:      resourceCtl,
		merger: &merge.Merger{
			FS:          fsys,
			Dir:         dir,
			Policy:      merge.NewTieredPolicy(opts.mergeThreshold),
			ElementType: opts.elementType,
			Compressed:  true,
			Resource:    resourceCtl,
			Logger:      opts.logger.Logger,
		},
		logger:  opts.logger,
		metrics: opts.metricsCollector,
	}
	idx.currentSnapshot.Store(newSnapshot(m.Generation, readers))

	return idx, nil
}

// Insert adds one sparse vector under row to the index's active builder
// pool. The vector is normalized (sorted by DimID) and validated before
// being buffered; it is not visible to Search until Commit seals it into a
// segment.
func (idx *Index) Insert(ctx context.Context, row model.RowID, vec model.SparseVector) error {
	if idx.closed.Load() {
		return ErrClosed
	}
	start := time.Now()

	sorted, err := normalizeVector(vec)
	if err != nil {
		idx.metrics.RecordInsert(time.Since(start), err)
		idx.logger.LogInsert(ctx, uint32(row), len(vec), err)
		return err
	}

	b := idx.builders[idx.nextBldr.Add(1)%uint64(len(idx.builders))]
	b.Insert(row, sorted)

	idx.metrics.RecordInsert(time.Since(start), nil)
	idx.logger.LogInsert(ctx, uint32(row), len(sorted), nil)

	if b.ShouldSeal() {
		idx.scheduleCommit()
	}
	return nil
}

// scheduleCommit fires an async commit when a builder crosses its seal
// threshold between explicit Commit calls, so long-running insert streams
// don't grow one builder unbounded.
func (idx *Index) scheduleCommit() {
	go func() {
		if err := idx.Commit(context.Background()); err != nil {
			idx.logger.LogCommit(context.Background(), 0, 0, err)
		}
	}()
}

// Commit seals every non-empty builder in the pool into its own segment,
// durably publishes the new manifest generation, and republishes the
// search snapshot to include the new segments (spec §4.5, §4.6). It is a
// no-op if every builder is empty.
func (idx *Index) Commit(ctx context.Context) error {
	if idx.closed.Load() {
		return ErrClosed
	}
	idx.commitMu.Lock()
	defer idx.commitMu.Unlock()

	idx.manifestMu.Lock()
	defer idx.manifestMu.Unlock()

	commitStart := time.Now()
	m := idx.manifestState
	sealedAny := false
	sealedRows := 0

	for _, b := range idx.builders {
		if b.Empty() {
			continue
		}
		id := m.NextSegmentID
		m.NextSegmentID++

		path, err := b.Seal(ctx, idx.fs, idx.dir, id, idx.resource)
		if err != nil {
			idx.logger.LogSeal(ctx, uint64(id), 0, err)
			return fmt.Errorf("sparsedex: seal builder: %w", err)
		}

		r, err := segment.Open(id, filepath.Join(idx.dir, path))
		if err != nil {
			return IOError("reopen sealed segment", err)
		}
		rowCount := r.NumRows()
		r.Close()

		m.Segments = append(m.Segments, manifest.SegmentInfo{ID: id, Tier: 0, RowCount: rowCount, Path: path})
		idx.logger.LogSeal(ctx, uint64(id), 0, nil)
		idx.logger.LogCommit(ctx, uint64(id), int(rowCount), nil)
		sealedAny = true
		sealedRows += int(rowCount)
	}

	if !sealedAny {
		idx.metrics.RecordCommit(0, time.Since(commitStart), nil)
		return nil
	}

	m.Generation++
	if err := idx.publishLocked(m, nil); err != nil {
		idx.metrics.RecordCommit(sealedRows, time.Since(commitStart), err)
		return err
	}
	idx.metrics.RecordCommit(sealedRows, time.Since(commitStart), nil)

	idx.scheduleMergeLocked()
	return nil
}

// Search evaluates query against the index's current snapshot of sealed
// segments and merges per-segment top-k results (spec §4.6). Uncommitted
// inserts are invisible; callers needing fresh visibility must Commit
// first.
func (idx *Index) Search(ctx context.Context, query model.SparseVector, opts model.SearchOptions) (model.SearchResult, error) {
	if idx.closed.Load() {
		return model.SearchResult{}, ErrClosed
	}
	if opts.K <= 0 {
		return model.SearchResult{}, InvalidArgument("k must be positive", nil)
	}
	start := time.Now()

	var snap *snapshot
	for {
		snap = idx.currentSnapshot.Load()
		if snap == nil || idx.closed.Load() {
			return model.SearchResult{}, ErrClosed
		}
		if snap.TryIncRef() {
			break
		}
	}
	defer snap.DecRef()

	sorted, err := normalizeVector(query)
	if err != nil {
		idx.metrics.RecordSearch(opts.K, opts.Brute, time.Since(start), err)
		return model.SearchResult{}, err
	}

	readers := make([]*segment.Reader, 0, len(snap.readers))
	for _, r := range snap.readers {
		readers = append(readers, r)
	}

	// Fan the query out across every live segment in parallel; a single
	// corrupt or failing shard is isolated rather than failing the whole
	// query (spec §7 "propagation policy" — the result comes back with
	// Partial set instead).
	results := make([]model.SearchResult, len(readers))
	failed := make([]bool, len(readers))
	var g errgroup.Group
	for i, r := range readers {
		i, r := i, r
		g.Go(func() error {
			res, err := search.SegmentSearch(ctx, r, sorted, opts)
			if err != nil {
				idx.logger.LogSearch(ctx, opts.K, 0, opts.Brute, err)
				failed[i] = true
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	partial := false
	kept := make([]model.SearchResult, 0, len(results))
	for i, res := range results {
		if failed[i] {
			partial = true
			continue
		}
		kept = append(kept, res)
	}

	merged := search.MergeSegmentResults(kept, opts.K)
	merged.Partial = merged.Partial || partial
	idx.metrics.RecordSearch(opts.K, opts.Brute, time.Since(start), nil)
	idx.logger.LogSearch(ctx, opts.K, len(merged.Rows), opts.Brute, nil)
	return merged, nil
}

// Close releases the index's directory lock and closes its current
// snapshot's segment readers. Callers must not have any Search or Insert
// in flight when Close is called.
func (idx *Index) Close() error {
	if !idx.closed.CompareAndSwap(false, true) {
		return nil
	}
	if snap := idx.currentSnapshot.Load(); snap != nil {
		for _, r := range snap.readers {
			r.Close()
		}
	}
	return idx.lock.Release()
}

// publishLocked durably saves m, opens readers for its full segment set,
// and swaps it in as the current snapshot. The prior snapshot is marked
// superseded; once every outstanding search reference to it drains, its
// readers close and retiredPaths (segments no longer present in m, e.g.
// ones a merge just folded away) are deleted and old manifest generations
// pruned. Callers must hold manifestMu.
func (idx *Index) publishLocked(m *manifest.Manifest, retiredPaths []string) error {
	readers := make(map[model.SegmentID]*segment.Reader, len(m.Segments))
	for _, s := range m.Segments {
		r, err := segment.Open(s.ID, filepath.Join(idx.dir, s.Path))
		if err != nil {
			for _, rr := range readers {
				rr.Close()
			}
			return IOError(fmt.Sprintf("open segment %d", s.ID), err)
		}
		readers[s.ID] = r
	}

	if err := idx.manifestStore.Save(m); err != nil {
		for _, r := range readers {
			r.Close()
		}
		return IOError("save manifest", err)
	}

	newSnap := newSnapshot(m.Generation, readers)
	old := idx.currentSnapshot.Swap(newSnap)
	if old != nil {
		old.markSuperseded(func() {
			for _, p := range retiredPaths {
				idx.fs.Remove(filepath.Join(idx.dir, p))
			}
			idx.manifestStore.Prune()
		})
	}
	idx.logger.LogManifest(context.Background(), m.Generation, nil)
	return nil
}

// scheduleMergeLocked starts the background merge loop if it isn't already
// running; at most one merge runs at a time per index (spec §4.7: merges
// are single-flight per directory). Callers must hold manifestMu.
func (idx *Index) scheduleMergeLocked() {
	if !idx.mergeRunning.CompareAndSwap(false, true) {
		return
	}
	go idx.runMergeLoop()
}

func (idx *Index) runMergeLoop() {
	defer idx.mergeRunning.Store(false)
	ctx := context.Background()

	for {
		idx.manifestMu.Lock()
		segs := append([]manifest.SegmentInfo(nil), idx.manifestState.Segments...)
		idx.manifestMu.Unlock()

		sources, outTier, ok := idx.merger.Plan(segs)
		if !ok {
			return
		}

		idx.manifestMu.Lock()
		nextID := idx.manifestState.NextSegmentID
		idx.manifestState.NextSegmentID++
		idx.manifestMu.Unlock()

		mergeStart := time.Now()
		result, err := idx.merger.Run(ctx, sources, outTier, nextID)
		if err != nil {
			idx.logger.LogMerge(ctx, segmentIDsOf(sources), uint64(nextID), err)
			idx.metrics.RecordMerge(len(sources), time.Since(mergeStart), err)
			return
		}

		idx.manifestMu.Lock()
		m := idx.manifestState
		m.Generation++
		m.Segments = replaceSegments(m.Segments, result.Superseded, result.NewSegment)
		err = idx.publishLocked(m, pathsOf(result.Superseded))
		idx.manifestMu.Unlock()

		idx.logger.LogMerge(ctx, segmentIDsOf(sources), uint64(nextID), err)
		idx.metrics.RecordMerge(len(sources), time.Since(mergeStart), err)
		if err != nil {
			return
		}
	}
}

func replaceSegments(current, superseded []manifest.SegmentInfo, replacement manifest.SegmentInfo) []manifest.SegmentInfo {
	dead := make(map[model.SegmentID]struct{}, len(superseded))
	for _, s := range superseded {
		dead[s.ID] = struct{}{}
	}
	out := make([]manifest.SegmentInfo, 0, len(current)+1)
	for _, s := range current {
		if _, ok := dead[s.ID]; ok {
			continue
		}
		out = append(out, s)
	}
	out = append(out, replacement)
	return out
}

func pathsOf(segs []manifest.SegmentInfo) []string {
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = s.Path
	}
	return out
}

func segmentIDsOf(segs []manifest.SegmentInfo) []uint64 {
	out := make([]uint64, len(segs))
	for i, s := range segs {
		out[i] = uint64(s.ID)
	}
	return out
}

// normalizeVector sorts a caller-supplied vector by DimID and rejects
// non-finite weights and duplicate dimensions (spec §4.1: "entries may
// arrive in any order; duplicate dimensions are a caller error").
func normalizeVector(vec model.SparseVector) (model.SparseVector, error) {
	out := make(model.SparseVector, len(vec))
	copy(out, vec)
	sort.Slice(out, func(i, j int) bool { return out[i].DimID < out[j].DimID })

	for i, e := range out {
		if math.IsNaN(float64(e.Weight)) || math.IsInf(float64(e.Weight), 0) {
			return nil, InvalidArgument(fmt.Sprintf("non-finite weight at dim %d", e.DimID), nil)
		}
		if i > 0 && out[i-1].DimID == e.DimID {
			return nil, InvalidArgument(fmt.Sprintf("duplicate dimension %d", e.DimID), nil)
		}
	}
	return out, nil
}
