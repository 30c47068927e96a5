package search

import (
	"context"
	"sort"

	"github.com/hupe1980/sparsedex/model"
	"github.com/hupe1980/sparsedex/posting"
)

// Source looks up a dimension's posting list within one segment. Both
// segment.Reader and in-memory test fakes satisfy this.
type Source interface {
	Lookup(dim model.DimID) posting.List
}

// queryDim pairs a query dimension's weight with its open cursor and
// cached upper bound (max_weight_in_list * query_weight).
type queryDim struct {
	dim    model.DimID
	weight float32
	cur    posting.Cursor
	bound  float32
}

// SegmentSearch runs a top-k query against a single segment, using the
// MaxScore-style pruning traversal unless opts.Brute forces the reference
// scan. ctx's deadline, if any, is checked between candidate advances; on
// expiry the best-so-far top-k is returned with Timeout set (spec §5).
func SegmentSearch(ctx context.Context, src Source, query model.SparseVector, opts model.SearchOptions) (model.SearchResult, error) {
	if opts.Brute {
		return bruteForce(ctx, src, query, opts)
	}
	return maxScore(ctx, src, query, opts)
}

func openDims(src Source, query model.SparseVector) []queryDim {
	dims := make([]queryDim, 0, len(query))
	for _, e := range query {
		list := src.Lookup(e.DimID)
		if list == nil || list.Len() == 0 {
			continue
		}
		dims = append(dims, queryDim{
			dim:    e.DimID,
			weight: e.Weight,
			cur:    list.Cursor(),
			bound:  list.MaxWeight() * e.Weight,
		})
	}
	return dims
}

// bruteForce iterates every row present in the union of the query's
// dimension posting lists, scoring each by summing q_i*w_i across matching
// entries, and keeps the top-k (spec §4.8 baseline).
func bruteForce(ctx context.Context, src Source, query model.SparseVector, opts model.SearchOptions) (model.SearchResult, error) {
	dims := openDims(src, query)
	scores := make(map[model.RowID]float32)

	for _, qd := range dims {
		cur := qd.cur
		for !cur.Done() {
			if err := ctx.Err(); err != nil {
				return partialResult(scores, opts, true), nil
			}
			row := cur.RowID()
			scores[row] += qd.weight * cur.Weight()
			cur.Next()
		}
	}

	return partialResult(scores, opts, false), nil
}

func partialResult(scores map[model.RowID]float32, opts model.SearchOptions, timeout bool) model.SearchResult {
	topK := NewTopK(opts.K)
	for row, score := range scores {
		if opts.Filter != nil && !opts.Filter.Contains(row) {
			continue
		}
		topK.Offer(row, score)
	}
	return model.SearchResult{Rows: topK.Results(), Timeout: timeout, Partial: timeout}
}

// maxScore runs the MaxScore-style pruning traversal (spec §4.8): dims are
// split into essential (whose combined residual bound could still beat the
// current k-th score) and non-essential (consulted only to refine a
// candidate already generated by an essential dim).
func maxScore(ctx context.Context, src Source, query model.SparseVector, opts model.SearchOptions) (model.SearchResult, error) {
	dims := openDims(src, query)
	topK := NewTopK(opts.K)

	if len(dims) == 0 {
		return model.SearchResult{}, nil
	}

	// Ascending by bound, so the suffix sum of dims[p:] is the maximum any
	// candidate lacking dims[:p] could still score.
	sort.Slice(dims, func(i, j int) bool { return dims[i].bound < dims[j].bound })
	suffix := make([]float32, len(dims)+1)
	for i := len(dims) - 1; i >= 0; i-- {
		suffix[i] = suffix[i+1] + dims[i].bound
	}

	checkEvery := 0
	for {
		// Recompute the essential/non-essential pivot against the current
		// threshold: the largest prefix whose suffix bound cannot beat it.
		threshold := topK.Threshold()
		pivot := 0
		for pivot < len(dims) && suffix[pivot] <= threshold {
			pivot++
		}
		essential := dims[pivot:]
		nonEssential := dims[:pivot]

		if len(essential) == 0 {
			break
		}

		checkEvery++
		if checkEvery%256 == 0 {
			if err := ctx.Err(); err != nil {
				return model.SearchResult{Rows: topK.Results(), Timeout: true, Partial: true}, nil
			}
		}

		// Candidate row is the minimum current row id among essential
		// cursors still live.
		candidate, any := minRow(essential)
		if !any {
			break
		}

		var score float32
		for i := range essential {
			qd := &essential[i]
			if !qd.cur.Done() && qd.cur.RowID() == candidate {
				score += qd.weight * qd.cur.Weight()
				qd.cur.Next()
			}
		}
		for i := range nonEssential {
			qd := &nonEssential[i]
			if qd.cur.Done() {
				continue
			}
			if qd.cur.RowID() < candidate {
				qd.cur.SeekTo(candidate)
			}
			if !qd.cur.Done() && qd.cur.RowID() == candidate {
				score += qd.weight * qd.cur.Weight()
			}
		}

		if opts.Filter == nil || opts.Filter.Contains(candidate) {
			topK.Offer(candidate, score)
		}
	}

	return model.SearchResult{Rows: topK.Results()}, nil
}

func minRow(dims []queryDim) (model.RowID, bool) {
	var min model.RowID
	found := false
	for i := range dims {
		if dims[i].cur.Done() {
			continue
		}
		r := dims[i].cur.RowID()
		if !found || r < min {
			min = r
			found = true
		}
	}
	return min, found
}

// MergeSegmentResults combines per-segment top-k results into a single
// global top-k via a size-k min-heap (spec §4.8 "cross-segment merge").
func MergeSegmentResults(results []model.SearchResult, k int) model.SearchResult {
	topK := NewTopK(k)
	partial := false
	timeout := false
	for _, r := range results {
		partial = partial || r.Partial
		timeout = timeout || r.Timeout
		for _, row := range r.Rows {
			topK.Offer(row.RowID, row.Score)
		}
	}
	return model.SearchResult{Rows: topK.Results(), Partial: partial, Timeout: timeout}
}
