// Package model defines the core identity and query types shared across
// sparsedex's subsystems (posting lists, segments, search, the orchestrator).
package model

import "fmt"

// SegmentID is the unique identifier for a segment within an index directory.
// Assigned by the orchestrator, monotonically increasing across an index's lifetime.
type SegmentID uint64

// RowID is the caller-supplied, opaque identifier for an inserted sparse vector.
// Uniqueness across an index is the caller's responsibility; the engine does
// not deduplicate.
type RowID uint32

// DimID is the coordinate index of a sparse vector entry.
type DimID uint32

// Entry is one non-zero coordinate of a sparse vector.
type Entry struct {
	DimID  DimID
	Weight float32
}

// SparseVector is an unordered collection of Entry with unique DimIDs.
// Callers may submit entries in any order; the library normalizes by
// sorting on DimID and rejects duplicates.
type SparseVector []Entry

// Location identifies a specific posting-list row within a specific segment.
type Location struct {
	SegmentID SegmentID
	RowID     RowID
}

func (l Location) String() string {
	return fmt.Sprintf("Loc(%d:%d)", l.SegmentID, l.RowID)
}

// ScoredRow is one result of a top-k search: a row id and its score against
// the query, descending by Score, ties broken by ascending RowID.
type ScoredRow struct {
	RowID RowID
	Score float32
}

// SearchOptions controls the execution of a top-k query.
type SearchOptions struct {
	// K is the number of results to return.
	K int

	// Filter restricts candidate rows to those present in the bitmap, applied
	// at candidate-generation time. Nil means no filter.
	Filter RowFilter

	// Brute forces the reference (non-pruning) scan path instead of the
	// optimized MaxScore-style traversal. Used for correctness testing;
	// every element type and compression mode runs the MaxScore path
	// unless Brute is set.
	Brute bool
}

// RowFilter reports whether a row id passes a search-time filter.
// *filter.Bitmap satisfies this interface.
type RowFilter interface {
	Contains(row RowID) bool
}

// SearchResult is the outcome of a top-k search against one or more segments.
type SearchResult struct {
	Rows []ScoredRow

	// Partial is true if one or more segments were excluded from the result
	// due to corruption or a deadline that expired mid-traversal.
	Partial bool

	// Timeout is true if the search deadline expired before the traversal
	// finished; Rows still holds the best-effort top-k found so far.
	Timeout bool
}
