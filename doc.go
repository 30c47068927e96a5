// Package sparsedex implements an embedded sparse vector search engine: a
// per-dimension posting-list inverted index over (row_id, weight) entries,
// organized into immutable, mmap-backed segments and a tiered background
// merge policy, queried with both a MaxScore-style pruning traversal and an
// exhaustive brute-force baseline.
//
// # Quick Start
//
//	ctx := context.Background()
//	idx, err := sparsedex.Open("./data")
//	if err != nil { ... }
//	defer idx.Close()
//
//	vec := model.SparseVector{{DimID: 7, Weight: 0.8}, {DimID: 42, Weight: 0.3}}
//	idx.Insert(ctx, model.RowID(1), vec)
//	idx.Commit(ctx)
//
//	result, err := idx.Search(ctx, vec, model.SearchOptions{K: 10})
//
// # Segments
//
// A Commit seals each non-empty in-memory builder into its own new,
// immutable segment file and publishes them via the manifest. Segments are never
// mutated after sealing; row updates are not supported (spec non-goal),
// so every segment's postings are final once written.
//
// # Merge
//
// A background merger combines segments of the same merge tier (how many
// merges produced them; size is not considered) once a tier accumulates
// enough segments, k-way merging their posting lists and
// republishing a smaller segment set through the manifest. Searches hold a
// refcounted snapshot of the segment set, so a merge never invalidates an
// in-flight query; superseded segment files are only unlinked once every
// snapshot referencing them has been released.
//
// # Search
//
// Search runs two algorithms depending on model.SearchOptions.Brute:
// a brute-force scan of every live segment's matching postings (used as a
// ground-truth baseline and for correctness testing), or a MaxScore-style
// traversal that uses each dimension's cached maximum weight to skip
// postings that cannot enter the current top-k.
package sparsedex
