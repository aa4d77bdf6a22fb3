// Package iddag indexes a commit graph purely in id space using segments.
//
// # Segments
//
// A flat (level 0) segment covers a run of ids low..=high where every id
// except low has exactly one parent, its numeric predecessor. The parents
// of low are stored explicitly:
//
//	id:      0   1   2   3   4
//	flat:    [0 1 2]     [3 4]       parents(3) = {1}
//
// Higher-level segments summarize consecutive lower-level segments whose
// union has a single head, so ancestor walks can skip whole sub-graphs:
//
//	level 1: [0 ..= 4]   parents = {} (root)
//
// # Invariants
//
//   - Every known id is covered by exactly one flat segment.
//   - Segments of one level never overlap and never cross a group boundary.
//   - A parent id is always lower than its child id.
//   - A level L segment spans exactly a contiguous run of level L-1 segments.
//
// # Algorithms
//
// Queries take and return [vertex.IDSet] values. Ancestor-style queries walk
// from high ids to low ids using a max-heap of frontier ids; descendant-style
// queries walk upward using a lazily built children index. Individual ids are
// only visited at segment boundaries.
package iddag
