// Package vertex defines the primitive value types shared by the graph
// index: vertex names, dense integer ids, groups, and span-based id sets.
//
// # Names and Ids
//
// A [Name] is an opaque byte string, typically a commit hash. Names order
// byte-wise and render as lowercase hex. An [ID] is a dense 64-bit integer
// assigned by the id map. Ids are partitioned into groups:
//
//	Master     [0, 1<<56)        main line, append-mostly
//	NonMaster  [1<<56, 2<<56)    drafts and branches, cheap to reassign
//	Virtual    [2<<56, 3<<56)    synthetic vertices, never persisted
//
// Groups are ordered so a parent never lives in a higher group than its
// child, which keeps "parent id < child id" true across the whole id space.
//
// # Id Sets
//
// [IDSet] stores ids as sorted, disjoint, non-adjacent inclusive spans:
//
//	s := vertex.NewIDSet(vertex.Span{Low: 0, High: 9}, vertex.Span{Low: 20, High: 20})
//	s.Contains(5)  // true
//	s.Count()      // 11
package vertex
