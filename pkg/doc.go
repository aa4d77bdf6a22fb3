// Package pkg provides the libraries behind segdag, a segmented commit-graph
// store.
//
// # Overview
//
// segdag keeps the topology of a version-control history (vertex names and
// their parents) as runs of consecutive integer ids called segments. Most
// ancestry questions are answered by walking a handful of segments instead
// of every commit. The pkg directory is organized into four main areas:
//
//  1. Identity: [vertex] (names, ids, groups, id sets) and [idmap] (the
//     name/id bijection)
//  2. Index: [iddag] (flat and high-level segments, id-level algorithms)
//  3. Graph: [dag] (the name-level façade, persistence, lazy names) and
//     [set] (lazy, composable name sets)
//  4. Edges: [journal] (append-only on-disk logs), [clone] (bundles),
//     [io] (JSON parents files), [render] (Graphviz drawing) and [config]
//
// # Architecture
//
// The typical data flow:
//
//	parents file / remote
//	         ↓
//	    [dag] package (assign ids, build segments)
//	         ↓
//	    [journal] package (flush to disk)
//	         ↓
//	    [set] queries → names, DOT, SVG/PDF/PNG
//
// # Quick Start
//
//	d := dag.NewMem(dag.Options{})
//	parents := vertex.ParentMap{"A": nil, "B": {"A"}, "C": {"A"}, "D": {"B", "C"}}
//	err := d.AddHeadsAndFlush(ctx, parents, vertex.MasterHeads("D"))
//
//	anc, _ := d.Ancestors(ctx, set.FromNames("B"))
//	names, _ := set.Collect(ctx, anc) // [A B]
//
// # Main Packages
//
// [vertex] - Vertex names, 64-bit ids partitioned into the master, non-master
// and virtual groups, inclusive spans and span-compressed id sets.
//
// [idmap] - Bidirectional name/id map with per-group id allocation and a
// compact binary codec.
//
// [iddag] - Segment index: flat segments at level 0, high-level segments
// summarizing runs of lower segments, and ancestry algorithms over ids.
//
// [dag] - Vertex-level graph combining idmap, iddag and journal. Adds heads,
// flushes, strips, imports clone and pull data and resolves names lazily
// through a [dag.RemoteProtocol].
//
// [set] - Name sets with ordering and bounds hints: static, id-backed, lazy
// and memoized meta sets, combined with union, intersection and difference.
//
// [journal] - Append-only, length-prefixed logs with a metadata file swapped
// by rename and a file lock for writers.
//
// [clone] - zstd-compressed bundles of segments and names.
//
// [io] - JSON parents files for importing and exporting graphs.
//
// [render] - DOT generation and SVG/PDF/PNG conversion.
//
// [config] - TOML store configuration.
//
// [cache] - Rendered artifact cache.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...          # All tests
//	go test ./pkg/iddag/...    # Specific package
//	go test -run Example       # Examples only
//
// [vertex]: https://pkg.go.dev/github.com/matzehuels/segdag/pkg/vertex
// [idmap]: https://pkg.go.dev/github.com/matzehuels/segdag/pkg/idmap
// [iddag]: https://pkg.go.dev/github.com/matzehuels/segdag/pkg/iddag
// [dag]: https://pkg.go.dev/github.com/matzehuels/segdag/pkg/dag
// [dag.RemoteProtocol]: https://pkg.go.dev/github.com/matzehuels/segdag/pkg/dag#RemoteProtocol
// [set]: https://pkg.go.dev/github.com/matzehuels/segdag/pkg/set
// [journal]: https://pkg.go.dev/github.com/matzehuels/segdag/pkg/journal
// [clone]: https://pkg.go.dev/github.com/matzehuels/segdag/pkg/clone
// [io]: https://pkg.go.dev/github.com/matzehuels/segdag/pkg/io
// [render]: https://pkg.go.dev/github.com/matzehuels/segdag/pkg/render
// [config]: https://pkg.go.dev/github.com/matzehuels/segdag/pkg/config
// [cache]: https://pkg.go.dev/github.com/matzehuels/segdag/pkg/cache
package pkg
