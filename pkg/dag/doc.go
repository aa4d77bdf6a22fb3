// Package dag is the vertex-oriented façade over the segmented commit
// graph.
//
// # Overview
//
// A [Dag] combines the name/id bijection ([idmap]), the segment index
// ([iddag]) and an optional on-disk store ([journal]). Callers speak in
// vertex names and [set.Set] values; ids never leak out of the package
// except through [set.IDStatic] and the debugging helpers.
//
// # Basic Usage
//
// Add heads with a parents function, query, then flush:
//
//	d, err := dag.Open(ctx, "/path/to/store", dag.Options{})
//	parents := vertex.ParentMap{"B": {"A"}, "A": nil}
//	err = d.AddHeads(ctx, parents, vertex.MasterHeads("B"))
//	anc, err := d.Ancestors(ctx, set.FromNames("B"))
//	err = d.Flush(ctx, []vertex.Name{"B"})
//
// [NewMem] returns a graph without persistence for tests and scratch use.
//
// # Groups
//
// Heads are added to the master group (the main line) or the non-master
// group (drafts). Adding a master head whose ancestry includes non-master
// vertices moves those vertices into the master group and renumbers the
// rest of the non-master group. The virtual group holds synthetic vertices
// set with [Dag.SetManagedVirtualGroup]; it is never written to disk.
//
// # Persistence
//
// Mutations stay in memory until [Dag.Flush]. Flush takes the store's
// writer lock, replays local additions on top of any newer on-disk state
// written by another process, and commits with a single metadata rename.
// [Dag.Strip], [Dag.ImportCloneData] and [Dag.ImportPullData] write
// immediately and require a clean graph. A mutation that fails leaves the
// graph as it was before the call.
//
// # Lazy Graphs
//
// A graph populated from a [clone.Data] bundle that names only segment
// boundaries resolves the remaining names on demand through a
// [RemoteProtocol]. Every [Dag] also implements [RemoteProtocol] so one
// graph can serve another.
//
// # Concurrency
//
// A Dag is safe for concurrent use. Sets returned by queries call back into
// the Dag while they are iterated. A set keeps naming the vertices it was
// computed from after a reassignment or strip renumbers the graph; passing
// it to a later query translates it by name.
//
// [idmap]: github.com/matzehuels/segdag/pkg/idmap
// [iddag]: github.com/matzehuels/segdag/pkg/iddag
// [journal]: github.com/matzehuels/segdag/pkg/journal
package dag
