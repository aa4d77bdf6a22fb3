package dag

import (
	"context"
	"fmt"

	"github.com/matzehuels/segdag/pkg/iddag"
	"github.com/matzehuels/segdag/pkg/set"
	"github.com/matzehuels/segdag/pkg/vertex"
)

// Sets returned by queries are bound to the map id current at the time of
// the call and resolve names lazily, through that map id's names even
// after the graph moved on. Inputs from another graph or an older map id
// are translated by name.

// query converts s, runs fn under the read lock and wraps the result.
func (d *Dag) query(ctx context.Context, s set.Set, flags set.Flags, fn func(*iddag.IdDag, vertex.IDSet) vertex.IDSet) (set.Set, error) {
	var out vertex.IDSet
	v, err := d.convert(ctx, func(dg *iddag.IdDag, in []vertex.IDSet) { out = fn(dg, in[0]) }, s)
	if err != nil {
		return nil, err
	}
	return set.FromIDSet(out, v, flags), nil
}

func (d *Dag) query2(ctx context.Context, a, b set.Set, flags set.Flags, fn func(dg *iddag.IdDag, a, b vertex.IDSet) vertex.IDSet) (set.Set, error) {
	var out vertex.IDSet
	v, err := d.convert(ctx, func(dg *iddag.IdDag, in []vertex.IDSet) { out = fn(dg, in[0], in[1]) }, a, b)
	if err != nil {
		return nil, err
	}
	return set.FromIDSet(out, v, flags), nil
}

// snapshot wraps the ids fn selects from the current index.
func (d *Dag) snapshot(flags set.Flags, fn func(*iddag.IdDag) vertex.IDSet) set.Set {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return set.FromIDSet(fn(d.dag), d.view, flags)
}

// All returns every vertex.
func (d *Dag) All(context.Context) (set.Set, error) {
	return d.snapshot(set.FlagFull|set.FlagAncestors, (*iddag.IdDag).All), nil
}

func (d *Dag) group(g vertex.Group, flags set.Flags) set.Set {
	return d.snapshot(flags, func(dg *iddag.IdDag) vertex.IDSet { return dg.AllInGroup(g) })
}

// MasterGroup returns the master vertices. They are closed under ancestors.
func (d *Dag) MasterGroup(context.Context) (set.Set, error) {
	return d.group(vertex.Master, set.FlagAncestors), nil
}

// NonMasterGroup returns the non-master vertices.
func (d *Dag) NonMasterGroup(context.Context) (set.Set, error) {
	return d.group(vertex.NonMaster, 0), nil
}

// VirtualGroup returns the vertices set by SetManagedVirtualGroup.
func (d *Dag) VirtualGroup(context.Context) (set.Set, error) {
	return d.group(vertex.Virtual, 0), nil
}

// Dirty returns the persisted-group vertices not yet flushed.
func (d *Dag) Dirty(context.Context) (set.Set, error) {
	return d.snapshot(0, func(dg *iddag.IdDag) vertex.IDSet {
		return persistedIDs(dg).Difference(d.persisted)
	}), nil
}

// Sort returns s ordered by id, parents before children.
func (d *Dag) Sort(ctx context.Context, s set.Set) (set.Set, error) {
	if s.Hints().Has(set.FlagIDAsc) && s.Hints().MapID() == d.MapID() {
		return s, nil
	}
	return d.query(ctx, s, 0, func(_ *iddag.IdDag, in vertex.IDSet) vertex.IDSet { return in })
}

// Ancestors returns s and every vertex reachable through parents.
func (d *Dag) Ancestors(ctx context.Context, s set.Set) (set.Set, error) {
	if s.Hints().Has(set.FlagAncestors) && s.Hints().MapID() == d.MapID() {
		return s, nil
	}
	return d.query(ctx, s, set.FlagAncestors, (*iddag.IdDag).Ancestors)
}

// Descendants returns s and every vertex reachable through children.
func (d *Dag) Descendants(ctx context.Context, s set.Set) (set.Set, error) {
	return d.query(ctx, s, 0, (*iddag.IdDag).Descendants)
}

// Range returns the descendants of roots that are ancestors of heads.
func (d *Dag) Range(ctx context.Context, roots, heads set.Set) (set.Set, error) {
	return d.query2(ctx, roots, heads, 0, (*iddag.IdDag).Range)
}

// Parents returns the direct parents of s.
func (d *Dag) Parents(ctx context.Context, s set.Set) (set.Set, error) {
	return d.query(ctx, s, 0, (*iddag.IdDag).Parents)
}

// Children returns the direct children of s.
func (d *Dag) Children(ctx context.Context, s set.Set) (set.Set, error) {
	return d.query(ctx, s, 0, (*iddag.IdDag).Children)
}

// Heads returns the members of s with no children in s.
func (d *Dag) Heads(ctx context.Context, s set.Set) (set.Set, error) {
	return d.query(ctx, s, 0, (*iddag.IdDag).Heads)
}

// Roots returns the members of s with no parents in s.
func (d *Dag) Roots(ctx context.Context, s set.Set) (set.Set, error) {
	return d.query(ctx, s, 0, (*iddag.IdDag).Roots)
}

// HeadsAncestors is Heads(Ancestors(s)).
func (d *Dag) HeadsAncestors(ctx context.Context, s set.Set) (set.Set, error) {
	return d.query(ctx, s, 0, (*iddag.IdDag).HeadsAncestors)
}

// CommonAncestors returns the vertices that are ancestors of every member
// of s.
func (d *Dag) CommonAncestors(ctx context.Context, s set.Set) (set.Set, error) {
	return d.query(ctx, s, set.FlagAncestors, (*iddag.IdDag).CommonAncestors)
}

// GCAAll returns the heads of CommonAncestors(s).
func (d *Dag) GCAAll(ctx context.Context, s set.Set) (set.Set, error) {
	return d.query(ctx, s, 0, (*iddag.IdDag).GCAAll)
}

// GCAOne returns one greatest common ancestor of s, preferring the highest
// id. ok is false when s has no common ancestor.
func (d *Dag) GCAOne(ctx context.Context, s set.Set) (vertex.Name, bool, error) {
	var id vertex.ID
	var ok bool
	v, err := d.convert(ctx, func(dg *iddag.IdDag, in []vertex.IDSet) { id, ok = dg.GCAOne(in[0]) }, s)
	if err != nil || !ok {
		return "", false, err
	}
	name, err := v.VertexName(ctx, id)
	return name, err == nil, err
}

// IsAncestor reports whether a is an ancestor of b. A vertex is its own
// ancestor.
func (d *Dag) IsAncestor(ctx context.Context, a, b vertex.Name) (bool, error) {
	var ok bool
	_, err := d.convert(ctx, func(dg *iddag.IdDag, in []vertex.IDSet) {
		x, _ := in[0].Min()
		y, _ := in[1].Min()
		ok = dg.IsAncestor(x, y)
	}, set.FromNames(a), set.FromNames(b))
	return ok, err
}

// FirstAncestorNth follows first parents n times from name.
func (d *Dag) FirstAncestorNth(ctx context.Context, name vertex.Name, n uint64) (vertex.Name, error) {
	var id vertex.ID
	var walkErr error
	v, err := d.convert(ctx, func(dg *iddag.IdDag, in []vertex.IDSet) {
		start, _ := in[0].Min()
		id, walkErr = dg.FirstAncestorNth(start, n)
	}, set.FromNames(name))
	if err != nil {
		return "", err
	}
	if walkErr != nil {
		return "", walkErr
	}
	return v.VertexName(ctx, id)
}

// FirstAncestors returns s and every vertex reachable through first
// parents.
func (d *Dag) FirstAncestors(ctx context.Context, s set.Set) (set.Set, error) {
	return d.query(ctx, s, 0, (*iddag.IdDag).FirstAncestors)
}

// Merges returns the members of s with more than one parent. Membership
// checks read segment metadata without evaluating the set.
func (d *Dag) Merges(ctx context.Context, s set.Set) (set.Set, error) {
	var in vertex.IDSet
	v, err := d.convert(ctx, func(_ *iddag.IdDag, ids []vertex.IDSet) { in = ids[0] }, s)
	if err != nil {
		return nil, err
	}
	eval := func(ctx context.Context) (set.Set, error) {
		d.mu.RLock()
		if d.view == v {
			defer d.mu.RUnlock()
			return set.FromIDSet(d.dag.Merges(in), v, 0), nil
		}
		d.mu.RUnlock()
		return d.query(ctx, set.FromIDSet(in, v, 0), 0, (*iddag.IdDag).Merges)
	}
	contains := func(ctx context.Context, name vertex.Name) (bool, error) {
		id, ok, err := v.VertexIDOptional(ctx, name)
		if err != nil || !ok || !in.Contains(id) {
			return false, err
		}
		d.mu.RLock()
		if d.view == v {
			defer d.mu.RUnlock()
			return d.dag.IsMerge(id), nil
		}
		d.mu.RUnlock()
		ps, err := d.ParentNames(ctx, name)
		return len(ps) > 1, err
	}
	hints := set.NewHints(v.MapID()).WithIDs(in).WithFlags(set.FlagIDAsc)
	return set.FromEvaluate(fmt.Sprintf("merges(%s)", s), eval, hints, set.WithContains(contains)), nil
}

// Only returns the ancestors of a that are not ancestors of b.
func (d *Dag) Only(ctx context.Context, a, b set.Set) (set.Set, error) {
	return d.query2(ctx, a, b, 0, (*iddag.IdDag).Only)
}

// OnlyBoth returns Only(a, b) and the ancestors of b visited while
// computing it.
func (d *Dag) OnlyBoth(ctx context.Context, a, b set.Set) (only, ancestorsB set.Set, err error) {
	var o, anc vertex.IDSet
	v, err := d.convert(ctx, func(dg *iddag.IdDag, in []vertex.IDSet) { o, anc = dg.OnlyBoth(in[0], in[1]) }, a, b)
	if err != nil {
		return nil, nil, err
	}
	return set.FromIDSet(o, v, 0), set.FromIDSet(anc, v, 0), nil
}

// ReachableRoots returns the members of roots that are ancestors of heads.
func (d *Dag) ReachableRoots(ctx context.Context, roots, heads set.Set) (set.Set, error) {
	return d.query2(ctx, roots, heads, 0, (*iddag.IdDag).ReachableRoots)
}

// SliceAncestors splits Ancestors(heads) into batches of at most size
// vertices, parents before children.
func (d *Dag) SliceAncestors(ctx context.Context, heads set.Set, size uint64) ([]set.Set, error) {
	var slices []vertex.IDSet
	v, err := d.convert(ctx, func(dg *iddag.IdDag, in []vertex.IDSet) { slices = dg.SliceAncestors(in[0], size) }, heads)
	if err != nil {
		return nil, err
	}
	out := make([]set.Set, len(slices))
	for i, s := range slices {
		out[i] = set.FromIDSet(s, v, 0)
	}
	return out, nil
}

// CheckSegments reports broken index invariants and id map entries for
// unindexed ids. An empty result means the graph is consistent.
func (d *Dag) CheckSegments() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	problems := d.dag.CheckSegments()
	for _, e := range d.ids.Entries() {
		if !d.dag.Contains(e.ID) {
			problems = append(problems, fmt.Sprintf("id map entry %s=%s is not indexed", e.ID, e.Name))
		}
	}
	return problems
}

// DebugSegments returns the segments of group g at level.
func (d *Dag) DebugSegments(level iddag.Level, g vertex.Group) []iddag.Segment {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dag.SegmentsInGroup(level, g)
}
