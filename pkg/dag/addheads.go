package dag

import (
	"context"
	"errors"

	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/iddag"
	"github.com/matzehuels/segdag/pkg/idmap"
	"github.com/matzehuels/segdag/pkg/set"
	"github.com/matzehuels/segdag/pkg/vertex"
)

// AddHeads assigns ids to heads and their missing ancestors. Nothing is
// written until Flush. On error the graph is left as it was.
func (d *Dag) AddHeads(ctx context.Context, parents vertex.Parents, heads vertex.HeadList) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writable(); err != nil {
		return err
	}
	return d.atomically(func() error {
		return d.addHeadsLocked(ctx, parents, heads)
	})
}

// AddHeadsAndFlush adds heads and flushes, using the master heads among
// them as the flush's master heads.
func (d *Dag) AddHeadsAndFlush(ctx context.Context, parents vertex.Parents, heads vertex.HeadList) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writable(); err != nil {
		return err
	}
	return d.atomically(func() error {
		if err := d.addHeadsLocked(ctx, parents, heads); err != nil {
			return err
		}
		return d.flushLocked(ctx, heads.InGroup(vertex.Master))
	})
}

// ImportAndFlush copies every vertex of other into d and flushes.
// masterHeads and their ancestors go to the master group.
func (d *Dag) ImportAndFlush(ctx context.Context, other *Dag, masterHeads []vertex.Name) error {
	if other == d {
		return derrors.New(derrors.ErrCodeProgramming, "cannot import a graph into itself")
	}
	all, err := other.All(ctx)
	if err != nil {
		return err
	}
	heads, err := other.Heads(ctx, all)
	if err != nil {
		return err
	}
	names, err := set.Collect(ctx, heads)
	if err != nil {
		return err
	}
	list := vertex.MasterHeads(masterHeads...).Concat(vertex.NonMasterHeads(names...))
	return d.AddHeadsAndFlush(ctx, other, list)
}

func (d *Dag) addHeadsLocked(ctx context.Context, parents vertex.Parents, heads vertex.HeadList) error {
	p := d.lazyParents(parents)
	covered := d.dag.All()
	var reserved vertex.IDSet
	for _, h := range heads {
		if h.Group == vertex.Virtual {
			return derrors.New(derrors.ErrCodeInvalidInput, "virtual vertex %s must be set through the managed virtual group", h.Name)
		}
		if err := d.addHeadLocked(ctx, p, h, &covered, &reserved); err != nil {
			return err
		}
		d.pendingHeads = append(d.pendingHeads, h)
	}
	return nil
}

func (d *Dag) addHeadLocked(ctx context.Context, parents vertex.Parents, h vertex.HeadOptions, covered, reserved *vertex.IDSet) error {
	outcome, err := d.ids.AssignHead(ctx, h.Name, parents, h.Group, covered, *reserved)
	if errors.Is(err, idmap.ErrNeedsReassign) {
		return d.reassign(ctx, parents, h, covered, reserved)
	}
	if err != nil {
		return err
	}
	if err := d.build(outcome); err != nil {
		return err
	}
	d.reserveAfter(h, covered, reserved)
	return nil
}

// reassign moves the non-master group out of the way, adds the master
// head, then re-adds the remaining non-master heads and the virtual group.
func (d *Dag) reassign(ctx context.Context, parents vertex.Parents, h vertex.HeadOptions, covered, reserved *vertex.IDSet) error {
	saved, err := d.detachNonMaster()
	if err != nil {
		return err
	}
	d.logger.Debug("moving non-master vertices to master", "head", h.Name, "non_master_heads", len(saved.heads))

	p := vertex.Overlay{saved.parents, parents}
	*covered = d.dag.All()
	outcome, err := d.ids.AssignHead(ctx, h.Name, p, h.Group, covered, *reserved)
	if err != nil {
		return err
	}
	if err := d.build(outcome); err != nil {
		return err
	}
	d.reserveAfter(h, covered, reserved)

	for _, name := range saved.heads {
		outcome, err := d.ids.AssignHead(ctx, name, p, vertex.NonMaster, covered, *reserved)
		if err != nil {
			return err
		}
		if err := d.build(outcome); err != nil {
			return err
		}
	}
	return d.applyVirtualLocked(ctx, false)
}

type detached struct {
	parents vertex.ParentMap
	heads   []vertex.Name
}

// detachNonMaster removes the non-master and virtual groups, remembering
// enough to re-add the non-master vertices.
func (d *Dag) detachNonMaster() (detached, error) {
	nm := d.dag.AllInGroup(vertex.NonMaster)
	out := detached{parents: make(vertex.ParentMap, nm.Count())}
	name := func(id vertex.ID) (vertex.Name, error) {
		n, ok := d.ids.FindName(id)
		if !ok {
			return "", derrors.New(derrors.ErrCodeUnsupported, "non-master vertex %s has no local name", id)
		}
		return n, nil
	}
	for id := range nm.IterAsc() {
		n, err := name(id)
		if err != nil {
			return detached{}, err
		}
		pids, err := d.dag.ParentIDs(id)
		if err != nil {
			return detached{}, err
		}
		ps := make([]vertex.Name, len(pids))
		for i, pid := range pids {
			if ps[i], err = name(pid); err != nil {
				return detached{}, err
			}
		}
		out.parents[n] = ps
	}
	for id := range d.dag.Heads(nm).IterAsc() {
		n, _ := d.ids.FindName(id)
		out.heads = append(out.heads, n)
	}

	d.dropGroup(vertex.Virtual)
	d.dropGroup(vertex.NonMaster)
	d.persisted = d.persisted.Difference(nm)
	d.needsRewrite = true
	return out, nil
}

func (d *Dag) dropGroup(g vertex.Group) {
	removed := d.dag.RemoveGroup(g)
	d.ids.RemoveGroup(g)
	if !removed.IsEmpty() {
		d.localEpoch++
		d.version++
	}
}

func (d *Dag) build(outcome iddag.PreparedFlatSegments) error {
	if outcome.Len() == 0 {
		return nil
	}
	if err := d.dag.BuildSegmentsFromPreparedFlatSegments(outcome); err != nil {
		return derrors.Wrap(derrors.ErrCodeInternal, err, "build segments")
	}
	d.version++
	return nil
}

func (d *Dag) reserveAfter(h vertex.HeadOptions, covered, reserved *vertex.IDSet) {
	if h.ReserveSize == 0 {
		return
	}
	if id, ok := d.ids.FindID(h.Name); ok {
		*reserved = reserved.Union(idmap.Reserve(id, h.ReserveSize, *covered))
	}
}

// lazyParents resolves parent names through the remote before id
// assignment sees them, so lazily known vertices are not assigned twice.
func (d *Dag) lazyParents(parents vertex.Parents) vertex.Parents {
	if d.remote == nil || !d.isLazyLocked() {
		return parents
	}
	return vertex.ParentsFunc(func(ctx context.Context, name vertex.Name) ([]vertex.Name, error) {
		ps, err := parents.ParentNames(ctx, name)
		if err != nil {
			return nil, err
		}
		var missing []vertex.Name
		for _, p := range ps {
			if !d.ids.ContainsName(p) {
				missing = append(missing, p)
			}
		}
		if len(missing) > 0 {
			if _, err := d.resolveIDs(ctx, missing, true); err != nil {
				return nil, err
			}
		}
		return ps, nil
	})
}
