package dag

import (
	"cmp"
	"context"
	"slices"
	"sort"
	"time"

	"github.com/matzehuels/segdag/pkg/clone"
	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/iddag"
	"github.com/matzehuels/segdag/pkg/idmap"
	"github.com/matzehuels/segdag/pkg/set"
	"github.com/matzehuels/segdag/pkg/vertex"
)

// ExportOptions selects what ExportCloneData includes.
type ExportOptions struct {
	// IncludeNonMaster adds the non-master group. By default only master
	// is exported.
	IncludeNonMaster bool
	// AllNames names every id. By default only segment heads, parents and
	// graph heads are named and the receiver resolves the rest lazily.
	AllNames bool
}

// ExportCloneData returns the persisted graph as a bundle.
func (d *Dag) ExportCloneData(ctx context.Context, opts ExportOptions) (clone.Data, error) {
	d.mu.RLock()
	ids := d.dag.AllInGroup(vertex.Master)
	if opts.IncludeNonMaster {
		ids = ids.Union(d.dag.AllInGroup(vertex.NonMaster))
	}
	segs, v := d.dag.FlatSegments(ids), d.view
	d.mu.RUnlock()
	if opts.AllNames {
		return exportData(ctx, v, segs, ids)
	}
	return exportData(ctx, v, segs, vertex.IDSet{})
}

// ExportPullData returns the flat segments covering s along with the
// names a peer needs to attach them.
func (d *Dag) ExportPullData(ctx context.Context, s set.Set) (clone.Data, error) {
	var ids vertex.IDSet
	var segs iddag.PreparedFlatSegments
	v, err := d.convert(ctx, func(dg *iddag.IdDag, in []vertex.IDSet) {
		ids = in[0]
		segs = dg.FlatSegments(ids)
	}, s)
	if err != nil {
		return clone.Data{}, err
	}
	if !ids.Difference(vertex.NewIDSet(vertex.Virtual.Span())).Equal(ids) {
		return clone.Data{}, derrors.New(derrors.ErrCodeInvalidInput, "virtual vertices cannot be exported")
	}
	return exportData(ctx, v, segs, vertex.IDSet{})
}

// exportData bundles segs, naming extra plus every segment head and
// parent through v.
func exportData(ctx context.Context, v *view, segs iddag.PreparedFlatSegments, extra vertex.IDSet) (clone.Data, error) {
	named := extra.Union(segs.ParentIDs())
	for _, s := range segs.Segments {
		named.Push(s.High)
	}
	list := named.Slice()
	names, err := v.VertexNames(ctx, list)
	if err != nil {
		return clone.Data{}, err
	}
	data := clone.Data{FlatSegments: segs, IdMap: make([]idmap.Entry, len(list))}
	for i, id := range list {
		data.IdMap[i] = idmap.Entry{ID: id, Name: names[i]}
	}
	return data, nil
}

// ImportCloneData loads a bundle into an empty graph, keeping its ids, and
// commits it. Unnamed ids are resolved through the remote protocol.
func (d *Dag) ImportCloneData(ctx context.Context, data clone.Data) error {
	if err := data.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireClean("import clone data"); err != nil {
		return err
	}
	return d.commitImport(ctx, "clone", func() (int, int, error) {
		if !persistedIDs(d.dag).IsEmpty() {
			return 0, 0, derrors.New(derrors.ErrCodeConflict, "clone data can only be imported into an empty graph")
		}
		if err := d.dag.BuildSegmentsFromPreparedFlatSegments(data.FlatSegments); err != nil {
			return 0, 0, derrors.Wrap(derrors.ErrCodeCorruption, err, "import clone segments")
		}
		for _, e := range data.IdMap {
			if err := d.ids.Insert(e.ID, e.Name); err != nil {
				return 0, 0, derrors.Wrap(derrors.ErrCodeCorruption, err, "import clone names")
			}
		}
		d.localEpoch++
		return data.FlatSegments.Len(), len(data.IdMap), d.applyVirtualLocked(ctx, true)
	})
}

// commitImport runs apply with the store locked and up to date, then
// appends what it added. A failure leaves the graph as it was. Caller
// holds d.mu.
func (d *Dag) commitImport(ctx context.Context, kind string, apply func() (segments, names int, err error)) (err error) {
	start := time.Now()
	var segments, names int
	defer func() {
		d.hooks.Dag.OnImportComplete(ctx, kind, segments, names, time.Since(start), err)
	}()
	return d.atomically(func() error {
		return d.importLocked(ctx, kind, apply, &segments, &names)
	})
}

func (d *Dag) importLocked(ctx context.Context, kind string, apply func() (int, int, error), segments, names *int) (err error) {
	if d.store == nil {
		if *segments, *names, err = apply(); err != nil {
			return err
		}
		d.markPersisted(d.meta)
		return nil
	}

	w, err := d.store.Lock(ctx)
	if err != nil {
		return err
	}
	defer w.Unlock()
	if err := d.syncLocked(ctx, w); err != nil {
		return err
	}
	if *segments, *names, err = apply(); err != nil {
		return err
	}
	meta, err := w.Append(encodeEntries(d.ids.Pending()), encodeSegments(d.dag.Dirty()))
	if err != nil {
		return err
	}
	d.markPersisted(meta)
	d.logger.Debug("imported", "kind", kind, "segments", *segments, "names", *names, "epoch", meta.Epoch)
	return nil
}

// pullPiece is part of a remote flat segment, in remote ids, with the
// local group it goes to.
type pullPiece struct {
	low, high vertex.ID
	parents   []vertex.ID
	group     vertex.Group

	// Remote ids up to anchor are already local; anchor maps to
	// anchorLocal. hasAnchor is false when nothing is local.
	hasAnchor   bool
	anchor      vertex.ID
	anchorLocal vertex.ID
	// newLocal is the local id of the first id after the anchor.
	newLocal vertex.ID
}

// ImportPullData attaches remote segments to the local graph and commits
// them. Remote ids are translated to fresh local ids; the ancestors of the
// master heads in heads go to the master group, everything else to the
// non-master group. Non-master segments must be fully named.
func (d *Dag) ImportPullData(ctx context.Context, data clone.Data, heads vertex.HeadList) error {
	if err := data.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireClean("import pull data"); err != nil {
		return err
	}
	return d.commitImport(ctx, "pull", func() (int, int, error) {
		plan, err := d.planPull(data, heads)
		if err != nil {
			return 0, 0, err
		}
		if err := d.build(plan.segments); err != nil {
			return 0, 0, err
		}
		for _, e := range plan.entries {
			if err := d.ids.Insert(e.ID, e.Name); err != nil {
				return 0, 0, derrors.Wrap(derrors.ErrCodeInternal, err, "import pull names")
			}
		}
		for _, h := range heads {
			if !d.ids.ContainsName(h.Name) {
				return 0, 0, derrors.New(derrors.ErrCodeInvalidInput, "head %s is neither local nor in the pull data", h.Name)
			}
		}
		return plan.segments.Len(), len(plan.entries), nil
	})
}

type pullPlan struct {
	segments iddag.PreparedFlatSegments
	entries  []idmap.Entry
}

func (d *Dag) planPull(data clone.Data, heads vertex.HeadList) (pullPlan, error) {
	names := data.Names()
	byName := make(map[vertex.Name]vertex.ID, len(names))
	for id, n := range names {
		byName[n] = id
	}

	pieces, err := splitByGroup(data, names, byName, heads.InGroup(vertex.Master))
	if err != nil {
		return pullPlan{}, err
	}

	next := map[vertex.Group]vertex.ID{
		vertex.Master:    d.dag.NextFreeID(vertex.Master),
		vertex.NonMaster: d.dag.NextFreeID(vertex.NonMaster),
	}
	translate := func(remote vertex.ID) (vertex.ID, error) {
		i := sort.Search(len(pieces), func(i int) bool { return pieces[i].high >= remote })
		if i < len(pieces) && pieces[i].low <= remote {
			// Pieces are processed in ascending order, so a parent's
			// piece is already placed.
			p := pieces[i]
			if p.hasAnchor && remote <= p.anchor {
				return d.dag.FirstAncestorNth(p.anchorLocal, uint64(p.anchor-remote))
			}
			first := p.low
			if p.hasAnchor {
				first = p.anchor + 1
			}
			return p.newLocal + (remote - first), nil
		}
		n, ok := names[remote]
		if !ok {
			return 0, derrors.New(derrors.ErrCodeCorruption, "pull data: parent %s is not named", remote)
		}
		id, ok := d.ids.FindID(n)
		if !ok {
			return 0, derrors.New(derrors.ErrCodeInvalidInput, "pull data: parent %s is not local", n)
		}
		return id, nil
	}

	var plan pullPlan
	for i := range pieces {
		p := &pieces[i]
		d.anchorPiece(p, names)
		first := p.low
		if p.hasAnchor {
			if local := p.anchorLocal.Group(); p.group == vertex.Master && local != vertex.Master {
				return pullPlan{}, derrors.New(derrors.ErrCodeConflict, "pull data: master ancestor %s is a local %s vertex", names[p.anchor], local)
			}
			if p.anchor == p.high {
				continue
			}
			first = p.anchor + 1
		}

		var parents []vertex.ID
		if p.hasAnchor {
			parents = []vertex.ID{p.anchorLocal}
		} else {
			parents = make([]vertex.ID, len(p.parents))
			for j, rp := range p.parents {
				lp, err := translate(rp)
				if err != nil {
					return pullPlan{}, err
				}
				if p.group == vertex.Master && lp.Group() != vertex.Master {
					return pullPlan{}, derrors.New(derrors.ErrCodeConflict, "pull data: master vertex %s has non-master parent %s", names[p.high], lp)
				}
				parents[j] = lp
			}
		}

		p.newLocal = next[p.group]
		count := p.high - first
		if p.newLocal+count > p.group.MaxID() {
			return pullPlan{}, derrors.New(derrors.ErrCodeInternal, "%s group has no free ids", p.group)
		}
		next[p.group] += count + 1
		plan.segments.Segments = append(plan.segments.Segments, iddag.FlatSegment{
			Low: p.newLocal, High: p.newLocal + count, Parents: parents,
		})
		for remote := first; remote <= p.high; remote++ {
			if n, ok := names[remote]; ok {
				plan.entries = append(plan.entries, idmap.Entry{ID: p.newLocal + (remote - first), Name: n})
			}
		}
	}
	slices.SortFunc(plan.segments.Segments, func(a, b iddag.FlatSegment) int { return cmp.Compare(a.Low, b.Low) })
	return plan, nil
}

// anchorPiece finds the highest named id of p that is already local.
func (d *Dag) anchorPiece(p *pullPiece, names map[vertex.ID]vertex.Name) {
	for remote := p.high; ; remote-- {
		if n, ok := names[remote]; ok {
			if id, ok := d.ids.FindID(n); ok {
				p.hasAnchor, p.anchor, p.anchorLocal = true, remote, id
				return
			}
		}
		if remote == p.low {
			return
		}
	}
}

// splitByGroup cuts the remote segments into pieces that belong to one
// local group. A sweep from the highest segment marks the ancestors of
// masterHeads.
func splitByGroup(data clone.Data, names map[vertex.ID]vertex.Name, byName map[vertex.Name]vertex.ID, masterHeads []vertex.Name) ([]pullPiece, error) {
	segs := data.FlatSegments.Segments
	var marked vertex.IDSet
	for _, h := range masterHeads {
		if id, ok := byName[h]; ok {
			marked.Push(id)
		}
	}

	cut := make([]vertex.ID, len(segs)) // highest master id + 1, or low
	for i := len(segs) - 1; i >= 0; i-- {
		s := segs[i]
		top, ok := marked.IntersectSpan(s.Span()).Max()
		if !ok {
			cut[i] = s.Low
			continue
		}
		cut[i] = top + 1
		for _, p := range s.Parents {
			marked.Push(p)
		}
	}

	var pieces []pullPiece
	for i, s := range segs {
		if cut[i] > s.Low {
			if _, ok := names[cut[i]-1]; !ok {
				return nil, derrors.New(derrors.ErrCodeInvalidInput, "pull data: master boundary %s is not named", cut[i]-1)
			}
			pieces = append(pieces, pullPiece{low: s.Low, high: cut[i] - 1, parents: s.Parents, group: vertex.Master})
		}
		if cut[i] <= s.High {
			parents := s.Parents
			if cut[i] > s.Low {
				parents = []vertex.ID{cut[i] - 1}
			}
			for id := cut[i]; id <= s.High; id++ {
				if _, ok := names[id]; !ok {
					return nil, derrors.New(derrors.ErrCodeInvalidInput, "pull data: non-master id %s is not named", id)
				}
			}
			pieces = append(pieces, pullPiece{low: cut[i], high: s.High, parents: parents, group: vertex.NonMaster})
		}
	}
	return pieces, nil
}
