package dag

import (
	"context"
	"slices"

	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/iddag"
	"github.com/matzehuels/segdag/pkg/idmap"
	"github.com/matzehuels/segdag/pkg/journal"
	"github.com/matzehuels/segdag/pkg/set"
	"github.com/matzehuels/segdag/pkg/vertex"
)

// view is the id space of one map id. Sets returned by queries convert
// through the view they were computed in. When ids change meaning the
// view is retired with a copy of its names, so those sets keep resolving
// to the vertices they were built from.
type view struct {
	d     *Dag
	mapID string

	// retired is set under d.mu once the graph moved to another map id.
	retired *idmap.IdMap
}

var _ set.IDConvert = (*view)(nil)

func (d *Dag) newView() *view {
	return &view{d: d, mapID: d.mapIDLocked()}
}

// currentView returns the view queries convert through.
func (d *Dag) currentView() *view {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.view
}

func (v *view) frozen() *idmap.IdMap {
	v.d.mu.RLock()
	defer v.d.mu.RUnlock()
	return v.retired
}

func (v *view) MapID() string { return v.mapID }

func (v *view) VertexID(ctx context.Context, name vertex.Name) (vertex.ID, error) {
	id, ok, err := v.VertexIDOptional(ctx, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, derrors.NotFoundName(name)
	}
	return id, nil
}

// The graph answers while the view is current. An answer is discarded if
// the view retired while it was computed.
func (v *view) VertexIDOptional(ctx context.Context, name vertex.Name) (vertex.ID, bool, error) {
	if m := v.frozen(); m != nil {
		id, ok := m.FindID(name)
		return id, ok, nil
	}
	id, ok, err := v.d.VertexIDOptional(ctx, name)
	if m := v.frozen(); m != nil {
		id, ok := m.FindID(name)
		return id, ok, nil
	}
	return id, ok, err
}

func (v *view) VertexName(ctx context.Context, id vertex.ID) (vertex.Name, error) {
	names, err := v.VertexNames(ctx, []vertex.ID{id})
	if err != nil {
		return "", err
	}
	return names[0], nil
}

func (v *view) VertexNames(ctx context.Context, ids []vertex.ID) ([]vertex.Name, error) {
	if m := v.frozen(); m != nil {
		return retiredNames(m, ids)
	}
	names, err := v.d.VertexNames(ctx, ids)
	if m := v.frozen(); m != nil {
		return retiredNames(m, ids)
	}
	return names, err
}

func retiredNames(m *idmap.IdMap, ids []vertex.ID) ([]vertex.Name, error) {
	out := make([]vertex.Name, len(ids))
	for i, id := range ids {
		n, err := m.VertexName(id)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// convert translates sets to ids of the current view and runs fn on the
// index under the read lock. It starts over if the view retired while
// the sets were being translated.
func (d *Dag) convert(ctx context.Context, fn func(dg *iddag.IdDag, in []vertex.IDSet), sets ...set.Set) (*view, error) {
	for {
		v := d.currentView()
		in := make([]vertex.IDSet, len(sets))
		for i, s := range sets {
			ids, err := set.ToIDSet(ctx, s, v)
			if err != nil {
				return nil, err
			}
			in[i] = ids
		}
		d.mu.RLock()
		if d.view == v {
			fn(d.dag, in)
			d.mu.RUnlock()
			return v, nil
		}
		d.mu.RUnlock()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// state is the mutable part of the memory image.
type state struct {
	meta         journal.Meta
	dag          *iddag.IdDag
	ids          *idmap.IdMap
	persisted    vertex.IDSet
	pendingHeads vertex.HeadList
	needsRewrite bool
	virtual      []VirtualVertex
	localEpoch   uint64
}

func (d *Dag) save() state {
	return state{
		meta:         d.meta,
		dag:          d.dag.Clone(),
		ids:          d.ids.Clone(),
		persisted:    d.persisted.Clone(),
		pendingHeads: slices.Clone(d.pendingHeads),
		needsRewrite: d.needsRewrite,
		virtual:      slices.Clone(d.virtual),
		localEpoch:   d.localEpoch,
	}
}

func (d *Dag) restore(s state) {
	d.meta = s.meta
	d.dag, d.ids = s.dag, s.ids
	d.persisted = s.persisted
	d.pendingHeads = s.pendingHeads
	d.needsRewrite = s.needsRewrite
	d.virtual = s.virtual
	d.localEpoch = s.localEpoch
	d.version++
}

// atomically runs fn, a mutation of the memory image, and puts the image
// back as it was if fn fails. On success the current view is retired if
// ids changed meaning. Caller holds d.mu for writing.
func (d *Dag) atomically(fn func() error) error {
	saved := d.save()
	if err := fn(); err != nil {
		d.restore(saved)
		d.logger.Debug("rolled back", "err", err)
		return err
	}
	if d.mapIDLocked() != d.view.mapID {
		d.view.retired = saved.ids
		d.view = d.newView()
	}
	return nil
}
