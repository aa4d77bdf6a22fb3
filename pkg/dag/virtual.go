package dag

import (
	"context"
	"errors"

	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/vertex"
)

// VirtualVertex is a synthetic vertex held only in memory, such as a null
// root or the working copy.
type VirtualVertex struct {
	Name    vertex.Name
	Parents []vertex.Name
}

// SetManagedVirtualGroup replaces the virtual group with items. Parents
// must be earlier items or existing vertices. Persisted groups are not
// touched and the graph does not become dirty.
func (d *Dag) SetManagedVirtualGroup(ctx context.Context, items []VirtualVertex) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writable(); err != nil {
		return err
	}
	return d.atomically(func() error {
		d.virtual = append([]VirtualVertex(nil), items...)
		return d.applyVirtualLocked(ctx, false)
	})
}

// applyVirtualLocked rebuilds the virtual group from d.virtual. With
// skipMissing, items whose parents no longer exist are dropped.
func (d *Dag) applyVirtualLocked(ctx context.Context, skipMissing bool) error {
	d.dropGroup(vertex.Virtual)
	if len(d.virtual) == 0 {
		return nil
	}

	pm := make(vertex.ParentMap, len(d.virtual))
	for _, v := range d.virtual {
		pm[v.Name] = v.Parents
	}
	if skipMissing {
		kept := d.virtual[:0]
		for _, v := range d.virtual {
			if d.virtualParentsExist(v, pm) {
				kept = append(kept, v)
			} else {
				delete(pm, v.Name)
			}
		}
		d.virtual = kept
	}

	covered := d.dag.All()
	for _, v := range d.virtual {
		if id, ok := d.ids.FindID(v.Name); ok {
			return derrors.New(derrors.ErrCodeInvalidInput, "virtual vertex %s already exists as %s", v.Name, id)
		}
		outcome, err := d.ids.AssignHead(ctx, v.Name, pm, vertex.Virtual, &covered, vertex.IDSet{})
		if err != nil {
			d.dropGroup(vertex.Virtual)
			if errors.Is(err, vertex.ErrUnknownVertex) {
				return derrors.Wrap(derrors.ErrCodeInvalidInput, err, "virtual vertex %s", v.Name)
			}
			return err
		}
		if err := d.build(outcome); err != nil {
			return err
		}
	}
	d.localEpoch++
	d.logger.Debug("set virtual group", "vertices", len(d.virtual))
	return nil
}

func (d *Dag) virtualParentsExist(v VirtualVertex, pm vertex.ParentMap) bool {
	for _, p := range v.Parents {
		if _, ok := pm[p]; ok {
			continue
		}
		if !d.ids.ContainsName(p) {
			return false
		}
	}
	return true
}

