package dag

import (
	"context"

	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/set"
	"github.com/matzehuels/segdag/pkg/vertex"
)

var (
	_ set.IDConvert  = (*Dag)(nil)
	_ vertex.Parents = (*Dag)(nil)
)

// VertexID returns the id of name, consulting the remote for lazy graphs.
func (d *Dag) VertexID(ctx context.Context, name vertex.Name) (vertex.ID, error) {
	id, ok, err := d.VertexIDOptional(ctx, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, derrors.NotFoundName(name)
	}
	return id, nil
}

// VertexIDOptional is VertexID reporting absence as ok=false.
func (d *Dag) VertexIDOptional(ctx context.Context, name vertex.Name) (vertex.ID, bool, error) {
	return d.vertexIDOptional(ctx, name, false)
}

func (d *Dag) vertexIDOptional(ctx context.Context, name vertex.Name, held bool) (vertex.ID, bool, error) {
	unlock := d.rlock(held)
	id, ok := d.ids.FindID(name)
	lazy := !ok && d.remote != nil && d.isLazyLocked()
	unlock()
	if !lazy {
		return id, ok, nil
	}
	found, err := d.resolveIDs(ctx, []vertex.Name{name}, held)
	if err != nil {
		return 0, false, err
	}
	id, ok = found[name]
	return id, ok, nil
}

// VertexName returns the name of id.
func (d *Dag) VertexName(ctx context.Context, id vertex.ID) (vertex.Name, error) {
	names, err := d.VertexNames(ctx, []vertex.ID{id})
	if err != nil {
		return "", err
	}
	return names[0], nil
}

// VertexNames resolves ids in order, batching remote lookups.
func (d *Dag) VertexNames(ctx context.Context, ids []vertex.ID) ([]vertex.Name, error) {
	return d.vertexNames(ctx, ids, false)
}

func (d *Dag) vertexNames(ctx context.Context, ids []vertex.ID, held bool) ([]vertex.Name, error) {
	out := make([]vertex.Name, len(ids))
	var missing []vertex.ID
	var slots []int

	unlock := d.rlock(held)
	for i, id := range ids {
		if n, ok := d.ids.FindName(id); ok {
			out[i] = n
			continue
		}
		if !d.dag.Contains(id) {
			unlock()
			return nil, derrors.NotFoundID(id)
		}
		missing = append(missing, id)
		slots = append(slots, i)
	}
	unlock()

	if len(missing) == 0 {
		return out, nil
	}
	names, err := d.resolveNames(ctx, missing, held)
	if err != nil {
		return nil, err
	}
	for j, i := range slots {
		out[i] = names[j]
	}
	return out, nil
}

// ContainsName reports whether the graph holds name.
func (d *Dag) ContainsName(ctx context.Context, name vertex.Name) (bool, error) {
	_, ok, err := d.VertexIDOptional(ctx, name)
	return ok, err
}

// ContainsNameLocally reports whether name is known without asking the
// remote.
func (d *Dag) ContainsNameLocally(name vertex.Name) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ids.ContainsName(name)
}

// ContainsIDLocally reports whether id is indexed.
func (d *Dag) ContainsIDLocally(id vertex.ID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dag.Contains(id)
}

// VertexNamesByHexPrefix returns up to limit locally known names whose hex
// form starts with prefix.
func (d *Dag) VertexNamesByHexPrefix(prefix string, limit int) []vertex.Name {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ids.NamesByHexPrefix(prefix, limit)
}

// ParentNames returns the parents of name, first parent first.
func (d *Dag) ParentNames(ctx context.Context, name vertex.Name) ([]vertex.Name, error) {
	return d.parentNames(ctx, name, false)
}

func (d *Dag) parentNames(ctx context.Context, name vertex.Name, held bool) ([]vertex.Name, error) {
	id, ok, err := d.vertexIDOptional(ctx, name, held)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, derrors.NotFoundName(name)
	}
	unlock := d.rlock(held)
	pids, err := d.dag.ParentIDs(id)
	unlock()
	if err != nil {
		return nil, err
	}
	return d.vertexNames(ctx, pids, held)
}

// heldParents reads parents from d while the caller holds d.mu for
// writing.
func (d *Dag) heldParents() vertex.Parents {
	return vertex.ParentsFunc(func(ctx context.Context, name vertex.Name) ([]vertex.Name, error) {
		return d.parentNames(ctx, name, true)
	})
}
