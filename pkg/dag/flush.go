package dag

import (
	"context"
	"time"

	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/idmap"
	"github.com/matzehuels/segdag/pkg/journal"
	"github.com/matzehuels/segdag/pkg/observability"
	"github.com/matzehuels/segdag/pkg/vertex"
)

// Flush adds masterHeads to the master group and commits every pending
// change. If another process committed since this handle loaded, its
// changes are loaded first and the local pending heads replayed on top.
func (d *Dag) Flush(ctx context.Context, masterHeads []vertex.Name) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writable(); err != nil {
		return err
	}
	return d.atomically(func() error {
		return d.flushLocked(ctx, masterHeads)
	})
}

func (d *Dag) flushLocked(ctx context.Context, masterHeads []vertex.Name) (err error) {
	if d.store == nil {
		if err := d.addHeadsLocked(ctx, d.heldParents(), vertex.MasterHeads(masterHeads...)); err != nil {
			return err
		}
		d.markPersisted(d.meta)
		return nil
	}

	start := time.Now()
	mode := observability.FlushNoop
	var entries, segments int
	d.hooks.Dag.OnFlushStart(ctx, d.store.Dir())
	defer func() {
		d.hooks.Dag.OnFlushComplete(ctx, d.store.Dir(), mode, entries, segments, time.Since(start), err)
	}()

	w, err := d.store.Lock(ctx)
	if err != nil {
		return err
	}
	defer w.Unlock()

	if err := d.syncLocked(ctx, w); err != nil {
		return err
	}
	if err := d.addHeadsLocked(ctx, d.heldParents(), vertex.MasterHeads(masterHeads...)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var meta journal.Meta
	switch {
	case d.needsRewrite:
		mode = observability.FlushRewrite
		es, ss := d.ids.Entries(), d.dag.Persisted()
		entries, segments = len(es), len(ss)
		meta, err = w.Rewrite(encodeEntries(es), encodeSegments(ss))
	case d.isDirtyLocked():
		mode = observability.FlushAppend
		es, ss := d.ids.Pending(), d.dag.Dirty()
		entries, segments = len(es), len(ss)
		meta, err = w.Append(encodeEntries(es), encodeSegments(ss))
	default:
		return nil
	}
	if err != nil {
		return err
	}
	d.markPersisted(meta)
	d.logger.Debug("flushed", "mode", mode, "entries", entries, "segments", segments, "epoch", meta.Epoch)
	return nil
}

// syncLocked reloads when the store moved past the state this handle was
// built from. Caller holds d.mu and the store lock.
func (d *Dag) syncLocked(ctx context.Context, w *journal.Writer) error {
	meta, err := d.store.ReadMeta()
	if err != nil {
		return err
	}
	if meta == d.meta {
		return nil
	}
	return d.reloadLocked(ctx, w)
}

// reloadLocked loads committed state and replays the pending heads on it.
// Vertices added locally keep their names and parents; their ids may
// change.
func (d *Dag) reloadLocked(ctx context.Context, w *journal.Writer) error {
	local, err := d.localParents()
	if err != nil {
		return err
	}
	heads := d.pendingHeads

	snap, err := w.Load()
	if err != nil {
		return err
	}
	if err := d.loadSnapshot(snap); err != nil {
		return err
	}
	d.localEpoch++
	for _, h := range heads {
		if err := d.addHeadLocked(ctx, local, h, ptr(d.dag.All()), ptr(vertex.IDSet{})); err != nil {
			return derrors.Wrap(derrors.ErrCodeConflict, err, "replay %s after reload", h.Name)
		}
	}
	d.pendingHeads = heads
	if err := d.applyVirtualLocked(ctx, true); err != nil {
		return err
	}
	d.hooks.Dag.OnReload(ctx, d.store.Dir(), len(heads))
	d.logger.Debug("reloaded store", "epoch", snap.Meta.Epoch, "replayed_heads", len(heads))
	return nil
}

// localParents captures the parents of every named vertex not yet on
// disk.
func (d *Dag) localParents() (vertex.ParentMap, error) {
	fresh := persistedIDs(d.dag).Difference(d.persisted)
	pm := make(vertex.ParentMap, fresh.Count())
	for id := range fresh.IterAsc() {
		name, ok := d.ids.FindName(id)
		if !ok {
			continue
		}
		pids, err := d.dag.ParentIDs(id)
		if err != nil {
			return nil, err
		}
		ps := make([]vertex.Name, 0, len(pids))
		for _, p := range pids {
			pn, ok := d.ids.FindName(p)
			if !ok {
				return nil, derrors.New(derrors.ErrCodeUnsupported, "parent %s of %s has no local name", p, name)
			}
			ps = append(ps, pn)
		}
		pm[name] = ps
	}
	return pm, nil
}

func ptr[T any](v T) *T { return &v }

// FlushCachedIdMap commits names learned from the remote. The graph must
// otherwise be clean.
func (d *Dag) FlushCachedIdMap(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireClean("flush cached id map"); err != nil {
		return err
	}
	return d.atomically(func() error {
		return d.flushCachedLocked(ctx)
	})
}

func (d *Dag) flushCachedLocked(ctx context.Context) error {
	var cached []idmap.Entry
	for _, e := range d.ids.Pending() {
		if d.persisted.Contains(e.ID) {
			cached = append(cached, e)
		}
	}
	if len(cached) == 0 {
		return nil
	}
	if d.store == nil {
		d.ids.PersistIDs(d.persisted)
		return nil
	}

	w, err := d.store.Lock(ctx)
	if err != nil {
		return err
	}
	defer w.Unlock()
	meta, err := d.store.ReadMeta()
	if err != nil {
		return err
	}
	if meta != d.meta {
		// The cached names would be resolved against stale ids.
		return d.reloadLocked(ctx, w)
	}
	meta, err = w.Append(encodeEntries(cached), nil)
	if err != nil {
		return err
	}
	d.ids.PersistIDs(d.persisted)
	d.meta = meta
	d.logger.Debug("flushed cached names", "entries", len(cached))
	return nil
}
