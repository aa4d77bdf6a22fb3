package dag

import (
	"context"
	"time"

	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/set"
	"github.com/matzehuels/segdag/pkg/vertex"
)

// Strip removes s and its descendants and rewrites the store. The graph
// must be clean. Other handles on the store must reopen afterwards.
func (d *Dag) Strip(ctx context.Context, s set.Set) (err error) {
	start := time.Now()
	var removed vertex.IDSet
	defer func() {
		d.hooks.Dag.OnStripComplete(ctx, int(removed.Count()), time.Since(start), err)
	}()

	for {
		v := d.currentView()
		ids, err := set.ToIDSet(ctx, s, v)
		if err != nil {
			return err
		}
		var retry bool
		if removed, retry, err = d.stripIn(ctx, v, ids); !retry {
			return err
		}
		d.logger.Debug("ids changed before strip, converting again")
	}
}

// stripIn strips ids, which are ids of view v. It reports retry if the
// graph left v before the store lock was taken.
func (d *Dag) stripIn(ctx context.Context, v *view, ids vertex.IDSet) (removed vertex.IDSet, retry bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireClean("strip"); err != nil {
		return removed, false, err
	}
	if d.view != v {
		return removed, true, nil
	}
	err = d.atomically(func() error {
		if d.store == nil {
			if removed, err = d.stripLocked(ctx, ids); err != nil {
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
		if d.mapIDLocked() != v.mapID {
			retry = true
			return nil
		}
		if removed, err = d.stripLocked(ctx, ids); err != nil {
			return err
		}
		if removed.IsEmpty() {
			return nil
		}
		meta, err := w.Rewrite(encodeEntries(d.ids.Entries()), encodeSegments(d.dag.Persisted()))
		if err != nil {
			return err
		}
		d.markPersisted(meta)
		return nil
	})
	if err != nil {
		return vertex.IDSet{}, false, err
	}
	return removed, retry, nil
}

func (d *Dag) stripLocked(ctx context.Context, ids vertex.IDSet) (vertex.IDSet, error) {
	doomed := d.dag.Descendants(ids)
	if doomed.IsEmpty() {
		return doomed, nil
	}
	// Truncated flat segments get new heads, which must stay named.
	if err := d.nameNewHeads(ctx, doomed); err != nil {
		return vertex.IDSet{}, err
	}

	removed := d.dag.RemoveDescendants(ids)
	n := d.ids.RemoveIDs(removed)
	d.persisted = d.persisted.Difference(removed)
	d.needsRewrite = true
	d.localEpoch++
	d.version++
	d.logger.Debug("stripped", "ids", removed, "names", n)

	return removed, d.applyVirtualLocked(ctx, true)
}

// nameNewHeads resolves the names of ids that become flat segment heads
// once doomed is removed.
func (d *Dag) nameNewHeads(ctx context.Context, doomed vertex.IDSet) error {
	var unnamed []vertex.ID
	for _, sp := range doomed.Spans() {
		if sp.Low == 0 {
			continue
		}
		below := sp.Low - 1
		seg, ok := d.dag.FlatSegmentContaining(below)
		if !ok || seg.High == below || !seg.Span().Contains(sp.Low) {
			continue
		}
		if !d.ids.ContainsID(below) {
			unnamed = append(unnamed, below)
		}
	}
	if len(unnamed) == 0 {
		return nil
	}
	if d.remote == nil {
		return derrors.New(derrors.ErrCodeUnsupported, "strip would leave segment head %s unnamed", unnamed[0])
	}
	_, err := d.resolveNames(ctx, unnamed, true)
	return err
}
