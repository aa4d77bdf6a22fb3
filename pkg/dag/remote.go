package dag

import (
	"context"
	"errors"
	"fmt"
	"time"

	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/vertex"
)

// AncestorPath names the vertex reached by following first parents Steps
// times from Start.
type AncestorPath struct {
	Start vertex.Name `json:"start"`
	Steps uint64      `json:"steps"`
}

// IsZero reports an unresolved path.
func (p AncestorPath) IsZero() bool { return p.Start == "" }

func (p AncestorPath) String() string { return fmt.Sprintf("%s~%d", p.Start, p.Steps) }

// RemoteProtocol resolves vertices of a lazily populated graph against a
// peer holding the full graph.
type RemoteProtocol interface {
	// ResolveRelativePathsToNames returns the name each path reaches.
	ResolveRelativePathsToNames(ctx context.Context, paths []AncestorPath) ([]vertex.Name, error)
	// ResolveNamesToRelativePaths expresses each name as a path that starts
	// at a vertex the caller knows, given the caller's heads. Names the
	// peer cannot place get a zero path.
	ResolveNamesToRelativePaths(ctx context.Context, heads, names []vertex.Name) ([]AncestorPath, error)
}

var _ RemoteProtocol = (*Dag)(nil)

// RetryableError marks a remote failure worth retrying.
type RetryableError struct{ Err error }

// Retryable wraps an error as a RetryableError.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// Error returns the error message of the wrapped error.
func (e *RetryableError) Error() string { return e.Err.Error() }

// Unwrap returns the wrapped error.
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable checks if an error is wrapped with RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// retryWithBackoff retries fn up to 3 times with exponential backoff.
// Only errors wrapped with Retryable trigger retries.
func retryWithBackoff(ctx context.Context, delay time.Duration, fn func() error) error {
	const attempts = 3
	var lastErr error

	for i := 0; i < attempts; i++ {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

// callRemote runs one remote batch with retries and hooks.
func (d *Dag) callRemote(ctx context.Context, method string, items int, fn func(context.Context) error) error {
	start := time.Now()
	d.hooks.Remote.OnRequest(ctx, method, items)
	err := retryWithBackoff(ctx, d.opts.RetryDelay, func() error { return fn(ctx) })
	d.hooks.Remote.OnResponse(ctx, method, items, time.Since(start), err)
	if err != nil {
		return derrors.Wrap(derrors.ErrCodeRemote, err, "%s", method)
	}
	return nil
}

// rlock read-locks d unless the caller already holds the lock.
func (d *Dag) rlock(held bool) func() {
	if held {
		return func() {}
	}
	d.mu.RLock()
	return d.mu.RUnlock
}

// lock write-locks d unless the caller already holds the lock.
func (d *Dag) lock(held bool) func() {
	if held {
		return func() {}
	}
	d.mu.Lock()
	return d.mu.Unlock
}

// isLazyLocked reports whether some ids have no local name.
func (d *Dag) isLazyLocked() bool {
	return uint64(d.ids.Len()) < d.dag.All().Count()
}

// pathsForIDs expresses ids relative to the named head of their flat
// segment. Caller holds d.mu.
func (d *Dag) pathsForIDs(ids []vertex.ID) ([]AncestorPath, error) {
	out := make([]AncestorPath, len(ids))
	for i, id := range ids {
		seg, ok := d.dag.FlatSegmentContaining(id)
		if !ok {
			return nil, derrors.NotFoundID(id)
		}
		start, ok := d.ids.FindName(seg.High)
		if !ok {
			return nil, derrors.New(derrors.ErrCodeCorruption, "segment head %s has no name", seg.High)
		}
		out[i] = AncestorPath{Start: start, Steps: uint64(seg.High - id)}
	}
	return out, nil
}

// knownHeadNames returns the named heads of the persisted groups. Caller
// holds d.mu.
func (d *Dag) knownHeadNames() []vertex.Name {
	var out []vertex.Name
	for id := range d.dag.Heads(persistedIDs(d.dag)).IterDesc() {
		if n, ok := d.ids.FindName(id); ok {
			out = append(out, n)
		}
	}
	return out
}

func chunks[T any](items []T, size int) [][]T {
	var out [][]T
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}

// resolveNames asks the remote for the names of indexed but unnamed ids
// and caches them. held reports whether the caller holds d.mu for
// writing.
func (d *Dag) resolveNames(ctx context.Context, ids []vertex.ID, held bool) ([]vertex.Name, error) {
	unlock := d.rlock(held)
	remote := d.remote
	paths, err := d.pathsForIDs(ids)
	unlock()
	if err != nil {
		return nil, err
	}
	if remote == nil {
		return nil, derrors.New(derrors.ErrCodeNotFound, "id %s has no local name and no remote is configured", ids[0])
	}

	names := make([]vertex.Name, 0, len(ids))
	for _, batch := range chunks(paths, d.opts.RemoteBatchSize) {
		var got []vertex.Name
		err := d.callRemote(ctx, "resolve_paths", len(batch), func(ctx context.Context) error {
			var err error
			got, err = remote.ResolveRelativePathsToNames(ctx, batch)
			return err
		})
		if err != nil {
			return nil, err
		}
		if len(got) != len(batch) {
			return nil, derrors.New(derrors.ErrCodeRemote, "resolve_paths: got %d names for %d paths", len(got), len(batch))
		}
		names = append(names, got...)
	}

	defer d.lock(held)()
	for i, id := range ids {
		if !d.dag.Contains(id) {
			continue
		}
		if err := d.ids.Insert(id, names[i]); err != nil {
			return nil, fmt.Errorf("cache name of %s: %w", id, err)
		}
	}
	d.logger.Debug("resolved names remotely", "ids", len(ids))
	return names, nil
}

// resolveIDs asks the remote where names live and caches what it finds.
// Names the remote cannot place are absent from the result.
func (d *Dag) resolveIDs(ctx context.Context, names []vertex.Name, held bool) (map[vertex.Name]vertex.ID, error) {
	unlock := d.rlock(held)
	remote := d.remote
	var heads []vertex.Name
	if remote != nil {
		heads = d.knownHeadNames()
	}
	unlock()
	if remote == nil || len(heads) == 0 {
		return nil, nil
	}

	paths := make([]AncestorPath, 0, len(names))
	for _, batch := range chunks(names, d.opts.RemoteBatchSize) {
		var got []AncestorPath
		err := d.callRemote(ctx, "resolve_names", len(batch), func(ctx context.Context) error {
			var err error
			got, err = remote.ResolveNamesToRelativePaths(ctx, heads, batch)
			return err
		})
		if err != nil {
			return nil, err
		}
		if len(got) != len(batch) {
			return nil, derrors.New(derrors.ErrCodeRemote, "resolve_names: got %d paths for %d names", len(got), len(batch))
		}
		paths = append(paths, got...)
	}

	defer d.lock(held)()
	out := make(map[vertex.Name]vertex.ID)
	for i, p := range paths {
		if p.IsZero() {
			continue
		}
		start, ok := d.ids.FindID(p.Start)
		if !ok {
			d.logger.Debug("remote path starts at unknown vertex", "path", p)
			continue
		}
		id, err := d.dag.FirstAncestorNth(start, p.Steps)
		if err != nil {
			return nil, derrors.Wrap(derrors.ErrCodeRemote, err, "remote path %s for %s", p, names[i])
		}
		if err := d.ids.Insert(id, names[i]); err != nil {
			return nil, fmt.Errorf("cache id of %s: %w", names[i], err)
		}
		out[names[i]] = id
	}
	d.logger.Debug("resolved ids remotely", "names", len(names), "found", len(out))
	return out, nil
}

// ResolveRelativePathsToNames serves a lazy peer.
func (d *Dag) ResolveRelativePathsToNames(ctx context.Context, paths []AncestorPath) ([]vertex.Name, error) {
	ids := make([]vertex.ID, len(paths))
	d.mu.RLock()
	for i, p := range paths {
		start, ok := d.ids.FindID(p.Start)
		if !ok {
			d.mu.RUnlock()
			return nil, derrors.NotFoundName(p.Start)
		}
		id, err := d.dag.FirstAncestorNth(start, p.Steps)
		if err != nil {
			d.mu.RUnlock()
			return nil, fmt.Errorf("path %s: %w", p, err)
		}
		ids[i] = id
	}
	d.mu.RUnlock()
	return d.VertexNames(ctx, ids)
}

// ResolveNamesToRelativePaths serves a lazy peer. Each path starts at the
// highest ancestor of heads in the name's flat segment.
func (d *Dag) ResolveNamesToRelativePaths(ctx context.Context, heads, names []vertex.Name) ([]AncestorPath, error) {
	out := make([]AncestorPath, len(names))
	var tops []vertex.ID
	var slots []int

	d.mu.RLock()
	var headIDs vertex.IDSet
	for _, h := range heads {
		if id, ok := d.ids.FindID(h); ok {
			headIDs.Push(id)
		}
	}
	anc := d.dag.Ancestors(headIDs)
	for i, n := range names {
		id, ok := d.ids.FindID(n)
		if !ok || !anc.Contains(id) {
			continue
		}
		seg, _ := d.dag.FlatSegmentContaining(id)
		top, _ := anc.IntersectSpan(vertex.Span{Low: id, High: seg.High}).Max()
		out[i].Steps = uint64(top - id)
		tops = append(tops, top)
		slots = append(slots, i)
	}
	d.mu.RUnlock()

	if len(tops) == 0 {
		return out, nil
	}
	starts, err := d.VertexNames(ctx, tops)
	if err != nil {
		return nil, err
	}
	for j, i := range slots {
		out[i].Start = starts[j]
	}
	return out, nil
}
