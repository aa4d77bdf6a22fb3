package dag

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/iddag"
	"github.com/matzehuels/segdag/pkg/idmap"
	"github.com/matzehuels/segdag/pkg/journal"
	"github.com/matzehuels/segdag/pkg/observability"
	"github.com/matzehuels/segdag/pkg/vertex"
)

const (
	// DefaultRemoteBatchSize bounds the items sent per remote request.
	DefaultRemoteBatchSize = 1000
	// DefaultRetryDelay is the first backoff delay for retryable remote errors.
	DefaultRetryDelay = 200 * time.Millisecond
)

// Options configures a Dag. The zero value is usable.
type Options struct {
	// Logger receives debug events. Defaults to a discarding logger.
	Logger *log.Logger
	Hooks  observability.Hooks

	// SegmentSize is the fan-out of higher-level segments.
	SegmentSize int
	// MaxLevel is the highest segment level built.
	MaxLevel iddag.Level
	// ReadOnly rejects every mutation.
	ReadOnly bool

	// Remote resolves vertices known only by id or only by name.
	Remote          RemoteProtocol
	RemoteBatchSize int
	RetryDelay      time.Duration
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	o.Hooks = o.Hooks.WithDefaults()
	if o.SegmentSize < 2 {
		o.SegmentSize = iddag.DefaultSegmentSize
	}
	if o.MaxLevel == 0 {
		o.MaxLevel = iddag.DefaultMaxLevel
	}
	if o.RemoteBatchSize <= 0 {
		o.RemoteBatchSize = DefaultRemoteBatchSize
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	return o
}

// Dag is a segmented commit graph addressed by vertex name.
type Dag struct {
	opts   Options
	logger *log.Logger
	hooks  observability.Hooks

	mu     sync.RWMutex
	store  *journal.Store // nil for in-memory graphs
	meta   journal.Meta   // committed state the memory image was built from
	memID  uuid.UUID
	remote RemoteProtocol

	dag  *iddag.IdDag
	ids  *idmap.IdMap
	view *view

	// persisted holds the ids of persisted groups present at the last
	// load or flush.
	persisted    vertex.IDSet
	pendingHeads vertex.HeadList
	needsRewrite bool
	virtual      []VirtualVertex

	// localEpoch changes whenever existing ids may change meaning.
	localEpoch uint64
	version    uint64
	closed     bool
}

// Open opens or creates the store at path and loads its committed state.
func Open(ctx context.Context, path string, opts Options) (*Dag, error) {
	store, err := journal.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	d := newDag(opts.withDefaults())
	d.store = store
	snap, err := store.Load()
	if err != nil {
		return nil, err
	}
	if err := d.loadSnapshot(snap); err != nil {
		return nil, err
	}
	d.view = d.newView()
	d.logger.Debug("opened store", "path", path, "epoch", snap.Meta.Epoch, "vertices", d.dag.All().Count())
	return d, nil
}

// NewMem returns an empty graph without persistence.
func NewMem(opts Options) *Dag {
	d := newDag(opts.withDefaults())
	d.memID = uuid.New()
	d.view = d.newView()
	return d
}

func newDag(opts Options) *Dag {
	return &Dag{
		opts:   opts,
		logger: opts.Logger,
		hooks:  opts.Hooks,
		remote: opts.Remote,
		dag:    iddag.New(opts.SegmentSize, opts.MaxLevel),
		ids:    idmap.New(),
	}
}

// Reopen returns a fresh handle on the same store, reflecting only
// committed state.
func (d *Dag) Reopen(ctx context.Context) (*Dag, error) {
	if d.store == nil {
		return nil, derrors.New(derrors.ErrCodeUnsupported, "in-memory graph cannot be reopened")
	}
	return Open(ctx, d.store.Dir(), d.opts)
}

// Close marks the handle closed. Uncommitted changes are discarded.
func (d *Dag) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	if d.isDirtyLocked() {
		d.logger.Debug("closing with uncommitted changes", "heads", len(d.pendingHeads))
	}
	d.closed = true
	return nil
}

// Path returns the store directory, or "" for in-memory graphs.
func (d *Dag) Path() string {
	if d.store == nil {
		return ""
	}
	return d.store.Dir()
}

// SetRemoteProtocol replaces the remote used for lazy resolution.
func (d *Dag) SetRemoteProtocol(r RemoteProtocol) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remote = r
}

// IsDirty reports whether there are local vertices Flush would write.
// Names cached from the remote do not count.
func (d *Dag) IsDirty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isDirtyLocked()
}

func (d *Dag) isDirtyLocked() bool {
	if d.needsRewrite || d.dag.IsDirty() {
		return true
	}
	for _, e := range d.ids.Pending() {
		if !d.persisted.Contains(e.ID) {
			return true
		}
	}
	return false
}

// MapID identifies the current id assignment. Two sets with equal map ids
// may be combined by id. It changes when existing ids change meaning.
func (d *Dag) MapID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mapIDLocked()
}

func (d *Dag) mapIDLocked() string {
	id := d.memID
	if d.store != nil {
		id = d.meta.ID
	}
	return fmt.Sprintf("%s:%d.%d", id, d.meta.Epoch, d.localEpoch)
}

// VersionID changes on every mutation.
func (d *Dag) VersionID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return fmt.Sprintf("%s/%d", d.mapIDLocked(), d.version)
}

func (d *Dag) writable() error {
	if d.closed {
		return derrors.New(derrors.ErrCodeProgramming, "graph is closed")
	}
	if d.opts.ReadOnly {
		return derrors.New(derrors.ErrCodeUnsupported, "graph is read-only")
	}
	return nil
}

// requireClean rejects operations that rewrite or import while local
// changes are pending.
func (d *Dag) requireClean(op string) error {
	if err := d.writable(); err != nil {
		return err
	}
	if d.isDirtyLocked() {
		return derrors.New(derrors.ErrCodeProgramming, "%s requires a flushed graph", op)
	}
	return nil
}

// loadSnapshot replaces the memory image with committed state.
func (d *Dag) loadSnapshot(snap journal.Snapshot) error {
	entries := make([]idmap.Entry, 0, len(snap.IdMap))
	for _, rec := range snap.IdMap {
		e, err := idmap.DecodeEntry(rec)
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}
	segs := make([]iddag.Segment, 0, len(snap.Segments))
	for _, rec := range snap.Segments {
		s, err := iddag.DecodeSegment(rec)
		if err != nil {
			return err
		}
		segs = append(segs, s)
	}
	dg := iddag.New(d.opts.SegmentSize, d.opts.MaxLevel)
	if err := dg.Load(segs); err != nil {
		return fmt.Errorf("load segments: %w", err)
	}
	ids := idmap.New()
	if err := ids.Load(entries); err != nil {
		return err
	}
	d.dag, d.ids, d.meta = dg, ids, snap.Meta
	d.persisted = persistedIDs(dg)
	d.pendingHeads = nil
	d.needsRewrite = false
	d.version++
	return nil
}

// markPersisted records that the memory image matches meta.
func (d *Dag) markPersisted(meta journal.Meta) {
	d.ids.MarkPersisted()
	d.dag.MarkClean()
	d.meta = meta
	d.persisted = persistedIDs(d.dag)
	d.pendingHeads = nil
	d.needsRewrite = false
	d.version++
}

func persistedIDs(dg *iddag.IdDag) vertex.IDSet {
	return dg.All().Difference(vertex.NewIDSet(vertex.Virtual.Span()))
}

func encodeEntries(entries []idmap.Entry) [][]byte {
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = idmap.EncodeEntry(e)
	}
	return out
}

func encodeSegments(segs []iddag.Segment) [][]byte {
	out := make([][]byte, len(segs))
	for i, s := range segs {
		out[i] = iddag.EncodeSegment(s)
	}
	return out
}
