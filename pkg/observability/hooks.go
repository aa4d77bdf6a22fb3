// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. A Dag receives its hooks
// through its options and reports flushes, imports, strips and remote
// protocol round trips to them.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define a hook interface per event category
//   - Provide no-op default implementations
//   - Pass implementations explicitly to the component that emits events
//
// # Usage
//
//	d, err := dag.Open(ctx, path, dag.Options{Hooks: myHooks{}})
//
// The Dag then calls:
//
//	hooks.OnFlushComplete(ctx, path, observability.FlushAppend, entries, segments, duration, err)
package observability

import (
	"context"
	"time"
)

// FlushMode describes how a flush reached disk.
type FlushMode string

const (
	// FlushNoop means there was nothing to write.
	FlushNoop FlushMode = "noop"
	// FlushAppend means new records were appended to the current logs.
	FlushAppend FlushMode = "append"
	// FlushRewrite means the logs were rewritten under a new epoch.
	FlushRewrite FlushMode = "rewrite"
)

// =============================================================================
// Dag Hooks
// =============================================================================

// DagHooks receives events from graph mutations.
type DagHooks interface {
	// Flush events
	OnFlushStart(ctx context.Context, path string)
	OnFlushComplete(ctx context.Context, path string, mode FlushMode, entries, segments int, duration time.Duration, err error)

	// OnReload records that another writer changed the store and local
	// state was rebuilt from disk.
	OnReload(ctx context.Context, path string, replayedHeads int)

	// OnImportComplete records a clone or pull import.
	OnImportComplete(ctx context.Context, kind string, segments, names int, duration time.Duration, err error)

	// OnStripComplete records a strip and how many vertices it removed.
	OnStripComplete(ctx context.Context, removed int, duration time.Duration, err error)
}

// =============================================================================
// Remote Hooks
// =============================================================================

// RemoteHooks receives events from remote protocol round trips.
type RemoteHooks interface {
	// OnRequest records an outgoing batch.
	OnRequest(ctx context.Context, method string, items int)

	// OnResponse records the end of a batch, successful or not.
	OnResponse(ctx context.Context, method string, items int, duration time.Duration, err error)
}

// Hooks bundles every hook category.
type Hooks struct {
	Dag    DagHooks
	Remote RemoteHooks
}

// WithDefaults fills unset categories with no-op implementations.
func (h Hooks) WithDefaults() Hooks {
	if h.Dag == nil {
		h.Dag = NoopDagHooks{}
	}
	if h.Remote == nil {
		h.Remote = NoopRemoteHooks{}
	}
	return h
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopDagHooks is a no-op implementation of DagHooks.
type NoopDagHooks struct{}

func (NoopDagHooks) OnFlushStart(context.Context, string) {}
func (NoopDagHooks) OnFlushComplete(context.Context, string, FlushMode, int, int, time.Duration, error) {
}
func (NoopDagHooks) OnReload(context.Context, string, int)                                 {}
func (NoopDagHooks) OnImportComplete(context.Context, string, int, int, time.Duration, error) {}
func (NoopDagHooks) OnStripComplete(context.Context, int, time.Duration, error)              {}

// NoopRemoteHooks is a no-op implementation of RemoteHooks.
type NoopRemoteHooks struct{}

func (NoopRemoteHooks) OnRequest(context.Context, string, int)                        {}
func (NoopRemoteHooks) OnResponse(context.Context, string, int, time.Duration, error) {}
