package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks reports every event to a logger at debug level.
type LogHooks struct {
	Logger *log.Logger
}

// NewLogHooks returns Hooks that log every category to logger.
func NewLogHooks(logger *log.Logger) Hooks {
	h := LogHooks{Logger: logger}
	return Hooks{Dag: h, Remote: h}
}

func (h LogHooks) OnFlushStart(_ context.Context, path string) {
	h.Logger.Debug("flush start", "path", path)
}

func (h LogHooks) OnFlushComplete(_ context.Context, path string, mode FlushMode, entries, segments int, d time.Duration, err error) {
	h.Logger.Debug("flush complete", "path", path, "mode", mode, "entries", entries, "segments", segments, "took", d, "err", err)
}

func (h LogHooks) OnReload(_ context.Context, path string, replayed int) {
	h.Logger.Debug("reloaded store", "path", path, "replayed_heads", replayed)
}

func (h LogHooks) OnImportComplete(_ context.Context, kind string, segments, names int, d time.Duration, err error) {
	h.Logger.Debug("import complete", "kind", kind, "segments", segments, "names", names, "took", d, "err", err)
}

func (h LogHooks) OnStripComplete(_ context.Context, removed int, d time.Duration, err error) {
	h.Logger.Debug("strip complete", "removed", removed, "took", d, "err", err)
}

func (h LogHooks) OnRequest(_ context.Context, method string, items int) {
	h.Logger.Debug("remote request", "method", method, "items", items)
}

func (h LogHooks) OnResponse(_ context.Context, method string, items int, d time.Duration, err error) {
	h.Logger.Debug("remote response", "method", method, "items", items, "took", d, "err", err)
}
