package journal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	derrors "github.com/matzehuels/segdag/pkg/errors"
)

const lockFile = "lock"

// lockRetryDelay is the polling interval while waiting for the writer lock.
const lockRetryDelay = 20 * time.Millisecond

// Store is a handle on a store directory. It holds no open files between
// calls and is safe for concurrent use.
type Store struct {
	dir string
}

// Snapshot is the committed content of a store at one point in time.
type Snapshot struct {
	Meta     Meta
	IdMap    [][]byte
	Segments [][]byte
}

// Open opens the store at dir, creating and initializing it if needed.
func Open(ctx context.Context, dir string) (*Store, error) {
	if err := derrors.ValidateStorePath(dir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, derrors.Wrap(derrors.ErrCodeBackend, err, "create store directory")
	}
	s := &Store{dir: dir}
	if _, err := readMeta(dir); err == nil {
		return s, nil
	} else if !derrors.IsNotFound(err) {
		return nil, err
	}

	w, err := s.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer w.Unlock()
	if _, err := readMeta(dir); err == nil {
		return s, nil
	}
	m := Meta{Version: formatVersion, ID: uuid.New()}
	for _, name := range []string{m.IdMapFile(), m.SegmentsFile()} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			return nil, derrors.Wrap(derrors.ErrCodeBackend, err, "create %s", name)
		}
	}
	if err := writeMeta(dir, m); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// ReadMeta returns the committed metadata.
func (s *Store) ReadMeta() (Meta, error) {
	return readMeta(s.dir)
}

// Load reads the committed prefix of both logs.
func (s *Store) Load() (Snapshot, error) {
	m, err := readMeta(s.dir)
	if err != nil {
		return Snapshot{}, err
	}
	idmap, err := s.readLog(m.IdMapFile(), m.IdMapLen)
	if err != nil {
		return Snapshot{}, err
	}
	segments, err := s.readLog(m.SegmentsFile(), m.SegmentsLen)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Meta: m, IdMap: idmap, Segments: segments}, nil
}

func (s *Store) readLog(name string, committed int64) ([][]byte, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, derrors.Wrap(derrors.ErrCodeBackend, err, "open %s", name)
	}
	defer f.Close()
	data := make([]byte, committed)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, derrors.Wrap(derrors.ErrCodeCorruption, err, "%s is shorter than its committed length %d", name, committed)
	}
	frames, err := ReadCommittedFrames(data)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return frames, nil
}

// Lock takes the exclusive writer lock, waiting until ctx is done.
func (s *Store) Lock(ctx context.Context) (*Writer, error) {
	fl := flock.New(filepath.Join(s.dir, lockFile))
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, derrors.Wrap(derrors.ErrCodeLocked, ctx.Err(), "wait for store lock")
		}
		return nil, derrors.Wrap(derrors.ErrCodeBackend, err, "lock store")
	}
	if !ok {
		return nil, derrors.New(derrors.ErrCodeLocked, "store %s is locked by another writer", s.dir)
	}
	return &Writer{s: s, fl: fl}, nil
}

// TryLock takes the writer lock without waiting.
func (s *Store) TryLock() (*Writer, error) {
	fl := flock.New(filepath.Join(s.dir, lockFile))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, derrors.Wrap(derrors.ErrCodeBackend, err, "lock store")
	}
	if !ok {
		return nil, derrors.New(derrors.ErrCodeLocked, "store %s is locked by another writer", s.dir)
	}
	return &Writer{s: s, fl: fl}, nil
}

// Writer is the holder of the exclusive store lock.
type Writer struct {
	s  *Store
	fl *flock.Flock
}

// Unlock releases the lock.
func (w *Writer) Unlock() error {
	return w.fl.Unlock()
}

// Load reads the committed state while holding the lock.
func (w *Writer) Load() (Snapshot, error) {
	return w.s.Load()
}

// Append adds records to both logs and commits them.
func (w *Writer) Append(idmap, segments [][]byte) (Meta, error) {
	m, err := readMeta(w.s.dir)
	if err != nil {
		return Meta{}, err
	}
	if len(idmap) == 0 && len(segments) == 0 {
		return m, nil
	}
	if m.IdMapLen, err = w.appendLog(m.IdMapFile(), m.IdMapLen, idmap); err != nil {
		return Meta{}, err
	}
	if m.SegmentsLen, err = w.appendLog(m.SegmentsFile(), m.SegmentsLen, segments); err != nil {
		return Meta{}, err
	}
	if err := writeMeta(w.s.dir, m); err != nil {
		return Meta{}, err
	}
	return m, nil
}

func (w *Writer) appendLog(name string, committed int64, payloads [][]byte) (int64, error) {
	f, err := os.OpenFile(filepath.Join(w.s.dir, name), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return 0, derrors.Wrap(derrors.ErrCodeBackend, err, "open %s", name)
	}
	defer f.Close()
	if err := f.Truncate(committed); err != nil {
		return 0, derrors.Wrap(derrors.ErrCodeBackend, err, "truncate %s", name)
	}
	buf := EncodeFrames(payloads)
	if _, err := f.WriteAt(buf, committed); err != nil {
		return 0, derrors.Wrap(derrors.ErrCodeBackend, err, "append %s", name)
	}
	if err := f.Sync(); err != nil {
		return 0, derrors.Wrap(derrors.ErrCodeBackend, err, "sync %s", name)
	}
	return committed + int64(len(buf)), nil
}

// Rewrite replaces both logs with the given records under a new epoch.
func (w *Writer) Rewrite(idmap, segments [][]byte) (Meta, error) {
	old, err := readMeta(w.s.dir)
	if err != nil {
		return Meta{}, err
	}
	m := old
	m.Epoch++
	idmapBuf, segBuf := EncodeFrames(idmap), EncodeFrames(segments)
	for _, f := range []struct {
		name string
		data []byte
	}{{m.IdMapFile(), idmapBuf}, {m.SegmentsFile(), segBuf}} {
		if err := writeFileSynced(filepath.Join(w.s.dir, f.name), f.data); err != nil {
			return Meta{}, derrors.Wrap(derrors.ErrCodeBackend, err, "write %s", f.name)
		}
	}
	m.IdMapLen, m.SegmentsLen = int64(len(idmapBuf)), int64(len(segBuf))
	if err := writeMeta(w.s.dir, m); err != nil {
		return Meta{}, err
	}
	// Readers holding the old epoch keep their open snapshot; new readers
	// follow meta.json.
	os.Remove(filepath.Join(w.s.dir, old.IdMapFile()))
	os.Remove(filepath.Join(w.s.dir, old.SegmentsFile()))
	return m, nil
}

func writeFileSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
