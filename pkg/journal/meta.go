package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	derrors "github.com/matzehuels/segdag/pkg/errors"
)

// formatVersion is bumped on incompatible layout changes.
const formatVersion = 1

const metaFile = "meta.json"

// Meta is the committed state of a store.
type Meta struct {
	Version     int       `json:"version"`
	ID          uuid.UUID `json:"id"`
	Epoch       uint64    `json:"epoch"`
	IdMapLen    int64     `json:"idmap_len"`
	SegmentsLen int64     `json:"segments_len"`
}

// IdMapFile returns the id map log name for the epoch.
func (m Meta) IdMapFile() string {
	return fmt.Sprintf("idmap-%d.log", m.Epoch)
}

// SegmentsFile returns the segment log name for the epoch.
func (m Meta) SegmentsFile() string {
	return fmt.Sprintf("segments-%d.log", m.Epoch)
}

func readMeta(dir string) (Meta, error) {
	var m Meta
	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		if os.IsNotExist(err) {
			return m, derrors.Wrap(derrors.ErrCodeNotFound, err, "store metadata missing in %s", dir)
		}
		return m, derrors.Wrap(derrors.ErrCodeBackend, err, "read store metadata")
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, derrors.Wrap(derrors.ErrCodeCorruption, err, "parse store metadata")
	}
	if m.Version != formatVersion {
		return m, derrors.New(derrors.ErrCodeUnsupported, "store format version %d (want %d)", m.Version, formatVersion)
	}
	if m.IdMapLen < 0 || m.SegmentsLen < 0 {
		return m, derrors.New(derrors.ErrCodeCorruption, "negative committed log length")
	}
	return m, nil
}

// writeMeta replaces meta.json atomically.
func writeMeta(dir string, m Meta) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return derrors.Wrap(derrors.ErrCodeInternal, err, "marshal store metadata")
	}
	if err := writeFileAtomic(dir, metaFile, data); err != nil {
		return derrors.Wrap(derrors.ErrCodeBackend, err, "write store metadata")
	}
	return nil
}

func writeFileAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return err
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	// Some filesystems reject fsync on directories.
	_ = d.Sync()
	return nil
}
