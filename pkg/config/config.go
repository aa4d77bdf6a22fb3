// Package config loads segdag settings from TOML.
//
// A store directory may carry a segdag.toml next to its logs:
//
//	[segment]
//	size = 16
//	max_level = 4
//
//	[store]
//	read_only = false
//
//	[remote]
//	batch_size = 1000
//
// Missing keys keep their [Default] values.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/segdag/pkg/dag"
	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/iddag"
)

// FileName is the config file looked up inside a store directory.
const FileName = "segdag.toml"

// maxSegmentLevel bounds max_level.
const maxSegmentLevel = 32

// Config is the full set of tunables.
type Config struct {
	Segment Segment `toml:"segment"`
	Store   Store   `toml:"store"`
	Remote  Remote  `toml:"remote"`
}

// Segment controls how the segment index is built.
type Segment struct {
	Size     int `toml:"size"`
	MaxLevel int `toml:"max_level"`
}

// Store describes the on-disk store.
type Store struct {
	Path     string `toml:"path"`
	ReadOnly bool   `toml:"read_only"`
}

// Remote tunes lazy-name resolution.
type Remote struct {
	BatchSize int `toml:"batch_size"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Segment: Segment{Size: iddag.DefaultSegmentSize, MaxLevel: int(iddag.DefaultMaxLevel)},
		Remote:  Remote{BatchSize: dag.DefaultRemoteBatchSize},
	}
}

// Decode reads TOML from r on top of the defaults.
func Decode(r io.Reader) (Config, error) {
	c := Default()
	md, err := toml.NewDecoder(r).Decode(&c)
	if err != nil {
		return Config{}, derrors.Wrap(derrors.ErrCodeInvalidInput, err, "decode config")
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		return Config{}, derrors.New(derrors.ErrCodeInvalidInput, "unknown config key %s", keys[0])
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads the config file at path.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	c, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// ForStore loads dir/segdag.toml if it exists and the defaults otherwise.
// Store.Path is always set to dir.
func ForStore(dir string) (Config, error) {
	c := Default()
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		if c, err = Load(path); err != nil {
			return Config{}, err
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("stat %s: %w", path, err)
	}
	c.Store.Path = dir
	return c, nil
}

// Validate checks the ranges of every field.
func (c Config) Validate() error {
	if c.Segment.Size < 2 {
		return derrors.New(derrors.ErrCodeInvalidInput, "segment.size must be at least 2, got %d", c.Segment.Size)
	}
	if c.Segment.MaxLevel < 1 || c.Segment.MaxLevel > maxSegmentLevel {
		return derrors.New(derrors.ErrCodeInvalidInput, "segment.max_level must be in 1..%d, got %d", maxSegmentLevel, c.Segment.MaxLevel)
	}
	if c.Remote.BatchSize < 1 {
		return derrors.New(derrors.ErrCodeInvalidInput, "remote.batch_size must be positive, got %d", c.Remote.BatchSize)
	}
	if c.Store.Path != "" {
		if err := derrors.ValidateStorePath(c.Store.Path); err != nil {
			return err
		}
	}
	return nil
}

// DagOptions maps the config onto graph options.
func (c Config) DagOptions() dag.Options {
	return dag.Options{
		SegmentSize:     c.Segment.Size,
		MaxLevel:        iddag.Level(c.Segment.MaxLevel),
		ReadOnly:        c.Store.ReadOnly,
		RemoteBatchSize: c.Remote.BatchSize,
	}
}

// Encode writes c as TOML.
func (c Config) Encode(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}
