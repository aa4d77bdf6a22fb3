// Package clone defines the bundle used to move graph state between a
// store and a peer: flat segments plus the names of the ids they
// reference.
//
// On the wire a bundle is JSON compressed with zstd. Names are hex.
package clone

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/klauspost/compress/zstd"

	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/iddag"
	"github.com/matzehuels/segdag/pkg/idmap"
	"github.com/matzehuels/segdag/pkg/vertex"
)

// MaxBundleSize bounds the decompressed size of a bundle.
const MaxBundleSize = 1 << 30

// Data is a clone or pull bundle. IdMap need not name every id of the
// segments; unnamed ids are resolved lazily through a remote protocol.
type Data struct {
	FlatSegments iddag.PreparedFlatSegments `json:"flat_segments"`
	IdMap        []idmap.Entry              `json:"idmap"`
}

// IDs returns the ids covered by the segments.
func (d Data) IDs() vertex.IDSet {
	return d.FlatSegments.IDSet()
}

// Names indexes IdMap by id.
func (d Data) Names() map[vertex.ID]vertex.Name {
	out := make(map[vertex.ID]vertex.Name, len(d.IdMap))
	for _, e := range d.IdMap {
		out[e.ID] = e.Name
	}
	return out
}

// Heads returns the ids of the bundle that no segment of the bundle
// references as a parent or continues.
func (d Data) Heads() vertex.IDSet {
	heads := d.IDs()
	var inner vertex.IDSet
	for _, s := range d.FlatSegments.Segments {
		if s.High > s.Low {
			inner.PushSpan(vertex.Span{Low: s.Low, High: s.High - 1})
		}
	}
	return heads.Difference(inner).Difference(d.FlatSegments.ParentIDs())
}

// Validate checks that segments are ordered, disjoint and well formed, that
// parents precede their children, and that every segment high and every
// parent outside the bundle is named. Parents inside the bundle are
// resolvable from the segments themselves.
func (d Data) Validate() error {
	names := d.Names()
	if len(names) != len(d.IdMap) {
		return derrors.New(derrors.ErrCodeCorruption, "clone data: duplicate id in id map")
	}
	seen := make(map[vertex.Name]vertex.ID, len(d.IdMap))
	for _, e := range d.IdMap {
		if !e.ID.Valid() || e.ID.Group() == vertex.Virtual {
			return derrors.New(derrors.ErrCodeCorruption, "clone data: id %s is not in a persisted group", e.ID)
		}
		if e.Name == "" {
			return derrors.New(derrors.ErrCodeCorruption, "clone data: empty name for %s", e.ID)
		}
		if prev, ok := seen[e.Name]; ok {
			return derrors.New(derrors.ErrCodeCorruption, "clone data: %s named by both %s and %s", e.Name, prev, e.ID)
		}
		seen[e.Name] = e.ID
	}

	var covered vertex.IDSet
	var prevHigh vertex.ID
	for i, s := range d.FlatSegments.Segments {
		switch {
		case s.High < s.Low:
			return derrors.New(derrors.ErrCodeCorruption, "clone data: segment %s..=%s is inverted", s.Low, s.High)
		case !s.Low.Valid() || s.Low.Group() != s.High.Group() || s.Low.Group() == vertex.Virtual:
			return derrors.New(derrors.ErrCodeCorruption, "clone data: segment %s..=%s crosses groups", s.Low, s.High)
		case i > 0 && s.Low <= prevHigh:
			return derrors.New(derrors.ErrCodeCorruption, "clone data: segment %s..=%s is out of order", s.Low, s.High)
		}
		for _, p := range s.Parents {
			if p >= s.Low {
				return derrors.New(derrors.ErrCodeCorruption, "clone data: parent %s of %s is not lower", p, s.Low)
			}
			if _, ok := names[p]; !ok && !covered.Contains(p) {
				return derrors.New(derrors.ErrCodeCorruption, "clone data: parent %s of %s is not named", p, s.Low)
			}
		}
		if _, ok := names[s.High]; !ok {
			return derrors.New(derrors.ErrCodeCorruption, "clone data: segment head %s is not named", s.High)
		}
		covered.PushSpan(s.Span())
		prevHigh = s.High
	}
	parents := d.FlatSegments.ParentIDs()
	for _, e := range d.IdMap {
		if !covered.Contains(e.ID) && !parents.Contains(e.ID) {
			return derrors.New(derrors.ErrCodeCorruption, "clone data: id %s is not referenced", e.ID)
		}
	}
	return nil
}

// IsComplete reports whether every id of the segments is named.
func (d Data) IsComplete() bool {
	ids := d.IDs()
	named := 0
	for _, e := range d.IdMap {
		if ids.Contains(e.ID) {
			named++
		}
	}
	return uint64(named) == ids.Count()
}

// Sorted returns a copy with IdMap ordered by id.
func (d Data) Sorted() Data {
	d.IdMap = slices.Clone(d.IdMap)
	slices.SortFunc(d.IdMap, func(a, b idmap.Entry) int { return cmp.Compare(a.ID, b.ID) })
	return d
}

// Encode writes d as zstd-compressed JSON.
func Encode(w io.Writer, d Data) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(d.Sorted()); err != nil {
		enc.Close()
		return fmt.Errorf("encoding clone data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("closing encoder: %w", err)
	}
	return nil
}

// Decode reads a bundle written by Encode and validates it.
func Decode(r io.Reader) (Data, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return Data{}, derrors.Wrap(derrors.ErrCodeCorruption, err, "creating zstd decoder")
	}
	defer dec.Close()

	var d Data
	if err := json.NewDecoder(io.LimitReader(dec, MaxBundleSize)).Decode(&d); err != nil {
		return Data{}, derrors.Wrap(derrors.ErrCodeCorruption, err, "decoding clone data")
	}
	if err := d.Validate(); err != nil {
		return Data{}, err
	}
	return d, nil
}

// Marshal is Encode into a byte slice.
func Marshal(d Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal is Decode from a byte slice.
func Unmarshal(data []byte) (Data, error) {
	return Decode(bytes.NewReader(data))
}
