package iddag

import (
	"encoding/binary"
	"fmt"
	"slices"

	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/vertex"
)

// Level is a segment level. Level 0 holds flat segments.
type Level uint8

// Flags describe segment properties derived from its parents.
type Flags uint8

const (
	// FlagHasRoot is set when the segment contains a vertex without parents.
	FlagHasRoot Flags = 1 << iota
)

// Segment is one entry of the index.
type Segment struct {
	Level Level
	Low   vertex.ID
	High  vertex.ID
	// Parents are the parents of Low for flat segments, in caller order
	// with the first parent first. For higher levels they are the sorted
	// parents, outside the segment, of all summarized segments.
	Parents []vertex.ID
	Flags   Flags
}

// Span returns the id range of the segment.
func (s Segment) Span() vertex.Span {
	return vertex.Span{Low: s.Low, High: s.High}
}

// HasRoot reports FlagHasRoot.
func (s Segment) HasRoot() bool {
	return s.Flags&FlagHasRoot != 0
}

// Group returns the group of the segment's ids.
func (s Segment) Group() vertex.Group {
	return s.Low.Group()
}

func (s Segment) String() string {
	return fmt.Sprintf("L%d %s..=%s %v", s.Level, s.Low, s.High, s.Parents)
}

func (s Segment) clone() Segment {
	s.Parents = slices.Clone(s.Parents)
	return s
}

// FlatSegment is the unit produced by id assignment and carried by clone
// bundles.
type FlatSegment struct {
	Low     vertex.ID   `json:"low"`
	High    vertex.ID   `json:"high"`
	Parents []vertex.ID `json:"parents"`
}

// Span returns the id range of the segment.
func (f FlatSegment) Span() vertex.Span {
	return vertex.Span{Low: f.Low, High: f.High}
}

// PreparedFlatSegments is an ordered batch of flat segments ready to be
// inserted. Parents of each segment are either already indexed or covered
// by an earlier segment of the batch.
type PreparedFlatSegments struct {
	Segments []FlatSegment `json:"segments"`
}

// Push appends a single id with its parents, extending the last segment
// when the id continues it.
func (p *PreparedFlatSegments) Push(id vertex.ID, parents []vertex.ID) {
	if n := len(p.Segments); n > 0 {
		last := &p.Segments[n-1]
		if id == last.High+1 && len(parents) == 1 && parents[0] == last.High && id.Group() == last.Low.Group() {
			last.High = id
			return
		}
	}
	p.Segments = append(p.Segments, FlatSegment{Low: id, High: id, Parents: slices.Clone(parents)})
}

// Merge appends other after p.
func (p *PreparedFlatSegments) Merge(other PreparedFlatSegments) {
	for _, s := range other.Segments {
		if n := len(p.Segments); n > 0 {
			last := &p.Segments[n-1]
			if s.Low == last.High+1 && len(s.Parents) == 1 && s.Parents[0] == last.High && s.Low.Group() == last.Low.Group() {
				last.High = s.High
				continue
			}
		}
		p.Segments = append(p.Segments, s)
	}
}

// IDSet returns the ids covered by the batch.
func (p PreparedFlatSegments) IDSet() vertex.IDSet {
	spans := make([]vertex.Span, len(p.Segments))
	for i, s := range p.Segments {
		spans[i] = s.Span()
	}
	return vertex.NewIDSet(spans...)
}

// ParentIDs returns every parent referenced by the batch.
func (p PreparedFlatSegments) ParentIDs() vertex.IDSet {
	var spans []vertex.Span
	for _, s := range p.Segments {
		for _, pid := range s.Parents {
			spans = append(spans, vertex.SpanOf(pid))
		}
	}
	return vertex.NewIDSet(spans...)
}

// Len returns the number of segments.
func (p PreparedFlatSegments) Len() int {
	return len(p.Segments)
}

// EncodeSegment serializes a segment record.
//
//	level(1) | flags(1) | uvarint(low) | uvarint(high-low) | uvarint(n) | n × uvarint(low-parent)
func EncodeSegment(s Segment) []byte {
	buf := make([]byte, 0, 16+4*len(s.Parents))
	buf = append(buf, byte(s.Level), byte(s.Flags))
	buf = binary.AppendUvarint(buf, uint64(s.Low))
	buf = binary.AppendUvarint(buf, uint64(s.High-s.Low))
	buf = binary.AppendUvarint(buf, uint64(len(s.Parents)))
	for _, p := range s.Parents {
		buf = binary.AppendUvarint(buf, uint64(s.Low-p))
	}
	return buf
}

// DecodeSegment parses a record written by EncodeSegment.
func DecodeSegment(data []byte) (Segment, error) {
	var s Segment
	if len(data) < 2 {
		return s, corrupt("segment record too short")
	}
	s.Level, s.Flags = Level(data[0]), Flags(data[1])
	r := data[2:]
	next := func(what string) (uint64, error) {
		v, n := binary.Uvarint(r)
		if n <= 0 {
			return 0, corrupt("segment record: bad %s", what)
		}
		r = r[n:]
		return v, nil
	}
	low, err := next("low")
	if err != nil {
		return s, err
	}
	span, err := next("length")
	if err != nil {
		return s, err
	}
	if low+span < low {
		return s, corrupt("segment record: range overflows")
	}
	s.Low, s.High = vertex.ID(low), vertex.ID(low+span)
	count, err := next("parent count")
	if err != nil {
		return s, err
	}
	if count > uint64(len(r)) {
		return s, corrupt("segment record: %d parents in %d bytes", count, len(r))
	}
	if count > 0 {
		s.Parents = make([]vertex.ID, 0, count)
	}
	for i := uint64(0); i < count; i++ {
		d, err := next("parent")
		if err != nil {
			return s, err
		}
		if d == 0 || d > low {
			return s, corrupt("segment record: parent delta %d out of range", d)
		}
		s.Parents = append(s.Parents, vertex.ID(low-d))
	}
	if len(r) != 0 {
		return s, corrupt("segment record: %d trailing bytes", len(r))
	}
	return s, nil
}

func corrupt(format string, args ...any) error {
	return derrors.New(derrors.ErrCodeCorruption, format, args...)
}
