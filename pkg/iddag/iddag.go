package iddag

import (
	"cmp"
	"slices"
	"sort"
	"sync"

	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/vertex"
)

const (
	// DefaultSegmentSize is the fan-out of higher-level segments.
	DefaultSegmentSize = 16
	// DefaultMaxLevel is the highest level built.
	DefaultMaxLevel Level = 4
)

type segKey struct {
	level Level
	low   vertex.ID
}

// IdDag is the segment index. Queries may run concurrently with each
// other but not with mutations.
type IdDag struct {
	segmentSize int
	maxLevel    Level

	// levels[l] holds the level l segments sorted by Low.
	levels [][]Segment
	all    vertex.IDSet

	childMu  sync.Mutex
	children []childEdge // lazily built, nil when stale
	dirty    map[segKey]struct{}
}

// New returns an empty index. Non-positive arguments select the defaults.
func New(segmentSize int, maxLevel Level) *IdDag {
	if segmentSize < 2 {
		segmentSize = DefaultSegmentSize
	}
	if maxLevel == 0 {
		maxLevel = DefaultMaxLevel
	}
	return &IdDag{
		segmentSize: segmentSize,
		maxLevel:    maxLevel,
		levels:      [][]Segment{nil},
		dirty:       make(map[segKey]struct{}),
	}
}

// SegmentSize returns the configured fan-out.
func (d *IdDag) SegmentSize() int { return d.segmentSize }

// MaxLevel returns the highest level that currently holds segments.
func (d *IdDag) MaxLevel() Level {
	for l := len(d.levels) - 1; l > 0; l-- {
		if len(d.levels[l]) > 0 {
			return Level(l)
		}
	}
	return 0
}

// Segments returns a copy of the segments at a level.
func (d *IdDag) Segments(level Level) []Segment {
	if int(level) >= len(d.levels) {
		return nil
	}
	out := make([]Segment, len(d.levels[level]))
	for i, s := range d.levels[level] {
		out[i] = s.clone()
	}
	return out
}

// SegmentsInGroup returns a copy of the level's segments in group g.
func (d *IdDag) SegmentsInGroup(level Level, g vertex.Group) []Segment {
	if int(level) >= len(d.levels) {
		return nil
	}
	lo, hi := d.groupRange(level, g)
	out := make([]Segment, 0, hi-lo)
	for _, s := range d.levels[level][lo:hi] {
		out = append(out, s.clone())
	}
	return out
}

// All returns every indexed id.
func (d *IdDag) All() vertex.IDSet {
	return d.all.Clone()
}

// AllInGroup returns the indexed ids of group g.
func (d *IdDag) AllInGroup(g vertex.Group) vertex.IDSet {
	return d.all.IntersectSpan(g.Span())
}

// Contains reports whether id is indexed.
func (d *IdDag) Contains(id vertex.ID) bool {
	return d.all.Contains(id)
}

// NextFreeID returns the id after the highest indexed id of group g.
func (d *IdDag) NextFreeID(g vertex.Group) vertex.ID {
	if m, ok := d.AllInGroup(g).Max(); ok {
		return m + 1
	}
	return g.MinID()
}

// index returns the position of the segment at level containing id.
func (d *IdDag) index(level Level, id vertex.ID) (int, bool) {
	if int(level) >= len(d.levels) {
		return 0, false
	}
	segs := d.levels[level]
	i := sort.Search(len(segs), func(i int) bool { return segs[i].Low > id }) - 1
	if i >= 0 && segs[i].High >= id {
		return i, true
	}
	return i + 1, false
}

// flat returns the flat segment containing id.
func (d *IdDag) flat(id vertex.ID) (*Segment, bool) {
	i, ok := d.index(0, id)
	if !ok {
		return nil, false
	}
	return &d.levels[0][i], true
}

// FlatSegmentContaining returns a copy of the flat segment containing id.
func (d *IdDag) FlatSegmentContaining(id vertex.ID) (Segment, bool) {
	s, ok := d.flat(id)
	if !ok {
		return Segment{}, false
	}
	return s.clone(), true
}

// highest returns the highest-level segment ending at id, or the flat
// segment containing it.
func (d *IdDag) highest(id vertex.ID) (*Segment, bool) {
	for l := len(d.levels) - 1; l > 0; l-- {
		if i, ok := d.index(Level(l), id); ok && d.levels[l][i].High == id {
			return &d.levels[l][i], true
		}
	}
	return d.flat(id)
}

// groupRange returns the index range of level segments within group g.
func (d *IdDag) groupRange(level Level, g vertex.Group) (int, int) {
	segs := d.levels[level]
	lo := sort.Search(len(segs), func(i int) bool { return segs[i].Low >= g.MinID() })
	hi := sort.Search(len(segs), func(i int) bool { return segs[i].Low > g.MaxID() })
	return lo, hi
}

func (d *IdDag) ensureLevel(level Level) {
	for len(d.levels) <= int(level) {
		d.levels = append(d.levels, nil)
	}
}

// put inserts or replaces the segment keyed by (level, low).
func (d *IdDag) put(s Segment) {
	d.ensureLevel(s.Level)
	segs := d.levels[s.Level]
	i := sort.Search(len(segs), func(i int) bool { return segs[i].Low >= s.Low })
	if i < len(segs) && segs[i].Low == s.Low {
		segs[i] = s
	} else {
		d.levels[s.Level] = slices.Insert(segs, i, s)
	}
	d.dirty[segKey{s.Level, s.Low}] = struct{}{}
}

// BuildSegmentsFromPreparedFlatSegments inserts flat segments and builds
// the higher levels they complete.
func (d *IdDag) BuildSegmentsFromPreparedFlatSegments(p PreparedFlatSegments) error {
	if len(p.Segments) == 0 {
		return nil
	}
	touched := make(map[vertex.Group]bool)
	for _, fs := range p.Segments {
		if err := d.insertFlat(fs); err != nil {
			return err
		}
		touched[fs.Low.Group()] = true
	}
	for _, g := range vertex.Groups {
		if touched[g] {
			d.buildHighLevels(g, false)
		}
	}
	return nil
}

func (d *IdDag) insertFlat(fs FlatSegment) error {
	if fs.High < fs.Low || !fs.Low.Valid() || fs.Low.Group() != fs.High.Group() {
		return derrors.New(derrors.ErrCodeProgramming, "invalid flat segment %s..=%s", fs.Low, fs.High)
	}
	if !d.all.IntersectSpan(fs.Span()).IsEmpty() {
		return derrors.New(derrors.ErrCodeProgramming, "flat segment %s..=%s overlaps indexed ids", fs.Low, fs.High)
	}
	for _, p := range fs.Parents {
		if p >= fs.Low {
			return derrors.New(derrors.ErrCodeProgramming, "parent %s of %s is not lower", p, fs.Low)
		}
		if !d.all.Contains(p) {
			return derrors.NotFoundID(p)
		}
	}
	d.children = nil
	d.all.PushSpan(fs.Span())

	if len(fs.Parents) == 1 && fs.Parents[0]+1 == fs.Low && fs.Parents[0].Group() == fs.Low.Group() {
		if prev, ok := d.flat(fs.Parents[0]); ok && prev.High == fs.Parents[0] && !d.summarized(prev.Low) {
			prev.High = fs.High
			d.dirty[segKey{0, prev.Low}] = struct{}{}
			return nil
		}
	}
	flags := Flags(0)
	if len(fs.Parents) == 0 {
		flags |= FlagHasRoot
	}
	d.put(Segment{Level: 0, Low: fs.Low, High: fs.High, Parents: slices.Clone(fs.Parents), Flags: flags})
	return nil
}

// summarized reports whether a level 1 segment covers id.
func (d *IdDag) summarized(id vertex.ID) bool {
	_, ok := d.index(1, id)
	return ok
}

// Load replays persisted segment records. Later records with the same
// level and low replace earlier ones.
func (d *IdDag) Load(segments []Segment) error {
	for _, s := range segments {
		if s.High < s.Low || s.Low.Group() != s.High.Group() || int(s.Level) > int(maxLoadLevel) {
			return corrupt("invalid segment record %s", s)
		}
		d.put(s.clone())
	}
	d.rebuildAll()
	d.MarkClean()
	if problems := d.checkOverlaps(); len(problems) > 0 {
		return corrupt("segment index: %s", problems[0])
	}
	return nil
}

const maxLoadLevel Level = 32

func (d *IdDag) rebuildAll() {
	spans := make([]vertex.Span, len(d.levels[0]))
	for i, s := range d.levels[0] {
		spans[i] = s.Span()
	}
	d.all = vertex.FromSortedSpans(spans)
	d.children = nil
}

// Dirty returns the persisted-group segments changed since the last
// MarkClean, ordered by level then low.
func (d *IdDag) Dirty() []Segment {
	out := make([]Segment, 0, len(d.dirty))
	for k := range d.dirty {
		if !k.low.Group().IsPersisted() {
			continue
		}
		if i, ok := d.index(k.level, k.low); ok && d.levels[k.level][i].Low == k.low {
			out = append(out, d.levels[k.level][i].clone())
		}
	}
	slices.SortFunc(out, compareSegments)
	return out
}

// Persisted returns every segment of the persisted groups.
func (d *IdDag) Persisted() []Segment {
	var out []Segment
	for _, segs := range d.levels {
		for _, s := range segs {
			if s.Group().IsPersisted() {
				out = append(out, s.clone())
			}
		}
	}
	slices.SortFunc(out, compareSegments)
	return out
}

// IsDirty reports whether persisted-group segments changed.
func (d *IdDag) IsDirty() bool {
	for k := range d.dirty {
		if k.low.Group().IsPersisted() {
			return true
		}
	}
	return false
}

// MarkClean forgets the dirty set.
func (d *IdDag) MarkClean() {
	clear(d.dirty)
}

func compareSegments(a, b Segment) int {
	if c := cmp.Compare(a.Level, b.Level); c != 0 {
		return c
	}
	return cmp.Compare(a.Low, b.Low)
}

// Clone returns an independent copy of the index.
func (d *IdDag) Clone() *IdDag {
	c := New(d.segmentSize, d.maxLevel)
	c.levels = make([][]Segment, len(d.levels))
	for l, segs := range d.levels {
		c.levels[l] = make([]Segment, len(segs))
		for i, s := range segs {
			c.levels[l][i] = s.clone()
		}
	}
	c.all = d.all.Clone()
	for k := range d.dirty {
		c.dirty[k] = struct{}{}
	}
	return c
}
