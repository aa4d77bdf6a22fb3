package iddag

import (
	"container/heap"
	"slices"
	"sort"

	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/vertex"
)

// forEachFlat calls fn for every flat segment intersecting set together
// with the intersecting piece. Ids of set that are not indexed are skipped.
func (d *IdDag) forEachFlat(set vertex.IDSet, fn func(seg *Segment, piece vertex.Span) bool) {
	flat := d.levels[0]
	for _, sp := range set.Spans() {
		i := sort.Search(len(flat), func(i int) bool { return flat[i].High >= sp.Low })
		for ; i < len(flat) && flat[i].Low <= sp.High; i++ {
			piece, _ := flat[i].Span().Intersect(sp)
			if !fn(&flat[i], piece) {
				return
			}
		}
	}
}

// descBuilder collects spans pushed in descending order.
type descBuilder struct {
	spans []vertex.Span
}

// covers reports whether id is covered, assuming id is not above any id
// pushed before.
func (b *descBuilder) covers(id vertex.ID) bool {
	n := len(b.spans)
	return n > 0 && id >= b.spans[n-1].Low
}

func (b *descBuilder) push(sp vertex.Span) {
	if n := len(b.spans); n > 0 && sp.High+1 == b.spans[n-1].Low {
		b.spans[n-1].Low = sp.Low
		return
	}
	b.spans = append(b.spans, sp)
}

func (b *descBuilder) set() vertex.IDSet {
	slices.Reverse(b.spans)
	return vertex.FromSortedSpans(b.spans)
}

// ascBuilder collects spans pushed in ascending order.
type ascBuilder struct {
	spans []vertex.Span
}

func (b *ascBuilder) covers(id vertex.ID) bool {
	n := len(b.spans)
	return n > 0 && id <= b.spans[n-1].High
}

func (b *ascBuilder) push(sp vertex.Span) {
	if n := len(b.spans); n > 0 && b.spans[n-1].High+1 == sp.Low {
		b.spans[n-1].High = sp.High
		return
	}
	b.spans = append(b.spans, sp)
}

func (b *ascBuilder) set() vertex.IDSet {
	return vertex.FromSortedSpans(b.spans)
}

// idHeap is a heap of ids; max-heap unless asc is set.
type idHeap struct {
	ids []vertex.ID
	asc bool
}

func (h *idHeap) Len() int { return len(h.ids) }
func (h *idHeap) Less(i, j int) bool {
	if h.asc {
		return h.ids[i] < h.ids[j]
	}
	return h.ids[i] > h.ids[j]
}
func (h *idHeap) Swap(i, j int) { h.ids[i], h.ids[j] = h.ids[j], h.ids[i] }
func (h *idHeap) Push(x any)   { h.ids = append(h.ids, x.(vertex.ID)) }
func (h *idHeap) Pop() any {
	n := len(h.ids)
	x := h.ids[n-1]
	h.ids = h.ids[:n-1]
	return x
}

// Ancestors returns set and everything reachable from it through parents.
func (d *IdDag) Ancestors(set vertex.IDSet) vertex.IDSet {
	return d.ancestorsBounded(set, 0)
}

// ancestorsBounded is Ancestors restricted to ids >= floor.
func (d *IdDag) ancestorsBounded(set vertex.IDSet, floor vertex.ID) vertex.IDSet {
	h := &idHeap{}
	d.forEachFlat(set, func(_ *Segment, piece vertex.Span) bool {
		if piece.High >= floor {
			h.ids = append(h.ids, piece.High)
		}
		return true
	})
	heap.Init(h)
	var out descBuilder
	for h.Len() > 0 {
		x := heap.Pop(h).(vertex.ID)
		if out.covers(x) {
			continue
		}
		seg, ok := d.highest(x)
		if !ok {
			continue
		}
		low := max(seg.Low, floor)
		out.push(vertex.Span{Low: low, High: x})
		if seg.Low < floor {
			continue
		}
		for _, p := range seg.Parents {
			if p >= floor {
				heap.Push(h, p)
			}
		}
	}
	return out.set()
}

// Descendants returns set and everything reachable from it through children.
func (d *IdDag) Descendants(set vertex.IDSet) vertex.IDSet {
	return d.descendantsBounded(set, ^vertex.ID(0))
}

// descendantsBounded is Descendants restricted to ids <= ceil.
func (d *IdDag) descendantsBounded(set vertex.IDSet, ceil vertex.ID) vertex.IDSet {
	h := &idHeap{asc: true}
	d.forEachFlat(set, func(_ *Segment, piece vertex.Span) bool {
		h.ids = append(h.ids, piece.Low)
		return true
	})
	heap.Init(h)
	index := d.childIndex()
	var out ascBuilder
	for h.Len() > 0 {
		x := heap.Pop(h).(vertex.ID)
		if x > ceil {
			break
		}
		if out.covers(x) {
			continue
		}
		seg, ok := d.flat(x)
		if !ok {
			continue
		}
		high := min(seg.High, ceil)
		out.push(vertex.Span{Low: x, High: high})
		for _, e := range index.parentsIn(vertex.Span{Low: x, High: high}) {
			heap.Push(h, e.child)
		}
	}
	return out.set()
}

// Range returns descendants of roots that are also ancestors of heads.
func (d *IdDag) Range(roots, heads vertex.IDSet) vertex.IDSet {
	anc := d.Ancestors(heads)
	roots = roots.Intersection(anc)
	top, ok := anc.Max()
	if !ok || roots.IsEmpty() {
		return vertex.IDSet{}
	}
	return d.descendantsBounded(roots, top).Intersection(anc)
}

// Parents returns the direct parents of set.
func (d *IdDag) Parents(set vertex.IDSet) vertex.IDSet {
	var spans []vertex.Span
	d.forEachFlat(set, func(seg *Segment, piece vertex.Span) bool {
		if piece.Low > seg.Low {
			spans = append(spans, vertex.Span{Low: piece.Low - 1, High: piece.High - 1})
			return true
		}
		if piece.High > piece.Low {
			spans = append(spans, vertex.Span{Low: piece.Low, High: piece.High - 1})
		}
		for _, p := range seg.Parents {
			spans = append(spans, vertex.SpanOf(p))
		}
		return true
	})
	return vertex.NewIDSet(spans...)
}

// ParentIDs returns the parents of id, first parent first.
func (d *IdDag) ParentIDs(id vertex.ID) ([]vertex.ID, error) {
	seg, ok := d.flat(id)
	if !ok {
		return nil, derrors.NotFoundID(id)
	}
	if id > seg.Low {
		return []vertex.ID{id - 1}, nil
	}
	return slices.Clone(seg.Parents), nil
}

// Children returns the direct children of set.
func (d *IdDag) Children(set vertex.IDSet) vertex.IDSet {
	index := d.childIndex()
	var spans []vertex.Span
	d.forEachFlat(set, func(seg *Segment, piece vertex.Span) bool {
		if inner := min(piece.High+1, seg.High); inner > piece.Low {
			spans = append(spans, vertex.Span{Low: piece.Low + 1, High: inner})
		}
		for _, e := range index.parentsIn(piece) {
			spans = append(spans, vertex.SpanOf(e.child))
		}
		return true
	})
	return vertex.NewIDSet(spans...)
}

// Heads returns the members of set without children in set.
func (d *IdDag) Heads(set vertex.IDSet) vertex.IDSet {
	return set.Intersection(d.all).Difference(d.Parents(set))
}

// Roots returns the members of set without parents in set.
func (d *IdDag) Roots(set vertex.IDSet) vertex.IDSet {
	return set.Intersection(d.all).Difference(d.Children(set))
}

// HeadsAncestors returns the members of set that are not ancestors of
// other members, i.e. Heads(Ancestors(set)).
func (d *IdDag) HeadsAncestors(set vertex.IDSet) vertex.IDSet {
	set = set.Intersection(d.all)
	return set.Difference(d.Ancestors(d.Parents(set)))
}

// CommonAncestors returns the ids that are ancestors of every member of set.
func (d *IdDag) CommonAncestors(set vertex.IDSet) vertex.IDSet {
	// Within a flat piece the lowest id is an ancestor of the rest, so the
	// low ends are enough.
	var lows []vertex.ID
	d.forEachFlat(set, func(_ *Segment, piece vertex.Span) bool {
		lows = append(lows, piece.Low)
		return true
	})
	if len(lows) == 0 {
		return vertex.IDSet{}
	}
	result := d.Ancestors(vertex.IDSetOf(lows[0]))
	for _, id := range lows[1:] {
		floor, ok := result.Min()
		if !ok {
			break
		}
		result = result.Intersection(d.ancestorsBounded(vertex.IDSetOf(id), floor))
	}
	return result
}

// GCAAll returns every greatest common ancestor of set.
func (d *IdDag) GCAAll(set vertex.IDSet) vertex.IDSet {
	return d.Heads(d.CommonAncestors(set))
}

// GCAOne returns one greatest common ancestor of set, the highest one.
func (d *IdDag) GCAOne(set vertex.IDSet) (vertex.ID, bool) {
	return d.GCAAll(set).Max()
}

// IsAncestor reports whether a is an ancestor of b. Every id is its own
// ancestor.
func (d *IdDag) IsAncestor(a, b vertex.ID) bool {
	if a > b || !d.all.Contains(a) || !d.all.Contains(b) {
		return false
	}
	return d.ancestorsBounded(vertex.IDSetOf(b), a).Contains(a)
}

// FirstAncestorNth follows first parents n times from id.
func (d *IdDag) FirstAncestorNth(id vertex.ID, n uint64) (vertex.ID, error) {
	x := id
	for {
		seg, ok := d.flat(x)
		if !ok {
			return 0, derrors.NotFoundID(x)
		}
		dist := uint64(x - seg.Low)
		if dist >= n {
			return x - vertex.ID(n), nil
		}
		n -= dist
		if len(seg.Parents) == 0 {
			return 0, derrors.New(derrors.ErrCodeNotFound, "%s has no first ancestor %d steps further", seg.Low, n)
		}
		x = seg.Parents[0]
		n--
	}
}

// FirstAncestors returns set and every id reachable from it through first
// parents only.
func (d *IdDag) FirstAncestors(set vertex.IDSet) vertex.IDSet {
	var out vertex.IDSet
	var starts []vertex.ID
	d.forEachFlat(set, func(_ *Segment, piece vertex.Span) bool {
		starts = append(starts, piece.High)
		return true
	})
	for i := len(starts) - 1; i >= 0; i-- {
		x := starts[i]
		for !out.Contains(x) {
			seg, ok := d.flat(x)
			if !ok {
				break
			}
			// Stop at the part already collected by an earlier walk.
			low := seg.Low
			if sp, ok := out.IntersectSpan(vertex.Span{Low: seg.Low, High: x}).Max(); ok {
				low = sp + 1
			}
			out.PushSpan(vertex.Span{Low: low, High: x})
			if low > seg.Low || len(seg.Parents) == 0 {
				break
			}
			x = seg.Parents[0]
		}
	}
	return out
}

// IsMerge reports whether id has more than one parent.
func (d *IdDag) IsMerge(id vertex.ID) bool {
	seg, ok := d.flat(id)
	return ok && seg.Low == id && len(seg.Parents) > 1
}

// Merges returns the members of set with more than one parent.
func (d *IdDag) Merges(set vertex.IDSet) vertex.IDSet {
	var out vertex.IDSet
	d.forEachFlat(set, func(seg *Segment, piece vertex.Span) bool {
		if piece.Low == seg.Low && len(seg.Parents) > 1 {
			out.Push(seg.Low)
		}
		return true
	})
	return out
}

// Only returns ancestors of a that are not ancestors of b.
func (d *IdDag) Only(a, b vertex.IDSet) vertex.IDSet {
	only, _ := d.OnlyBoth(a, b)
	return only
}

// OnlyBoth returns Only(a, b) along with the ancestors of b that are not
// lower than the lowest ancestor of a.
func (d *IdDag) OnlyBoth(a, b vertex.IDSet) (only, ancestorsB vertex.IDSet) {
	ancA := d.Ancestors(a)
	floor, ok := ancA.Min()
	if !ok {
		return vertex.IDSet{}, vertex.IDSet{}
	}
	ancB := d.ancestorsBounded(b, floor)
	return ancA.Difference(ancB), ancB
}

// ReachableRoots returns the members of roots that are ancestors of heads.
func (d *IdDag) ReachableRoots(roots, heads vertex.IDSet) vertex.IDSet {
	floor, ok := roots.Min()
	if !ok {
		return vertex.IDSet{}
	}
	return roots.Intersection(d.ancestorsBounded(heads, floor))
}

// SliceAncestors splits Ancestors(heads) into ascending batches of at most
// size ids. Every batch's parents lie in the same or earlier batches.
func (d *IdDag) SliceAncestors(heads vertex.IDSet, size uint64) []vertex.IDSet {
	if size == 0 {
		size = 1
	}
	var out []vertex.IDSet
	rest := d.Ancestors(heads)
	for !rest.IsEmpty() {
		out = append(out, rest.Take(size))
		rest = rest.Skip(size)
	}
	return out
}

// FlatSegments returns the pieces of flat segments covering set, as a
// batch that can be imported elsewhere.
func (d *IdDag) FlatSegments(set vertex.IDSet) PreparedFlatSegments {
	var out PreparedFlatSegments
	d.forEachFlat(set, func(seg *Segment, piece vertex.Span) bool {
		parents := seg.Parents
		if piece.Low > seg.Low {
			parents = []vertex.ID{piece.Low - 1}
		}
		out.Segments = append(out.Segments, FlatSegment{Low: piece.Low, High: piece.High, Parents: slices.Clone(parents)})
		return true
	})
	return out
}
