package vertex

import (
	"iter"
	"slices"
	"sort"
	"strings"
)

// IDSet is a set of ids stored as ascending, disjoint, non-adjacent spans.
// The zero value is the empty set. Methods that return a set never alias
// the receiver's storage, except Spans which callers must not modify.
type IDSet struct {
	spans []Span
}

// NewIDSet builds a set from spans in any order.
func NewIDSet(spans ...Span) IDSet {
	if len(spans) == 0 {
		return IDSet{}
	}
	sorted := slices.Clone(spans)
	slices.SortFunc(sorted, func(a, b Span) int {
		switch {
		case a.Low < b.Low:
			return -1
		case a.Low > b.Low:
			return 1
		}
		return 0
	})
	return IDSet{spans: normalize(sorted)}
}

// IDSetOf builds a set from individual ids.
func IDSetOf(ids ...ID) IDSet {
	spans := make([]Span, len(ids))
	for i, id := range ids {
		spans[i] = SpanOf(id)
	}
	return NewIDSet(spans...)
}

// FromSortedSpans builds a set from spans already sorted by Low.
// Overlapping and adjacent spans are merged.
func FromSortedSpans(spans []Span) IDSet {
	return IDSet{spans: normalize(slices.Clone(spans))}
}

func normalize(sorted []Span) []Span {
	out := sorted[:0]
	for _, s := range sorted {
		if s.High < s.Low {
			continue
		}
		if n := len(out); n > 0 && s.Low <= out[n-1].High+1 && out[n-1].High != ^ID(0) {
			if s.High > out[n-1].High {
				out[n-1].High = s.High
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// Spans returns the spans in ascending order.
func (s IDSet) Spans() []Span {
	return s.spans
}

// IsEmpty reports whether the set has no ids.
func (s IDSet) IsEmpty() bool {
	return len(s.spans) == 0
}

// Count returns the number of ids in the set.
func (s IDSet) Count() uint64 {
	var n uint64
	for _, sp := range s.spans {
		n += sp.Count()
	}
	return n
}

// Min returns the smallest id.
func (s IDSet) Min() (ID, bool) {
	if len(s.spans) == 0 {
		return 0, false
	}
	return s.spans[0].Low, true
}

// Max returns the largest id.
func (s IDSet) Max() (ID, bool) {
	if len(s.spans) == 0 {
		return 0, false
	}
	return s.spans[len(s.spans)-1].High, true
}

// spanIndex returns the index of the span containing id, or -1.
func (s IDSet) spanIndex(id ID) int {
	i := sort.Search(len(s.spans), func(i int) bool { return s.spans[i].High >= id })
	if i < len(s.spans) && s.spans[i].Low <= id {
		return i
	}
	return -1
}

// Contains reports whether id is in the set.
func (s IDSet) Contains(id ID) bool {
	return s.spanIndex(id) >= 0
}

// SpanContaining returns the span of the set that contains id.
func (s IDSet) SpanContaining(id ID) (Span, bool) {
	if i := s.spanIndex(id); i >= 0 {
		return s.spans[i], true
	}
	return Span{}, false
}

// ContainsSpan reports whether every id of sp is in the set.
func (s IDSet) ContainsSpan(sp Span) bool {
	found, ok := s.SpanContaining(sp.Low)
	return ok && found.High >= sp.High
}

// Push adds a single id.
func (s *IDSet) Push(id ID) {
	s.PushSpan(SpanOf(id))
}

// PushSpan adds a span, merging with neighbours.
func (s *IDSet) PushSpan(sp Span) {
	if sp.High < sp.Low {
		return
	}
	n := len(s.spans)
	// Fast path: append at the end.
	if n == 0 || sp.Low > s.spans[n-1].High+1 {
		s.spans = append(s.spans, sp)
		return
	}
	if sp.Low >= s.spans[n-1].Low {
		s.spans[n-1].High = max(s.spans[n-1].High, sp.High)
		return
	}
	// General path: find the first span that could merge.
	lo := sort.Search(n, func(i int) bool { return s.spans[i].High+1 >= sp.Low })
	hi := lo
	merged := sp
	for hi < n && s.spans[hi].Low <= sp.High+1 {
		merged.Low = min(merged.Low, s.spans[hi].Low)
		merged.High = max(merged.High, s.spans[hi].High)
		hi++
	}
	s.spans = slices.Replace(s.spans, lo, hi, merged)
}

// Clone returns an independent copy.
func (s IDSet) Clone() IDSet {
	return IDSet{spans: slices.Clone(s.spans)}
}

// Union returns s ∪ o.
func (s IDSet) Union(o IDSet) IDSet {
	if s.IsEmpty() {
		return o.Clone()
	}
	if o.IsEmpty() {
		return s.Clone()
	}
	merged := make([]Span, 0, len(s.spans)+len(o.spans))
	i, j := 0, 0
	for i < len(s.spans) || j < len(o.spans) {
		if j >= len(o.spans) || (i < len(s.spans) && s.spans[i].Low <= o.spans[j].Low) {
			merged = append(merged, s.spans[i])
			i++
		} else {
			merged = append(merged, o.spans[j])
			j++
		}
	}
	return IDSet{spans: normalize(merged)}
}

// Intersection returns s ∩ o.
func (s IDSet) Intersection(o IDSet) IDSet {
	var out []Span
	i, j := 0, 0
	for i < len(s.spans) && j < len(o.spans) {
		a, b := s.spans[i], o.spans[j]
		if sp, ok := a.Intersect(b); ok {
			out = append(out, sp)
		}
		if a.High < b.High {
			i++
		} else {
			j++
		}
	}
	return IDSet{spans: out}
}

// IntersectSpan returns the ids of s inside sp.
func (s IDSet) IntersectSpan(sp Span) IDSet {
	return s.Intersection(IDSet{spans: []Span{sp}})
}

// Difference returns s − o.
func (s IDSet) Difference(o IDSet) IDSet {
	if o.IsEmpty() {
		return s.Clone()
	}
	var out []Span
	j := 0
	for _, a := range s.spans {
		cur := a
		keep := true
		for j < len(o.spans) && o.spans[j].High < cur.Low {
			j++
		}
		for k := j; k < len(o.spans) && o.spans[k].Low <= cur.High; k++ {
			b := o.spans[k]
			if b.Low > cur.Low {
				out = append(out, Span{Low: cur.Low, High: b.Low - 1})
			}
			if b.High >= cur.High {
				keep = false
				break
			}
			cur.Low = b.High + 1
		}
		if keep {
			out = append(out, cur)
		}
	}
	return IDSet{spans: out}
}

// Equal reports whether both sets hold the same ids.
func (s IDSet) Equal(o IDSet) bool {
	return slices.Equal(s.spans, o.spans)
}

// IterAsc yields ids in ascending order.
func (s IDSet) IterAsc() iter.Seq[ID] {
	return func(yield func(ID) bool) {
		for _, sp := range s.spans {
			for id := sp.Low; ; id++ {
				if !yield(id) {
					return
				}
				if id == sp.High {
					break
				}
			}
		}
	}
}

// IterDesc yields ids in descending order.
func (s IDSet) IterDesc() iter.Seq[ID] {
	return func(yield func(ID) bool) {
		for i := len(s.spans) - 1; i >= 0; i-- {
			sp := s.spans[i]
			for id := sp.High; ; id-- {
				if !yield(id) {
					return
				}
				if id == sp.Low {
					break
				}
			}
		}
	}
}

// Take returns the n smallest ids.
func (s IDSet) Take(n uint64) IDSet {
	var out []Span
	for _, sp := range s.spans {
		if n == 0 {
			break
		}
		if c := sp.Count(); c <= n {
			out = append(out, sp)
			n -= c
			continue
		}
		out = append(out, Span{Low: sp.Low, High: sp.Low + ID(n) - 1})
		n = 0
	}
	return IDSet{spans: out}
}

// Skip returns the set without its n smallest ids.
func (s IDSet) Skip(n uint64) IDSet {
	for i, sp := range s.spans {
		if c := sp.Count(); c <= n {
			n -= c
			continue
		}
		out := slices.Clone(s.spans[i:])
		out[0].Low += ID(n)
		return IDSet{spans: out}
	}
	return IDSet{}
}

// Slice returns the ids of the set as a slice, ascending.
func (s IDSet) Slice() []ID {
	out := make([]ID, 0, min(s.Count(), 1<<16))
	for id := range s.IterAsc() {
		out = append(out, id)
	}
	return out
}

func (s IDSet) String() string {
	parts := make([]string, len(s.spans))
	for i, sp := range s.spans {
		parts[i] = sp.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
