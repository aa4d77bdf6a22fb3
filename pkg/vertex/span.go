package vertex

import "fmt"

// Span is an inclusive id range.
type Span struct {
	Low  ID
	High ID
}

// SpanOf returns the single-id span.
func SpanOf(id ID) Span {
	return Span{Low: id, High: id}
}

// Count returns the number of ids in the span.
func (s Span) Count() uint64 {
	return uint64(s.High-s.Low) + 1
}

// Contains reports whether id lies in the span.
func (s Span) Contains(id ID) bool {
	return s.Low <= id && id <= s.High
}

// Overlaps reports whether the spans share at least one id.
func (s Span) Overlaps(o Span) bool {
	return s.Low <= o.High && o.Low <= s.High
}

// Intersect returns the overlap of the spans.
func (s Span) Intersect(o Span) (Span, bool) {
	if !s.Overlaps(o) {
		return Span{}, false
	}
	return Span{Low: max(s.Low, o.Low), High: min(s.High, o.High)}, true
}

func (s Span) String() string {
	if s.Low == s.High {
		return s.Low.String()
	}
	return fmt.Sprintf("%s..=%s", s.Low, s.High)
}
