package iddag

import (
	"fmt"
	"slices"

	"github.com/matzehuels/segdag/pkg/vertex"
)

// CheckSegments verifies the index invariants and returns one message per
// problem found. An empty result means the index is consistent.
func (d *IdDag) CheckSegments() []string {
	problems := d.checkOverlaps()

	var covered vertex.IDSet
	for _, s := range d.levels[0] {
		covered.PushSpan(s.Span())
		if s.HasRoot() != (len(s.Parents) == 0) {
			problems = append(problems, fmt.Sprintf("flat segment %s: root flag does not match parents", s))
		}
		for _, p := range s.Parents {
			if p >= s.Low {
				problems = append(problems, fmt.Sprintf("flat segment %s: parent %s is not lower", s, p))
			} else if !d.all.Contains(p) {
				problems = append(problems, fmt.Sprintf("flat segment %s: parent %s is not indexed", s, p))
			}
		}
	}
	if !covered.Equal(d.all) {
		problems = append(problems, fmt.Sprintf("id set %s does not match flat segments %s", d.all, covered))
	}

	for l := 1; l < len(d.levels); l++ {
		for _, s := range d.levels[l] {
			problems = append(problems, d.checkHigh(Level(l), s)...)
		}
	}
	return problems
}

// checkOverlaps verifies ordering, overlap and group boundaries per level.
func (d *IdDag) checkOverlaps() []string {
	var problems []string
	for l, segs := range d.levels {
		for i, s := range segs {
			if s.Level != Level(l) {
				problems = append(problems, fmt.Sprintf("segment %s stored at level %d", s, l))
			}
			if s.High < s.Low || s.Low.Group() != s.High.Group() {
				problems = append(problems, fmt.Sprintf("segment %s: invalid range", s))
			}
			if i > 0 && segs[i-1].High >= s.Low {
				problems = append(problems, fmt.Sprintf("segment %s overlaps %s", s, segs[i-1]))
			}
		}
	}
	return problems
}

func (d *IdDag) checkHigh(level Level, s Segment) []string {
	lower := d.levels[level-1]
	i, ok := d.index(level-1, s.Low)
	if !ok || lower[i].Low != s.Low {
		return []string{fmt.Sprintf("segment %s: no level %d segment starts at its low", s, level-1)}
	}
	j := i
	for j+1 < len(lower) && lower[j].High < s.High {
		if lower[j+1].Low != lower[j].High+1 {
			return []string{fmt.Sprintf("segment %s: gap after %s", s, lower[j])}
		}
		j++
	}
	if lower[j].High != s.High {
		return []string{fmt.Sprintf("segment %s: does not end at a level %d boundary", s, level-1)}
	}
	subs := lower[i : j+1]
	var problems []string
	if singleHeadPrefix(subs) != len(subs) {
		problems = append(problems, fmt.Sprintf("segment %s: summarized union has more than one head", s))
	}
	want := summarize(level, subs)
	if !slices.Equal(want.Parents, s.Parents) || want.Flags != s.Flags {
		problems = append(problems, fmt.Sprintf("segment %s: parents or flags differ from summarized %s", s, want))
	}
	return problems
}
