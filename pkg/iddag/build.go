package iddag

import (
	"slices"

	"github.com/matzehuels/segdag/pkg/vertex"
)

// buildHighLevels builds every level above 0 for group g. Unless full is
// set it stops at the first level that gains nothing, since the levels
// above only change when the one below does.
func (d *IdDag) buildHighLevels(g vertex.Group, full bool) {
	for l := Level(1); l <= d.maxLevel; l++ {
		if d.buildLevel(l, g) == 0 && !full {
			return
		}
	}
}

// buildLevel summarizes level-1 segments of group g that are not yet
// covered at level. It returns the number of segments built.
func (d *IdDag) buildLevel(level Level, g vertex.Group) int {
	d.ensureLevel(level)
	lower := d.levels[level-1]
	lo, hi := d.groupRange(level-1, g)
	if level == 1 && hi > lo {
		// The last flat segment of a group may still grow.
		hi--
	}
	if hi-lo < d.segmentSize {
		return 0
	}

	// Skip what the level already covers.
	if clo, chi := d.groupRange(level, g); chi > clo {
		covered := d.levels[level][chi-1].High
		for lo < hi && lower[lo].Low <= covered {
			lo++
		}
	}

	var built []Segment
	run := lower[lo:hi]
	for len(run) > 0 {
		// Windows must be contiguous in id space.
		n := 1
		for n < len(run) && n < d.segmentSize && run[n].Low == run[n-1].High+1 {
			n++
		}
		if n < d.segmentSize {
			if n < len(run) {
				run = run[n:]
				continue
			}
			break
		}
		j := singleHeadPrefix(run[:n])
		built = append(built, summarize(level, run[:j]))
		run = run[j:]
	}
	for _, s := range built {
		d.put(s)
	}
	return len(built)
}

// singleHeadPrefix returns the length of the longest prefix of window
// whose union has exactly one head.
func singleHeadPrefix(window []Segment) int {
	best := 1
	for j := 1; j < len(window); j++ {
		referenced := make(map[vertex.ID]bool)
		for _, s := range window[1 : j+1] {
			for _, p := range s.Parents {
				referenced[p] = true
			}
		}
		single := true
		for _, s := range window[:j] {
			if !referenced[s.High] {
				single = false
				break
			}
		}
		if single {
			best = j + 1
		}
	}
	return best
}

// summarize builds one level segment covering segs.
func summarize(level Level, segs []Segment) Segment {
	out := Segment{Level: level, Low: segs[0].Low, High: segs[len(segs)-1].High}
	var parents []vertex.ID
	for _, s := range segs {
		if s.HasRoot() {
			out.Flags |= FlagHasRoot
		}
		for _, p := range s.Parents {
			if p < out.Low {
				parents = append(parents, p)
			}
		}
	}
	slices.Sort(parents)
	out.Parents = slices.Compact(parents)
	return out
}
