package iddag

import (
	"github.com/matzehuels/segdag/pkg/vertex"
)

// RemoveDescendants removes set and all of its descendants from the index
// and returns the removed ids. Higher levels touching the removed ids are
// rebuilt.
func (d *IdDag) RemoveDescendants(set vertex.IDSet) vertex.IDSet {
	removed := d.Descendants(set)
	if removed.IsEmpty() {
		return removed
	}
	d.removeIDs(removed)
	return removed
}

// RemoveGroup drops every segment of group g.
func (d *IdDag) RemoveGroup(g vertex.Group) vertex.IDSet {
	removed := d.AllInGroup(g)
	if removed.IsEmpty() {
		return removed
	}
	d.removeIDs(removed)
	return removed
}

// removeIDs removes a descendant-closed id set. Inside every flat segment
// such a set is a suffix.
func (d *IdDag) removeIDs(removed vertex.IDSet) {
	groups := make(map[vertex.Group]bool)
	for _, sp := range removed.Spans() {
		groups[sp.Low.Group()] = true
		groups[sp.High.Group()] = true
	}

	flat := d.levels[0][:0]
	for _, s := range d.levels[0] {
		cut := removed.IntersectSpan(s.Span())
		low, ok := cut.Min()
		switch {
		case !ok:
			flat = append(flat, s)
		case low > s.Low:
			s.High = low - 1
			flat = append(flat, s)
			d.dirty[segKey{0, s.Low}] = struct{}{}
		default:
			delete(d.dirty, segKey{0, s.Low})
		}
	}
	d.levels[0] = flat

	for l := 1; l < len(d.levels); l++ {
		kept := d.levels[l][:0]
		for _, s := range d.levels[l] {
			if removed.IntersectSpan(s.Span()).IsEmpty() {
				kept = append(kept, s)
			} else {
				delete(d.dirty, segKey{Level(l), s.Low})
			}
		}
		d.levels[l] = kept
	}

	d.all = d.all.Difference(removed)
	d.children = nil
	for _, g := range vertex.Groups {
		if groups[g] {
			d.buildHighLevels(g, true)
		}
	}
}
