package iddag

import (
	"cmp"
	"slices"
	"sort"

	"github.com/matzehuels/segdag/pkg/vertex"
)

// childEdge records that the flat segment starting at child has parent
// among the parents of its low id.
type childEdge struct {
	parent vertex.ID
	child  vertex.ID
}

type childIndex []childEdge

// childIndex returns the reverse index, building it if stale.
func (d *IdDag) childIndex() childIndex {
	d.childMu.Lock()
	defer d.childMu.Unlock()
	if d.children != nil {
		return d.children
	}
	edges := make([]childEdge, 0, len(d.levels[0]))
	for _, s := range d.levels[0] {
		for _, p := range s.Parents {
			edges = append(edges, childEdge{parent: p, child: s.Low})
		}
	}
	slices.SortFunc(edges, func(a, b childEdge) int {
		if c := cmp.Compare(a.parent, b.parent); c != 0 {
			return c
		}
		return cmp.Compare(a.child, b.child)
	})
	d.children = edges
	return edges
}

// parentsIn returns the edges whose parent lies in sp.
func (idx childIndex) parentsIn(sp vertex.Span) []childEdge {
	lo := sort.Search(len(idx), func(i int) bool { return idx[i].parent >= sp.Low })
	hi := lo
	for hi < len(idx) && idx[hi].parent <= sp.High {
		hi++
	}
	return idx[lo:hi]
}
