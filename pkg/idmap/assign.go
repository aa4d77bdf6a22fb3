package idmap

import (
	"context"
	"errors"

	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/iddag"
	"github.com/matzehuels/segdag/pkg/vertex"
)

// ErrNeedsReassign is returned when a head assigned to the master group
// has an ancestor in the non-master group. The caller must clear and
// re-add the non-master group.
var ErrNeedsReassign = errors.New("non-master ancestor must move to the master group")

// frame is one vertex on the assignment walk.
type frame struct {
	name    vertex.Name
	parents []vertex.Name
	loaded  bool
	next    int // index of the next parent to visit, counting down
}

// AssignHead assigns ids to head and its unassigned ancestors in group.
//
// Parents are visited last-to-first so the first parent is assigned right
// before its child, which keeps first-parent chains in one flat segment.
// New ids are never in covered, and skip reserved ids unless they directly
// continue their first parent. covered is updated with the new ids.
//
// On error no entries are added and covered is left unchanged.
func (m *IdMap) AssignHead(ctx context.Context, head vertex.Name, parents vertex.Parents, group vertex.Group, covered *vertex.IDSet, reserved vertex.IDSet) (outcome iddag.PreparedFlatSegments, err error) {
	if id, ok := m.FindID(head); ok {
		return outcome, groupAllows(id, head, group)
	}

	var assigned []Entry
	before := covered.Clone()
	defer func() {
		if err != nil {
			for _, e := range assigned {
				m.pending.remove(e)
			}
			m.order = m.order[:len(m.order)-len(assigned)]
			m.sorted = nil
			*covered = before
			outcome = iddag.PreparedFlatSegments{}
		}
	}()

	stack := []*frame{{name: head}}
	onStack := map[vertex.Name]bool{head: true}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if !f.loaded {
			if err := ctx.Err(); err != nil {
				return outcome, err
			}
			if err := derrors.ValidateName(string(f.name)); err != nil {
				return outcome, err
			}
			ps, err := parents.ParentNames(ctx, f.name)
			if err != nil {
				return outcome, derrors.Wrap(derrors.ErrCodeRemote, err, "parents of %s", f.name)
			}
			f.parents, f.loaded, f.next = ps, true, len(ps)-1
		}

		descended := false
		for f.next >= 0 {
			p := f.parents[f.next]
			f.next--
			if id, ok := m.FindID(p); ok {
				if err := groupAllows(id, p, group); err != nil {
					return outcome, err
				}
				continue
			}
			if onStack[p] {
				return outcome, derrors.New(derrors.ErrCodeProgramming, "cycle in parents: %s is its own ancestor", p)
			}
			onStack[p] = true
			stack = append(stack, &frame{name: p})
			descended = true
			break
		}
		if descended {
			continue
		}

		parentIDs := make([]vertex.ID, len(f.parents))
		for i, p := range f.parents {
			parentIDs[i], _ = m.FindID(p)
		}
		id, err := pickID(group, parentIDs, *covered, reserved)
		if err != nil {
			return outcome, err
		}
		e := Entry{ID: id, Name: f.name}
		m.pending.put(e)
		m.order = append(m.order, e)
		assigned = append(assigned, e)
		covered.Push(id)
		outcome.Push(id, parentIDs)

		delete(onStack, f.name)
		stack = stack[:len(stack)-1]
	}
	m.sorted = nil
	return outcome, nil
}

// groupAllows checks that an existing vertex may be an ancestor of a new
// vertex in group.
func groupAllows(id vertex.ID, name vertex.Name, group vertex.Group) error {
	g := id.Group()
	if g <= group {
		return nil
	}
	if g == vertex.NonMaster && group == vertex.Master {
		return ErrNeedsReassign
	}
	return derrors.New(derrors.ErrCodeProgramming, "%s vertex %s cannot be an ancestor of a %s vertex", g, name, group)
}

// pickID chooses the id for a vertex whose parents have parentIDs.
func pickID(group vertex.Group, parentIDs []vertex.ID, covered, reserved vertex.IDSet) (vertex.ID, error) {
	candidate := group.MinID()
	for _, p := range parentIDs {
		if p.Group() == group && p+1 > candidate {
			candidate = p + 1
		}
	}
	for {
		if candidate > group.MaxID() || candidate < group.MinID() {
			return 0, derrors.New(derrors.ErrCodeInternal, "%s group has no free ids", group)
		}
		if sp, ok := covered.SpanContaining(candidate); ok {
			candidate = sp.High + 1
			continue
		}
		if sp, ok := reserved.SpanContaining(candidate); ok {
			if len(parentIDs) > 0 && parentIDs[0]+1 == candidate {
				return candidate, nil
			}
			candidate = sp.High + 1
			continue
		}
		return candidate, nil
	}
}

// Reserve returns the free ids directly after id, up to size of them.
func Reserve(id vertex.ID, size uint32, covered vertex.IDSet) vertex.IDSet {
	var out vertex.IDSet
	for next := id + 1; size > 0 && next <= id.Group().MaxID() && !covered.Contains(next); next++ {
		out.Push(next)
		size--
	}
	return out
}
