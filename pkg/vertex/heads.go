package vertex

// HeadOptions describes one head passed to add-heads operations.
type HeadOptions struct {
	Name Name
	// Group is the desired group for the head and its new ancestors.
	Group Group
	// ReserveSize asks the id map to keep the ids directly after the head
	// free for its future first-parent descendants.
	ReserveSize uint32
}

// HeadList is an ordered list of heads with their options.
type HeadList []HeadOptions

// NewHeadList tags every name with the same group.
func NewHeadList(group Group, names ...Name) HeadList {
	out := make(HeadList, len(names))
	for i, n := range names {
		out[i] = HeadOptions{Name: n, Group: group}
	}
	return out
}

// MasterHeads is NewHeadList(Master, names...).
func MasterHeads(names ...Name) HeadList {
	return NewHeadList(Master, names...)
}

// NonMasterHeads is NewHeadList(NonMaster, names...).
func NonMasterHeads(names ...Name) HeadList {
	return NewHeadList(NonMaster, names...)
}

// Concat appends other lists after l.
func (l HeadList) Concat(others ...HeadList) HeadList {
	out := append(HeadList(nil), l...)
	for _, o := range others {
		out = append(out, o...)
	}
	return out
}

// Names returns the head names in order.
func (l HeadList) Names() []Name {
	out := make([]Name, len(l))
	for i, h := range l {
		out[i] = h.Name
	}
	return out
}

// InGroup returns the names of heads tagged with g.
func (l HeadList) InGroup(g Group) []Name {
	var out []Name
	for _, h := range l {
		if h.Group == g {
			out = append(out, h.Name)
		}
	}
	return out
}
