package set

import (
	"github.com/matzehuels/segdag/pkg/vertex"
)

// Flags are boolean properties of a set.
type Flags uint32

const (
	// FlagFull marks a set holding every vertex of its graph.
	FlagFull Flags = 1 << iota
	// FlagEmpty marks a set known to be empty.
	FlagEmpty
	// FlagIDAsc marks sets whose Iter yields ascending ids.
	FlagIDAsc
	// FlagIDDesc marks sets whose Iter yields descending ids.
	FlagIDDesc
	// FlagAncestors marks sets closed under taking ancestors.
	FlagAncestors
)

const orderFlags = FlagIDAsc | FlagIDDesc

// Hints is cheap metadata attached to a set. The zero value knows nothing.
type Hints struct {
	flags          Flags
	minID, maxID   vertex.ID
	hasMin, hasMax bool
	mapID          string
}

// NewHints returns hints bound to an id map.
func NewHints(mapID string) Hints {
	return Hints{mapID: mapID}
}

// Flags returns the flag bits.
func (h Hints) Flags() Flags { return h.flags }

// Has reports whether all bits of f are set.
func (h Hints) Has(f Flags) bool { return h.flags&f == f }

// MinID returns the known lower id bound.
func (h Hints) MinID() (vertex.ID, bool) { return h.minID, h.hasMin }

// MaxID returns the known upper id bound.
func (h Hints) MaxID() (vertex.ID, bool) { return h.maxID, h.hasMax }

// MapID identifies the id map the bounds refer to.
func (h Hints) MapID() string { return h.mapID }

// WithFlags returns h with f added.
func (h Hints) WithFlags(f Flags) Hints {
	h.flags |= f
	return h
}

// WithoutFlags returns h with f removed.
func (h Hints) WithoutFlags(f Flags) Hints {
	h.flags &^= f
	return h
}

// WithMinID returns h with a lower bound.
func (h Hints) WithMinID(id vertex.ID) Hints {
	h.minID, h.hasMin = id, true
	return h
}

// WithMaxID returns h with an upper bound.
func (h Hints) WithMaxID(id vertex.ID) Hints {
	h.maxID, h.hasMax = id, true
	return h
}

// WithIDs sets the bounds from ids.
func (h Hints) WithIDs(ids vertex.IDSet) Hints {
	if lo, ok := ids.Min(); ok {
		hi, _ := ids.Max()
		return h.WithMinID(lo).WithMaxID(hi).WithoutFlags(FlagEmpty)
	}
	return h.WithFlags(FlagEmpty)
}

func sameMap(a, b Hints) string {
	if a.mapID == b.mapID {
		return a.mapID
	}
	return ""
}

// unionHints combines hints for a ∪ b.
func unionHints(a, b Hints) Hints {
	out := Hints{mapID: sameMap(a, b)}
	if a.Has(FlagFull) || b.Has(FlagFull) {
		out.flags |= FlagFull
	}
	if a.Has(FlagEmpty) && b.Has(FlagEmpty) {
		out.flags |= FlagEmpty
	}
	if a.Has(FlagAncestors) && b.Has(FlagAncestors) {
		out.flags |= FlagAncestors
	}
	if out.mapID != "" {
		if a.hasMin && b.hasMin {
			out = out.WithMinID(min(a.minID, b.minID))
		}
		if a.hasMax && b.hasMax {
			out = out.WithMaxID(max(a.maxID, b.maxID))
		}
	}
	return out
}

// intersectionHints combines hints for a ∩ b. Iteration follows a.
func intersectionHints(a, b Hints) Hints {
	out := Hints{mapID: a.mapID, flags: a.flags & orderFlags}
	if a.Has(FlagFull) && b.Has(FlagFull) {
		out.flags |= FlagFull
	}
	if a.Has(FlagEmpty) || b.Has(FlagEmpty) {
		out.flags |= FlagEmpty
	}
	if a.Has(FlagAncestors) && b.Has(FlagAncestors) {
		out.flags |= FlagAncestors
	}
	out.minID, out.hasMin = a.minID, a.hasMin
	out.maxID, out.hasMax = a.maxID, a.hasMax
	if sameMap(a, b) != "" {
		if b.hasMin && (!out.hasMin || b.minID > out.minID) {
			out = out.WithMinID(b.minID)
		}
		if b.hasMax && (!out.hasMax || b.maxID < out.maxID) {
			out = out.WithMaxID(b.maxID)
		}
	}
	return out
}

// differenceHints combines hints for a − b. Iteration follows a.
func differenceHints(a, b Hints) Hints {
	out := Hints{mapID: a.mapID, flags: a.flags & (orderFlags | FlagEmpty)}
	if b.Has(FlagEmpty) && a.Has(FlagAncestors) {
		out.flags |= FlagAncestors
	}
	out.minID, out.hasMin = a.minID, a.hasMin
	out.maxID, out.hasMax = a.maxID, a.hasMax
	return out
}
