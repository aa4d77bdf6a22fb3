package vertex

import "fmt"

// ID is a dense vertex identifier.
type ID uint64

// Group partitions the id space.
type Group uint8

const (
	Master Group = iota
	NonMaster
	Virtual
)

// groupBits is the number of high bits reserved for the group.
const groupBits = 8

// groupShift positions the group inside an id.
const groupShift = 64 - groupBits

// Groups lists every group in id order.
var Groups = []Group{Master, NonMaster, Virtual}

// PersistedGroups lists the groups written to disk.
var PersistedGroups = []Group{Master, NonMaster}

// MinID returns the first id of the group.
func (g Group) MinID() ID {
	return ID(g) << groupShift
}

// MaxID returns the last id of the group.
func (g Group) MaxID() ID {
	return (ID(g+1) << groupShift) - 1
}

// Span returns the full id range of the group.
func (g Group) Span() Span {
	return Span{Low: g.MinID(), High: g.MaxID()}
}

// IsPersisted reports whether ids of the group are written to disk.
func (g Group) IsPersisted() bool {
	return g != Virtual
}

func (g Group) String() string {
	switch g {
	case Master:
		return "master"
	case NonMaster:
		return "non_master"
	case Virtual:
		return "virtual"
	default:
		return fmt.Sprintf("group(%d)", uint8(g))
	}
}

// ParseGroup parses the String form of a group.
func ParseGroup(s string) (Group, error) {
	for _, g := range Groups {
		if g.String() == s {
			return g, nil
		}
	}
	return 0, fmt.Errorf("unknown group %q", s)
}

// Group returns the group the id belongs to.
func (id ID) Group() Group {
	return Group(id >> groupShift)
}

// Valid reports whether the id falls in a known group.
func (id ID) Valid() bool {
	return id.Group() <= Virtual
}

// String renders the id with a group prefix, e.g. "N12" for NonMaster id 12.
func (id ID) String() string {
	g := id.Group()
	off := uint64(id - g.MinID())
	switch g {
	case Master:
		return fmt.Sprintf("%d", off)
	case NonMaster:
		return fmt.Sprintf("N%d", off)
	case Virtual:
		return fmt.Sprintf("V%d", off)
	default:
		return fmt.Sprintf("#%d", uint64(id))
	}
}
