// Package idmap maintains the bijection between vertex names and ids and
// assigns ids to new vertices.
//
// Reads consult uncommitted additions first and the persisted tier second,
// so a process always sees its own writes. Persisting moves entries from
// the pending tier to the persisted tier; the persisted tier is never
// edited in place except by explicit removals (strip, reassignment).
package idmap

import (
	"cmp"
	"slices"
	"sort"
	"strings"

	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/vertex"
)

// Entry is one id map record.
type Entry struct {
	ID   vertex.ID   `json:"id"`
	Name vertex.Name `json:"name"`
}

type tier struct {
	byName map[vertex.Name]vertex.ID
	byID   map[vertex.ID]vertex.Name
}

func newTier() tier {
	return tier{byName: make(map[vertex.Name]vertex.ID), byID: make(map[vertex.ID]vertex.Name)}
}

func (t tier) put(e Entry) {
	t.byName[e.Name] = e.ID
	t.byID[e.ID] = e.Name
}

func (t tier) remove(e Entry) {
	delete(t.byName, e.Name)
	delete(t.byID, e.ID)
}

// IdMap is the two-tier name/id map. It is not safe for concurrent use.
type IdMap struct {
	persisted tier
	pending   tier
	order     []Entry // pending entries in insertion order

	sorted []vertex.Name // lazily built for prefix lookups
}

// New returns an empty map.
func New() *IdMap {
	return &IdMap{persisted: newTier(), pending: newTier()}
}

// Clone returns an independent copy of m.
func (m *IdMap) Clone() *IdMap {
	c := New()
	for _, pair := range [][2]tier{{m.persisted, c.persisted}, {m.pending, c.pending}} {
		for id, name := range pair[0].byID {
			pair[1].put(Entry{ID: id, Name: name})
		}
	}
	c.order = slices.Clone(m.order)
	return c
}

// Load adds persisted records.
func (m *IdMap) Load(entries []Entry) error {
	for _, e := range entries {
		if err := m.check(e); err != nil {
			return derrors.Wrap(derrors.ErrCodeCorruption, err, "load id map")
		}
		m.persisted.put(e)
	}
	m.sorted = nil
	return nil
}

// check verifies e does not break the bijection. An identical existing
// entry is fine.
func (m *IdMap) check(e Entry) error {
	if id, ok := m.FindID(e.Name); ok && id != e.ID {
		return derrors.New(derrors.ErrCodeConflict, "vertex %s already has id %s, not %s", e.Name, id, e.ID)
	}
	if name, ok := m.FindName(e.ID); ok && name != e.Name {
		return derrors.New(derrors.ErrCodeConflict, "id %s already names %s, not %s", e.ID, name, e.Name)
	}
	return nil
}

// Insert records a new pending entry.
func (m *IdMap) Insert(id vertex.ID, name vertex.Name) error {
	if err := derrors.ValidateName(string(name)); err != nil {
		return err
	}
	e := Entry{ID: id, Name: name}
	if err := m.check(e); err != nil {
		return err
	}
	if _, ok := m.FindID(name); ok {
		return nil
	}
	m.pending.put(e)
	m.order = append(m.order, e)
	m.sorted = nil
	return nil
}

// FindID looks up the id of name.
func (m *IdMap) FindID(name vertex.Name) (vertex.ID, bool) {
	if id, ok := m.pending.byName[name]; ok {
		return id, true
	}
	id, ok := m.persisted.byName[name]
	return id, ok
}

// FindName looks up the name of id.
func (m *IdMap) FindName(id vertex.ID) (vertex.Name, bool) {
	if name, ok := m.pending.byID[id]; ok {
		return name, true
	}
	name, ok := m.persisted.byID[id]
	return name, ok
}

// VertexID is FindID with a NOT_FOUND error.
func (m *IdMap) VertexID(name vertex.Name) (vertex.ID, error) {
	if id, ok := m.FindID(name); ok {
		return id, nil
	}
	return 0, derrors.NotFoundName(name)
}

// VertexName is FindName with a NOT_FOUND error.
func (m *IdMap) VertexName(id vertex.ID) (vertex.Name, error) {
	if name, ok := m.FindName(id); ok {
		return name, nil
	}
	return "", derrors.NotFoundID(id)
}

// ContainsName reports whether name has an id.
func (m *IdMap) ContainsName(name vertex.Name) bool {
	_, ok := m.FindID(name)
	return ok
}

// ContainsID reports whether id has a name.
func (m *IdMap) ContainsID(id vertex.ID) bool {
	_, ok := m.FindName(id)
	return ok
}

// Len returns the number of entries.
func (m *IdMap) Len() int {
	return len(m.persisted.byID) + len(m.pending.byID)
}

// Pending returns uncommitted entries of persisted groups in insertion
// order.
func (m *IdMap) Pending() []Entry {
	var out []Entry
	for _, e := range m.order {
		if e.ID.Group().IsPersisted() {
			out = append(out, e)
		}
	}
	return out
}

// HasPending reports whether Pending is non-empty.
func (m *IdMap) HasPending() bool {
	for _, e := range m.order {
		if e.ID.Group().IsPersisted() {
			return true
		}
	}
	return false
}

// MarkPersisted moves pending entries of persisted groups into the
// persisted tier. Virtual entries stay pending.
func (m *IdMap) MarkPersisted() {
	kept := m.order[:0]
	for _, e := range m.order {
		if e.ID.Group().IsPersisted() {
			m.pending.remove(e)
			m.persisted.put(e)
		} else {
			kept = append(kept, e)
		}
	}
	m.order = kept
}

// PersistIDs moves the pending entries whose ids are in set into the
// persisted tier.
func (m *IdMap) PersistIDs(set vertex.IDSet) {
	kept := m.order[:0]
	for _, e := range m.order {
		if set.Contains(e.ID) && e.ID.Group().IsPersisted() {
			m.pending.remove(e)
			m.persisted.put(e)
		} else {
			kept = append(kept, e)
		}
	}
	m.order = kept
}

// Entries returns every entry of the persisted groups sorted by id.
func (m *IdMap) Entries() []Entry {
	out := make([]Entry, 0, m.Len())
	for _, t := range []tier{m.persisted, m.pending} {
		for id, name := range t.byID {
			if id.Group().IsPersisted() {
				out = append(out, Entry{ID: id, Name: name})
			}
		}
	}
	slices.SortFunc(out, func(a, b Entry) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// RemoveIDs drops every entry whose id is in set and returns how many
// were removed.
func (m *IdMap) RemoveIDs(set vertex.IDSet) int {
	if set.IsEmpty() {
		return 0
	}
	n := 0
	for _, t := range []tier{m.persisted, m.pending} {
		for id, name := range t.byID {
			if set.Contains(id) {
				t.remove(Entry{ID: id, Name: name})
				n++
			}
		}
	}
	m.order = slices.DeleteFunc(m.order, func(e Entry) bool { return set.Contains(e.ID) })
	m.sorted = nil
	return n
}

// RemoveGroup drops every entry of group g.
func (m *IdMap) RemoveGroup(g vertex.Group) int {
	return m.RemoveIDs(vertex.NewIDSet(g.Span()))
}

// NamesByHexPrefix returns up to limit names whose hex form starts with
// prefix, in byte order.
func (m *IdMap) NamesByHexPrefix(prefix string, limit int) []vertex.Name {
	prefix = strings.ToLower(prefix)
	if m.sorted == nil {
		m.sorted = make([]vertex.Name, 0, m.Len())
		for _, t := range []tier{m.persisted, m.pending} {
			for name := range t.byName {
				m.sorted = append(m.sorted, name)
			}
		}
		slices.SortFunc(m.sorted, vertex.Name.Compare)
	}
	// Hex encoding preserves byte order, so matches are contiguous.
	i := sort.Search(len(m.sorted), func(i int) bool { return m.sorted[i].Hex() >= prefix })
	var out []vertex.Name
	for ; i < len(m.sorted) && (limit <= 0 || len(out) < limit); i++ {
		if !m.sorted[i].HasHexPrefix(prefix) {
			break
		}
		out = append(out, m.sorted[i])
	}
	return out
}
