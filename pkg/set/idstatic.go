package set

import (
	"context"
	"fmt"
	"iter"

	"github.com/matzehuels/segdag/pkg/vertex"
)

// IDConvert maps between names and ids of one graph.
type IDConvert interface {
	VertexID(ctx context.Context, name vertex.Name) (vertex.ID, error)
	// VertexIDOptional reports ok=false for names the graph does not hold.
	VertexIDOptional(ctx context.Context, name vertex.Name) (id vertex.ID, ok bool, err error)
	VertexName(ctx context.Context, id vertex.ID) (vertex.Name, error)
	// VertexNames resolves many ids at once, preserving order.
	VertexNames(ctx context.Context, ids []vertex.ID) ([]vertex.Name, error)
	// MapID identifies the id map. Sets with equal map ids share id space.
	MapID() string
}

// nameBatch is how many ids IDStatic resolves per VertexNames call.
const nameBatch = 256

// IDStatic is a span-based id set resolved to names on demand. Iter yields
// ascending ids.
type IDStatic struct {
	ids   vertex.IDSet
	conv  IDConvert
	hints Hints
}

var _ Set = (*IDStatic)(nil)

// FromIDSet builds an IDStatic set. Bounds, order and map id are derived
// from ids and conv; flags in extra are added.
func FromIDSet(ids vertex.IDSet, conv IDConvert, extra Flags) *IDStatic {
	h := NewHints(conv.MapID()).WithIDs(ids).WithFlags(FlagIDAsc | extra)
	return &IDStatic{ids: ids, conv: conv, hints: h}
}

// IDs returns the backing id set.
func (s *IDStatic) IDs() vertex.IDSet { return s.ids }

// Converter returns the id converter.
func (s *IDStatic) Converter() IDConvert { return s.conv }

func (s *IDStatic) resolve(ctx context.Context, ids iter.Seq[vertex.ID]) iter.Seq2[vertex.Name, error] {
	return func(yield func(vertex.Name, error) bool) {
		batch := make([]vertex.ID, 0, nameBatch)
		flush := func() bool {
			names, err := s.conv.VertexNames(ctx, batch)
			if err != nil {
				yield("", err)
				return false
			}
			for _, n := range names {
				if !yield(n, nil) {
					return false
				}
			}
			batch = batch[:0]
			return true
		}
		for id := range ids {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			batch = append(batch, id)
			if len(batch) == nameBatch && !flush() {
				return
			}
		}
		if len(batch) > 0 {
			flush()
		}
	}
}

func (s *IDStatic) Iter(ctx context.Context) iter.Seq2[vertex.Name, error] {
	return s.resolve(ctx, s.ids.IterAsc())
}

func (s *IDStatic) IterRev(ctx context.Context) iter.Seq2[vertex.Name, error] {
	return s.resolve(ctx, s.ids.IterDesc())
}

func (s *IDStatic) Contains(ctx context.Context, name vertex.Name) (bool, error) {
	id, ok, err := s.conv.VertexIDOptional(ctx, name)
	if err != nil || !ok {
		return false, err
	}
	return s.ids.Contains(id), nil
}

func (s *IDStatic) ContainsFast(ctx context.Context, name vertex.Name) (bool, bool, error) {
	ok, err := s.Contains(ctx, name)
	return ok, err == nil, err
}

func (s *IDStatic) Count(context.Context) (int, error) { return int(s.ids.Count()), nil }

func (s *IDStatic) SizeHint() (int, int) {
	n := int(s.ids.Count())
	return n, n
}

func (s *IDStatic) Hints() Hints { return s.hints }

func (s *IDStatic) String() string {
	return fmt.Sprintf("<spans %s>", s.ids)
}

// ToIDSet converts s to ids of conv's graph. An IDStatic set built under
// conv's current map id is used as is; anything else is translated by
// name. Names conv does not hold are reported as NOT_FOUND.
func ToIDSet(ctx context.Context, s Set, conv IDConvert) (vertex.IDSet, error) {
	if st, ok := s.(*IDStatic); ok && st.hints.MapID() != "" && st.hints.MapID() == conv.MapID() {
		return st.ids, nil
	}
	var out vertex.IDSet
	for n, err := range s.Iter(ctx) {
		if err != nil {
			return vertex.IDSet{}, err
		}
		id, err := conv.VertexID(ctx, n)
		if err != nil {
			return vertex.IDSet{}, err
		}
		out.Push(id)
	}
	return out, nil
}
