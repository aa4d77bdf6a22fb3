package set

import (
	"context"
	"iter"
	"strings"

	"github.com/matzehuels/segdag/pkg/vertex"
)

// Static is a fixed, ordered list of names.
type Static struct {
	names []vertex.Name
	index map[vertex.Name]struct{}
	hints Hints
}

var _ Set = (*Static)(nil)

// FromNames builds a Static set. Duplicates keep their first position.
func FromNames(names ...vertex.Name) *Static {
	s := &Static{index: make(map[vertex.Name]struct{}, len(names))}
	for _, n := range names {
		if _, dup := s.index[n]; dup {
			continue
		}
		s.index[n] = struct{}{}
		s.names = append(s.names, n)
	}
	if len(s.names) == 0 {
		s.hints = s.hints.WithFlags(FlagEmpty)
	}
	return s
}

// Empty returns a set with no members.
func Empty() *Static {
	return FromNames()
}

// WithHints replaces the hints. Callers vouch for their accuracy.
func (s *Static) WithHints(h Hints) *Static {
	if len(s.names) == 0 {
		h = h.WithFlags(FlagEmpty)
	}
	s.hints = h
	return s
}

// Names returns the members in order.
func (s *Static) Names() []vertex.Name { return s.names }

func (s *Static) Iter(ctx context.Context) iter.Seq2[vertex.Name, error] {
	return func(yield func(vertex.Name, error) bool) {
		for _, n := range s.names {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(n, nil) {
				return
			}
		}
	}
}

func (s *Static) IterRev(ctx context.Context) iter.Seq2[vertex.Name, error] {
	return func(yield func(vertex.Name, error) bool) {
		for i := len(s.names) - 1; i >= 0; i-- {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(s.names[i], nil) {
				return
			}
		}
	}
}

func (s *Static) Contains(_ context.Context, name vertex.Name) (bool, error) {
	_, ok := s.index[name]
	return ok, nil
}

func (s *Static) ContainsFast(ctx context.Context, name vertex.Name) (bool, bool, error) {
	ok, err := s.Contains(ctx, name)
	return ok, true, err
}

func (s *Static) Count(context.Context) (int, error) { return len(s.names), nil }

func (s *Static) SizeHint() (int, int) { return len(s.names), len(s.names) }

func (s *Static) Hints() Hints { return s.hints }

func (s *Static) String() string {
	const show = 5
	parts := make([]string, 0, min(len(s.names), show)+1)
	for i, n := range s.names {
		if i == show {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, n.String())
	}
	return "<static [" + strings.Join(parts, ", ") + "]>"
}
