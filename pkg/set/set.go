package set

import (
	"context"
	"iter"

	"github.com/matzehuels/segdag/pkg/vertex"
)

// Set is a possibly lazy collection of vertex names.
//
// Iter and IterRev yield each member once. A failure is reported as a
// final pair with a non-nil error, after which iteration stops.
type Set interface {
	Iter(ctx context.Context) iter.Seq2[vertex.Name, error]
	IterRev(ctx context.Context) iter.Seq2[vertex.Name, error]
	Contains(ctx context.Context, name vertex.Name) (bool, error)
	// ContainsFast answers membership only if that needs no expensive
	// evaluation. known is false when no cheap answer exists.
	ContainsFast(ctx context.Context, name vertex.Name) (contains, known bool, err error)
	Count(ctx context.Context) (int, error)
	// SizeHint bounds Count. hi is negative when unknown.
	SizeHint() (lo, hi int)
	Hints() Hints
	String() string
}

// Collect drains s in iteration order.
func Collect(ctx context.Context, s Set) ([]vertex.Name, error) {
	var out []vertex.Name
	for n, err := range s.Iter(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// First returns the first member in iteration order.
func First(ctx context.Context, s Set) (vertex.Name, bool, error) {
	return head(s.Iter(ctx))
}

// Last returns the last member in iteration order.
func Last(ctx context.Context, s Set) (vertex.Name, bool, error) {
	return head(s.IterRev(ctx))
}

// IsEmpty reports whether s has no members, consulting hints first.
func IsEmpty(ctx context.Context, s Set) (bool, error) {
	if s.Hints().Has(FlagEmpty) {
		return true, nil
	}
	if _, hi := s.SizeHint(); hi == 0 {
		return true, nil
	}
	_, ok, err := First(ctx, s)
	return !ok, err
}

func head(seq iter.Seq2[vertex.Name, error]) (vertex.Name, bool, error) {
	for n, err := range seq {
		if err != nil {
			return "", false, err
		}
		return n, true, nil
	}
	return "", false, nil
}

// countIter counts by draining seq.
func countIter(seq iter.Seq2[vertex.Name, error]) (int, error) {
	n := 0
	for _, err := range seq {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// filter yields members of seq for which keep returns true.
func filter(ctx context.Context, seq iter.Seq2[vertex.Name, error], keep func(context.Context, vertex.Name) (bool, error)) iter.Seq2[vertex.Name, error] {
	return func(yield func(vertex.Name, error) bool) {
		for n, err := range seq {
			if err != nil {
				yield("", err)
				return
			}
			ok, err := keep(ctx, n)
			if err != nil {
				yield("", err)
				return
			}
			if ok && !yield(n, nil) {
				return
			}
		}
	}
}
