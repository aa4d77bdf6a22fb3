package set

import (
	"context"
	"fmt"
	"iter"

	"github.com/matzehuels/segdag/pkg/vertex"
)

// Union returns a ∪ b. Generic iteration yields a's members, then b's
// members not in a.
func Union(a, b Set) Set {
	if x, y, ok := spanPair(a, b); ok {
		return FromIDSet(x.ids.Union(y.ids), x.conv, commonFlags(a, b))
	}
	switch {
	case a.Hints().Has(FlagEmpty):
		return b
	case b.Hints().Has(FlagEmpty):
		return a
	}
	return &union{a: a, b: b, hints: unionHints(a.Hints(), b.Hints())}
}

// Intersection returns a ∩ b in a's iteration order.
func Intersection(a, b Set) Set {
	if x, y, ok := spanPair(a, b); ok {
		return FromIDSet(x.ids.Intersection(y.ids), x.conv, commonFlags(a, b))
	}
	if b.Hints().Has(FlagFull) && sameMap(a.Hints(), b.Hints()) != "" {
		return a
	}
	return &intersection{a: a, b: b, hints: intersectionHints(a.Hints(), b.Hints())}
}

// Difference returns a − b in a's iteration order.
func Difference(a, b Set) Set {
	if x, y, ok := spanPair(a, b); ok {
		var extra Flags
		if y.ids.IsEmpty() {
			extra = a.Hints().Flags() & FlagAncestors
		}
		return FromIDSet(x.ids.Difference(y.ids), x.conv, extra)
	}
	if b.Hints().Has(FlagEmpty) {
		return a
	}
	return &difference{a: a, b: b, hints: differenceHints(a.Hints(), b.Hints())}
}

func spanPair(a, b Set) (*IDStatic, *IDStatic, bool) {
	x, ok1 := a.(*IDStatic)
	y, ok2 := b.(*IDStatic)
	if !ok1 || !ok2 || x.hints.MapID() == "" || x.hints.MapID() != y.hints.MapID() {
		return nil, nil, false
	}
	return x, y, true
}

func commonFlags(a, b Set) Flags {
	return a.Hints().Flags() & b.Hints().Flags() & FlagAncestors
}

// combineFast merges two ContainsFast answers under op.
func combineFast(ctx context.Context, a, b Set, name vertex.Name, or bool) (bool, bool, error) {
	x, kx, err := a.ContainsFast(ctx, name)
	if err != nil {
		return false, false, err
	}
	if kx && x == or {
		return or, true, nil
	}
	y, ky, err := b.ContainsFast(ctx, name)
	if err != nil {
		return false, false, err
	}
	if ky && y == or {
		return or, true, nil
	}
	if kx && ky {
		return !or, true, nil
	}
	return false, false, nil
}

type union struct {
	a, b  Set
	hints Hints
}

func (u *union) Iter(ctx context.Context) iter.Seq2[vertex.Name, error] {
	return concat(u.a.Iter(ctx), filter(ctx, u.b.Iter(ctx), notIn(u.a)))
}

func (u *union) IterRev(ctx context.Context) iter.Seq2[vertex.Name, error] {
	return concat(filter(ctx, u.b.IterRev(ctx), notIn(u.a)), u.a.IterRev(ctx))
}

func (u *union) Contains(ctx context.Context, name vertex.Name) (bool, error) {
	if ok, known, err := u.ContainsFast(ctx, name); err != nil || known {
		return ok, err
	}
	ok, err := u.a.Contains(ctx, name)
	if err != nil || ok {
		return ok, err
	}
	return u.b.Contains(ctx, name)
}

func (u *union) ContainsFast(ctx context.Context, name vertex.Name) (bool, bool, error) {
	return combineFast(ctx, u.a, u.b, name, true)
}

func (u *union) Count(ctx context.Context) (int, error) { return countIter(u.Iter(ctx)) }

func (u *union) SizeHint() (int, int) {
	alo, ahi := u.a.SizeHint()
	blo, bhi := u.b.SizeHint()
	if ahi < 0 || bhi < 0 {
		return max(alo, blo), -1
	}
	return max(alo, blo), ahi + bhi
}

func (u *union) Hints() Hints { return u.hints }

func (u *union) String() string { return fmt.Sprintf("<or %s %s>", u.a, u.b) }

type intersection struct {
	a, b  Set
	hints Hints
}

func (s *intersection) Iter(ctx context.Context) iter.Seq2[vertex.Name, error] {
	return filter(ctx, s.a.Iter(ctx), s.b.Contains)
}

func (s *intersection) IterRev(ctx context.Context) iter.Seq2[vertex.Name, error] {
	return filter(ctx, s.a.IterRev(ctx), s.b.Contains)
}

func (s *intersection) Contains(ctx context.Context, name vertex.Name) (bool, error) {
	if ok, known, err := s.ContainsFast(ctx, name); err != nil || known {
		return ok, err
	}
	ok, err := s.a.Contains(ctx, name)
	if err != nil || !ok {
		return false, err
	}
	return s.b.Contains(ctx, name)
}

func (s *intersection) ContainsFast(ctx context.Context, name vertex.Name) (bool, bool, error) {
	return combineFast(ctx, s.a, s.b, name, false)
}

func (s *intersection) Count(ctx context.Context) (int, error) { return countIter(s.Iter(ctx)) }

func (s *intersection) SizeHint() (int, int) {
	_, ahi := s.a.SizeHint()
	_, bhi := s.b.SizeHint()
	switch {
	case ahi < 0:
		return 0, bhi
	case bhi < 0:
		return 0, ahi
	}
	return 0, min(ahi, bhi)
}

func (s *intersection) Hints() Hints { return s.hints }

func (s *intersection) String() string { return fmt.Sprintf("<and %s %s>", s.a, s.b) }

type difference struct {
	a, b  Set
	hints Hints
}

func (d *difference) Iter(ctx context.Context) iter.Seq2[vertex.Name, error] {
	return filter(ctx, d.a.Iter(ctx), notIn(d.b))
}

func (d *difference) IterRev(ctx context.Context) iter.Seq2[vertex.Name, error] {
	return filter(ctx, d.a.IterRev(ctx), notIn(d.b))
}

func (d *difference) Contains(ctx context.Context, name vertex.Name) (bool, error) {
	ok, err := d.a.Contains(ctx, name)
	if err != nil || !ok {
		return false, err
	}
	in, err := d.b.Contains(ctx, name)
	return !in, err
}

func (d *difference) ContainsFast(ctx context.Context, name vertex.Name) (bool, bool, error) {
	x, kx, err := d.a.ContainsFast(ctx, name)
	if err != nil || (kx && !x) {
		return false, kx, err
	}
	y, ky, err := d.b.ContainsFast(ctx, name)
	if err != nil {
		return false, false, err
	}
	if ky && y {
		return false, true, nil
	}
	return true, kx && ky, nil
}

func (d *difference) Count(ctx context.Context) (int, error) { return countIter(d.Iter(ctx)) }

func (d *difference) SizeHint() (int, int) {
	_, ahi := d.a.SizeHint()
	return 0, ahi
}

func (d *difference) Hints() Hints { return d.hints }

func (d *difference) String() string { return fmt.Sprintf("<diff %s %s>", d.a, d.b) }

func notIn(s Set) func(context.Context, vertex.Name) (bool, error) {
	return func(ctx context.Context, n vertex.Name) (bool, error) {
		ok, err := s.Contains(ctx, n)
		return !ok, err
	}
}

func concat(first, second iter.Seq2[vertex.Name, error]) iter.Seq2[vertex.Name, error] {
	return func(yield func(vertex.Name, error) bool) {
		for n, err := range first {
			if !yield(n, err) || err != nil {
				return
			}
		}
		for n, err := range second {
			if !yield(n, err) || err != nil {
				return
			}
		}
	}
}
